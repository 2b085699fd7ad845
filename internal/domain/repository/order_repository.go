package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
)

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	// LockByID читает заказ с блокировкой строки до конца единицы работы.
	LockByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	// ListDeliveredBefore - заказы, сданные раньше before и ждущие приёмки.
	ListDeliveredBefore(ctx context.Context, before time.Time, limit int) ([]*entity.Order, error)

	AppendHistory(ctx context.Context, entry *entity.OrderHistory) error
	History(ctx context.Context, orderID uuid.UUID) ([]*entity.OrderHistory, error)
}

type GigRepository interface {
	Create(ctx context.Context, gig *entity.Gig) error
	// FindByID возвращает услугу вместе с пакетами и опциями.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Gig, error)
}
