package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	Update(ctx context.Context, tx *entity.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error)
	LockByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error)
	// FindOpenByOrder возвращает нетерминальную транзакцию заказа (pending, authorized, captured).
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Transaction, error)
	// FindLatestByOrder возвращает последнюю транзакцию заказа в любом статусе.
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Transaction, error)
	// ListReleasedBySeller - освобождённые транзакции продавца от старых к новым, с блокировкой.
	ListReleasedBySeller(ctx context.Context, sellerID uuid.UUID) ([]*entity.Transaction, error)
}

type PayoutRepository interface {
	Create(ctx context.Context, payout *entity.Payout) error
	Update(ctx context.Context, payout *entity.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payout, error)
	LockByID(ctx context.Context, id uuid.UUID) (*entity.Payout, error)
	ListPending(ctx context.Context, limit int) ([]*entity.Payout, error)
}

// BalanceRepository сериализует операции с балансом одного продавца.
type BalanceRepository interface {
	// Lock создаёт строку баланса при необходимости и блокирует её.
	Lock(ctx context.Context, sellerID uuid.UUID) error
}

type DisputeRepository interface {
	// Create возвращает ErrDisputeAlreadyOpen, если по заказу уже есть активный спор.
	Create(ctx context.Context, dispute *entity.Dispute) error
	Update(ctx context.Context, dispute *entity.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	LockByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.Dispute, error)
}

type FraudAlertRepository interface {
	Create(ctx context.Context, alert *entity.FraudAlert) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.FraudAlert, error)
}
