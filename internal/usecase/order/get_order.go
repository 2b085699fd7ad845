package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

type GetOrderUseCase struct {
	store repository.Store
}

func NewGetOrderUseCase(store repository.Store) *GetOrderUseCase {
	return &GetOrderUseCase{store: store}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, actor entity.Actor, orderID uuid.UUID) (*entity.Order, error) {
	order, err := uc.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsParticipant(actor.UserID) {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// History возвращает журнал переходов заказа от старых записей к новым.
func (uc *GetOrderUseCase) History(ctx context.Context, actor entity.Actor, orderID uuid.UUID) ([]*entity.OrderHistory, error) {
	if _, err := uc.Execute(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return uc.store.Orders().History(ctx, orderID)
}
