package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

type CreateOrderInput struct {
	GigID     uuid.UUID
	PackageID uuid.UUID
	ExtraIDs  []uuid.UUID
}

type CreateOrderUseCase struct {
	store      repository.Store
	feePercent int
	now        func() time.Time
}

func NewCreateOrderUseCase(store repository.Store, feePercent int) *CreateOrderUseCase {
	return &CreateOrderUseCase{store: store, feePercent: feePercent, now: time.Now}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, actor entity.Actor, input CreateOrderInput) (*entity.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	var order *entity.Order
	err := uc.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		gig, err := r.Gigs().FindByID(ctx, input.GigID)
		if apperror.IsNotFound(err) {
			return apperror.ErrInvalidGig.WithDetail("gig_id", input.GigID.String())
		}
		if err != nil {
			return err
		}

		now := uc.now()
		order, err = entity.NewOrder(actor.UserID, gig, input.PackageID, input.ExtraIDs, uc.feePercent, now)
		if err != nil {
			return err
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			return err
		}
		return r.Orders().AppendHistory(ctx, &entity.OrderHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ActorID:   actor.Ref(),
			Event:     "create",
			ToStatus:  valueobject.OrderStatusPending,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
