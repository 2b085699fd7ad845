package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

type GetDisputeUseCase struct {
	store repository.Store
}

func NewGetDisputeUseCase(store repository.Store) *GetDisputeUseCase {
	return &GetDisputeUseCase{store: store}
}

func (uc *GetDisputeUseCase) Execute(ctx context.Context, actor entity.Actor, disputeID uuid.UUID) (*entity.Dispute, error) {
	dispute, err := uc.store.Disputes().FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !dispute.IsParty(actor.UserID) {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

// ByOrder возвращает все споры заказа, включая закрытые.
func (uc *GetDisputeUseCase) ByOrder(ctx context.Context, actor entity.Actor, orderID uuid.UUID) ([]*entity.Dispute, error) {
	order, err := uc.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsParticipant(actor.UserID) {
		return nil, apperror.ErrForbidden
	}
	return uc.store.Disputes().ListByOrder(ctx, orderID)
}
