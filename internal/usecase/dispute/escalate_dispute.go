package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

type EscalateDisputeUseCase struct {
	store repository.Store
	now   func() time.Time
}

func NewEscalateDisputeUseCase(store repository.Store) *EscalateDisputeUseCase {
	return &EscalateDisputeUseCase{store: store, now: time.Now}
}

func (uc *EscalateDisputeUseCase) Execute(ctx context.Context, actor entity.Actor, disputeID uuid.UUID) (*entity.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	var dispute *entity.Dispute
	err := uc.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		if dispute, err = r.Disputes().LockByID(ctx, disputeID); err != nil {
			return err
		}
		if err := dispute.Escalate(uc.now()); err != nil {
			return err
		}
		return r.Disputes().Update(ctx, dispute)
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

type CloseDisputeUseCase struct {
	store repository.Store
	now   func() time.Time
}

func NewCloseDisputeUseCase(store repository.Store) *CloseDisputeUseCase {
	return &CloseDisputeUseCase{store: store, now: time.Now}
}

func (uc *CloseDisputeUseCase) Execute(ctx context.Context, actor entity.Actor, disputeID uuid.UUID) (*entity.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	var dispute *entity.Dispute
	err := uc.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		if dispute, err = r.Disputes().LockByID(ctx, disputeID); err != nil {
			return err
		}
		if err := dispute.Close(uc.now()); err != nil {
			return err
		}
		return r.Disputes().Update(ctx, dispute)
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}
