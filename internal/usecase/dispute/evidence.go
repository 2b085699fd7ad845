package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/validation"
)

type SubmitEvidenceUseCase struct {
	store repository.Store
	now   func() time.Time
}

func NewSubmitEvidenceUseCase(store repository.Store) *SubmitEvidenceUseCase {
	return &SubmitEvidenceUseCase{store: store, now: time.Now}
}

// Execute добавляет доказательство от имени стороны спора. Администратор доказательств не подаёт.
func (uc *SubmitEvidenceUseCase) Execute(ctx context.Context, actor entity.Actor, disputeID uuid.UUID, text string) (*entity.Dispute, error) {
	clean, err := validation.ValidateEvidence(text)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	var dispute *entity.Dispute
	err = uc.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		dispute, err = r.Disputes().LockByID(ctx, disputeID)
		if err != nil {
			return err
		}
		if !dispute.IsParty(actor.UserID) {
			return apperror.ErrForbidden
		}
		if err := dispute.AddEvidence(actor.UserID, clean, uc.now()); err != nil {
			return err
		}
		return r.Disputes().Update(ctx, dispute)
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}
