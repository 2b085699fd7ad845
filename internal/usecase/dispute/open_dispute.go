package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/logger"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/validation"
)

type OpenDisputeInput struct {
	OrderID     uuid.UUID
	Reason      string
	Description string
}

type OpenDisputeUseCase struct {
	store repository.Store
	now   func() time.Time
	log   *logrus.Entry
}

func NewOpenDisputeUseCase(store repository.Store) *OpenDisputeUseCase {
	return &OpenDisputeUseCase{store: store, now: time.Now, log: logger.WithComponent("dispute")}
}

// Execute открывает спор и переводит заказ в disputed в одной единице работы.
func (uc *OpenDisputeUseCase) Execute(ctx context.Context, actor entity.Actor, input OpenDisputeInput) (*entity.Dispute, *entity.Order, error) {
	reason, err := valueobject.NewDisputeReason(input.Reason)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректная причина спора")
	}
	description, err := validation.ValidateDisputeDescription(input.Description)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	var (
		dispute *entity.Dispute
		order   *entity.Order
	)
	err = uc.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		order, err = r.Orders().LockByID(ctx, input.OrderID)
		if err != nil {
			return err
		}

		now := uc.now()
		dispute, err = entity.NewDispute(order, actor.UserID, reason, description, now)
		if err != nil {
			return err
		}
		if order.Status == valueobject.OrderStatusDisputed {
			return apperror.ErrDisputeAlreadyOpen
		}

		from := order.Status
		if err := order.Apply(valueobject.OrderEventOpenDispute, now); err != nil {
			return err
		}
		if err := r.Disputes().Create(ctx, dispute); err != nil {
			return err
		}
		if err := r.Orders().Update(ctx, order); err != nil {
			return err
		}
		return r.Orders().AppendHistory(ctx, entity.NewOrderHistory(order, from, valueobject.OrderEventOpenDispute, actor, now))
	})
	if err != nil {
		return nil, nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"dispute_id": dispute.ID,
		"order_id":   order.ID,
		"reason":     reason,
	}).Info("dispute: спор открыт")
	return dispute, order, nil
}
