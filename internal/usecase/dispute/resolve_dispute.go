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

// Settlement - операции леджера внутри единицы работы спора.
type Settlement interface {
	CaptureTx(ctx context.Context, r repository.Repositories, tx *entity.Transaction) error
	ReleaseForOrder(ctx context.Context, r repository.Repositories, order *entity.Order) (*entity.Transaction, error)
	RefundForOrder(ctx context.Context, r repository.Repositories, order *entity.Order, amount int64) (*entity.Transaction, error)
}

type ResolveDisputeInput struct {
	DisputeID    uuid.UUID
	Outcome      string
	RefundAmount int64
	Notes        string
	// CancelOnPartialRefund отменяет заказ после частичного возврата и возвращает покупателю остаток.
	CancelOnPartialRefund bool
}

type ResolveResult struct {
	Dispute     *entity.Dispute
	Order       *entity.Order
	Transaction *entity.Transaction
}

type ResolveDisputeUseCase struct {
	store  repository.Store
	ledger Settlement
	now    func() time.Time
	log    *logrus.Entry
}

func NewResolveDisputeUseCase(store repository.Store, ledger Settlement) *ResolveDisputeUseCase {
	return &ResolveDisputeUseCase{
		store:  store,
		ledger: ledger,
		now:    time.Now,
		log:    logger.WithComponent("dispute"),
	}
}

// Execute фиксирует итог спора и сразу проводит его по заказу и escrow.
// Спор, заказ и транзакция меняются в одной единице работы.
func (uc *ResolveDisputeUseCase) Execute(ctx context.Context, actor entity.Actor, input ResolveDisputeInput) (*ResolveResult, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	outcome, err := valueobject.NewDisputeOutcome(input.Outcome)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный итог спора")
	}
	if outcome == valueobject.DisputeOutcomeRefundPartial && input.RefundAmount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "для частичного возврата нужна положительная сумма")
	}
	notes, err := validation.ValidateAdminNotes(input.Notes)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	result := &ResolveResult{}
	err = uc.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		found, err := r.Disputes().FindByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}
		// заказ блокируется раньше спора, как и во всех операциях с escrow
		order, err := r.Orders().LockByID(ctx, found.OrderID)
		if err != nil {
			return err
		}
		dispute, err := r.Disputes().LockByID(ctx, input.DisputeID)
		if err != nil {
			return err
		}

		now := uc.now()
		refundAmount := int64(0)
		if outcome == valueobject.DisputeOutcomeRefundPartial {
			refundAmount = input.RefundAmount
		}
		if err := dispute.Resolve(actor.UserID, outcome, refundAmount, notes, now); err != nil {
			return err
		}

		target, tx, err := uc.settle(ctx, r, order, outcome, input)
		if err != nil {
			return err
		}
		if outcome == valueobject.DisputeOutcomeRefundFull || outcome == valueobject.DisputeOutcomeBuyerFavor {
			if tx != nil {
				dispute.RefundAmount = tx.RefundedAmount
			}
		}

		from := order.Status
		if err := order.ResolveDispute(target, now); err != nil {
			return err
		}
		if err := r.Disputes().Update(ctx, dispute); err != nil {
			return err
		}
		if err := r.Orders().Update(ctx, order); err != nil {
			return err
		}
		if err := r.Orders().AppendHistory(ctx, entity.NewOrderHistory(order, from, valueobject.OrderEventResolveDispute, actor, now)); err != nil {
			return err
		}

		result.Dispute, result.Order, result.Transaction = dispute, order, tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"dispute_id":   result.Dispute.ID,
		"order_id":     result.Order.ID,
		"outcome":      outcome,
		"order_status": result.Order.Status,
	}).Info("dispute: спор разрешён")
	return result, nil
}

// settle проводит деньги по итогу и возвращает целевой статус заказа.
func (uc *ResolveDisputeUseCase) settle(ctx context.Context, r repository.Repositories, order *entity.Order, outcome valueobject.DisputeOutcome, input ResolveDisputeInput) (valueobject.OrderStatus, *entity.Transaction, error) {
	switch outcome {
	case valueobject.DisputeOutcomeRefundFull, valueobject.DisputeOutcomeBuyerFavor:
		tx, err := uc.ledger.RefundForOrder(ctx, r, order, 0)
		return valueobject.OrderStatusCancelled, tx, err

	case valueobject.DisputeOutcomeRefundPartial:
		tx, err := uc.captureIfAuthorized(ctx, r, order)
		if err != nil {
			return "", nil, err
		}
		if input.CancelOnPartialRefund {
			// Частичный возврат с отменой отдаёт покупателю всё, поэтому процессор получает один возврат на остаток.
			if err := tx.CheckPartialRefund(input.RefundAmount); err != nil {
				return "", nil, err
			}
			tx, err = uc.ledger.RefundForOrder(ctx, r, order, 0)
			return valueobject.OrderStatusCancelled, tx, err
		}
		if _, err := uc.ledger.RefundForOrder(ctx, r, order, input.RefundAmount); err != nil {
			return "", nil, err
		}
		tx, err = uc.ledger.ReleaseForOrder(ctx, r, order)
		return valueobject.OrderStatusCompleted, tx, err

	case valueobject.DisputeOutcomeSellerFavor, valueobject.DisputeOutcomeNoAction:
		tx, err := uc.ledger.ReleaseForOrder(ctx, r, order)
		return valueobject.OrderStatusCompleted, tx, err

	case valueobject.DisputeOutcomeRevisionRequested:
		return valueobject.OrderStatusRevision, nil, nil
	}
	return "", nil, apperror.New(apperror.ErrCodeValidation, "некорректный итог спора")
}

// captureIfAuthorized возвращает последнюю транзакцию заказа, авторизованную сначала списывает:
// частичный возврат возможен только из списанных средств.
func (uc *ResolveDisputeUseCase) captureIfAuthorized(ctx context.Context, r repository.Repositories, order *entity.Order) (*entity.Transaction, error) {
	latest, err := r.Transactions().FindLatestByOrder(ctx, order.ID)
	if apperror.IsNotFound(err) {
		return nil, apperror.ErrEscrowNotCaptured
	}
	if err != nil {
		return nil, err
	}
	tx, err := r.Transactions().LockByID(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	if tx.Status == valueobject.TransactionStatusAuthorized {
		if err := uc.ledger.CaptureTx(ctx, r, tx); err != nil {
			return nil, err
		}
	}
	return tx, nil
}
