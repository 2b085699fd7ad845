package order

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
)

// Settlement - шаги леджера, которые заказ выполняет в своей единице работы.
type Settlement interface {
	ReleaseForOrder(ctx context.Context, r repository.Repositories, order *entity.Order) (*entity.Transaction, error)
	RefundForOrder(ctx context.Context, r repository.Repositories, order *entity.Order, amount int64) (*entity.Transaction, error)
}

type TransitionResult struct {
	Order       *entity.Order
	From        valueobject.OrderStatus
	Event       valueobject.OrderEvent
	Transaction *entity.Transaction
}

type TransitionOrderUseCase struct {
	store  repository.Store
	ledger Settlement
	now    func() time.Time
	log    *logrus.Entry
}

func NewTransitionOrderUseCase(store repository.Store, ledger Settlement) *TransitionOrderUseCase {
	return &TransitionOrderUseCase{
		store:  store,
		ledger: ledger,
		now:    time.Now,
		log:    logger.WithComponent("order"),
	}
}

// WithClock подменяет часы в тестах.
func (uc *TransitionOrderUseCase) WithClock(now func() time.Time) *TransitionOrderUseCase {
	uc.now = now
	return uc
}

// canPerform - кто из участников может отправить событие.
func canPerform(actor entity.Actor, order *entity.Order, event valueobject.OrderEvent) bool {
	if actor.IsAdmin() {
		return true
	}
	switch event {
	case valueobject.OrderEventStart, valueobject.OrderEventPreview, valueobject.OrderEventDeliver:
		return actor.UserID == order.SellerID
	case valueobject.OrderEventAccept, valueobject.OrderEventRequestRevision:
		return actor.UserID == order.BuyerID
	case valueobject.OrderEventCancel:
		return order.IsParticipant(actor.UserID)
	}
	return false
}

// Execute применяет событие к заказу. Приёмка освобождает escrow, отмена возвращает деньги,
// и всё это фиксируется вместе с переходом или не фиксируется вовсе.
func (uc *TransitionOrderUseCase) Execute(ctx context.Context, actor entity.Actor, orderID uuid.UUID, event valueobject.OrderEvent) (*TransitionResult, error) {
	if !event.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестное событие заказа")
	}
	if !event.IsClientEvent() {
		return nil, apperror.New(apperror.ErrCodeValidation, "событие спора выполняется только через процесс спора").
			WithDetail("event", string(event))
	}

	var result *TransitionResult
	err := uc.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		order, err := r.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !canPerform(actor, order, event) {
			return apperror.ErrForbidden
		}

		now := uc.now()
		from := order.Status
		if err := order.Apply(event, now); err != nil {
			return err
		}
		result = &TransitionResult{Order: order, From: from, Event: event}

		switch event {
		case valueobject.OrderEventStart:
			tx, err := r.Transactions().FindLatestByOrder(ctx, order.ID)
			if apperror.IsNotFound(err) || (err == nil && tx.Status != valueobject.TransactionStatusCaptured) {
				return apperror.ErrEscrowNotCaptured
			}
			if err != nil {
				return err
			}
			result.Transaction = tx
		case valueobject.OrderEventAccept:
			if result.Transaction, err = uc.ledger.ReleaseForOrder(ctx, r, order); err != nil {
				return err
			}
		case valueobject.OrderEventCancel:
			if result.Transaction, err = uc.ledger.RefundForOrder(ctx, r, order, 0); err != nil {
				return err
			}
		}

		if err := r.Orders().Update(ctx, order); err != nil {
			return err
		}
		return r.Orders().AppendHistory(ctx, entity.NewOrderHistory(order, from, event, actor, now))
	})
	if err != nil {
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"event":    event,
		"from":     result.From,
		"to":       result.Order.Status,
	}).Info("order: переход выполнен")
	return result, nil
}
