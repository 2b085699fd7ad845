package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Capture списывает авторизованную сумму. Повторный вызов возвращает транзакцию без изменений.
func (l *Ledger) Capture(ctx context.Context, actor entity.Actor, txID uuid.UUID) (*entity.Transaction, error) {
	var result *entity.Transaction
	err := l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		order, tx, err := lockByTransaction(ctx, r, txID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && order.BuyerID != actor.UserID {
			return apperror.ErrForbidden
		}
		result = tx
		return l.CaptureTx(ctx, r, tx)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CaptureTx выполняет capture внутри чужой единицы работы.
// Ошибка процессора откатывает всю единицу.
func (l *Ledger) CaptureTx(ctx context.Context, r repository.Repositories, tx *entity.Transaction) error {
	changed, err := tx.Capture(l.now())
	if err != nil || !changed {
		return err
	}
	if err := l.processorCall(ctx, "capture", func(ctx context.Context) error {
		return l.processor.Capture(ctx, tx.ProcessorAuthRef, tx.Amount)
	}); err != nil {
		return err
	}
	if err := r.Transactions().Update(ctx, tx); err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"transaction_id": tx.ID, "amount": tx.Amount}).Info("escrow: средства списаны")
	return nil
}

// ReleaseForOrder освобождает escrow заказа продавцу. Авторизованную, но не списанную
// транзакцию сначала списывает. Уже освобождённая транзакция не меняется.
func (l *Ledger) ReleaseForOrder(ctx context.Context, r repository.Repositories, order *entity.Order) (*entity.Transaction, error) {
	tx, err := r.Transactions().FindLatestByOrder(ctx, order.ID)
	if apperror.IsNotFound(err) {
		return nil, apperror.ErrEscrowNotCaptured
	}
	if err != nil {
		return nil, err
	}
	if tx, err = r.Transactions().LockByID(ctx, tx.ID); err != nil {
		return nil, err
	}

	switch tx.Status {
	case valueobject.TransactionStatusAuthorized:
		if err := l.CaptureTx(ctx, r, tx); err != nil {
			return nil, err
		}
	case valueobject.TransactionStatusCaptured, valueobject.TransactionStatusReleased:
	default:
		return nil, apperror.ErrEscrowNotCaptured.WithDetail("transaction_status", string(tx.Status))
	}

	credit, changed, err := tx.Release(l.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return tx, nil
	}
	if err := r.Transactions().Update(ctx, tx); err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"order_id":       order.ID,
		"seller_id":      tx.SellerID,
		"credited":       credit,
	}).Info("escrow: средства освобождены продавцу")
	return tx, nil
}

// RefundForOrder возвращает покупателю amount; amount <= 0 означает весь остаток.
// Заказ без удержанных средств ничего не возвращает, зависшую pending-транзакцию закрывает.
func (l *Ledger) RefundForOrder(ctx context.Context, r repository.Repositories, order *entity.Order, amount int64) (*entity.Transaction, error) {
	tx, err := r.Transactions().FindLatestByOrder(ctx, order.ID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tx, err = r.Transactions().LockByID(ctx, tx.ID); err != nil {
		return nil, err
	}

	switch tx.Status {
	case valueobject.TransactionStatusFailed, valueobject.TransactionStatusRefunded:
		if amount > 0 {
			return nil, apperror.InvalidTransition("transaction", string(tx.Status), "refund")
		}
		return tx, nil
	case valueobject.TransactionStatusPending:
		if err := tx.MarkFailed("заказ отменён до авторизации", l.now()); err != nil {
			return nil, err
		}
		return tx, r.Transactions().Update(ctx, tx)
	}

	if amount <= 0 {
		amount = tx.Refundable()
	}
	if err := tx.Refund(amount, l.now()); err != nil {
		return nil, err
	}
	if err := l.refund(ctx, tx, amount); err != nil {
		return nil, err
	}
	if err := r.Transactions().Update(ctx, tx); err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"order_id":       order.ID,
		"amount":         amount,
		"status":         tx.Status,
	}).Info("escrow: средства возвращены покупателю")
	return tx, nil
}

// Release - сверка администратором: освобождение только для завершённого заказа.
func (l *Ledger) Release(ctx context.Context, actor entity.Actor, txID uuid.UUID) (*entity.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	var result *entity.Transaction
	err := l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		order, tx, err := lockByTransaction(ctx, r, txID)
		if err != nil {
			return err
		}
		if order.Status != valueobject.OrderStatusCompleted {
			return apperror.InvalidTransition("order", string(order.Status), "release")
		}
		latest, err := r.Transactions().FindLatestByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if latest.ID != tx.ID {
			return apperror.InvalidTransition("transaction", string(tx.Status), "release")
		}
		result, err = l.ReleaseForOrder(ctx, r, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Refund - возврат администратором. До сдачи работы полный возврат отменяет заказ,
// по отменённому заказу возвращает оставшееся. В остальных статусах деньги двигает спор.
func (l *Ledger) Refund(ctx context.Context, actor entity.Actor, txID uuid.UUID, amount int64) (*entity.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	var result *entity.Transaction
	err := l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		order, tx, err := lockByTransaction(ctx, r, txID)
		if err != nil {
			return err
		}

		switch order.Status {
		case valueobject.OrderStatusPending, valueobject.OrderStatusInProgress:
			if amount > 0 && !tx.IsFullRefund(amount) {
				return apperror.New(apperror.ErrCodeValidation, "до сдачи работы возможен только полный возврат")
			}
			from := order.Status
			if err := order.Apply(valueobject.OrderEventCancel, l.now()); err != nil {
				return err
			}
			if err := r.Orders().Update(ctx, order); err != nil {
				return err
			}
			if err := r.Orders().AppendHistory(ctx, entity.NewOrderHistory(order, from, valueobject.OrderEventCancel, actor, l.now())); err != nil {
				return err
			}
		case valueobject.OrderStatusCancelled:
		default:
			return apperror.InvalidTransition("order", string(order.Status), "refund")
		}

		result, err = l.RefundForOrder(ctx, r, order, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
