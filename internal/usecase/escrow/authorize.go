package escrow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Authorize удерживает сумму заказа у покупателя в три шага:
// запись pending под блокировкой заказа, вызов процессора вне транзакции БД,
// фиксация результата. При таймауте транзакция остаётся pending и вызов можно повторить.
func (l *Ledger) Authorize(ctx context.Context, actor entity.Actor, orderID uuid.UUID) (*entity.Transaction, error) {
	var (
		pending *entity.Transaction
		done    *entity.Transaction
	)
	err := l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		order, err := r.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && order.BuyerID != actor.UserID {
			return apperror.ErrForbidden
		}

		open, err := r.Transactions().FindOpenByOrder(ctx, orderID)
		switch {
		case err == nil && open.Status != valueobject.TransactionStatusPending:
			done = open
			return nil
		case err == nil:
			pending = open
			return nil
		case !apperror.IsNotFound(err):
			return err
		}

		if order.Status != valueobject.OrderStatusPending {
			return apperror.InvalidTransition("order", string(order.Status), "authorize")
		}
		if err := order.VerifyFees(); err != nil {
			return err
		}
		pending = entity.NewTransaction(order, l.now())
		return r.Transactions().Create(ctx, pending)
	})
	if err != nil {
		return nil, err
	}
	if done != nil {
		return done, nil
	}

	var authRef string
	callErr := l.processorCall(ctx, "authorize", func(ctx context.Context) error {
		ref, err := l.processor.Authorize(ctx, payment.AuthorizeRequest{
			OrderID:  pending.OrderID,
			BuyerID:  pending.BuyerID,
			Amount:   pending.Amount,
			Currency: pending.Currency,
		})
		authRef = ref
		return err
	})

	log := l.log.WithFields(logrus.Fields{"order_id": orderID, "transaction_id": pending.ID})
	declined := apperror.CodeOf(callErr) == apperror.ErrCodePaymentDeclined
	if callErr != nil && !declined {
		// Результат неизвестен: оставляем pending, повтор переиспользует запись.
		log.WithError(callErr).Warn("escrow: авторизация не завершена")
		return pending, callErr
	}

	var (
		result *entity.Transaction
		orphan bool
	)
	err = l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		if _, err := r.Orders().LockByID(ctx, orderID); err != nil {
			return err
		}
		tx, err := r.Transactions().LockByID(ctx, pending.ID)
		if err != nil {
			return err
		}
		result = tx
		if tx.Status != valueobject.TransactionStatusPending {
			// Запись закрыта без нас: параллельным повтором или отменой заказа.
			// Удержание из этого вызова тогда нигде не учтено.
			orphan = !declined && authRef != "" && tx.ProcessorAuthRef != authRef
			return nil
		}
		if declined {
			if err := tx.MarkFailed(callErr.Error(), l.now()); err != nil {
				return err
			}
		} else if err := tx.MarkAuthorized(authRef, l.now()); err != nil {
			return err
		}
		return r.Transactions().Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	if orphan {
		if err := l.voidHold(ctx, result, authRef); err != nil {
			log.WithError(err).WithField("auth_ref", authRef).Error("escrow: не удалось снять неучтённое удержание")
			return result, err
		}
		log.WithField("auth_ref", authRef).Warn("escrow: неучтённое удержание снято")
		switch result.Status {
		case valueobject.TransactionStatusAuthorized, valueobject.TransactionStatusCaptured, valueobject.TransactionStatusReleased:
			return result, nil
		}
		return result, apperror.InvalidTransition("transaction", string(result.Status), "authorize").
			WithDetail("transaction_id", result.ID.String())
	}

	if declined && result.Status == valueobject.TransactionStatusFailed {
		log.Info("escrow: авторизация отклонена")
		var appErr *apperror.AppError
		if errors.As(callErr, &appErr) {
			return result, appErr.WithDetail("transaction_id", result.ID.String())
		}
		return result, callErr
	}
	log.WithField("status", result.Status).Info("escrow: средства авторизованы")
	return result, nil
}

// voidHold возвращает покупателю удержание, которое не попало в леджер.
func (l *Ledger) voidHold(ctx context.Context, tx *entity.Transaction, authRef string) error {
	return l.processorCall(ctx, "void", func(ctx context.Context) error {
		return l.processor.Refund(ctx, payment.RefundRequest{
			AuthRef:        authRef,
			Amount:         tx.Amount,
			IdempotencyKey: tx.ID.String() + ":void:" + authRef,
		})
	})
}
