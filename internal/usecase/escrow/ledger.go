// Package escrow - леджер удержания средств по заказам и выплат продавцам.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/logger"
	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

const defaultProcessorTimeout = 10 * time.Second

// ProcessorObserver получает длительность каждого вызова процессора.
type ProcessorObserver interface {
	ProcessorCall(operation string, d time.Duration)
}

type Ledger struct {
	store     repository.Store
	processor payment.Processor
	timeout   time.Duration
	currency  string
	observer  ProcessorObserver
	now       func() time.Time
	log       *logrus.Entry
}

func NewLedger(store repository.Store, processor payment.Processor, timeout time.Duration, currency string) *Ledger {
	if timeout <= 0 {
		timeout = defaultProcessorTimeout
	}
	if currency == "" {
		currency = "USD"
	}
	return &Ledger{
		store:     store,
		processor: processor,
		timeout:   timeout,
		currency:  currency,
		now:       time.Now,
		log:       logger.WithComponent("escrow"),
	}
}

// WithClock подменяет часы, нужен тестам с auto-accept и выплатами.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) WithObserver(observer ProcessorObserver) *Ledger {
	l.observer = observer
	return l
}

// processorCall ограничивает вызов процессора таймаутом.
func (l *Ledger) processorCall(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	started := time.Now()
	err := call(ctx)
	if l.observer != nil {
		l.observer.ProcessorCall(operation, time.Since(started))
	}
	return processorError(err)
}

// processorError переводит ошибки процессора в коды API.
func processorError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payment.ErrDeclined):
		return apperror.Wrap(err, apperror.ErrCodePaymentDeclined, apperror.ErrPaymentDeclined.Message)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.Wrap(err, apperror.ErrCodeProcessorTimeout, apperror.ErrProcessorTimeout.Message)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return apperror.Wrap(err, apperror.ErrCodeProcessorError, apperror.ErrProcessorFailed.Message)
	}
}

// refundKey однозначно задаёт возврат: транзакция и сумма возвратов после него.
// Повтор откатившейся единицы работы получает тот же ключ, и процессор не вернёт деньги дважды.
func refundKey(tx *entity.Transaction) string {
	return fmt.Sprintf("%s:refund:%d", tx.ID, tx.RefundedAmount)
}

// refund отправляет возврат процессору; вызывается после изменения транзакции.
func (l *Ledger) refund(ctx context.Context, tx *entity.Transaction, amount int64) error {
	return l.processorCall(ctx, "refund", func(ctx context.Context) error {
		return l.processor.Refund(ctx, payment.RefundRequest{
			AuthRef:        tx.ProcessorAuthRef,
			Amount:         amount,
			IdempotencyKey: refundKey(tx),
		})
	})
}

func (l *Ledger) Get(ctx context.Context, actor entity.Actor, txID uuid.UUID) (*entity.Transaction, error) {
	tx, err := l.store.Transactions().FindByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && tx.BuyerID != actor.UserID && tx.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}
	return tx, nil
}

// ByOrder возвращает последнюю транзакцию заказа.
func (l *Ledger) ByOrder(ctx context.Context, actor entity.Actor, orderID uuid.UUID) (*entity.Transaction, error) {
	tx, err := l.store.Transactions().FindLatestByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && tx.BuyerID != actor.UserID && tx.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}
	return tx, nil
}

// lockByTransaction блокирует заказ транзакции, затем саму транзакцию.
// Порядок блокировок везде один: заказ, транзакция, баланс продавца.
func lockByTransaction(ctx context.Context, r repository.Repositories, txID uuid.UUID) (*entity.Order, *entity.Transaction, error) {
	tx, err := r.Transactions().FindByID(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	order, err := r.Orders().LockByID(ctx, tx.OrderID)
	if err != nil {
		return nil, nil, err
	}
	tx, err = r.Transactions().LockByID(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	return order, tx, nil
}
