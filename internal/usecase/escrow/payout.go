package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Balance - освобождённые средства продавца.
type Balance struct {
	SellerID  uuid.UUID
	Released  int64
	Earmarked int64
	Available int64
	Currency  string
}

func (l *Ledger) Balance(ctx context.Context, actor entity.Actor, sellerID uuid.UUID) (*Balance, error) {
	if !actor.IsAdmin() && actor.UserID != sellerID {
		return nil, apperror.ErrForbidden
	}
	txs, err := l.store.Transactions().ListReleasedBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	b := &Balance{SellerID: sellerID, Currency: l.currency}
	for _, tx := range txs {
		b.Released += tx.ReleasedAmount
		b.Earmarked += tx.EarmarkedAmount
		b.Available += tx.Available()
		b.Currency = tx.Currency
	}
	return b, nil
}

// CreatePayout резервирует сумму из освобождённых средств, от старых транзакций к новым.
// Блокировка строки баланса не даёт двум выплатам продавца взять одни и те же деньги.
func (l *Ledger) CreatePayout(ctx context.Context, actor entity.Actor, sellerID uuid.UUID, amount int64) (*entity.Payout, error) {
	if !actor.IsAdmin() && actor.UserID != sellerID {
		return nil, apperror.ErrForbidden
	}
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма выплаты должна быть положительной")
	}

	var payout *entity.Payout
	err := l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		if err := r.Balances().Lock(ctx, sellerID); err != nil {
			return err
		}
		released, err := r.Transactions().ListReleasedBySeller(ctx, sellerID)
		if err != nil {
			return err
		}

		now := l.now()
		allocations, err := entity.Allocate(released, amount, now)
		if err != nil {
			return err
		}

		currency := l.currency
		touched := make(map[uuid.UUID]bool, len(allocations))
		for _, a := range allocations {
			touched[a.TransactionID] = true
		}
		for _, tx := range released {
			if !touched[tx.ID] {
				continue
			}
			currency = tx.Currency
			if err := r.Transactions().Update(ctx, tx); err != nil {
				return err
			}
		}

		payout, err = entity.NewPayout(sellerID, amount, currency, allocations, now)
		if err != nil {
			return err
		}
		return r.Payouts().Create(ctx, payout)
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"payout_id":   payout.ID,
		"seller_id":   sellerID,
		"amount":      amount,
		"allocations": len(payout.Allocations),
	}).Info("escrow: выплата создана")
	return payout, nil
}

func (l *Ledger) GetPayout(ctx context.Context, actor entity.Actor, payoutID uuid.UUID) (*entity.Payout, error) {
	payout, err := l.store.Payouts().FindByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.UserID != payout.SellerID {
		return nil, apperror.ErrForbidden
	}
	return payout, nil
}

// ProcessPayout переводит выплату продавцу. Неудача перевода снимает резервы с транзакций.
// Выплату в processing можно обработать повторно: процессор не дублирует перевод по PayoutID.
func (l *Ledger) ProcessPayout(ctx context.Context, actor entity.Actor, payoutID uuid.UUID) (*entity.Payout, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	var payout *entity.Payout
	err := l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		p, err := r.Payouts().LockByID(ctx, payoutID)
		if err != nil {
			return err
		}
		payout = p
		if p.Status == valueobject.PayoutStatusProcessing {
			return nil
		}
		if err := p.StartProcessing(l.now()); err != nil {
			return err
		}
		return r.Payouts().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	var ref string
	callErr := l.processorCall(ctx, "transfer_payout", func(ctx context.Context) error {
		var err error
		ref, err = l.processor.TransferPayout(ctx, payment.PayoutRequest{
			PayoutID: payout.ID,
			SellerID: payout.SellerID,
			Amount:   payout.Amount,
			Currency: payout.Currency,
		})
		return err
	})

	log := l.log.WithFields(logrus.Fields{"payout_id": payout.ID, "seller_id": payout.SellerID})
	declined := apperror.CodeOf(callErr) == apperror.ErrCodePaymentDeclined
	if callErr != nil && !declined {
		log.WithError(callErr).Warn("escrow: перевод выплаты не завершён, остаётся processing")
		return payout, callErr
	}

	err = l.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		p, err := r.Payouts().LockByID(ctx, payoutID)
		if err != nil {
			return err
		}
		payout = p
		if p.Status != valueobject.PayoutStatusProcessing {
			return nil
		}
		if !declined {
			if err := p.MarkPaid(ref, l.now()); err != nil {
				return err
			}
			return r.Payouts().Update(ctx, p)
		}

		if err := p.MarkFailed(callErr.Error(), l.now()); err != nil {
			return err
		}
		if err := l.releaseEarmarks(ctx, r, p); err != nil {
			return err
		}
		return r.Payouts().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	if payout.Status == valueobject.PayoutStatusFailed {
		log.WithError(callErr).Warn("escrow: выплата отклонена, резервы сняты")
	} else {
		log.WithField("processor_ref", payout.ProcessorRef).Info("escrow: выплата проведена")
	}
	return payout, nil
}

func (l *Ledger) releaseEarmarks(ctx context.Context, r repository.Repositories, p *entity.Payout) error {
	if err := r.Balances().Lock(ctx, p.SellerID); err != nil {
		return err
	}
	for _, a := range p.Allocations {
		tx, err := r.Transactions().LockByID(ctx, a.TransactionID)
		if err != nil {
			return err
		}
		if err := tx.ReleaseEarmark(a.Amount, l.now()); err != nil {
			return err
		}
		if err := r.Transactions().Update(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// PendingPayouts - очередь для фонового обработчика.
func (l *Ledger) PendingPayouts(ctx context.Context, limit int) ([]*entity.Payout, error) {
	return l.store.Payouts().ListPending(ctx, limit)
}
