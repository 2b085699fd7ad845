package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

type Payout struct {
	ID            uuid.UUID
	SellerID      uuid.UUID
	Amount        int64
	Currency      string
	Status        valueobject.PayoutStatus
	Allocations   []PayoutAllocation
	ProcessorRef  string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

// PayoutAllocation - часть выплаты, взятая из конкретной освобождённой транзакции.
type PayoutAllocation struct {
	TransactionID uuid.UUID
	Amount        int64
}

// Allocate раскладывает сумму по транзакциям от старых к новым и резервирует её.
// Транзакции должны быть отсортированы по дате освобождения.
func Allocate(released []*Transaction, amount int64, now time.Time) ([]PayoutAllocation, error) {
	var available int64
	for _, t := range released {
		available += t.Available()
	}
	if amount > available {
		return nil, apperror.ErrInsufficientBalance.
			WithDetail("available", available).
			WithDetail("requested", amount)
	}

	allocations := make([]PayoutAllocation, 0, 1)
	rest := amount
	for _, t := range released {
		if rest == 0 {
			break
		}
		take := t.Available()
		if take == 0 {
			continue
		}
		if take > rest {
			take = rest
		}
		if err := t.Earmark(take, now); err != nil {
			return nil, err
		}
		allocations = append(allocations, PayoutAllocation{TransactionID: t.ID, Amount: take})
		rest -= take
	}
	return allocations, nil
}

func NewPayout(sellerID uuid.UUID, amount int64, currency string, allocations []PayoutAllocation, now time.Time) (*Payout, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма выплаты должна быть положительной")
	}
	var sum int64
	for _, a := range allocations {
		sum += a.Amount
	}
	if sum != amount {
		return nil, apperror.Consistency("payout allocations %d != amount %d", sum, amount)
	}
	return &Payout{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Amount:      amount,
		Currency:    currency,
		Status:      valueobject.PayoutStatusPending,
		Allocations: allocations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Payout) invalid(event string) error {
	return apperror.InvalidTransition("payout", string(p.Status), event)
}

func (p *Payout) StartProcessing(now time.Time) error {
	if p.Status != valueobject.PayoutStatusPending {
		return p.invalid("process")
	}
	p.Status = valueobject.PayoutStatusProcessing
	p.UpdatedAt = now
	return nil
}

func (p *Payout) MarkPaid(ref string, now time.Time) error {
	if p.Status != valueobject.PayoutStatusProcessing {
		return p.invalid("paid")
	}
	p.ProcessorRef = ref
	p.Status = valueobject.PayoutStatusPaid
	p.PaidAt = &now
	p.UpdatedAt = now
	return nil
}

func (p *Payout) MarkFailed(reason string, now time.Time) error {
	if p.Status != valueobject.PayoutStatusProcessing && p.Status != valueobject.PayoutStatusPending {
		return p.invalid("fail")
	}
	p.FailureReason = reason
	p.Status = valueobject.PayoutStatusFailed
	p.UpdatedAt = now
	return nil
}
