package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/usecase/escrow"
)

type RefundRequest struct {
	// Amount 0 возвращает весь остаток.
	Amount int64 `json:"amount" binding:"gte=0"`
}

type CreatePayoutRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"omitempty,currency"`
}

type TransactionResponse struct {
	ID               uuid.UUID  `json:"id"`
	OrderID          uuid.UUID  `json:"order_id"`
	BuyerID          uuid.UUID  `json:"buyer_id"`
	SellerID         uuid.UUID  `json:"seller_id"`
	Currency         string     `json:"currency"`
	Amount           AmountDTO  `json:"amount"`
	PlatformFee      AmountDTO  `json:"platform_fee"`
	SellerEarnings   AmountDTO  `json:"seller_earnings"`
	RefundedAmount   AmountDTO  `json:"refunded_amount"`
	ReleasedAmount   AmountDTO  `json:"released_amount"`
	Status           string     `json:"status"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	EscrowReleasedAt *time.Time `json:"escrow_released_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func ToTransactionResponse(t *entity.Transaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	return &TransactionResponse{
		ID:               t.ID,
		OrderID:          t.OrderID,
		BuyerID:          t.BuyerID,
		SellerID:         t.SellerID,
		Currency:         t.Currency,
		Amount:           Amount(t.Amount, t.Currency),
		PlatformFee:      Amount(t.PlatformFee, t.Currency),
		SellerEarnings:   Amount(t.SellerEarnings, t.Currency),
		RefundedAmount:   Amount(t.RefundedAmount, t.Currency),
		ReleasedAmount:   Amount(t.ReleasedAmount, t.Currency),
		Status:           string(t.Status),
		FailureReason:    t.FailureReason,
		EscrowReleasedAt: t.EscrowReleasedAt,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

type PayoutResponse struct {
	ID            uuid.UUID  `json:"id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	Currency      string     `json:"currency"`
	Amount        AmountDTO  `json:"amount"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at"`
}

func ToPayoutResponse(p *entity.Payout) PayoutResponse {
	return PayoutResponse{
		ID:            p.ID,
		SellerID:      p.SellerID,
		Currency:      p.Currency,
		Amount:        Amount(p.Amount, p.Currency),
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		PaidAt:        p.PaidAt,
	}
}

type BalanceResponse struct {
	SellerID  uuid.UUID `json:"seller_id"`
	Currency  string    `json:"currency"`
	Released  AmountDTO `json:"released"`
	Earmarked AmountDTO `json:"earmarked"`
	Available AmountDTO `json:"available"`
}

func ToBalanceResponse(b *escrow.Balance) BalanceResponse {
	return BalanceResponse{
		SellerID:  b.SellerID,
		Currency:  b.Currency,
		Released:  Amount(b.Released, b.Currency),
		Earmarked: Amount(b.Earmarked, b.Currency),
		Available: Amount(b.Available, b.Currency),
	}
}
