package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/validation"
)

type CreateOrderRequest struct {
	GigID     string   `json:"gig_id" binding:"required,uuid"`
	PackageID string   `json:"package_id" binding:"required,uuid"`
	ExtraIDs  []string `json:"extra_ids" binding:"omitempty,dive,uuid"`
}

func (r CreateOrderRequest) ExtraUUIDs() ([]uuid.UUID, error) {
	if len(r.ExtraIDs) > validation.MaxExtrasPerOrder {
		return nil, validation.ErrTooManyExtras
	}
	return ParseUUIDs(r.ExtraIDs)
}

type TransitionRequest struct {
	Event string `json:"event" binding:"required"`
}

// AmountDTO - сумма в минимальных единицах и её представление в основных.
type AmountDTO struct {
	Minor   int64  `json:"minor"`
	Display string `json:"display"`
}

func Amount(minor int64, currency string) AmountDTO {
	return AmountDTO{
		Minor:   minor,
		Display: valueobject.Money{Amount: minor, Currency: currency}.Display(),
	}
}

type OrderResponse struct {
	ID                 uuid.UUID   `json:"id"`
	BuyerID            uuid.UUID   `json:"buyer_id"`
	SellerID           uuid.UUID   `json:"seller_id"`
	GigID              uuid.UUID   `json:"gig_id"`
	PackageID          uuid.UUID   `json:"package_id"`
	PackageTier        string      `json:"package_tier"`
	ExtraIDs           []uuid.UUID `json:"extra_ids"`
	Currency           string      `json:"currency"`
	TotalPrice         AmountDTO   `json:"total_price"`
	PlatformFeePercent int         `json:"platform_fee_percent"`
	PlatformFee        AmountDTO   `json:"platform_fee"`
	SellerEarnings     AmountDTO   `json:"seller_earnings"`
	Status             string      `json:"status"`
	RevisionCount      int         `json:"revision_count"`
	DeliveredAt        *time.Time  `json:"delivered_at"`
	CompletedAt        *time.Time  `json:"completed_at"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func ToOrderResponse(o *entity.Order) OrderResponse {
	extras := o.ExtraIDs
	if extras == nil {
		extras = []uuid.UUID{}
	}
	return OrderResponse{
		ID:                 o.ID,
		BuyerID:            o.BuyerID,
		SellerID:           o.SellerID,
		GigID:              o.GigID,
		PackageID:          o.PackageID,
		PackageTier:        o.PackageTier,
		ExtraIDs:           extras,
		Currency:           o.Currency,
		TotalPrice:         Amount(o.TotalPrice, o.Currency),
		PlatformFeePercent: o.PlatformFeePercent,
		PlatformFee:        Amount(o.PlatformFee, o.Currency),
		SellerEarnings:     Amount(o.SellerEarnings, o.Currency),
		Status:             string(o.Status),
		RevisionCount:      o.RevisionCount,
		DeliveredAt:        o.DeliveredAt,
		CompletedAt:        o.CompletedAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

type OrderHistoryResponse struct {
	ID         uuid.UUID  `json:"id"`
	ActorID    *uuid.UUID `json:"actor_id"`
	Event      string     `json:"event"`
	FromStatus string     `json:"from_status,omitempty"`
	ToStatus   string     `json:"to_status"`
	CreatedAt  time.Time  `json:"created_at"`
}

func ToOrderHistoryResponses(entries []*entity.OrderHistory) []OrderHistoryResponse {
	result := make([]OrderHistoryResponse, 0, len(entries))
	for _, h := range entries {
		result = append(result, OrderHistoryResponse{
			ID:         h.ID,
			ActorID:    h.ActorID,
			Event:      string(h.Event),
			FromStatus: string(h.FromStatus),
			ToStatus:   string(h.ToStatus),
			CreatedAt:  h.CreatedAt,
		})
	}
	return result
}

// TransitionResponse - заказ после перехода и движение денег, если оно было.
type TransitionResponse struct {
	Order       OrderResponse        `json:"order"`
	From        string               `json:"from"`
	Event       string               `json:"event"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

func ParseUUIDs(values []string) ([]uuid.UUID, error) {
	result := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, nil
}
