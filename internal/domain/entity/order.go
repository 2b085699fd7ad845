package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Order - одна сделка покупателя и продавца по одной услуге.
type Order struct {
	ID                 uuid.UUID
	BuyerID            uuid.UUID
	SellerID           uuid.UUID
	GigID              uuid.UUID
	PackageID          uuid.UUID
	PackageTier        string
	ExtraIDs           []uuid.UUID
	TotalPrice         int64
	PlatformFeePercent int
	PlatformFee        int64
	SellerEarnings     int64
	Currency           string
	Status             valueobject.OrderStatus
	RevisionCount      int
	DeliveredAt        *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewOrder собирает заказ из пакета и опций услуги. Комиссия фиксируется на момент создания.
func NewOrder(buyerID uuid.UUID, gig *Gig, packageID uuid.UUID, extraIDs []uuid.UUID, feePercent int, now time.Time) (*Order, error) {
	if gig == nil || !gig.IsOrderable() {
		return nil, apperror.ErrInvalidGig
	}
	if gig.SellerID == buyerID {
		return nil, apperror.ErrInvalidGig.WithDetail("reason", "нельзя заказать собственную услугу")
	}

	pkg, ok := gig.Package(packageID)
	if !ok {
		return nil, apperror.ErrInvalidPackage
	}

	total := pkg.Price
	seen := make(map[uuid.UUID]struct{}, len(extraIDs))
	extras := make([]uuid.UUID, 0, len(extraIDs))
	for _, id := range extraIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		extra, ok := gig.Extra(id)
		if !ok {
			return nil, apperror.ErrInvalidExtra
		}
		total += extra.Price
		extras = append(extras, id)
	}

	split, err := valueobject.SplitFee(total, feePercent)
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:                 uuid.New(),
		BuyerID:            buyerID,
		SellerID:           gig.SellerID,
		GigID:              gig.ID,
		PackageID:          pkg.ID,
		PackageTier:        pkg.Tier,
		ExtraIDs:           extras,
		TotalPrice:         split.Total,
		PlatformFeePercent: split.FeePercent,
		PlatformFee:        split.PlatformFee,
		SellerEarnings:     split.SellerEarnings,
		Currency:           gig.Currency,
		Status:             valueobject.OrderStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Apply выполняет событие с единственным целевым статусом.
// При ошибке заказ не меняется.
func (o *Order) Apply(event valueobject.OrderEvent, now time.Time) error {
	target, ok := o.Status.Target(event)
	if !ok {
		return apperror.InvalidTransition("order", string(o.Status), string(event))
	}
	o.moveTo(event, target, now)
	return nil
}

// ResolveDispute выводит заказ из статуса disputed в выбранный спором статус.
func (o *Order) ResolveDispute(target valueobject.OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(valueobject.OrderEventResolveDispute, target) {
		return apperror.InvalidTransition("order", string(o.Status), string(valueobject.OrderEventResolveDispute))
	}
	o.moveTo(valueobject.OrderEventResolveDispute, target, now)
	return nil
}

func (o *Order) moveTo(event valueobject.OrderEvent, target valueobject.OrderStatus, now time.Time) {
	switch target {
	case valueobject.OrderStatusDelivered:
		o.DeliveredAt = &now
	case valueobject.OrderStatusRevision:
		o.RevisionCount++
	case valueobject.OrderStatusCompleted:
		o.CompletedAt = &now
	}
	o.Status = target
	o.UpdatedAt = now
}

// VerifyFees проверяет инвариант комиссии перед сохранением.
func (o *Order) VerifyFees() error {
	return valueobject.FeeSplit{
		Total:          o.TotalPrice,
		FeePercent:     o.PlatformFeePercent,
		PlatformFee:    o.PlatformFee,
		SellerEarnings: o.SellerEarnings,
	}.Verify()
}

func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

// OrderHistory - запись журнала переходов заказа.
type OrderHistory struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	ActorID    *uuid.UUID
	Event      valueobject.OrderEvent
	FromStatus valueobject.OrderStatus
	ToStatus   valueobject.OrderStatus
	CreatedAt  time.Time
}

func NewOrderHistory(order *Order, from valueobject.OrderStatus, event valueobject.OrderEvent, actor Actor, now time.Time) *OrderHistory {
	return &OrderHistory{
		ID:         uuid.New(),
		OrderID:    order.ID,
		ActorID:    actor.Ref(),
		Event:      event,
		FromStatus: from,
		ToStatus:   order.Status,
		CreatedAt:  now,
	}
}
