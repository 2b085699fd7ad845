package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

type Dispute struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	BuyerID            uuid.UUID
	SellerID           uuid.UUID
	GigID              uuid.UUID
	RaisedBy           uuid.UUID
	Reason             valueobject.DisputeReason
	Description        string
	BuyerEvidence      []Evidence
	SellerEvidence     []Evidence
	Status             valueobject.DisputeStatus
	Outcome            valueobject.DisputeOutcome
	RefundAmount       int64
	AdminID            *uuid.UUID
	AdminNotes         string
	MediationStartedAt *time.Time
	ResolvedAt         *time.Time
	ClosedAt           *time.Time
	CreatedAt          time.Time
}

// Evidence - запись доказательства. Записи только добавляются.
type Evidence struct {
	AuthorID  uuid.UUID `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func NewDispute(order *Order, raisedBy uuid.UUID, reason valueobject.DisputeReason, description string, now time.Time) (*Dispute, error) {
	if !order.IsParticipant(raisedBy) {
		return nil, apperror.ErrForbidden
	}
	if order.Status.IsTerminal() {
		return nil, apperror.ErrOrderNotDisputable.WithDetail("current_status", string(order.Status))
	}
	return &Dispute{
		ID:          uuid.New(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		GigID:       order.GigID,
		RaisedBy:    raisedBy,
		Reason:      reason,
		Description: description,
		Status:      valueobject.DisputeStatusOpen,
		Outcome:     valueobject.DisputeOutcomePending,
		CreatedAt:   now,
	}, nil
}

func (d *Dispute) invalid(event string) error {
	return apperror.InvalidTransition("dispute", string(d.Status), event)
}

// AddEvidence добавляет доказательство в список стороны автора.
func (d *Dispute) AddEvidence(authorID uuid.UUID, text string, now time.Time) error {
	if !d.Status.IsActive() {
		return d.invalid("submit_evidence")
	}
	entry := Evidence{AuthorID: authorID, Text: text, CreatedAt: now}
	switch authorID {
	case d.BuyerID:
		d.BuyerEvidence = append(d.BuyerEvidence, entry)
	case d.SellerID:
		d.SellerEvidence = append(d.SellerEvidence, entry)
	default:
		return apperror.ErrForbidden
	}
	return nil
}

func (d *Dispute) Escalate(now time.Time) error {
	if d.Status != valueobject.DisputeStatusOpen {
		return d.invalid("escalate")
	}
	d.Status = valueobject.DisputeStatusMediation
	d.MediationStartedAt = &now
	return nil
}

// Resolve фиксирует итог. revision_requested сразу закрывает спор: заказ возвращается в работу.
func (d *Dispute) Resolve(adminID uuid.UUID, outcome valueobject.DisputeOutcome, refundAmount int64, notes string, now time.Time) error {
	if !d.Status.IsActive() || d.Outcome != valueobject.DisputeOutcomePending {
		return d.invalid("resolve")
	}
	if outcome == valueobject.DisputeOutcomePending {
		return apperror.New(apperror.ErrCodeValidation, "итог спора не выбран")
	}

	d.Outcome = outcome
	d.RefundAmount = refundAmount
	d.AdminID = &adminID
	d.AdminNotes = notes
	d.ResolvedAt = &now
	d.Status = valueobject.DisputeStatusResolved
	if outcome == valueobject.DisputeOutcomeRevisionRequested {
		d.Status = valueobject.DisputeStatusClosed
		d.ClosedAt = &now
	}
	return nil
}

func (d *Dispute) Close(now time.Time) error {
	if d.Status != valueobject.DisputeStatusResolved {
		return d.invalid("close")
	}
	d.Status = valueobject.DisputeStatusClosed
	d.ClosedAt = &now
	return nil
}

func (d *Dispute) IsParty(userID uuid.UUID) bool {
	return d.BuyerID == userID || d.SellerID == userID
}
