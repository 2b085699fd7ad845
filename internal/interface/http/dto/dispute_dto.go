package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
)

type OpenDisputeRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type EvidenceRequest struct {
	Text string `json:"text" binding:"required"`
}

type ResolveDisputeRequest struct {
	Outcome               string `json:"outcome" binding:"required"`
	RefundAmount          int64  `json:"refund_amount" binding:"gte=0"`
	Notes                 string `json:"notes"`
	CancelOnPartialRefund bool   `json:"cancel_on_partial_refund"`
}

type DisputeResponse struct {
	ID                 uuid.UUID         `json:"id"`
	OrderID            uuid.UUID         `json:"order_id"`
	BuyerID            uuid.UUID         `json:"buyer_id"`
	SellerID           uuid.UUID         `json:"seller_id"`
	RaisedBy           uuid.UUID         `json:"raised_by"`
	Reason             string            `json:"reason"`
	Description        string            `json:"description"`
	BuyerEvidence      []entity.Evidence `json:"buyer_evidence"`
	SellerEvidence     []entity.Evidence `json:"seller_evidence"`
	Status             string            `json:"status"`
	Outcome            string            `json:"outcome,omitempty"`
	RefundAmount       int64             `json:"refund_amount"`
	AdminID            *uuid.UUID        `json:"admin_id"`
	AdminNotes         string            `json:"admin_notes,omitempty"`
	MediationStartedAt *time.Time        `json:"mediation_started_at"`
	ResolvedAt         *time.Time        `json:"resolved_at"`
	ClosedAt           *time.Time        `json:"closed_at"`
	CreatedAt          time.Time         `json:"created_at"`
}

func evidence(list []entity.Evidence) []entity.Evidence {
	if list == nil {
		return []entity.Evidence{}
	}
	return list
}

func ToDisputeResponse(d *entity.Dispute) DisputeResponse {
	return DisputeResponse{
		ID:                 d.ID,
		OrderID:            d.OrderID,
		BuyerID:            d.BuyerID,
		SellerID:           d.SellerID,
		RaisedBy:           d.RaisedBy,
		Reason:             string(d.Reason),
		Description:        d.Description,
		BuyerEvidence:      evidence(d.BuyerEvidence),
		SellerEvidence:     evidence(d.SellerEvidence),
		Status:             string(d.Status),
		Outcome:            string(d.Outcome),
		RefundAmount:       d.RefundAmount,
		AdminID:            d.AdminID,
		AdminNotes:         d.AdminNotes,
		MediationStartedAt: d.MediationStartedAt,
		ResolvedAt:         d.ResolvedAt,
		ClosedAt:           d.ClosedAt,
		CreatedAt:          d.CreatedAt,
	}
}

func ToDisputeResponses(list []*entity.Dispute) []DisputeResponse {
	result := make([]DisputeResponse, 0, len(list))
	for _, d := range list {
		result = append(result, ToDisputeResponse(d))
	}
	return result
}

type ResolveDisputeResponse struct {
	Dispute     DisputeResponse      `json:"dispute"`
	Order       OrderResponse        `json:"order"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}
