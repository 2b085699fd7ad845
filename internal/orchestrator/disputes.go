package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/authz"
	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/events"
	"github.com/ignatzorin/gig-escrow/internal/fraud"
	"github.com/ignatzorin/gig-escrow/internal/usecase/dispute"
)

func disputeEvent(typ events.Type, d *entity.Dispute) events.Event {
	return events.New(typ, d.OrderID, map[string]any{
		"dispute_id": d.ID,
		"order_id":   d.OrderID,
		"status":     d.Status,
		"outcome":    d.Outcome,
	}, d.BuyerID, d.SellerID)
}

func (o *Orchestrator) OpenDispute(ctx context.Context, in Intent, input dispute.OpenDisputeInput) (*Result[*entity.Dispute], error) {
	alerts, err := o.guard(ctx, in, authz.ResourceDisputes, authz.ActionOpen, fraud.Signals{Operation: fraud.OperationOpenDispute})
	if err != nil {
		return nil, err
	}
	d, ord, err := o.uc.OpenDispute.Execute(ctx, in.Actor, input)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.OrderTransition(string(valueobject.OrderEventOpenDispute), string(ord.Status))
	}
	o.publish(ctx, disputeEvent(events.DisputeOpened, d))
	return &Result[*entity.Dispute]{Value: d, Alerts: alerts}, nil
}

func (o *Orchestrator) SubmitEvidence(ctx context.Context, in Intent, disputeID uuid.UUID, text string) (*Result[*entity.Dispute], error) {
	alerts, err := o.guard(ctx, in, authz.ResourceDisputes, authz.ActionEvidence, fraud.Signals{Operation: fraud.OperationEvidence})
	if err != nil {
		return nil, err
	}
	d, err := o.uc.SubmitEvidence.Execute(ctx, in.Actor, disputeID, text)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, disputeEvent(events.DisputeUpdated, d))
	return &Result[*entity.Dispute]{Value: d, Alerts: alerts}, nil
}

func (o *Orchestrator) EscalateDispute(ctx context.Context, in Intent, disputeID uuid.UUID) (*Result[*entity.Dispute], error) {
	alerts, err := o.guard(ctx, in, authz.ResourceDisputes, authz.ActionEscalate, fraud.Signals{Operation: fraud.OperationEscalate})
	if err != nil {
		return nil, err
	}
	d, err := o.uc.EscalateDispute.Execute(ctx, in.Actor, disputeID)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, disputeEvent(events.DisputeUpdated, d))
	return &Result[*entity.Dispute]{Value: d, Alerts: alerts}, nil
}

func (o *Orchestrator) ResolveDispute(ctx context.Context, in Intent, input dispute.ResolveDisputeInput) (*Result[*dispute.ResolveResult], error) {
	signals := fraud.Signals{Operation: fraud.OperationResolve}
	if input.RefundAmount > 0 {
		amount := input.RefundAmount
		signals.Price = &amount
	}
	alerts, err := o.guard(ctx, in, authz.ResourceDisputes, authz.ActionResolve, signals)
	if err != nil {
		return nil, err
	}
	res, err := o.uc.ResolveDispute.Execute(ctx, in.Actor, input)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.OrderTransition(string(valueobject.OrderEventResolveDispute), string(res.Order.Status))
	}
	o.publish(ctx, disputeEvent(events.DisputeResolved, res.Dispute))
	if res.Transaction != nil {
		switch res.Transaction.Status {
		case valueobject.TransactionStatusReleased:
			o.escrowOp("release", nil)
			o.publish(ctx, transactionEvent(events.EscrowReleased, res.Transaction))
		case valueobject.TransactionStatusRefunded:
			o.escrowOp("refund", nil)
			o.publish(ctx, transactionEvent(events.EscrowRefunded, res.Transaction))
		}
	}
	return &Result[*dispute.ResolveResult]{Value: res, Alerts: alerts}, nil
}

func (o *Orchestrator) CloseDispute(ctx context.Context, in Intent, disputeID uuid.UUID) (*Result[*entity.Dispute], error) {
	alerts, err := o.guard(ctx, in, authz.ResourceDisputes, authz.ActionClose, fraud.Signals{Operation: fraud.OperationCloseDispute})
	if err != nil {
		return nil, err
	}
	d, err := o.uc.CloseDispute.Execute(ctx, in.Actor, disputeID)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, disputeEvent(events.DisputeUpdated, d))
	return &Result[*entity.Dispute]{Value: d, Alerts: alerts}, nil
}

func (o *Orchestrator) GetDispute(ctx context.Context, in Intent, disputeID uuid.UUID) (*entity.Dispute, error) {
	if err := o.authorize(in, authz.ResourceDisputes, authz.ActionRead); err != nil {
		return nil, err
	}
	return o.uc.GetDispute.Execute(ctx, in.Actor, disputeID)
}

func (o *Orchestrator) DisputesByOrder(ctx context.Context, in Intent, orderID uuid.UUID) ([]*entity.Dispute, error) {
	if err := o.authorize(in, authz.ResourceDisputes, authz.ActionRead); err != nil {
		return nil, err
	}
	return o.uc.GetDispute.ByOrder(ctx, in.Actor, orderID)
}
