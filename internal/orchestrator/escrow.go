package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/authz"
	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/events"
	"github.com/ignatzorin/gig-escrow/internal/fraud"
	"github.com/ignatzorin/gig-escrow/internal/usecase/escrow"
)

func transactionEvent(typ events.Type, tx *entity.Transaction) events.Event {
	return events.New(typ, tx.OrderID, map[string]any{
		"transaction_id":  tx.ID,
		"order_id":        tx.OrderID,
		"status":          tx.Status,
		"amount":          tx.Amount,
		"refunded_amount": tx.RefundedAmount,
		"released_amount": tx.ReleasedAmount,
	}, tx.BuyerID, tx.SellerID)
}

func (o *Orchestrator) AuthorizePayment(ctx context.Context, in Intent, orderID uuid.UUID) (*Result[*entity.Transaction], error) {
	signals := fraud.Signals{Operation: fraud.OperationAuthorize}
	if ord, err := o.store.Orders().FindByID(ctx, orderID); err == nil {
		price := ord.TotalPrice
		signals.Price = &price
		signals.GigID = ord.GigID
	}
	alerts, err := o.guard(ctx, in, authz.ResourceEscrow, authz.ActionAuthorize, signals)
	if err != nil {
		return nil, err
	}
	tx, err := o.ledger.Authorize(ctx, in.Actor, orderID)
	o.escrowOp("authorize", err)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, transactionEvent(events.EscrowAuthorized, tx))
	return &Result[*entity.Transaction]{Value: tx, Alerts: alerts}, nil
}

func (o *Orchestrator) Capture(ctx context.Context, in Intent, txID uuid.UUID) (*Result[*entity.Transaction], error) {
	alerts, err := o.guard(ctx, in, authz.ResourceEscrow, authz.ActionCapture, fraud.Signals{Operation: fraud.OperationCapture})
	if err != nil {
		return nil, err
	}
	tx, err := o.ledger.Capture(ctx, in.Actor, txID)
	o.escrowOp("capture", err)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, transactionEvent(events.EscrowCaptured, tx))
	return &Result[*entity.Transaction]{Value: tx, Alerts: alerts}, nil
}

func (o *Orchestrator) Release(ctx context.Context, in Intent, txID uuid.UUID) (*Result[*entity.Transaction], error) {
	alerts, err := o.guard(ctx, in, authz.ResourceEscrow, authz.ActionRelease, fraud.Signals{Operation: fraud.OperationRelease})
	if err != nil {
		return nil, err
	}
	tx, err := o.ledger.Release(ctx, in.Actor, txID)
	o.escrowOp("release", err)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, transactionEvent(events.EscrowReleased, tx))
	return &Result[*entity.Transaction]{Value: tx, Alerts: alerts}, nil
}

func (o *Orchestrator) Refund(ctx context.Context, in Intent, txID uuid.UUID, amount int64) (*Result[*entity.Transaction], error) {
	signals := fraud.Signals{Operation: fraud.OperationRefund}
	if amount > 0 {
		signals.Price = &amount
	}
	alerts, err := o.guard(ctx, in, authz.ResourceEscrow, authz.ActionRefund, signals)
	if err != nil {
		return nil, err
	}
	tx, err := o.ledger.Refund(ctx, in.Actor, txID, amount)
	o.escrowOp("refund", err)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, transactionEvent(events.EscrowRefunded, tx))
	return &Result[*entity.Transaction]{Value: tx, Alerts: alerts}, nil
}

func (o *Orchestrator) GetTransaction(ctx context.Context, in Intent, txID uuid.UUID) (*entity.Transaction, error) {
	if err := o.authorize(in, authz.ResourceEscrow, authz.ActionRead); err != nil {
		return nil, err
	}
	return o.ledger.Get(ctx, in.Actor, txID)
}

func (o *Orchestrator) TransactionByOrder(ctx context.Context, in Intent, orderID uuid.UUID) (*entity.Transaction, error) {
	if err := o.authorize(in, authz.ResourceEscrow, authz.ActionRead); err != nil {
		return nil, err
	}
	return o.ledger.ByOrder(ctx, in.Actor, orderID)
}

// CreatePayout выводит деньги продавца, от имени которого выполнен запрос.
func (o *Orchestrator) CreatePayout(ctx context.Context, in Intent, amount int64) (*Result[*entity.Payout], error) {
	alerts, err := o.guard(ctx, in, authz.ResourcePayouts, authz.ActionCreate, fraud.Signals{Operation: fraud.OperationCreatePayout})
	if err != nil {
		return nil, err
	}
	p, err := o.ledger.CreatePayout(ctx, in.Actor, in.Actor.UserID, amount)
	o.escrowOp("create_payout", err)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, payoutEvent(events.PayoutCreated, p))
	return &Result[*entity.Payout]{Value: p, Alerts: alerts}, nil
}

func (o *Orchestrator) ProcessPayout(ctx context.Context, in Intent, payoutID uuid.UUID) (*Result[*entity.Payout], error) {
	alerts, err := o.guard(ctx, in, authz.ResourcePayouts, authz.ActionProcess, fraud.Signals{Operation: fraud.OperationProcessPayout})
	if err != nil {
		return nil, err
	}
	p, err := o.processPayout(ctx, in.Actor, payoutID)
	if err != nil {
		return nil, err
	}
	return &Result[*entity.Payout]{Value: p, Alerts: alerts}, nil
}

func (o *Orchestrator) processPayout(ctx context.Context, actor entity.Actor, payoutID uuid.UUID) (*entity.Payout, error) {
	p, err := o.ledger.ProcessPayout(ctx, actor, payoutID)
	o.escrowOp("process_payout", err)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, payoutEvent(events.PayoutProcessed, p))
	return p, nil
}

// ProcessPendingPayouts - шаг фоновой задачи выплат. Возвращает число обработанных выплат.
func (o *Orchestrator) ProcessPendingPayouts(ctx context.Context, limit int) (int, error) {
	pending, err := o.ledger.PendingPayouts(ctx, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := o.processPayout(ctx, entity.SystemActor, p.ID); err != nil {
			o.log.WithError(err).WithField("payout_id", p.ID).Warn("orchestrator: выплата не проведена")
			continue
		}
		done++
	}
	return done, nil
}

func (o *Orchestrator) Balance(ctx context.Context, in Intent, sellerID uuid.UUID) (*escrow.Balance, error) {
	if err := o.authorize(in, authz.ResourcePayouts, authz.ActionRead); err != nil {
		return nil, err
	}
	if sellerID == uuid.Nil {
		sellerID = in.Actor.UserID
	}
	return o.ledger.Balance(ctx, in.Actor, sellerID)
}

func (o *Orchestrator) GetPayout(ctx context.Context, in Intent, payoutID uuid.UUID) (*entity.Payout, error) {
	if err := o.authorize(in, authz.ResourcePayouts, authz.ActionRead); err != nil {
		return nil, err
	}
	return o.ledger.GetPayout(ctx, in.Actor, payoutID)
}

func payoutEvent(typ events.Type, p *entity.Payout) events.Event {
	return events.New(typ, p.ID, map[string]any{
		"payout_id": p.ID,
		"status":    p.Status,
		"amount":    p.Amount,
	}, p.SellerID)
}
