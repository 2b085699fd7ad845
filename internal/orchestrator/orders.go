package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/authz"
	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/events"
	"github.com/ignatzorin/gig-escrow/internal/fraud"
	"github.com/ignatzorin/gig-escrow/internal/usecase/order"
)

func (o *Orchestrator) CreateOrder(ctx context.Context, in Intent, input order.CreateOrderInput) (*Result[*entity.Order], error) {
	signals := fraud.Signals{Operation: fraud.OperationCreateOrder, GigID: input.GigID}
	if gig, err := o.store.Gigs().FindByID(ctx, input.GigID); err == nil {
		if pkg, ok := gig.Package(input.PackageID); ok {
			price := pkg.Price
			signals.Price = &price
		}
	}

	alerts, err := o.guard(ctx, in, authz.ResourceOrders, authz.ActionCreate, signals)
	if err != nil {
		return nil, err
	}
	created, err := o.uc.CreateOrder.Execute(ctx, in.Actor, input)
	if err != nil {
		return nil, err
	}

	o.publish(ctx, events.New(events.OrderCreated, created.ID, map[string]any{
		"order_id":    created.ID,
		"gig_id":      created.GigID,
		"status":      created.Status,
		"total_price": created.TotalPrice,
	}, orderParties(created)...))
	return &Result[*entity.Order]{Value: created, Alerts: alerts}, nil
}

func (o *Orchestrator) TransitionOrder(ctx context.Context, in Intent, orderID uuid.UUID, event valueobject.OrderEvent) (*Result[*order.TransitionResult], error) {
	alerts, err := o.guard(ctx, in, authz.ResourceOrders, authz.ActionTransition, fraud.Signals{Operation: fraud.OperationTransition})
	if err != nil {
		return nil, err
	}
	res, err := o.uc.TransitionOrder.Execute(ctx, in.Actor, orderID, event)
	if err != nil {
		return nil, err
	}
	o.afterTransition(ctx, res)
	return &Result[*order.TransitionResult]{Value: res, Alerts: alerts}, nil
}

// afterTransition публикует переход и связанное с ним движение денег.
func (o *Orchestrator) afterTransition(ctx context.Context, res *order.TransitionResult) {
	if o.metrics != nil {
		o.metrics.OrderTransition(string(res.Event), string(res.Order.Status))
	}
	o.publish(ctx, events.New(events.OrderTransitioned, res.Order.ID, map[string]any{
		"order_id": res.Order.ID,
		"event":    res.Event,
		"from":     res.From,
		"to":       res.Order.Status,
	}, orderParties(res.Order)...))

	if res.Transaction == nil {
		return
	}
	switch res.Event {
	case valueobject.OrderEventAccept:
		o.escrowOp("release", nil)
		o.publish(ctx, transactionEvent(events.EscrowReleased, res.Transaction))
	case valueobject.OrderEventCancel:
		if res.Transaction.Status == valueobject.TransactionStatusRefunded {
			o.escrowOp("refund", nil)
			o.publish(ctx, transactionEvent(events.EscrowRefunded, res.Transaction))
		}
	}
}

func (o *Orchestrator) GetOrder(ctx context.Context, in Intent, orderID uuid.UUID) (*entity.Order, error) {
	if err := o.authorize(in, authz.ResourceOrders, authz.ActionRead); err != nil {
		return nil, err
	}
	return o.uc.GetOrder.Execute(ctx, in.Actor, orderID)
}

func (o *Orchestrator) OrderHistory(ctx context.Context, in Intent, orderID uuid.UUID) ([]*entity.OrderHistory, error) {
	if err := o.authorize(in, authz.ResourceOrders, authz.ActionRead); err != nil {
		return nil, err
	}
	return o.uc.GetOrder.History(ctx, in.Actor, orderID)
}

// PublishTransitions публикует результаты фоновой приёмки так же, как ручной.
func (o *Orchestrator) PublishTransitions(ctx context.Context, results []*order.TransitionResult) {
	for _, res := range results {
		o.afterTransition(ctx, res)
	}
}

// EvaluateFraud - ручная проверка сигналов администратором. Проверка не попадает
// в историю окон и не влияет на счётчики частоты пользователя.
func (o *Orchestrator) EvaluateFraud(ctx context.Context, in Intent, signals fraud.Signals) ([]*entity.FraudAlert, error) {
	if err := o.authorize(in, authz.ResourceFraud, authz.ActionEvaluate); err != nil {
		return nil, err
	}
	if signals.Operation == "" {
		signals.Operation = fraud.OperationEvaluate
	}
	signals.DryRun = true
	return o.fraud.Evaluate(ctx, signals), nil
}
