// Package orchestrator - единая точка входа клиентских намерений: права, антифрод,
// сценарий, события.
package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/events"
	"github.com/ignatzorin/gig-escrow/internal/fingerprint"
	"github.com/ignatzorin/gig-escrow/internal/fraud"
	"github.com/ignatzorin/gig-escrow/internal/logger"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/usecase/dispute"
	"github.com/ignatzorin/gig-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/gig-escrow/internal/usecase/order"
)

// Intent - кто и откуда выполняет операцию.
type Intent struct {
	Actor       entity.Actor
	Fingerprint *fingerprint.Fingerprint
}

// Result - итог операции вместе с сигналами антифрода, которые её не остановили.
type Result[T any] struct {
	Value  T
	Alerts []*entity.FraudAlert
}

type Authorizer interface {
	Authorize(role valueobject.Role, resource, action string) error
}

type FraudEvaluator interface {
	Evaluate(ctx context.Context, s fraud.Signals) []*entity.FraudAlert
}

// Recorder - метрики, которые пишет оркестратор.
type Recorder interface {
	OrderTransition(event, to string)
	EscrowOperation(operation string, err error)
	FraudBlocked(operation string)
}

// Policy решает, какие сигналы останавливают операцию. critical блокирует всегда.
type Policy struct {
	BlockHigh bool
}

func (p Policy) blocks(severity valueobject.Severity) bool {
	if severity == valueobject.SeverityCritical {
		return true
	}
	return p.BlockHigh && severity == valueobject.SeverityHigh
}

type UseCases struct {
	CreateOrder     *order.CreateOrderUseCase
	TransitionOrder *order.TransitionOrderUseCase
	GetOrder        *order.GetOrderUseCase
	OpenDispute     *dispute.OpenDisputeUseCase
	SubmitEvidence  *dispute.SubmitEvidenceUseCase
	EscalateDispute *dispute.EscalateDisputeUseCase
	ResolveDispute  *dispute.ResolveDisputeUseCase
	CloseDispute    *dispute.CloseDisputeUseCase
	GetDispute      *dispute.GetDisputeUseCase
}

type Orchestrator struct {
	store     repository.Store
	ledger    *escrow.Ledger
	uc        UseCases
	authz     Authorizer
	fraud     FraudEvaluator
	policy    Policy
	publisher events.Publisher
	metrics   Recorder
	log       *logrus.Entry
}

type Deps struct {
	Store     repository.Store
	Ledger    *escrow.Ledger
	UseCases  UseCases
	Authz     Authorizer
	Fraud     FraudEvaluator
	Policy    Policy
	Publisher events.Publisher
	Metrics   Recorder
}

func New(d Deps) *Orchestrator {
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Orchestrator{
		store:     d.Store,
		ledger:    d.Ledger,
		uc:        d.UseCases,
		authz:     d.Authz,
		fraud:     d.Fraud,
		policy:    d.Policy,
		publisher: publisher,
		metrics:   d.Metrics,
		log:       logger.WithComponent("orchestrator"),
	}
}

// NewUseCases собирает сценарии поверх одного хранилища и леджера.
func NewUseCases(store repository.Store, ledger *escrow.Ledger, feePercent int) UseCases {
	transition := order.NewTransitionOrderUseCase(store, ledger)
	return UseCases{
		CreateOrder:     order.NewCreateOrderUseCase(store, feePercent),
		TransitionOrder: transition,
		GetOrder:        order.NewGetOrderUseCase(store),
		OpenDispute:     dispute.NewOpenDisputeUseCase(store),
		SubmitEvidence:  dispute.NewSubmitEvidenceUseCase(store),
		EscalateDispute: dispute.NewEscalateDisputeUseCase(store),
		ResolveDispute:  dispute.NewResolveDisputeUseCase(store, ledger),
		CloseDispute:    dispute.NewCloseDisputeUseCase(store),
		GetDispute:      dispute.NewGetDisputeUseCase(store),
	}
}

// authorize проверяет роль без антифрода. Используется для чтения.
func (o *Orchestrator) authorize(in Intent, resource, action string) error {
	if in.Actor.Role == "" {
		return apperror.ErrUnauthorized
	}
	return o.authz.Authorize(in.Actor.Role, resource, action)
}

// guard - права, затем антифрод и политика блокировки. Operation в signals задаёт вызывающий.
func (o *Orchestrator) guard(ctx context.Context, in Intent, resource, action string, signals fraud.Signals) ([]*entity.FraudAlert, error) {
	if err := o.authorize(in, resource, action); err != nil {
		return nil, err
	}
	if o.fraud == nil {
		return nil, nil
	}

	if signals.Operation == "" {
		signals.Operation = resource + "." + action
	}
	signals.UserID = in.Actor.UserID
	signals.Fingerprint = in.Fingerprint

	alerts := o.fraud.Evaluate(ctx, signals)
	top := fraud.MaxSeverity(alerts)
	if !o.policy.blocks(top) {
		return alerts, nil
	}

	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.ID.String())
	}
	if o.metrics != nil {
		o.metrics.FraudBlocked(signals.Operation)
	}
	o.log.WithFields(logrus.Fields{
		"user_id":   in.Actor.UserID,
		"operation": signals.Operation,
		"severity":  top,
	}).Warn("orchestrator: операция заблокирована антифродом")
	return alerts, apperror.ErrFraudBlocked.
		WithDetail("severity", string(top)).
		WithDetail("alert_ids", ids)
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.log.WithError(err).WithField("event_type", event.Type).Warn("orchestrator: событие не опубликовано")
	}
}

func (o *Orchestrator) escrowOp(operation string, err error) {
	if o.metrics != nil {
		o.metrics.EscrowOperation(operation, err)
	}
}

func orderParties(ord *entity.Order) []uuid.UUID {
	return []uuid.UUID{ord.BuyerID, ord.SellerID}
}
