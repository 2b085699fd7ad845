package valueobject

import "github.com/ignatzorin/gig-escrow/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusPreview    OrderStatus = "preview"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusRevision   OrderStatus = "revision"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDisputed   OrderStatus = "disputed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderEvent - намерение, переводящее заказ между статусами.
type OrderEvent string

const (
	OrderEventStart           OrderEvent = "start"
	OrderEventPreview         OrderEvent = "preview"
	OrderEventDeliver         OrderEvent = "deliver"
	OrderEventRequestRevision OrderEvent = "request_revision"
	OrderEventAccept          OrderEvent = "accept"
	OrderEventOpenDispute     OrderEvent = "open_dispute"
	OrderEventResolveDispute  OrderEvent = "resolve_dispute"
	OrderEventCancel          OrderEvent = "cancel"
)

// orderTransitions - таблица переходов: статус -> событие -> допустимые целевые статусы.
// resolve_dispute единственное событие с несколькими целями, итог выбирает спор.
var orderTransitions = map[OrderStatus]map[OrderEvent][]OrderStatus{
	OrderStatusPending: {
		OrderEventStart:       {OrderStatusInProgress},
		OrderEventCancel:      {OrderStatusCancelled},
		OrderEventOpenDispute: {OrderStatusDisputed},
	},
	OrderStatusInProgress: {
		OrderEventPreview:     {OrderStatusPreview},
		OrderEventDeliver:     {OrderStatusDelivered},
		OrderEventCancel:      {OrderStatusCancelled},
		OrderEventOpenDispute: {OrderStatusDisputed},
	},
	OrderStatusPreview: {
		OrderEventDeliver:     {OrderStatusDelivered},
		OrderEventOpenDispute: {OrderStatusDisputed},
	},
	OrderStatusDelivered: {
		OrderEventRequestRevision: {OrderStatusRevision},
		OrderEventAccept:          {OrderStatusCompleted},
		OrderEventOpenDispute:     {OrderStatusDisputed},
	},
	OrderStatusRevision: {
		OrderEventDeliver:     {OrderStatusDelivered},
		OrderEventOpenDispute: {OrderStatusDisputed},
	},
	OrderStatusDisputed: {
		OrderEventResolveDispute: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusRevision},
	},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Target возвращает единственный целевой статус для события.
// Для resolve_dispute цель задаётся явно через CanTransitionTo.
func (s OrderStatus) Target(event OrderEvent) (OrderStatus, bool) {
	targets, ok := orderTransitions[s][event]
	if !ok || len(targets) != 1 {
		return "", false
	}
	return targets[0], true
}

func (s OrderStatus) CanTransitionTo(event OrderEvent, target OrderStatus) bool {
	for _, status := range orderTransitions[s][event] {
		if status == target {
			return true
		}
	}
	return false
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

func (e OrderEvent) IsValid() bool {
	switch e {
	case OrderEventStart, OrderEventPreview, OrderEventDeliver, OrderEventRequestRevision,
		OrderEventAccept, OrderEventOpenDispute, OrderEventResolveDispute, OrderEventCancel:
		return true
	}
	return false
}

// IsClientEvent - события, которые участники могут отправлять напрямую.
// Споровые события управляются только процессом разрешения спора.
func (e OrderEvent) IsClientEvent() bool {
	return e.IsValid() && e != OrderEventOpenDispute && e != OrderEventResolveDispute
}

func NewOrderEvent(event string) (OrderEvent, error) {
	e := OrderEvent(event)
	if !e.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "неизвестное событие заказа")
	}
	return e, nil
}

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusAuthorized TransactionStatus = "authorized"
	TransactionStatusCaptured   TransactionStatus = "captured"
	TransactionStatusReleased   TransactionStatus = "released"
	TransactionStatusRefunded   TransactionStatus = "refunded"
	TransactionStatusFailed     TransactionStatus = "failed"
)

// IsTerminal - released тоже терминален для escrow: дальше деньги двигают выплаты.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusReleased, TransactionStatusRefunded, TransactionStatusFailed:
		return true
	}
	return false
}

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusFailed     PayoutStatus = "failed"
)

type DisputeStatus string

const (
	DisputeStatusOpen      DisputeStatus = "open"
	DisputeStatusMediation DisputeStatus = "mediation"
	DisputeStatusResolved  DisputeStatus = "resolved"
	DisputeStatusClosed    DisputeStatus = "closed"
)

// IsActive - спор ещё блокирует заказ.
func (s DisputeStatus) IsActive() bool {
	return s == DisputeStatusOpen || s == DisputeStatusMediation
}

type DisputeOutcome string

const (
	DisputeOutcomePending           DisputeOutcome = "pending"
	DisputeOutcomeRefundFull        DisputeOutcome = "refund_full"
	DisputeOutcomeRefundPartial     DisputeOutcome = "refund_partial"
	DisputeOutcomeRevisionRequested DisputeOutcome = "revision_requested"
	DisputeOutcomeBuyerFavor        DisputeOutcome = "buyer_favor"
	DisputeOutcomeSellerFavor       DisputeOutcome = "seller_favor"
	DisputeOutcomeNoAction          DisputeOutcome = "no_action"
)

func NewDisputeOutcome(outcome string) (DisputeOutcome, error) {
	o := DisputeOutcome(outcome)
	switch o {
	case DisputeOutcomeRefundFull, DisputeOutcomeRefundPartial, DisputeOutcomeRevisionRequested,
		DisputeOutcomeBuyerFavor, DisputeOutcomeSellerFavor, DisputeOutcomeNoAction:
		return o, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректный итог спора")
}

type DisputeReason string

const (
	DisputeReasonNotDelivered   DisputeReason = "not_delivered"
	DisputeReasonQuality        DisputeReason = "quality"
	DisputeReasonLateDelivery   DisputeReason = "late_delivery"
	DisputeReasonNotAsDescribed DisputeReason = "not_as_described"
	DisputeReasonCommunication  DisputeReason = "communication"
	DisputeReasonOther          DisputeReason = "other"
)

func NewDisputeReason(reason string) (DisputeReason, error) {
	r := DisputeReason(reason)
	switch r {
	case DisputeReasonNotDelivered, DisputeReasonQuality, DisputeReasonLateDelivery,
		DisputeReasonNotAsDescribed, DisputeReasonCommunication, DisputeReasonOther:
		return r, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректная причина спора")
}

// Role - роль участника, которую передаёт контекст аутентификации.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}
