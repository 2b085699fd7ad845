package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/logger"
)

type Type string

const (
	OrderCreated      Type = "order.created"
	OrderTransitioned Type = "order.transitioned"
	EscrowAuthorized  Type = "escrow.authorized"
	EscrowCaptured    Type = "escrow.captured"
	EscrowReleased    Type = "escrow.released"
	EscrowRefunded    Type = "escrow.refunded"
	PayoutCreated     Type = "payout.created"
	PayoutProcessed   Type = "payout.processed"
	DisputeOpened     Type = "dispute.opened"
	DisputeUpdated    Type = "dispute.updated"
	DisputeResolved   Type = "dispute.resolved"
	FraudAlertRaised  Type = "fraud.alert"
)

// Event - доменное событие после успешной фиксации изменений.
// Recipients - пользователи, которым событие уходит в WebSocket.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Type        Type        `json:"type"`
	AggregateID uuid.UUID   `json:"aggregate_id"`
	Recipients  []uuid.UUID `json:"-"`
	Data        any         `json:"data"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func New(typ Type, aggregateID uuid.UUID, data any, recipients ...uuid.UUID) Event {
	return Event{
		ID:          uuid.New(),
		Type:        typ,
		AggregateID: aggregateID,
		Recipients:  recipients,
		Data:        data,
		OccurredAt:  time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop используется, когда брокер не настроен.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi рассылает событие во все публикаторы. Ошибка возвращается, только если не сработал ни один.
type Multi struct {
	publishers []Publisher
	log        *logrus.Entry
}

func NewMulti(publishers ...Publisher) *Multi {
	return &Multi{publishers: publishers, log: logger.WithComponent("events")}
}

func (m *Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for i, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"publisher_index": i,
				"event_type":      event.Type,
				"event_id":        event.ID,
			}).Warn("events: публикация не удалась")
			errs = append(errs, err)
		}
	}
	if len(m.publishers) > 0 && len(errs) == len(m.publishers) {
		return fmt.Errorf("events: все публикаторы отказали: %w", errors.Join(errs...))
	}
	return nil
}

// Recorder запоминает события в памяти. Нужен тестам и локальной отладке.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Types возвращает типы записанных событий по порядку.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
