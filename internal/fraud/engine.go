package fraud

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/events"
	"github.com/ignatzorin/gig-escrow/internal/fingerprint"
	"github.com/ignatzorin/gig-escrow/internal/logger"
)

// Операции, для которых движок знает набор проверок.
const (
	OperationCreateOrder   = "orders.create"
	OperationTransition    = "orders.transition"
	OperationAuthorize     = "escrow.authorize"
	OperationCapture       = "escrow.capture"
	OperationRelease       = "escrow.release"
	OperationRefund        = "escrow.refund"
	OperationCreatePayout  = "escrow.createPayout"
	OperationProcessPayout = "escrow.processPayout"
	OperationOpenDispute   = "disputes.open"
	OperationEvidence      = "disputes.submitEvidence"
	OperationEscalate      = "disputes.escalate"
	OperationResolve       = "disputes.resolve"
	OperationCloseDispute  = "disputes.close"
	OperationEvaluate      = "fraud.evaluate"
	OperationSignup        = "accounts.signup"
	OperationSubmitReview  = "reviews.submit"
	OperationPriceChange   = "gigs.changePrice"
	negativeRatingMaxStars = 2
)

type Thresholds struct {
	PriceCeiling        int64
	OrderVelocity       int
	OrderWindow         time.Duration
	AccountVelocity     int
	AccountWindow       time.Duration
	ReviewVolume        int
	ReviewNegativeShare float64
	ReviewMinSample     int
	ReviewWindow        time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceCeiling:        10_000_000,
		OrderVelocity:       10,
		OrderWindow:         time.Hour,
		AccountVelocity:     3,
		AccountWindow:       24 * time.Hour,
		ReviewVolume:        20,
		ReviewNegativeShare: 0.8,
		ReviewMinSample:     5,
		ReviewWindow:        24 * time.Hour,
	}
}

// Signals - сырые данные операции. Отсутствующее поле отключает соответствующую проверку.
type Signals struct {
	Operation    string                   `json:"operation"`
	UserID       uuid.UUID                `json:"user_id"`
	GigID        uuid.UUID                `json:"gig_id"`
	Price        *int64                   `json:"price,omitempty"`
	Fingerprint  *fingerprint.Fingerprint `json:"fingerprint,omitempty"`
	ReviewRating *int                     `json:"review_rating,omitempty"`
	// DryRun оценивает операцию так, будто она случилась, но не пишет её в историю окон.
	DryRun       bool                     `json:"-"`
}

// AlertCounter считает сигналы в метриках.
type AlertCounter interface {
	FraudAlert(typ, severity string)
}

// Engine собирает историю, запускает проверки операции и сохраняет найденные сигналы.
// Ошибки инфраструктуры только логируются: сигналы носят рекомендательный характер.
type Engine struct {
	history   History
	alerts    repository.FraudAlertRepository
	publisher events.Publisher
	counter   AlertCounter
	limits    Thresholds
	now       func() time.Time
	log       *logrus.Entry
}

func NewEngine(history History, alerts repository.FraudAlertRepository, publisher events.Publisher, counter AlertCounter, limits Thresholds) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		history:   history,
		alerts:    alerts,
		publisher: publisher,
		counter:   counter,
		limits:    limits,
		now:       time.Now,
		log:       logger.WithComponent("fraud"),
	}
}

// WithClock подменяет часы в тестах.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate возвращает сигналы по убыванию серьёзности.
func (e *Engine) Evaluate(ctx context.Context, s Signals) []*entity.FraudAlert {
	now := e.now()
	var alerts []*entity.FraudAlert
	add := func(a *entity.FraudAlert) {
		if a != nil {
			a.Operation = s.Operation
			a.CreatedAt = now
			alerts = append(alerts, a)
		}
	}

	if s.Fingerprint != nil {
		add(DeviceCheck(s.UserID, *s.Fingerprint))
	}
	if s.Price != nil {
		add(PriceCheck(s.UserID, s.GigID, *s.Price, e.limits.PriceCeiling))
	}

	switch s.Operation {
	case OperationCreateOrder:
		if s.UserID != uuid.Nil {
			key := "orders:user:" + s.UserID.String()
			add(VelocityCheck(s.UserID, valueobject.FraudTypeUnusualOrderPattern, key,
				e.window(ctx, key, now, e.limits.OrderWindow, !s.DryRun), now, e.limits.OrderWindow, e.limits.OrderVelocity))
		}
	case OperationSignup:
		if s.Fingerprint != nil && s.Fingerprint.IPHash != "" {
			key := "accounts:ip:" + s.Fingerprint.IPHash
			add(VelocityCheck(s.UserID, valueobject.FraudTypeRapidAccountCreation, key,
				e.window(ctx, key, now, e.limits.AccountWindow, !s.DryRun), now, e.limits.AccountWindow, e.limits.AccountVelocity))
		}
	case OperationSubmitReview:
		if s.GigID != uuid.Nil && s.ReviewRating != nil {
			add(ReviewBombingCheck(s.UserID, s.GigID, e.reviewStats(ctx, s.GigID, *s.ReviewRating, now, !s.DryRun),
				e.limits.ReviewVolume, e.limits.ReviewNegativeShare, e.limits.ReviewMinSample))
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Severity.Rank() > alerts[j].Severity.Rank() })
	e.report(ctx, alerts)
	return alerts
}

// window возвращает историю окна вместе с текущим событием. record=false только читает историю,
// текущее событие добавляется к результату без записи.
func (e *Engine) window(ctx context.Context, key string, now time.Time, window time.Duration, record bool) []time.Time {
	if e.history == nil {
		return nil
	}
	if record {
		if err := e.history.Record(ctx, key, now); err != nil {
			e.log.WithError(err).WithField("key", key).Warn("fraud: не удалось записать событие в историю")
			return nil
		}
	}
	ts, err := e.history.Since(ctx, key, now.Add(-window))
	if err != nil {
		e.log.WithError(err).WithField("key", key).Warn("fraud: не удалось прочитать историю")
		return nil
	}
	if !record {
		ts = append(ts, now)
	}
	return ts
}

func (e *Engine) reviewStats(ctx context.Context, gigID uuid.UUID, rating int, now time.Time, record bool) ReviewStats {
	total := "reviews:gig:" + gigID.String()
	negative := "reviews:negative:gig:" + gigID.String()

	stats := ReviewStats{Total: len(e.window(ctx, total, now, e.limits.ReviewWindow, record))}
	if rating <= negativeRatingMaxStars {
		stats.Negative = len(e.window(ctx, negative, now, e.limits.ReviewWindow, record))
	} else if e.history != nil {
		ts, err := e.history.Since(ctx, negative, now.Add(-e.limits.ReviewWindow))
		if err == nil {
			stats.Negative = len(ts)
		}
	}
	return stats
}

func (e *Engine) report(ctx context.Context, alerts []*entity.FraudAlert) {
	for _, a := range alerts {
		fields := logrus.Fields{
			"alert_id":  a.ID,
			"user_id":   a.UserID,
			"type":      a.Type,
			"severity":  a.Severity,
			"operation": a.Operation,
		}
		e.log.WithFields(fields).Warn(fmt.Sprintf("fraud: %s", a.Description))

		if e.counter != nil {
			e.counter.FraudAlert(string(a.Type), string(a.Severity))
		}
		if e.alerts != nil {
			if err := e.alerts.Create(ctx, a); err != nil {
				e.log.WithError(err).WithFields(fields).Error("fraud: не удалось сохранить сигнал")
			}
		}
		// пользователю сигнал не показывается, событие уходит только в брокер
		if err := e.publisher.Publish(ctx, events.New(events.FraudAlertRaised, a.ID, a)); err != nil {
			e.log.WithError(err).WithFields(fields).Warn("fraud: не удалось опубликовать сигнал")
		}
	}
}
