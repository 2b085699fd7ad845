package worker

import (
	"context"
	"time"

	"github.com/ignatzorin/gig-escrow/internal/usecase/order"
)

const (
	JobPayouts    = "payouts"
	JobAutoAccept = "auto_accept"

	payoutBatch = 50
)

type PayoutProcessor interface {
	ProcessPendingPayouts(ctx context.Context, limit int) (int, error)
}

type AutoAccepter interface {
	Execute(ctx context.Context, now time.Time) ([]*order.TransitionResult, error)
}

type TransitionPublisher interface {
	PublishTransitions(ctx context.Context, results []*order.TransitionResult)
}

// PayoutJob проводит ожидающие выплаты через процессор.
func PayoutJob(p PayoutProcessor, interval time.Duration) Job {
	return Job{
		Name:     JobPayouts,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := p.ProcessPendingPayouts(ctx, payoutBatch)
			return err
		},
	}
}

// AutoAcceptJob принимает просроченные доставки и публикует переходы, даже если пачка
// прервалась ошибкой.
func AutoAcceptJob(uc AutoAccepter, publisher TransitionPublisher, interval time.Duration, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     JobAutoAccept,
		Interval: interval,
		Run: func(ctx context.Context) error {
			accepted, err := uc.Execute(ctx, now())
			if len(accepted) > 0 {
				publisher.PublishTransitions(ctx, accepted)
			}
			return err
		},
	}
}
