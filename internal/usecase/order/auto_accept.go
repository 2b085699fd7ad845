package order

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/logger"
)

const autoAcceptBatch = 100

// AutoAcceptUseCase принимает заказы, которые покупатель не проверил за отведённое время.
type AutoAcceptUseCase struct {
	store      repository.Store
	transition *TransitionOrderUseCase
	after      time.Duration
	log        *logrus.Entry
}

func NewAutoAcceptUseCase(store repository.Store, transition *TransitionOrderUseCase, after time.Duration) *AutoAcceptUseCase {
	return &AutoAcceptUseCase{
		store:      store,
		transition: transition,
		after:      after,
		log:        logger.WithComponent("auto-accept"),
	}
}

// Execute принимает одну пачку заказов. Ошибка по одному заказу не останавливает остальные:
// заказ, который успел уйти в спор, просто пропускается.
func (uc *AutoAcceptUseCase) Execute(ctx context.Context, now time.Time) ([]*TransitionResult, error) {
	orders, err := uc.store.Orders().ListDeliveredBefore(ctx, now.Add(-uc.after), autoAcceptBatch)
	if err != nil {
		return nil, err
	}

	accepted := make([]*TransitionResult, 0, len(orders))
	for _, o := range orders {
		if ctx.Err() != nil {
			return accepted, ctx.Err()
		}
		res, err := uc.transition.Execute(ctx, entity.SystemActor, o.ID, valueobject.OrderEventAccept)
		if err != nil {
			uc.log.WithError(err).WithField("order_id", o.ID).Warn("auto-accept: заказ пропущен")
			continue
		}
		accepted = append(accepted, res)
	}
	return accepted, nil
}
