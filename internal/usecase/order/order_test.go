package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/infrastructure/memstore"
	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/gig-escrow/internal/usecase/order"
)

type fixture struct {
	store      *memstore.Store
	ledger     *escrow.Ledger
	create     *order.CreateOrderUseCase
	transition *order.TransitionOrderUseCase
	get        *order.GetOrderUseCase
	gig        *entity.Gig
	extra      entity.GigExtra
	buyer      entity.Actor
	seller     entity.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	ledger := escrow.NewLedger(store, payment.NewSandbox(), time.Second, "USD")

	gigID := uuid.New()
	sellerID := uuid.New()
	extra := entity.GigExtra{ID: uuid.New(), GigID: gigID, Title: "Срочно", Price: 1500}
	gig := &entity.Gig{
		ID:        gigID,
		SellerID:  sellerID,
		Active:    true,
		Published: true,
		Currency:  "USD",
		Packages:  []entity.GigPackage{{ID: uuid.New(), GigID: gigID, Tier: "basic", Price: 5000}},
		Extras:    []entity.GigExtra{extra},
	}
	require.NoError(t, store.Gigs().Create(context.Background(), gig))

	return &fixture{
		store:      store,
		ledger:     ledger,
		create:     order.NewCreateOrderUseCase(store, 10),
		transition: order.NewTransitionOrderUseCase(store, ledger),
		get:        order.NewGetOrderUseCase(store),
		gig:        gig,
		extra:      extra,
		buyer:      entity.Actor{UserID: uuid.New(), Role: valueobject.RoleBuyer},
		seller:     entity.Actor{UserID: sellerID, Role: valueobject.RoleSeller},
	}
}

func (f *fixture) newOrder(t *testing.T) *entity.Order {
	t.Helper()
	o, err := f.create.Execute(context.Background(), f.buyer, order.CreateOrderInput{
		GigID:     f.gig.ID,
		PackageID: f.gig.Packages[0].ID,
	})
	require.NoError(t, err)
	return o
}

// paidOrder создаёт заказ и проводит оплату до списания.
func (f *fixture) paidOrder(t *testing.T) *entity.Order {
	t.Helper()
	ctx := context.Background()
	o := f.newOrder(t)
	tx, err := f.ledger.Authorize(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	_, err = f.ledger.Capture(ctx, f.buyer, tx.ID)
	require.NoError(t, err)
	return o
}

func (f *fixture) step(t *testing.T, actor entity.Actor, orderID uuid.UUID, event valueobject.OrderEvent) *order.TransitionResult {
	t.Helper()
	res, err := f.transition.Execute(context.Background(), actor, orderID, event)
	require.NoError(t, err)
	return res
}

func TestCreateOrder_PricesPackageAndExtras(t *testing.T) {
	f := newFixture(t)

	o, err := f.create.Execute(context.Background(), f.buyer, order.CreateOrderInput{
		GigID:     f.gig.ID,
		PackageID: f.gig.Packages[0].ID,
		ExtraIDs:  []uuid.UUID{f.extra.ID, f.extra.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, valueobject.OrderStatusPending, o.Status)
	assert.Equal(t, int64(6500), o.TotalPrice)
	assert.Equal(t, int64(650), o.PlatformFee)
	assert.Equal(t, int64(5850), o.SellerEarnings)
	assert.Equal(t, f.seller.UserID, o.SellerID)

	history, err := f.get.History(context.Background(), f.buyer, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, valueobject.OrderStatusPending, history[0].ToStatus)
}

func TestCreateOrder_UnknownGigAndPackage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.create.Execute(ctx, f.buyer, order.CreateOrderInput{GigID: uuid.New(), PackageID: f.gig.Packages[0].ID})
	assert.True(t, apperror.ErrInvalidGig.Is(err))

	_, err = f.create.Execute(ctx, f.buyer, order.CreateOrderInput{GigID: f.gig.ID, PackageID: uuid.New()})
	assert.True(t, apperror.ErrInvalidPackage.Is(err))
}

func TestTransition_FullLifecycleReleasesEscrowOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.paidOrder(t)

	f.step(t, f.seller, o.ID, valueobject.OrderEventStart)
	f.step(t, f.seller, o.ID, valueobject.OrderEventDeliver)
	f.step(t, f.buyer, o.ID, valueobject.OrderEventRequestRevision)
	f.step(t, f.seller, o.ID, valueobject.OrderEventDeliver)
	res := f.step(t, f.buyer, o.ID, valueobject.OrderEventAccept)

	assert.Equal(t, valueobject.OrderStatusCompleted, res.Order.Status)
	assert.Equal(t, 1, res.Order.RevisionCount)
	assert.NotNil(t, res.Order.CompletedAt)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, valueobject.TransactionStatusReleased, res.Transaction.Status)

	balance, err := f.ledger.Balance(ctx, entity.SystemActor, f.seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), balance.Available)

	_, err = f.transition.Execute(ctx, f.buyer, o.ID, valueobject.OrderEventAccept)
	assert.True(t, apperror.CodeOf(err) == apperror.ErrCodeInvalidTransition)

	balance, err = f.ledger.Balance(ctx, entity.SystemActor, f.seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), balance.Available)

	history, err := f.get.History(ctx, f.seller, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestTransition_StartRequiresCapturedEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.newOrder(t)

	_, err := f.transition.Execute(ctx, f.seller, o.ID, valueobject.OrderEventStart)
	assert.True(t, apperror.ErrEscrowNotCaptured.Is(err))

	_, err = f.ledger.Authorize(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	_, err = f.transition.Execute(ctx, f.seller, o.ID, valueobject.OrderEventStart)
	assert.True(t, apperror.ErrEscrowNotCaptured.Is(err))

	stored, err := f.store.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPending, stored.Status)
}

func TestTransition_ActorRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.paidOrder(t)
	stranger := entity.Actor{UserID: uuid.New(), Role: valueobject.RoleBuyer}

	_, err := f.transition.Execute(ctx, f.buyer, o.ID, valueobject.OrderEventStart)
	assert.True(t, apperror.IsForbidden(err))
	_, err = f.transition.Execute(ctx, stranger, o.ID, valueobject.OrderEventCancel)
	assert.True(t, apperror.IsForbidden(err))

	f.step(t, f.seller, o.ID, valueobject.OrderEventStart)
	f.step(t, f.seller, o.ID, valueobject.OrderEventDeliver)

	_, err = f.transition.Execute(ctx, f.seller, o.ID, valueobject.OrderEventAccept)
	assert.True(t, apperror.IsForbidden(err))

	admin := entity.Actor{UserID: uuid.New(), Role: valueobject.RoleAdmin}
	res := f.step(t, admin, o.ID, valueobject.OrderEventAccept)
	assert.Equal(t, valueobject.OrderStatusCompleted, res.Order.Status)
}

func TestTransition_DisputeEventsAreNotClientEvents(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(t)

	for _, ev := range []valueobject.OrderEvent{valueobject.OrderEventOpenDispute, valueobject.OrderEventResolveDispute, "teleport"} {
		_, err := f.transition.Execute(context.Background(), f.buyer, o.ID, ev)
		assert.True(t, apperror.IsValidation(err), ev)
	}
}

func TestTransition_CancelRefundsCapturedEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.paidOrder(t)
	f.step(t, f.seller, o.ID, valueobject.OrderEventStart)

	res := f.step(t, f.buyer, o.ID, valueobject.OrderEventCancel)
	assert.Equal(t, valueobject.OrderStatusCancelled, res.Order.Status)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, valueobject.TransactionStatusRefunded, res.Transaction.Status)
	assert.Equal(t, int64(5000), res.Transaction.RefundedAmount)

	balance, err := f.ledger.Balance(ctx, entity.SystemActor, f.seller.UserID)
	require.NoError(t, err)
	assert.Zero(t, balance.Available)
}

func TestTransition_CancelWithoutPaymentAndTerminalSinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.newOrder(t)

	res := f.step(t, f.buyer, o.ID, valueobject.OrderEventCancel)
	assert.Equal(t, valueobject.OrderStatusCancelled, res.Order.Status)
	assert.Nil(t, res.Transaction)

	for _, ev := range []valueobject.OrderEvent{
		valueobject.OrderEventStart,
		valueobject.OrderEventDeliver,
		valueobject.OrderEventAccept,
		valueobject.OrderEventCancel,
	} {
		_, err := f.transition.Execute(ctx, entity.Actor{UserID: uuid.New(), Role: valueobject.RoleAdmin}, o.ID, ev)
		require.Error(t, err)
		assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err), ev)
	}
}

func TestAutoAccept_AcceptsStaleDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	delivered := time.Now().Add(-80 * time.Hour)
	f.transition.WithClock(func() time.Time { return delivered })

	stale := f.paidOrder(t)
	f.step(t, f.seller, stale.ID, valueobject.OrderEventStart)
	f.step(t, f.seller, stale.ID, valueobject.OrderEventDeliver)

	f.transition.WithClock(time.Now)
	fresh := f.paidOrder(t)
	f.step(t, f.seller, fresh.ID, valueobject.OrderEventStart)
	f.step(t, f.seller, fresh.ID, valueobject.OrderEventDeliver)

	auto := order.NewAutoAcceptUseCase(f.store, f.transition, 72*time.Hour)
	accepted, err := auto.Execute(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, stale.ID, accepted[0].Order.ID)

	history, err := f.get.History(ctx, entity.SystemActor, stale.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, valueobject.OrderEventAccept, last.Event)
	assert.Nil(t, last.ActorID)

	got, err := f.get.Execute(ctx, f.buyer, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusDelivered, got.Status)
}

func TestGetOrder_OnlyParticipants(t *testing.T) {
	f := newFixture(t)
	o := f.newOrder(t)

	_, err := f.get.Execute(context.Background(), entity.Actor{UserID: uuid.New(), Role: valueobject.RoleBuyer}, o.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.get.Execute(context.Background(), f.buyer, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
