package escrow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/infrastructure/memstore"
	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/usecase/escrow"
)

type fixture struct {
	store     *memstore.Store
	processor *payment.Sandbox
	ledger    *escrow.Ledger
	sellerID  uuid.UUID
	gig       *entity.Gig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	processor := payment.NewSandbox()
	gigID := uuid.New()
	gig := &entity.Gig{
		ID:        gigID,
		SellerID:  uuid.New(),
		Active:    true,
		Published: true,
		Currency:  "USD",
		Packages:  []entity.GigPackage{{ID: uuid.New(), GigID: gigID, Tier: "basic", Price: 5000}},
	}
	require.NoError(t, store.Gigs().Create(context.Background(), gig))

	return &fixture{
		store:     store,
		processor: processor,
		ledger:    escrow.NewLedger(store, processor, time.Second, "USD"),
		sellerID:  gig.SellerID,
		gig:       gig,
	}
}

func (f *fixture) newOrder(t *testing.T) (*entity.Order, entity.Actor) {
	t.Helper()
	buyer := entity.Actor{UserID: uuid.New(), Role: valueobject.RoleBuyer}
	order, err := entity.NewOrder(buyer.UserID, f.gig, f.gig.Packages[0].ID, nil, 10, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Orders().Create(context.Background(), order))
	return order, buyer
}

// releasedOrder проводит заказ через авторизацию, списание и приёмку.
func (f *fixture) releasedOrder(t *testing.T) *entity.Transaction {
	t.Helper()
	ctx := context.Background()
	order, buyer := f.newOrder(t)

	tx, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.NoError(t, err)
	_, err = f.ledger.Capture(ctx, buyer, tx.ID)
	require.NoError(t, err)

	var released *entity.Transaction
	err = f.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		o, err := r.Orders().LockByID(ctx, order.ID)
		require.NoError(t, err)
		o.Status = valueobject.OrderStatusCompleted
		require.NoError(t, r.Orders().Update(ctx, o))
		released, err = f.ledger.ReleaseForOrder(ctx, r, o)
		return err
	})
	require.NoError(t, err)
	return released
}

func TestAuthorizeAndCapture_CaptureTwiceEqualsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, buyer := f.newOrder(t)

	tx, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusAuthorized, tx.Status)
	assert.Equal(t, int64(5000), tx.Amount)
	assert.NotEmpty(t, tx.ProcessorAuthRef)

	again, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, again.ID)
	assert.Equal(t, 1, f.processor.Calls("authorize"))

	first, err := f.ledger.Capture(ctx, buyer, tx.ID)
	require.NoError(t, err)
	second, err := f.ledger.Capture(ctx, buyer, tx.ID)
	require.NoError(t, err)

	assert.Equal(t, valueobject.TransactionStatusCaptured, first.Status)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.processor.Calls("capture"))
}

func TestAuthorize_DeclinedMarksFailedAndAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, buyer := f.newOrder(t)

	f.processor.DeclineAbove = 100
	tx, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodePaymentDeclined, apperror.CodeOf(err))
	assert.Equal(t, valueobject.TransactionStatusFailed, tx.Status)

	f.processor.DeclineAbove = 0
	retry, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.NotEqual(t, tx.ID, retry.ID)
	assert.Equal(t, valueobject.TransactionStatusAuthorized, retry.Status)
}

func TestAuthorize_TimeoutLeavesPendingAndRetryReusesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, buyer := f.newOrder(t)

	f.processor.Latency = 200 * time.Millisecond
	f.ledger = escrow.NewLedger(f.store, f.processor, 10*time.Millisecond, "USD")

	tx, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrProcessorTimeout)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable())
	assert.Equal(t, valueobject.TransactionStatusPending, tx.Status)

	f.processor.Latency = 0
	retry, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, retry.ID)
	assert.Equal(t, valueobject.TransactionStatusAuthorized, retry.Status)
}

// heldAuthorize останавливает авторизацию после ответа процессора до сигнала release.
type heldAuthorize struct {
	*payment.Sandbox
	started chan string
	release chan struct{}
}

func (p *heldAuthorize) Authorize(ctx context.Context, req payment.AuthorizeRequest) (string, error) {
	ref, err := p.Sandbox.Authorize(ctx, req)
	p.started <- ref
	<-p.release
	return ref, err
}

func TestAuthorize_OrderCancelledDuringCallVoidsHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	processor := &heldAuthorize{Sandbox: f.processor, started: make(chan string, 1), release: make(chan struct{})}
	ledger := escrow.NewLedger(f.store, processor, 5*time.Second, "USD")
	order, buyer := f.newOrder(t)

	type outcome struct {
		tx  *entity.Transaction
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		tx, err := ledger.Authorize(ctx, buyer, order.ID)
		done <- outcome{tx, err}
	}()

	var authRef string
	select {
	case authRef = <-processor.started:
	case <-time.After(time.Second):
		t.Fatal("авторизация не дошла до процессора")
	}
	require.NotEmpty(t, authRef)

	err := f.store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		o, err := r.Orders().LockByID(ctx, order.ID)
		if err != nil {
			return err
		}
		o.Status = valueobject.OrderStatusCancelled
		if err := r.Orders().Update(ctx, o); err != nil {
			return err
		}
		_, err = ledger.RefundForOrder(ctx, r, o, 0)
		return err
	})
	require.NoError(t, err)
	close(processor.release)

	var got outcome
	select {
	case got = <-done:
	case <-time.After(time.Second):
		t.Fatal("авторизация не завершилась")
	}
	require.Error(t, got.err)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(got.err))
	require.NotNil(t, got.tx)
	assert.Equal(t, valueobject.TransactionStatusFailed, got.tx.Status)
	assert.Empty(t, got.tx.ProcessorAuthRef)

	assert.Equal(t, got.tx.Amount, f.processor.Refunded(authRef))
	assert.Equal(t, 1, f.processor.Calls("refund"))
}

func TestAuthorize_OnlyBuyer(t *testing.T) {
	f := newFixture(t)
	order, _ := f.newOrder(t)

	seller := entity.Actor{UserID: f.sellerID, Role: valueobject.RoleSeller}
	_, err := f.ledger.Authorize(context.Background(), seller, order.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestReleaseForOrder_CreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.releasedOrder(t)

	assert.Equal(t, valueobject.TransactionStatusReleased, tx.Status)
	assert.Equal(t, int64(4500), tx.ReleasedAmount)

	admin := entity.Actor{UserID: uuid.New(), Role: valueobject.RoleAdmin}
	again, err := f.ledger.Release(ctx, admin, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), again.ReleasedAmount)

	seller := entity.Actor{UserID: f.sellerID, Role: valueobject.RoleSeller}
	balance, err := f.ledger.Balance(ctx, seller, f.sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), balance.Available)
}

func TestRelease_RequiresCompletedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, buyer := f.newOrder(t)
	tx, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.NoError(t, err)

	admin := entity.Actor{UserID: uuid.New(), Role: valueobject.RoleAdmin}
	_, err = f.ledger.Release(ctx, admin, tx.ID)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))

	_, err = f.ledger.Release(ctx, buyer, tx.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestRefund_BeforeDeliveryCancelsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, buyer := f.newOrder(t)
	tx, err := f.ledger.Authorize(ctx, buyer, order.ID)
	require.NoError(t, err)
	_, err = f.ledger.Capture(ctx, buyer, tx.ID)
	require.NoError(t, err)

	admin := entity.Actor{UserID: uuid.New(), Role: valueobject.RoleAdmin}
	_, err = f.ledger.Refund(ctx, admin, tx.ID, 100)
	assert.True(t, apperror.IsValidation(err))

	refunded, err := f.ledger.Refund(ctx, admin, tx.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusRefunded, refunded.Status)
	assert.Equal(t, int64(5000), refunded.RefundedAmount)

	got, err := f.store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusCancelled, got.Status)

	history, err := f.store.Orders().History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, valueobject.OrderEventCancel, history[0].Event)
}

func TestCreatePayout_OldestFirstAndInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.releasedOrder(t)
	second := f.releasedOrder(t)
	seller := entity.Actor{UserID: f.sellerID, Role: valueobject.RoleSeller}

	payout, err := f.ledger.CreatePayout(ctx, seller, f.sellerID, 6000)
	require.NoError(t, err)
	require.Len(t, payout.Allocations, 2)
	assert.Equal(t, first.ID, payout.Allocations[0].TransactionID)
	assert.Equal(t, int64(4500), payout.Allocations[0].Amount)
	assert.Equal(t, second.ID, payout.Allocations[1].TransactionID)
	assert.Equal(t, int64(1500), payout.Allocations[1].Amount)

	_, err = f.ledger.CreatePayout(ctx, seller, f.sellerID, 3001)
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)

	other := entity.Actor{UserID: uuid.New(), Role: valueobject.RoleSeller}
	_, err = f.ledger.CreatePayout(ctx, other, f.sellerID, 100)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestCreatePayout_ConcurrentNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.releasedOrder(t)
	f.releasedOrder(t)
	seller := entity.Actor{UserID: f.sellerID, Role: valueobject.RoleSeller}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		paidOut int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := f.ledger.CreatePayout(ctx, seller, f.sellerID, 1000)
			if err != nil {
				assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
				return
			}
			mu.Lock()
			paidOut += p.Amount
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(9000), paidOut)
	balance, err := f.ledger.Balance(ctx, seller, f.sellerID)
	require.NoError(t, err)
	assert.Zero(t, balance.Available)
	assert.Equal(t, balance.Released, balance.Earmarked)
}

func TestProcessPayout_PaidAndFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.releasedOrder(t)
	seller := entity.Actor{UserID: f.sellerID, Role: valueobject.RoleSeller}
	admin := entity.SystemActor

	ok, err := f.ledger.CreatePayout(ctx, seller, f.sellerID, 1000)
	require.NoError(t, err)
	paid, err := f.ledger.ProcessPayout(ctx, admin, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PayoutStatusPaid, paid.Status)
	assert.NotEmpty(t, paid.ProcessorRef)

	_, err = f.ledger.ProcessPayout(ctx, admin, ok.ID)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))

	f.processor.FailTransfers = true
	bad, err := f.ledger.CreatePayout(ctx, seller, f.sellerID, 3500)
	require.NoError(t, err)
	failed, err := f.ledger.ProcessPayout(ctx, admin, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PayoutStatusFailed, failed.Status)

	balance, err := f.ledger.Balance(ctx, seller, f.sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), balance.Available)
	assert.Equal(t, int64(1000), balance.Earmarked)
}
