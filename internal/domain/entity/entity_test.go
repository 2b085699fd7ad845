package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testGig() *Gig {
	gigID := uuid.New()
	return &Gig{
		ID:        gigID,
		SellerID:  uuid.New(),
		Title:     "Логотип",
		Active:    true,
		Published: true,
		Currency:  "USD",
		Packages: []GigPackage{
			{ID: uuid.New(), GigID: gigID, Tier: "basic", Price: 5000},
			{ID: uuid.New(), GigID: gigID, Tier: "premium", Price: 20000},
		},
		Extras: []GigExtra{
			{ID: uuid.New(), GigID: gigID, Title: "Срочно", Price: 1500},
		},
	}
}

func TestNewOrder_PricesPackageAndExtras(t *testing.T) {
	gig := testGig()
	extra := gig.Extras[0].ID

	order, err := NewOrder(uuid.New(), gig, gig.Packages[0].ID, []uuid.UUID{extra, extra}, 10, now)
	require.NoError(t, err)

	assert.Equal(t, int64(6500), order.TotalPrice)
	assert.Equal(t, int64(650), order.PlatformFee)
	assert.Equal(t, int64(5850), order.SellerEarnings)
	assert.Equal(t, []uuid.UUID{extra}, order.ExtraIDs)
	assert.Equal(t, valueobject.OrderStatusPending, order.Status)
	assert.NoError(t, order.VerifyFees())
}

func TestNewOrder_Rejections(t *testing.T) {
	gig := testGig()

	_, err := NewOrder(uuid.New(), gig, uuid.New(), nil, 10, now)
	assert.ErrorIs(t, err, apperror.ErrInvalidPackage)

	_, err = NewOrder(uuid.New(), gig, gig.Packages[0].ID, []uuid.UUID{uuid.New()}, 10, now)
	assert.Equal(t, apperror.ErrCodeInvalidPackage, apperror.CodeOf(err))

	_, err = NewOrder(gig.SellerID, gig, gig.Packages[0].ID, nil, 10, now)
	assert.ErrorIs(t, err, apperror.ErrInvalidGig)

	gig.Published = false
	_, err = NewOrder(uuid.New(), gig, gig.Packages[0].ID, nil, 10, now)
	assert.ErrorIs(t, err, apperror.ErrInvalidGig)
}

func TestOrder_ApplyIllegalLeavesOrderUntouched(t *testing.T) {
	gig := testGig()
	order, err := NewOrder(uuid.New(), gig, gig.Packages[0].ID, nil, 10, now)
	require.NoError(t, err)

	err = order.Apply(valueobject.OrderEventAccept, now.Add(time.Hour))
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
	assert.Equal(t, "pending", appErr.Details["current_status"])
	assert.Equal(t, valueobject.OrderStatusPending, order.Status)
	assert.Equal(t, now, order.UpdatedAt)
}

func TestOrder_LifecycleTimestamps(t *testing.T) {
	gig := testGig()
	order, err := NewOrder(uuid.New(), gig, gig.Packages[0].ID, nil, 10, now)
	require.NoError(t, err)

	require.NoError(t, order.Apply(valueobject.OrderEventStart, now))
	require.NoError(t, order.Apply(valueobject.OrderEventDeliver, now))
	require.NotNil(t, order.DeliveredAt)
	require.NoError(t, order.Apply(valueobject.OrderEventRequestRevision, now))
	assert.Equal(t, 1, order.RevisionCount)
	require.NoError(t, order.Apply(valueobject.OrderEventDeliver, now))
	require.NoError(t, order.Apply(valueobject.OrderEventAccept, now))
	assert.NotNil(t, order.CompletedAt)

	assert.Error(t, order.Apply(valueobject.OrderEventCancel, now))
	assert.Error(t, order.ResolveDispute(valueobject.OrderStatusCancelled, now))
	assert.Equal(t, valueobject.OrderStatusCompleted, order.Status)
}

func capturedTx(t *testing.T) *Transaction {
	t.Helper()
	gig := testGig()
	order, err := NewOrder(uuid.New(), gig, gig.Packages[0].ID, nil, 10, now)
	require.NoError(t, err)

	tx := NewTransaction(order, now)
	require.NoError(t, tx.MarkAuthorized("auth_1", now))
	changed, err := tx.Capture(now)
	require.NoError(t, err)
	require.True(t, changed)
	return tx
}

func TestTransaction_CaptureIsIdempotent(t *testing.T) {
	tx := capturedTx(t)
	before := *tx

	changed, err := tx.Capture(now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, *tx)
}

func TestTransaction_ReleaseCreditsEarningsOnce(t *testing.T) {
	tx := capturedTx(t)

	credit, changed, err := tx.Release(now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(4500), credit)
	assert.Equal(t, int64(4500), tx.Available())

	credit, changed, err = tx.Release(now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, credit)
	assert.Equal(t, int64(4500), tx.ReleasedAmount)
}

func TestTransaction_PartialRefundReducesRelease(t *testing.T) {
	tx := capturedTx(t)

	require.NoError(t, tx.Refund(1000, now))
	assert.Equal(t, valueobject.TransactionStatusCaptured, tx.Status)

	err := tx.Refund(3501, now)
	assert.True(t, apperror.IsValidation(err))

	credit, _, err := tx.Release(now)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), credit)
}

func TestTransaction_FullRefund(t *testing.T) {
	tx := capturedTx(t)

	require.NoError(t, tx.Refund(tx.Refundable(), now))
	assert.Equal(t, valueobject.TransactionStatusRefunded, tx.Status)
	assert.Zero(t, tx.Available())

	_, _, err := tx.Release(now)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))
}

func TestTransaction_FullRefundOfAuthorizedVoids(t *testing.T) {
	gig := testGig()
	order, err := NewOrder(uuid.New(), gig, gig.Packages[0].ID, nil, 10, now)
	require.NoError(t, err)
	tx := NewTransaction(order, now)
	require.NoError(t, tx.MarkAuthorized("auth_2", now))

	assert.Error(t, tx.Refund(100, now))
	require.NoError(t, tx.Refund(tx.Amount, now))
	assert.Equal(t, valueobject.TransactionStatusRefunded, tx.Status)
}

func TestAllocate_OldestFirst(t *testing.T) {
	first := capturedTx(t)
	second := capturedTx(t)
	_, _, err := first.Release(now)
	require.NoError(t, err)
	_, _, err = second.Release(now.Add(time.Hour))
	require.NoError(t, err)

	allocations, err := Allocate([]*Transaction{first, second}, 6000, now)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, PayoutAllocation{TransactionID: first.ID, Amount: 4500}, allocations[0])
	assert.Equal(t, PayoutAllocation{TransactionID: second.ID, Amount: 1500}, allocations[1])
	assert.Zero(t, first.Available())
	assert.Equal(t, int64(3000), second.Available())

	_, err = Allocate([]*Transaction{first, second}, 3001, now)
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
	assert.Equal(t, int64(3000), second.Available())
}

func TestPayout_Lifecycle(t *testing.T) {
	p, err := NewPayout(uuid.New(), 100, "USD", []PayoutAllocation{{TransactionID: uuid.New(), Amount: 100}}, now)
	require.NoError(t, err)

	assert.Error(t, p.MarkPaid("ref", now))
	require.NoError(t, p.StartProcessing(now))
	require.NoError(t, p.MarkPaid("ref", now))
	assert.Equal(t, valueobject.PayoutStatusPaid, p.Status)
	assert.Error(t, p.MarkFailed("late", now))

	_, err = NewPayout(uuid.New(), 100, "USD", []PayoutAllocation{{TransactionID: uuid.New(), Amount: 50}}, now)
	assert.True(t, apperror.IsConsistency(err))
}

func TestDispute_Workflow(t *testing.T) {
	gig := testGig()
	order, err := NewOrder(uuid.New(), gig, gig.Packages[0].ID, nil, 10, now)
	require.NoError(t, err)

	_, err = NewDispute(order, uuid.New(), valueobject.DisputeReasonQuality, "", now)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	d, err := NewDispute(order, order.BuyerID, valueobject.DisputeReasonQuality, "не то", now)
	require.NoError(t, err)

	require.NoError(t, d.AddEvidence(order.BuyerID, "скриншот", now))
	require.NoError(t, d.AddEvidence(order.SellerID, "переписка", now))
	assert.ErrorIs(t, d.AddEvidence(uuid.New(), "чужой", now), apperror.ErrForbidden)
	assert.Len(t, d.BuyerEvidence, 1)
	assert.Len(t, d.SellerEvidence, 1)

	require.NoError(t, d.Escalate(now))
	assert.Error(t, d.Escalate(now))

	admin := uuid.New()
	require.NoError(t, d.Resolve(admin, valueobject.DisputeOutcomeSellerFavor, 0, "", now))
	assert.Error(t, d.Resolve(admin, valueobject.DisputeOutcomeBuyerFavor, 0, "", now))
	assert.Equal(t, valueobject.DisputeOutcomeSellerFavor, d.Outcome)
	assert.Error(t, d.AddEvidence(order.BuyerID, "поздно", now))

	require.NoError(t, d.Close(now))
	assert.Equal(t, valueobject.DisputeStatusClosed, d.Status)
	assert.Error(t, d.Close(now))
}

func TestDispute_RevisionRequestedClosesImmediately(t *testing.T) {
	gig := testGig()
	order, err := NewOrder(uuid.New(), gig, gig.Packages[0].ID, nil, 10, now)
	require.NoError(t, err)
	d, err := NewDispute(order, order.SellerID, valueobject.DisputeReasonCommunication, "", now)
	require.NoError(t, err)

	require.NoError(t, d.Resolve(uuid.New(), valueobject.DisputeOutcomeRevisionRequested, 0, "", now))
	assert.Equal(t, valueobject.DisputeStatusClosed, d.Status)
	assert.NotNil(t, d.ClosedAt)
}
