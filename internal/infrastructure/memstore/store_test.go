package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

func testOrder() *entity.Order {
	now := time.Now()
	return &entity.Order{
		ID:             uuid.New(),
		BuyerID:        uuid.New(),
		SellerID:       uuid.New(),
		TotalPrice:     1000,
		PlatformFee:    100,
		SellerEarnings: 900,
		Status:         valueobject.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	order := testOrder()
	require.NoError(t, store.Orders().Create(ctx, order))

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(ctx context.Context, r repository.Repositories) error {
		locked, err := r.Orders().LockByID(ctx, order.ID)
		require.NoError(t, err)
		locked.Status = valueobject.OrderStatusCancelled
		require.NoError(t, r.Orders().Update(ctx, locked))
		require.NoError(t, r.Transactions().Create(ctx, entity.NewTransaction(locked, time.Now())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPending, got.Status)

	_, err = store.Transactions().FindLatestByOrder(ctx, order.ID)
	assert.ErrorIs(t, err, apperror.ErrTransactionNotFound)
}

func TestFindByID_ReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()
	order := testOrder()
	require.NoError(t, store.Orders().Create(ctx, order))

	got, err := store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	got.Status = valueobject.OrderStatusCompleted

	again, err := store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPending, again.Status)
}

func TestDisputes_OneActivePerOrder(t *testing.T) {
	store := New()
	ctx := context.Background()
	order := testOrder()

	first, err := entity.NewDispute(order, order.BuyerID, valueobject.DisputeReasonQuality, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Disputes().Create(ctx, first))

	second, err := entity.NewDispute(order, order.SellerID, valueobject.DisputeReasonOther, "", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, store.Disputes().Create(ctx, second), apperror.ErrDisputeAlreadyOpen)

	require.NoError(t, first.Resolve(uuid.New(), valueobject.DisputeOutcomeNoAction, 0, "", time.Now()))
	require.NoError(t, store.Disputes().Update(ctx, first))
	assert.NoError(t, store.Disputes().Create(ctx, second))
}

func TestTransactions_OneOpenPerOrder(t *testing.T) {
	store := New()
	ctx := context.Background()
	order := testOrder()

	first := entity.NewTransaction(order, time.Now())
	require.NoError(t, store.Transactions().Create(ctx, first))

	err := store.Transactions().Create(ctx, entity.NewTransaction(order, time.Now()))
	assert.Equal(t, apperror.ErrCodeConflict, apperror.CodeOf(err))

	require.NoError(t, first.MarkFailed("declined", time.Now()))
	require.NoError(t, store.Transactions().Update(ctx, first))

	retry := entity.NewTransaction(order, time.Now())
	require.NoError(t, store.Transactions().Create(ctx, retry))

	latest, err := store.Transactions().FindLatestByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, retry.ID, latest.ID)
}
