package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestMulti_FailsOnlyWhenAllFail(t *testing.T) {
	ctx := context.Background()
	event := New(OrderCreated, uuid.New(), nil)

	failing := new(mockPublisher)
	failing.On("Publish", ctx, event).Return(errors.New("broker down"))
	rec := &Recorder{}

	assert.NoError(t, NewMulti(failing, rec).Publish(ctx, event))
	assert.Equal(t, []Type{OrderCreated}, rec.Types())
	failing.AssertExpectations(t)

	other := new(mockPublisher)
	other.On("Publish", ctx, event).Return(errors.New("timeout"))
	assert.Error(t, NewMulti(failing, other).Publish(ctx, event))

	assert.NoError(t, NewMulti().Publish(ctx, event))
}

func TestNew_SetsRecipients(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	e := New(DisputeOpened, uuid.New(), map[string]string{"reason": "quality"}, buyer, seller)

	assert.Equal(t, []uuid.UUID{buyer, seller}, e.Recipients)
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.OccurredAt.IsZero())
}
