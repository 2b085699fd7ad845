package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/usecase/order"
)

type mockObserver struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (o *mockObserver) WorkerRun(job string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runs == nil {
		o.runs = make(map[string][]error)
	}
	o.runs[job] = append(o.runs[job], err)
}

func (o *mockObserver) count(job string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs[job])
}

type mockPayouts struct{ mock.Mock }

func (m *mockPayouts) ProcessPendingPayouts(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

type mockAccepter struct{ mock.Mock }

func (m *mockAccepter) Execute(ctx context.Context, now time.Time) ([]*order.TransitionResult, error) {
	args := m.Called(ctx, now)
	res, _ := args.Get(0).([]*order.TransitionResult)
	return res, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishTransitions(ctx context.Context, results []*order.TransitionResult) {
	m.Called(ctx, results)
}

func TestRunOnce_RecordsResult(t *testing.T) {
	obs := &mockObserver{}
	r := NewRunner(obs)
	boom := errors.New("boom")

	assert.NoError(t, r.RunOnce(context.Background(), Job{Name: "ok", Run: func(context.Context) error { return nil }}))
	assert.ErrorIs(t, r.RunOnce(context.Background(), Job{Name: "fail", Run: func(context.Context) error { return boom }}), boom)

	assert.Equal(t, []error{nil}, obs.runs["ok"])
	assert.Equal(t, []error{boom}, obs.runs["fail"])
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	obs := &mockObserver{}
	r := NewRunner(obs)

	err := r.RunOnce(context.Background(), Job{Name: "panic", Run: func(context.Context) error { panic("boom") }})

	assert.Error(t, err)
	assert.Equal(t, 1, obs.count("panic"))
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	obs := &mockObserver{}
	payouts := &mockPayouts{}
	payouts.On("ProcessPendingPayouts", mock.Anything, payoutBatch).Return(0, nil)

	r := NewRunner(obs, PayoutJob(payouts, 10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	assert.Eventually(t, func() bool { return obs.count(JobPayouts) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	r.Wait()
}

func TestAutoAcceptJob_PublishesPartialBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accepted := []*order.TransitionResult{{}}
	interrupted := errors.New("interrupted")

	uc := &mockAccepter{}
	uc.On("Execute", mock.Anything, now).Return(accepted, interrupted)
	pub := &mockPublisher{}
	pub.On("PublishTransitions", mock.Anything, accepted).Return()

	job := AutoAcceptJob(uc, pub, time.Minute, func() time.Time { return now })
	err := job.Run(context.Background())

	require.ErrorIs(t, err, interrupted)
	pub.AssertExpectations(t)
}

func TestAutoAcceptJob_NothingToPublish(t *testing.T) {
	uc := &mockAccepter{}
	uc.On("Execute", mock.Anything, mock.Anything).Return(nil, nil)
	pub := &mockPublisher{}

	require.NoError(t, AutoAcceptJob(uc, pub, time.Minute, nil).Run(context.Background()))
	pub.AssertNotCalled(t, "PublishTransitions", mock.Anything, mock.Anything)
}
