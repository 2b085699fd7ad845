// Package memstore - хранилище в памяти для разработки и тестов.
// Все единицы работы выполняются последовательно, при ошибке состояние откатывается к снимку.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
)

type state struct {
	orders   map[uuid.UUID]*entity.Order
	history  map[uuid.UUID][]*entity.OrderHistory
	gigs     map[uuid.UUID]*entity.Gig
	txs      map[uuid.UUID]*entity.Transaction
	payouts  map[uuid.UUID]*entity.Payout
	disputes map[uuid.UUID]*entity.Dispute
	balances map[uuid.UUID]int64
	alerts   []*entity.FraudAlert
	// seq - порядок вставки, разрешает равные created_at.
	seq     map[uuid.UUID]int64
	nextSeq int64
}

func newState() *state {
	return &state{
		orders:   make(map[uuid.UUID]*entity.Order),
		history:  make(map[uuid.UUID][]*entity.OrderHistory),
		gigs:     make(map[uuid.UUID]*entity.Gig),
		txs:      make(map[uuid.UUID]*entity.Transaction),
		payouts:  make(map[uuid.UUID]*entity.Payout),
		disputes: make(map[uuid.UUID]*entity.Dispute),
		balances: make(map[uuid.UUID]int64),
		seq:      make(map[uuid.UUID]int64),
	}
}

// snapshot копирует только карты: сохранённые объекты никогда не меняются на месте.
func (s *state) snapshot() *state {
	cp := &state{
		orders:   cloneMap(s.orders),
		history:  make(map[uuid.UUID][]*entity.OrderHistory, len(s.history)),
		gigs:     cloneMap(s.gigs),
		txs:      cloneMap(s.txs),
		payouts:  cloneMap(s.payouts),
		disputes: cloneMap(s.disputes),
		balances: cloneMap(s.balances),
		alerts:   append([]*entity.FraudAlert(nil), s.alerts...),
		seq:      cloneMap(s.seq),
		nextSeq:  s.nextSeq,
	}
	for k, v := range s.history {
		cp.history[k] = append([]*entity.OrderHistory(nil), v...)
	}
	return cp
}

func (s *state) touch(id uuid.UUID) {
	if _, ok := s.seq[id]; ok {
		return
	}
	s.nextSeq++
	s.seq[id] = s.nextSeq
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	cp := make(map[K]V, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

// Atomic выполняет fn под глобальной блокировкой.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, r repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.state.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.state = saved
		}
	}()

	if err := fn(ctx, &repos{store: s}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) outside() *repos {
	return &repos{store: s, locking: true}
}

func (s *Store) Orders() repository.OrderRepository             { return orderRepo{s.outside()} }
func (s *Store) Gigs() repository.GigRepository                 { return gigRepo{s.outside()} }
func (s *Store) Transactions() repository.TransactionRepository { return txRepo{s.outside()} }
func (s *Store) Payouts() repository.PayoutRepository           { return payoutRepo{s.outside()} }
func (s *Store) Disputes() repository.DisputeRepository         { return disputeRepo{s.outside()} }
func (s *Store) Balances() repository.BalanceRepository         { return balanceRepo{s.outside()} }
func (s *Store) FraudAlerts() repository.FraudAlertRepository   { return alertRepo{s.outside()} }

// repos - репозитории внутри единицы работы (locking=false) или вне её.
type repos struct {
	store   *Store
	locking bool
}

// guard берёт блокировку хранилища для вызовов вне Atomic.
func (r *repos) guard() func() {
	if !r.locking {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *repos) st() *state { return r.store.state }

func (r *repos) Orders() repository.OrderRepository             { return orderRepo{r} }
func (r *repos) Gigs() repository.GigRepository                 { return gigRepo{r} }
func (r *repos) Transactions() repository.TransactionRepository { return txRepo{r} }
func (r *repos) Payouts() repository.PayoutRepository           { return payoutRepo{r} }
func (r *repos) Disputes() repository.DisputeRepository         { return disputeRepo{r} }
func (r *repos) Balances() repository.BalanceRepository         { return balanceRepo{r} }
func (r *repos) FraudAlerts() repository.FraudAlertRepository   { return alertRepo{r} }

var (
	_ repository.Store        = (*Store)(nil)
	_ repository.Repositories = (*repos)(nil)
)
