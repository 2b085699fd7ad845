package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/repository/common"
)

// querier - общее у *sqlx.DB и *sqlx.Tx.
type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// PostgresStore реализует repository.Store поверх sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Atomic открывает транзакцию; блокировки FOR UPDATE держатся до её завершения.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, r repository.Repositories) error) error {
	return common.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, repos{q: tx})
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Orders() repository.OrderRepository             { return repos{q: s.db}.Orders() }
func (s *PostgresStore) Gigs() repository.GigRepository                 { return repos{q: s.db}.Gigs() }
func (s *PostgresStore) Transactions() repository.TransactionRepository { return repos{q: s.db}.Transactions() }
func (s *PostgresStore) Payouts() repository.PayoutRepository           { return repos{q: s.db}.Payouts() }
func (s *PostgresStore) Disputes() repository.DisputeRepository         { return repos{q: s.db}.Disputes() }
func (s *PostgresStore) Balances() repository.BalanceRepository         { return repos{q: s.db}.Balances() }
func (s *PostgresStore) FraudAlerts() repository.FraudAlertRepository   { return repos{q: s.db}.FraudAlerts() }

type repos struct {
	q querier
}

func (r repos) Orders() repository.OrderRepository             { return &OrderRepository{q: r.q} }
func (r repos) Gigs() repository.GigRepository                 { return &GigRepository{q: r.q} }
func (r repos) Transactions() repository.TransactionRepository { return &TransactionRepository{q: r.q} }
func (r repos) Payouts() repository.PayoutRepository           { return &PayoutRepository{q: r.q} }
func (r repos) Disputes() repository.DisputeRepository         { return &DisputeRepository{q: r.q} }
func (r repos) Balances() repository.BalanceRepository         { return &BalanceRepository{q: r.q} }
func (r repos) FraudAlerts() repository.FraudAlertRepository   { return &FraudAlertRepository{q: r.q} }

func dbError(err error, message string) error {
	if _, ok := err.(*apperror.AppError); ok {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
}

var _ repository.Store = (*PostgresStore)(nil)
