package repository

import "context"

// Repositories - набор репозиториев одной единицы работы.
type Repositories interface {
	Orders() OrderRepository
	Gigs() GigRepository
	Transactions() TransactionRepository
	Payouts() PayoutRepository
	Disputes() DisputeRepository
	Balances() BalanceRepository
	FraudAlerts() FraudAlertRepository
}

// Store выдаёт репозитории вне транзакции для чтения и открывает единицы работы.
// Atomic фиксирует все изменения fn либо ни одного. Блокировки Lock* живут до конца fn.
type Store interface {
	Repositories
	Atomic(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
