package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/repository/common"
)

const uqOpenTransaction = "uq_transactions_open_order"

var errOpenTransactionExists = apperror.New(apperror.ErrCodeConflict, "по заказу уже есть незавершённая транзакция")

type transactionRow struct {
	ID                   uuid.UUID  `db:"id"`
	OrderID              uuid.UUID  `db:"order_id"`
	BuyerID              uuid.UUID  `db:"buyer_id"`
	SellerID             uuid.UUID  `db:"seller_id"`
	Amount               int64      `db:"amount"`
	PlatformFee          int64      `db:"platform_fee"`
	SellerEarnings       int64      `db:"seller_earnings"`
	Currency             string     `db:"currency"`
	ProcessorAuthRef     string     `db:"processor_auth_ref"`
	ProcessorTransferRef string     `db:"processor_transfer_ref"`
	Status               string     `db:"status"`
	RefundedAmount       int64      `db:"refunded_amount"`
	ReleasedAmount       int64      `db:"released_amount"`
	EarmarkedAmount      int64      `db:"earmarked_amount"`
	FailureReason        string     `db:"failure_reason"`
	EscrowReleasedAt     *time.Time `db:"escrow_released_at"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

const transactionColumns = `id, order_id, buyer_id, seller_id, amount, platform_fee, seller_earnings, currency,
	processor_auth_ref, processor_transfer_ref, status, refunded_amount, released_amount, earmarked_amount,
	failure_reason, escrow_released_at, created_at, updated_at`

func (r transactionRow) toEntity() *entity.Transaction {
	return &entity.Transaction{
		ID:                   r.ID,
		OrderID:              r.OrderID,
		BuyerID:              r.BuyerID,
		SellerID:             r.SellerID,
		Amount:               r.Amount,
		PlatformFee:          r.PlatformFee,
		SellerEarnings:       r.SellerEarnings,
		Currency:             r.Currency,
		ProcessorAuthRef:     r.ProcessorAuthRef,
		ProcessorTransferRef: r.ProcessorTransferRef,
		Status:               valueobject.TransactionStatus(r.Status),
		RefundedAmount:       r.RefundedAmount,
		ReleasedAmount:       r.ReleasedAmount,
		EarmarkedAmount:      r.EarmarkedAmount,
		FailureReason:        r.FailureReason,
		EscrowReleasedAt:     r.EscrowReleasedAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type TransactionRepository struct {
	q querier
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.q.ExecContext(ctx, query,
		tx.ID,
		tx.OrderID,
		tx.BuyerID,
		tx.SellerID,
		tx.Amount,
		tx.PlatformFee,
		tx.SellerEarnings,
		tx.Currency,
		tx.ProcessorAuthRef,
		tx.ProcessorTransferRef,
		string(tx.Status),
		tx.RefundedAmount,
		tx.ReleasedAmount,
		tx.EarmarkedAmount,
		tx.FailureReason,
		tx.EscrowReleasedAt,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if common.IsUniqueViolation(err, uqOpenTransaction) {
		return errOpenTransactionExists
	}
	if err != nil {
		return dbError(err, "не удалось создать транзакцию")
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx *entity.Transaction) error {
	query := `
		UPDATE transactions
		SET processor_auth_ref = $2, processor_transfer_ref = $3, status = $4, refunded_amount = $5,
		    released_amount = $6, earmarked_amount = $7, failure_reason = $8, escrow_released_at = $9,
		    updated_at = $10
		WHERE id = $1
	`
	err := common.ExecOne(ctx, r.q, apperror.ErrTransactionNotFound, query,
		tx.ID,
		tx.ProcessorAuthRef,
		tx.ProcessorTransferRef,
		string(tx.Status),
		tx.RefundedAmount,
		tx.ReleasedAmount,
		tx.EarmarkedAmount,
		tx.FailureReason,
		tx.EscrowReleasedAt,
		tx.UpdatedAt,
	)
	if common.IsUniqueViolation(err, uqOpenTransaction) {
		return errOpenTransactionExists
	}
	if err != nil {
		return dbError(err, "не удалось обновить транзакцию")
	}
	return nil
}

func (r *TransactionRepository) get(ctx context.Context, query string, arg interface{}) (*entity.Transaction, error) {
	var row transactionRow
	if err := common.Get(ctx, r.q, &row, apperror.ErrTransactionNotFound, query, arg); err != nil {
		return nil, dbError(err, "не удалось получить транзакцию")
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *TransactionRepository) LockByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransactionRepository) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Transaction, error) {
	return r.get(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE order_id = $1 AND status IN ('pending', 'authorized', 'captured')
		FOR UPDATE
	`, orderID)
}

func (r *TransactionRepository) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Transaction, error) {
	return r.get(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID)
}

// ListReleasedBySeller блокирует строки, из которых будут резервироваться выплаты.
func (r *TransactionRepository) ListReleasedBySeller(ctx context.Context, sellerID uuid.UUID) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE seller_id = $1 AND status = 'released'
		ORDER BY escrow_released_at, created_at
		FOR UPDATE
	`
	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, sellerID); err != nil {
		return nil, dbError(err, "не удалось получить освобождённые транзакции")
	}

	txs := make([]*entity.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.toEntity())
	}
	return txs, nil
}

type payoutRow struct {
	ID            uuid.UUID  `db:"id"`
	SellerID      uuid.UUID  `db:"seller_id"`
	Amount        int64      `db:"amount"`
	Currency      string     `db:"currency"`
	Status        string     `db:"status"`
	ProcessorRef  string     `db:"processor_ref"`
	FailureReason string     `db:"failure_reason"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	PaidAt        *time.Time `db:"paid_at"`
}

const payoutColumns = `id, seller_id, amount, currency, status, processor_ref, failure_reason, created_at, updated_at, paid_at`

type PayoutRepository struct {
	q querier
}

func (r *PayoutRepository) Create(ctx context.Context, payout *entity.Payout) error {
	query := `
		INSERT INTO payouts (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		payout.ID,
		payout.SellerID,
		payout.Amount,
		payout.Currency,
		string(payout.Status),
		payout.ProcessorRef,
		payout.FailureReason,
		payout.CreatedAt,
		payout.UpdatedAt,
		payout.PaidAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать выплату")
	}

	for _, a := range payout.Allocations {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO payout_allocations (payout_id, transaction_id, amount) VALUES ($1, $2, $3)`,
			payout.ID, a.TransactionID, a.Amount,
		); err != nil {
			return dbError(err, "не удалось сохранить распределение выплаты")
		}
	}
	return nil
}

func (r *PayoutRepository) Update(ctx context.Context, payout *entity.Payout) error {
	query := `
		UPDATE payouts
		SET status = $2, processor_ref = $3, failure_reason = $4, updated_at = $5, paid_at = $6
		WHERE id = $1
	`
	err := common.ExecOne(ctx, r.q, apperror.ErrPayoutNotFound, query,
		payout.ID,
		string(payout.Status),
		payout.ProcessorRef,
		payout.FailureReason,
		payout.UpdatedAt,
		payout.PaidAt,
	)
	if err != nil {
		return dbError(err, "не удалось обновить выплату")
	}
	return nil
}

func (r *PayoutRepository) withAllocations(ctx context.Context, row payoutRow) (*entity.Payout, error) {
	var allocations []struct {
		TransactionID uuid.UUID `db:"transaction_id"`
		Amount        int64     `db:"amount"`
	}
	if err := sqlx.SelectContext(ctx, r.q, &allocations,
		`SELECT transaction_id, amount FROM payout_allocations WHERE payout_id = $1`, row.ID); err != nil {
		return nil, dbError(err, "не удалось получить распределение выплаты")
	}

	payout := &entity.Payout{
		ID:            row.ID,
		SellerID:      row.SellerID,
		Amount:        row.Amount,
		Currency:      row.Currency,
		Status:        valueobject.PayoutStatus(row.Status),
		ProcessorRef:  row.ProcessorRef,
		FailureReason: row.FailureReason,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		PaidAt:        row.PaidAt,
	}
	for _, a := range allocations {
		payout.Allocations = append(payout.Allocations, entity.PayoutAllocation{TransactionID: a.TransactionID, Amount: a.Amount})
	}
	return payout, nil
}

func (r *PayoutRepository) get(ctx context.Context, query string, id uuid.UUID) (*entity.Payout, error) {
	var row payoutRow
	if err := common.Get(ctx, r.q, &row, apperror.ErrPayoutNotFound, query, id); err != nil {
		return nil, dbError(err, "не удалось получить выплату")
	}
	return r.withAllocations(ctx, row)
}

func (r *PayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payout, error) {
	return r.get(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
}

func (r *PayoutRepository) LockByID(ctx context.Context, id uuid.UUID) (*entity.Payout, error) {
	return r.get(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
}

func (r *PayoutRepository) ListPending(ctx context.Context, limit int) ([]*entity.Payout, error) {
	var rows []payoutRow
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE status = 'pending' ORDER BY created_at LIMIT $1`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, limit); err != nil {
		return nil, dbError(err, "не удалось получить ожидающие выплаты")
	}

	payouts := make([]*entity.Payout, 0, len(rows))
	for _, row := range rows {
		payout, err := r.withAllocations(ctx, row)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, payout)
	}
	return payouts, nil
}

type BalanceRepository struct {
	q querier
}

// Lock: upsert держит блокировку строки продавца до конца транзакции.
func (r *BalanceRepository) Lock(ctx context.Context, sellerID uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO seller_balances (seller_id, version)
		VALUES ($1, 1)
		ON CONFLICT (seller_id) DO UPDATE SET version = seller_balances.version + 1, updated_at = NOW()
	`, sellerID)
	if err != nil {
		return dbError(err, "не удалось заблокировать баланс продавца")
	}
	return nil
}
