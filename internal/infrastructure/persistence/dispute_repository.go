package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/repository/common"
)

const uqActiveDispute = "uq_disputes_active_order"

type disputeRow struct {
	ID                 uuid.UUID     `db:"id"`
	OrderID            uuid.UUID     `db:"order_id"`
	BuyerID            uuid.UUID     `db:"buyer_id"`
	SellerID           uuid.UUID     `db:"seller_id"`
	GigID              uuid.UUID     `db:"gig_id"`
	RaisedBy           uuid.UUID     `db:"raised_by"`
	Reason             string        `db:"reason"`
	Description        string        `db:"description"`
	BuyerEvidence      []byte        `db:"buyer_evidence"`
	SellerEvidence     []byte        `db:"seller_evidence"`
	Status             string        `db:"status"`
	Outcome            string        `db:"outcome"`
	RefundAmount       int64         `db:"refund_amount"`
	AdminID            uuid.NullUUID `db:"admin_id"`
	AdminNotes         string        `db:"admin_notes"`
	MediationStartedAt *time.Time    `db:"mediation_started_at"`
	ResolvedAt         *time.Time    `db:"resolved_at"`
	ClosedAt           *time.Time    `db:"closed_at"`
	CreatedAt          time.Time     `db:"created_at"`
}

const disputeColumns = `id, order_id, buyer_id, seller_id, gig_id, raised_by, reason, description,
	buyer_evidence, seller_evidence, status, outcome, refund_amount, admin_id, admin_notes,
	mediation_started_at, resolved_at, closed_at, created_at`

func (r disputeRow) toEntity() (*entity.Dispute, error) {
	d := &entity.Dispute{
		ID:                 r.ID,
		OrderID:            r.OrderID,
		BuyerID:            r.BuyerID,
		SellerID:           r.SellerID,
		GigID:              r.GigID,
		RaisedBy:           r.RaisedBy,
		Reason:             valueobject.DisputeReason(r.Reason),
		Description:        r.Description,
		Status:             valueobject.DisputeStatus(r.Status),
		Outcome:            valueobject.DisputeOutcome(r.Outcome),
		RefundAmount:       r.RefundAmount,
		AdminNotes:         r.AdminNotes,
		MediationStartedAt: r.MediationStartedAt,
		ResolvedAt:         r.ResolvedAt,
		ClosedAt:           r.ClosedAt,
		CreatedAt:          r.CreatedAt,
	}
	if r.AdminID.Valid {
		admin := r.AdminID.UUID
		d.AdminID = &admin
	}
	if err := json.Unmarshal(r.BuyerEvidence, &d.BuyerEvidence); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждены доказательства покупателя")
	}
	if err := json.Unmarshal(r.SellerEvidence, &d.SellerEvidence); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждены доказательства продавца")
	}
	return d, nil
}

func evidenceJSON(entries []entity.Evidence) ([]byte, error) {
	if entries == nil {
		entries = []entity.Evidence{}
	}
	return json.Marshal(entries)
}

type DisputeRepository struct {
	q querier
}

func (r *DisputeRepository) Create(ctx context.Context, d *entity.Dispute) error {
	buyerEvidence, err := evidenceJSON(d.BuyerEvidence)
	if err != nil {
		return err
	}
	sellerEvidence, err := evidenceJSON(d.SellerEvidence)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO disputes (` + disputeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = r.q.ExecContext(ctx, query,
		d.ID,
		d.OrderID,
		d.BuyerID,
		d.SellerID,
		d.GigID,
		d.RaisedBy,
		string(d.Reason),
		d.Description,
		buyerEvidence,
		sellerEvidence,
		string(d.Status),
		string(d.Outcome),
		d.RefundAmount,
		nullUUID(d.AdminID),
		d.AdminNotes,
		d.MediationStartedAt,
		d.ResolvedAt,
		d.ClosedAt,
		d.CreatedAt,
	)
	if common.IsUniqueViolation(err, uqActiveDispute) {
		return apperror.ErrDisputeAlreadyOpen
	}
	if err != nil {
		return dbError(err, "не удалось создать спор")
	}
	return nil
}

func (r *DisputeRepository) Update(ctx context.Context, d *entity.Dispute) error {
	buyerEvidence, err := evidenceJSON(d.BuyerEvidence)
	if err != nil {
		return err
	}
	sellerEvidence, err := evidenceJSON(d.SellerEvidence)
	if err != nil {
		return err
	}

	query := `
		UPDATE disputes
		SET buyer_evidence = $2, seller_evidence = $3, status = $4, outcome = $5, refund_amount = $6,
		    admin_id = $7, admin_notes = $8, mediation_started_at = $9, resolved_at = $10, closed_at = $11
		WHERE id = $1
	`
	err = common.ExecOne(ctx, r.q, apperror.ErrDisputeNotFound, query,
		d.ID,
		buyerEvidence,
		sellerEvidence,
		string(d.Status),
		string(d.Outcome),
		d.RefundAmount,
		nullUUID(d.AdminID),
		d.AdminNotes,
		d.MediationStartedAt,
		d.ResolvedAt,
		d.ClosedAt,
	)
	if err != nil {
		return dbError(err, "не удалось обновить спор")
	}
	return nil
}

func (r *DisputeRepository) get(ctx context.Context, query string, id uuid.UUID) (*entity.Dispute, error) {
	var row disputeRow
	if err := common.Get(ctx, r.q, &row, apperror.ErrDisputeNotFound, query, id); err != nil {
		return nil, dbError(err, "не удалось получить спор")
	}
	return row.toEntity()
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.get(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
}

func (r *DisputeRepository) LockByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.get(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
}

func (r *DisputeRepository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	return r.get(ctx, `
		SELECT `+disputeColumns+`
		FROM disputes
		WHERE order_id = $1 AND status IN ('open', 'mediation')
	`, orderID)
}

func (r *DisputeRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.Dispute, error) {
	var rows []disputeRow
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE order_id = $1 ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, orderID); err != nil {
		return nil, dbError(err, "не удалось получить споры заказа")
	}

	disputes := make([]*entity.Dispute, 0, len(rows))
	for _, row := range rows {
		d, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil || *id == uuid.Nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

type FraudAlertRepository struct {
	q querier
}

func (r *FraudAlertRepository) Create(ctx context.Context, alert *entity.FraudAlert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать метаданные сигнала")
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO fraud_alerts (id, user_id, type, severity, description, metadata, operation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		alert.ID,
		nullUUID(&alert.UserID),
		string(alert.Type),
		string(alert.Severity),
		alert.Description,
		metadata,
		alert.Operation,
		alert.CreatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось сохранить сигнал антифрода")
	}
	return nil
}

func (r *FraudAlertRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.FraudAlert, error) {
	var rows []struct {
		ID          uuid.UUID     `db:"id"`
		UserID      uuid.NullUUID `db:"user_id"`
		Type        string        `db:"type"`
		Severity    string        `db:"severity"`
		Description string        `db:"description"`
		Metadata    []byte        `db:"metadata"`
		Operation   string        `db:"operation"`
		CreatedAt   time.Time     `db:"created_at"`
	}
	query := `
		SELECT id, user_id, type, severity, description, metadata, operation, created_at
		FROM fraud_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, userID, limit); err != nil {
		return nil, dbError(err, "не удалось получить сигналы антифрода")
	}

	alerts := make([]*entity.FraudAlert, 0, len(rows))
	for _, row := range rows {
		alert := &entity.FraudAlert{
			ID:          row.ID,
			UserID:      row.UserID.UUID,
			Type:        valueobject.FraudType(row.Type),
			Severity:    valueobject.Severity(row.Severity),
			Description: row.Description,
			Operation:   row.Operation,
			CreatedAt:   row.CreatedAt,
		}
		if err := json.Unmarshal(row.Metadata, &alert.Metadata); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждены метаданные сигнала")
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
