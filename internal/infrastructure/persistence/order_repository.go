package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/repository/common"
)

type orderRow struct {
	ID                 uuid.UUID      `db:"id"`
	BuyerID            uuid.UUID      `db:"buyer_id"`
	SellerID           uuid.UUID      `db:"seller_id"`
	GigID              uuid.UUID      `db:"gig_id"`
	PackageID          uuid.UUID      `db:"package_id"`
	PackageTier        string         `db:"package_tier"`
	ExtraIDs           pq.StringArray `db:"extra_ids"`
	TotalPrice         int64          `db:"total_price"`
	PlatformFeePercent int            `db:"platform_fee_percent"`
	PlatformFee        int64          `db:"platform_fee"`
	SellerEarnings     int64          `db:"seller_earnings"`
	Currency           string         `db:"currency"`
	Status             string         `db:"status"`
	RevisionCount      int            `db:"revision_count"`
	DeliveredAt        *time.Time     `db:"delivered_at"`
	CompletedAt        *time.Time     `db:"completed_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

const orderColumns = `id, buyer_id, seller_id, gig_id, package_id, package_tier, extra_ids, total_price,
	platform_fee_percent, platform_fee, seller_earnings, currency, status, revision_count,
	delivered_at, completed_at, created_at, updated_at`

func (r orderRow) toEntity() (*entity.Order, error) {
	extras := make([]uuid.UUID, 0, len(r.ExtraIDs))
	for _, raw := range r.ExtraIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "некорректный идентификатор опции")
		}
		extras = append(extras, id)
	}
	status, err := valueobject.NewOrderStatus(r.Status)
	if err != nil {
		return nil, err
	}
	return &entity.Order{
		ID:                 r.ID,
		BuyerID:            r.BuyerID,
		SellerID:           r.SellerID,
		GigID:              r.GigID,
		PackageID:          r.PackageID,
		PackageTier:        r.PackageTier,
		ExtraIDs:           extras,
		TotalPrice:         r.TotalPrice,
		PlatformFeePercent: r.PlatformFeePercent,
		PlatformFee:        r.PlatformFee,
		SellerEarnings:     r.SellerEarnings,
		Currency:           r.Currency,
		Status:             status,
		RevisionCount:      r.RevisionCount,
		DeliveredAt:        r.DeliveredAt,
		CompletedAt:        r.CompletedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

type OrderRepository struct {
	q querier
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.q.ExecContext(ctx, query,
		order.ID,
		order.BuyerID,
		order.SellerID,
		order.GigID,
		order.PackageID,
		order.PackageTier,
		pq.Array(uuidStrings(order.ExtraIDs)),
		order.TotalPrice,
		order.PlatformFeePercent,
		order.PlatformFee,
		order.SellerEarnings,
		order.Currency,
		string(order.Status),
		order.RevisionCount,
		order.DeliveredAt,
		order.CompletedAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать заказ")
	}
	return nil
}

// Update меняет только изменяемые поля: цена и комиссия фиксируются при создании.
func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	query := `
		UPDATE orders
		SET status = $2, revision_count = $3, delivered_at = $4, completed_at = $5, updated_at = $6
		WHERE id = $1
	`
	err := common.ExecOne(ctx, r.q, apperror.ErrOrderNotFound, query,
		order.ID,
		string(order.Status),
		order.RevisionCount,
		order.DeliveredAt,
		order.CompletedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось обновить заказ")
	}
	return nil
}

func (r *OrderRepository) find(ctx context.Context, query string, id uuid.UUID) (*entity.Order, error) {
	var row orderRow
	if err := common.Get(ctx, r.q, &row, apperror.ErrOrderNotFound, query, id); err != nil {
		return nil, dbError(err, "не удалось получить заказ")
	}
	return row.toEntity()
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return r.find(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) LockByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return r.find(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) ListDeliveredBefore(ctx context.Context, before time.Time, limit int) ([]*entity.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'delivered' AND delivered_at < $1
		ORDER BY delivered_at
		LIMIT $2
	`
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, before, limit); err != nil {
		return nil, dbError(err, "не удалось получить сданные заказы")
	}

	orders := make([]*entity.Order, 0, len(rows))
	for _, row := range rows {
		order, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

type historyRow struct {
	ID         uuid.UUID     `db:"id"`
	OrderID    uuid.UUID     `db:"order_id"`
	ActorID    uuid.NullUUID `db:"actor_id"`
	Event      string        `db:"event"`
	FromStatus string        `db:"from_status"`
	ToStatus   string        `db:"to_status"`
	CreatedAt  time.Time     `db:"created_at"`
}

func (r *OrderRepository) AppendHistory(ctx context.Context, entry *entity.OrderHistory) error {
	actor := uuid.NullUUID{}
	if entry.ActorID != nil {
		actor = uuid.NullUUID{UUID: *entry.ActorID, Valid: true}
	}
	query := `
		INSERT INTO order_history (id, order_id, actor_id, event, from_status, to_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		entry.ID,
		entry.OrderID,
		actor,
		string(entry.Event),
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.CreatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось записать историю заказа")
	}
	return nil
}

func (r *OrderRepository) History(ctx context.Context, orderID uuid.UUID) ([]*entity.OrderHistory, error) {
	query := `
		SELECT id, order_id, actor_id, event, from_status, to_status, created_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	var rows []historyRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, orderID); err != nil {
		return nil, dbError(err, "не удалось получить историю заказа")
	}

	entries := make([]*entity.OrderHistory, 0, len(rows))
	for _, row := range rows {
		entry := &entity.OrderHistory{
			ID:         row.ID,
			OrderID:    row.OrderID,
			Event:      valueobject.OrderEvent(row.Event),
			FromStatus: valueobject.OrderStatus(row.FromStatus),
			ToStatus:   valueobject.OrderStatus(row.ToStatus),
			CreatedAt:  row.CreatedAt,
		}
		if row.ActorID.Valid {
			actor := row.ActorID.UUID
			entry.ActorID = &actor
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type GigRepository struct {
	q querier
}

type gigRow struct {
	ID        uuid.UUID `db:"id"`
	SellerID  uuid.UUID `db:"seller_id"`
	Title     string    `db:"title"`
	Active    bool      `db:"active"`
	Published bool      `db:"published"`
	Currency  string    `db:"currency"`
}

func (r *GigRepository) Create(ctx context.Context, gig *entity.Gig) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO gigs (id, seller_id, title, active, published, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, gig.ID, gig.SellerID, gig.Title, gig.Active, gig.Published, gig.Currency)
	if err != nil {
		return dbError(err, "не удалось создать услугу")
	}

	for _, p := range gig.Packages {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO gig_packages (id, gig_id, tier, price) VALUES ($1, $2, $3, $4)`,
			p.ID, gig.ID, p.Tier, p.Price,
		); err != nil {
			return dbError(err, "не удалось создать пакет услуги")
		}
	}
	for _, e := range gig.Extras {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO gig_extras (id, gig_id, title, price) VALUES ($1, $2, $3, $4)`,
			e.ID, gig.ID, e.Title, e.Price,
		); err != nil {
			return dbError(err, "не удалось создать опцию услуги")
		}
	}
	return nil
}

func (r *GigRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Gig, error) {
	var row gigRow
	err := common.Get(ctx, r.q, &row, apperror.ErrGigNotFound,
		`SELECT id, seller_id, title, active, published, currency FROM gigs WHERE id = $1`, id)
	if err != nil {
		return nil, dbError(err, "не удалось получить услугу")
	}

	gig := &entity.Gig{
		ID:        row.ID,
		SellerID:  row.SellerID,
		Title:     row.Title,
		Active:    row.Active,
		Published: row.Published,
		Currency:  row.Currency,
	}
	var packages []struct {
		ID    uuid.UUID `db:"id"`
		GigID uuid.UUID `db:"gig_id"`
		Tier  string    `db:"tier"`
		Price int64     `db:"price"`
	}
	if err := sqlx.SelectContext(ctx, r.q, &packages,
		`SELECT id, gig_id, tier, price FROM gig_packages WHERE gig_id = $1 ORDER BY price`, id); err != nil {
		return nil, dbError(err, "не удалось получить пакеты услуги")
	}
	for _, p := range packages {
		gig.Packages = append(gig.Packages, entity.GigPackage{ID: p.ID, GigID: p.GigID, Tier: p.Tier, Price: p.Price})
	}

	var extras []struct {
		ID    uuid.UUID `db:"id"`
		GigID uuid.UUID `db:"gig_id"`
		Title string    `db:"title"`
		Price int64     `db:"price"`
	}
	if err := sqlx.SelectContext(ctx, r.q, &extras,
		`SELECT id, gig_id, title, price FROM gig_extras WHERE gig_id = $1 ORDER BY price`, id); err != nil {
		return nil, dbError(err, "не удалось получить опции услуги")
	}
	for _, e := range extras {
		gig.Extras = append(gig.Extras, entity.GigExtra{ID: e.ID, GigID: e.GigID, Title: e.Title, Price: e.Price})
	}
	return gig, nil
}
