package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

func copyOrder(o *entity.Order) *entity.Order {
	cp := *o
	cp.ExtraIDs = append([]uuid.UUID(nil), o.ExtraIDs...)
	return &cp
}

func copyGig(g *entity.Gig) *entity.Gig {
	cp := *g
	cp.Packages = append([]entity.GigPackage(nil), g.Packages...)
	cp.Extras = append([]entity.GigExtra(nil), g.Extras...)
	return &cp
}

func copyTx(t *entity.Transaction) *entity.Transaction {
	cp := *t
	return &cp
}

func copyPayout(p *entity.Payout) *entity.Payout {
	cp := *p
	cp.Allocations = append([]entity.PayoutAllocation(nil), p.Allocations...)
	return &cp
}

func copyDispute(d *entity.Dispute) *entity.Dispute {
	cp := *d
	cp.BuyerEvidence = append([]entity.Evidence(nil), d.BuyerEvidence...)
	cp.SellerEvidence = append([]entity.Evidence(nil), d.SellerEvidence...)
	return &cp
}

type orderRepo struct{ r *repos }

func (o orderRepo) Create(_ context.Context, order *entity.Order) error {
	defer o.r.guard()()
	st := o.r.st()
	if _, exists := st.orders[order.ID]; exists {
		return apperror.New(apperror.ErrCodeConflict, "заказ уже существует")
	}
	st.orders[order.ID] = copyOrder(order)
	st.touch(order.ID)
	return nil
}

func (o orderRepo) Update(_ context.Context, order *entity.Order) error {
	defer o.r.guard()()
	st := o.r.st()
	if _, exists := st.orders[order.ID]; !exists {
		return apperror.ErrOrderNotFound
	}
	st.orders[order.ID] = copyOrder(order)
	return nil
}

func (o orderRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Order, error) {
	defer o.r.guard()()
	order, ok := o.r.st().orders[id]
	if !ok {
		return nil, apperror.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (o orderRepo) LockByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return o.FindByID(ctx, id)
}

func (o orderRepo) ListDeliveredBefore(_ context.Context, before time.Time, limit int) ([]*entity.Order, error) {
	defer o.r.guard()()
	var result []*entity.Order
	for _, order := range o.r.st().orders {
		if order.Status == valueobject.OrderStatusDelivered && order.DeliveredAt != nil && order.DeliveredAt.Before(before) {
			result = append(result, copyOrder(order))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DeliveredAt.Before(*result[j].DeliveredAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (o orderRepo) AppendHistory(_ context.Context, entry *entity.OrderHistory) error {
	defer o.r.guard()()
	st := o.r.st()
	cp := *entry
	st.history[entry.OrderID] = append(st.history[entry.OrderID], &cp)
	return nil
}

func (o orderRepo) History(_ context.Context, orderID uuid.UUID) ([]*entity.OrderHistory, error) {
	defer o.r.guard()()
	entries := o.r.st().history[orderID]
	result := make([]*entity.OrderHistory, 0, len(entries))
	for _, e := range entries {
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

type gigRepo struct{ r *repos }

func (g gigRepo) Create(_ context.Context, gig *entity.Gig) error {
	defer g.r.guard()()
	g.r.st().gigs[gig.ID] = copyGig(gig)
	return nil
}

func (g gigRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Gig, error) {
	defer g.r.guard()()
	gig, ok := g.r.st().gigs[id]
	if !ok {
		return nil, apperror.ErrGigNotFound
	}
	return copyGig(gig), nil
}

type txRepo struct{ r *repos }

// checkOpen повторяет частичный уникальный индекс: одна нетерминальная транзакция на заказ.
func (t txRepo) checkOpen(st *state, tx *entity.Transaction) error {
	if tx.Status.IsTerminal() {
		return nil
	}
	for _, other := range st.txs {
		if other.ID != tx.ID && other.OrderID == tx.OrderID && !other.Status.IsTerminal() {
			return apperror.New(apperror.ErrCodeConflict, "по заказу уже есть незавершённая транзакция")
		}
	}
	return nil
}

func (t txRepo) Create(_ context.Context, tx *entity.Transaction) error {
	defer t.r.guard()()
	st := t.r.st()
	if err := t.checkOpen(st, tx); err != nil {
		return err
	}
	st.txs[tx.ID] = copyTx(tx)
	st.touch(tx.ID)
	return nil
}

func (t txRepo) Update(_ context.Context, tx *entity.Transaction) error {
	defer t.r.guard()()
	st := t.r.st()
	if _, ok := st.txs[tx.ID]; !ok {
		return apperror.ErrTransactionNotFound
	}
	if err := t.checkOpen(st, tx); err != nil {
		return err
	}
	st.txs[tx.ID] = copyTx(tx)
	return nil
}

func (t txRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Transaction, error) {
	defer t.r.guard()()
	tx, ok := t.r.st().txs[id]
	if !ok {
		return nil, apperror.ErrTransactionNotFound
	}
	return copyTx(tx), nil
}

func (t txRepo) LockByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	return t.FindByID(ctx, id)
}

func (t txRepo) FindOpenByOrder(_ context.Context, orderID uuid.UUID) (*entity.Transaction, error) {
	defer t.r.guard()()
	for _, tx := range t.r.st().txs {
		if tx.OrderID == orderID && !tx.Status.IsTerminal() {
			return copyTx(tx), nil
		}
	}
	return nil, apperror.ErrTransactionNotFound
}

func (t txRepo) FindLatestByOrder(_ context.Context, orderID uuid.UUID) (*entity.Transaction, error) {
	defer t.r.guard()()
	st := t.r.st()
	var latest *entity.Transaction
	for _, tx := range st.txs {
		if tx.OrderID != orderID {
			continue
		}
		if latest == nil || st.seq[tx.ID] > st.seq[latest.ID] {
			latest = tx
		}
	}
	if latest == nil {
		return nil, apperror.ErrTransactionNotFound
	}
	return copyTx(latest), nil
}

func (t txRepo) ListReleasedBySeller(_ context.Context, sellerID uuid.UUID) ([]*entity.Transaction, error) {
	defer t.r.guard()()
	st := t.r.st()
	var result []*entity.Transaction
	for _, tx := range st.txs {
		if tx.SellerID == sellerID && tx.Status == valueobject.TransactionStatusReleased {
			result = append(result, copyTx(tx))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].EscrowReleasedAt, result[j].EscrowReleasedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return st.seq[result[i].ID] < st.seq[result[j].ID]
	})
	return result, nil
}

type payoutRepo struct{ r *repos }

func (p payoutRepo) Create(_ context.Context, payout *entity.Payout) error {
	defer p.r.guard()()
	st := p.r.st()
	st.payouts[payout.ID] = copyPayout(payout)
	st.touch(payout.ID)
	return nil
}

func (p payoutRepo) Update(_ context.Context, payout *entity.Payout) error {
	defer p.r.guard()()
	st := p.r.st()
	if _, ok := st.payouts[payout.ID]; !ok {
		return apperror.ErrPayoutNotFound
	}
	st.payouts[payout.ID] = copyPayout(payout)
	return nil
}

func (p payoutRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Payout, error) {
	defer p.r.guard()()
	payout, ok := p.r.st().payouts[id]
	if !ok {
		return nil, apperror.ErrPayoutNotFound
	}
	return copyPayout(payout), nil
}

func (p payoutRepo) LockByID(ctx context.Context, id uuid.UUID) (*entity.Payout, error) {
	return p.FindByID(ctx, id)
}

func (p payoutRepo) ListPending(_ context.Context, limit int) ([]*entity.Payout, error) {
	defer p.r.guard()()
	st := p.r.st()
	var result []*entity.Payout
	for _, payout := range st.payouts {
		if payout.Status == valueobject.PayoutStatusPending {
			result = append(result, copyPayout(payout))
		}
	}
	sort.Slice(result, func(i, j int) bool { return st.seq[result[i].ID] < st.seq[result[j].ID] })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type balanceRepo struct{ r *repos }

// Lock в памяти только отмечает версию: единица работы и так выполняется одна.
func (b balanceRepo) Lock(_ context.Context, sellerID uuid.UUID) error {
	defer b.r.guard()()
	b.r.st().balances[sellerID]++
	return nil
}

type disputeRepo struct{ r *repos }

func (d disputeRepo) Create(_ context.Context, dispute *entity.Dispute) error {
	defer d.r.guard()()
	st := d.r.st()
	for _, other := range st.disputes {
		if other.OrderID == dispute.OrderID && other.Status.IsActive() {
			return apperror.ErrDisputeAlreadyOpen
		}
	}
	st.disputes[dispute.ID] = copyDispute(dispute)
	st.touch(dispute.ID)
	return nil
}

func (d disputeRepo) Update(_ context.Context, dispute *entity.Dispute) error {
	defer d.r.guard()()
	st := d.r.st()
	if _, ok := st.disputes[dispute.ID]; !ok {
		return apperror.ErrDisputeNotFound
	}
	st.disputes[dispute.ID] = copyDispute(dispute)
	return nil
}

func (d disputeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Dispute, error) {
	defer d.r.guard()()
	dispute, ok := d.r.st().disputes[id]
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return copyDispute(dispute), nil
}

func (d disputeRepo) LockByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return d.FindByID(ctx, id)
}

func (d disputeRepo) FindActiveByOrder(_ context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	defer d.r.guard()()
	for _, dispute := range d.r.st().disputes {
		if dispute.OrderID == orderID && dispute.Status.IsActive() {
			return copyDispute(dispute), nil
		}
	}
	return nil, apperror.ErrDisputeNotFound
}

func (d disputeRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*entity.Dispute, error) {
	defer d.r.guard()()
	st := d.r.st()
	var result []*entity.Dispute
	for _, dispute := range st.disputes {
		if dispute.OrderID == orderID {
			result = append(result, copyDispute(dispute))
		}
	}
	sort.Slice(result, func(i, j int) bool { return st.seq[result[i].ID] < st.seq[result[j].ID] })
	return result, nil
}

type alertRepo struct{ r *repos }

func (a alertRepo) Create(_ context.Context, alert *entity.FraudAlert) error {
	defer a.r.guard()()
	st := a.r.st()
	cp := *alert
	st.alerts = append(st.alerts, &cp)
	return nil
}

func (a alertRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*entity.FraudAlert, error) {
	defer a.r.guard()()
	var result []*entity.FraudAlert
	alerts := a.r.st().alerts
	for i := len(alerts) - 1; i >= 0; i-- {
		if alerts[i].UserID != userID {
			continue
		}
		cp := *alerts[i]
		result = append(result, &cp)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
