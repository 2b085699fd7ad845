package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Transaction - escrow-запись по заказу. Деньги двигаются только через её методы.
type Transaction struct {
	ID                   uuid.UUID
	OrderID              uuid.UUID
	BuyerID              uuid.UUID
	SellerID             uuid.UUID
	Amount               int64
	PlatformFee          int64
	SellerEarnings       int64
	Currency             string
	ProcessorAuthRef     string
	ProcessorTransferRef string
	Status               valueobject.TransactionStatus
	RefundedAmount       int64
	ReleasedAmount       int64
	EarmarkedAmount      int64
	FailureReason        string
	EscrowReleasedAt     *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewTransaction(order *Order, now time.Time) *Transaction {
	return &Transaction{
		ID:             uuid.New(),
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		Amount:         order.TotalPrice,
		PlatformFee:    order.PlatformFee,
		SellerEarnings: order.SellerEarnings,
		Currency:       order.Currency,
		Status:         valueobject.TransactionStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (t *Transaction) invalid(event string) error {
	return apperror.InvalidTransition("transaction", string(t.Status), event)
}

func (t *Transaction) MarkAuthorized(authRef string, now time.Time) error {
	if t.Status != valueobject.TransactionStatusPending {
		return t.invalid("authorize")
	}
	t.ProcessorAuthRef = authRef
	t.Status = valueobject.TransactionStatusAuthorized
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) MarkFailed(reason string, now time.Time) error {
	if t.Status != valueobject.TransactionStatusPending && t.Status != valueobject.TransactionStatusAuthorized {
		return t.invalid("fail")
	}
	t.FailureReason = reason
	t.Status = valueobject.TransactionStatusFailed
	t.UpdatedAt = now
	return nil
}

// IsCaptured - деньги уже удержаны (или уже ушли продавцу).
func (t *Transaction) IsCaptured() bool {
	return t.Status == valueobject.TransactionStatusCaptured || t.Status == valueobject.TransactionStatusReleased
}

// Capture переводит authorized -> captured. Повторный вызов ничего не меняет и возвращает false.
func (t *Transaction) Capture(now time.Time) (bool, error) {
	if t.IsCaptured() {
		return false, nil
	}
	if t.Status != valueobject.TransactionStatusAuthorized {
		return false, t.invalid("capture")
	}
	t.Status = valueobject.TransactionStatusCaptured
	t.UpdatedAt = now
	return true, nil
}

// Release зачисляет продавцу заработок за вычетом частичных возвратов.
// Возвращает зачисленную сумму; для уже освобождённой транзакции 0 и false.
func (t *Transaction) Release(now time.Time) (int64, bool, error) {
	if t.Status == valueobject.TransactionStatusReleased {
		return 0, false, nil
	}
	if t.Status != valueobject.TransactionStatusCaptured {
		return 0, false, t.invalid("release")
	}

	credit := t.SellerEarnings - t.RefundedAmount
	if credit < 0 {
		return 0, false, apperror.Consistency("transaction %s: refunded %d exceeds earnings %d", t.ID, t.RefundedAmount, t.SellerEarnings)
	}

	t.ReleasedAmount = credit
	t.Status = valueobject.TransactionStatusReleased
	t.EscrowReleasedAt = &now
	t.UpdatedAt = now
	return credit, true, nil
}

// Refundable - сколько ещё можно вернуть покупателю.
func (t *Transaction) Refundable() int64 {
	return t.Amount - t.RefundedAmount
}

// IsFullRefund сообщает, закроет ли возврат этой суммы транзакцию целиком.
func (t *Transaction) IsFullRefund(amount int64) bool {
	return amount == t.Refundable()
}

// Refund возвращает покупателю сумму. Полный возврат закрывает транзакцию,
// частичный идёт из заработка продавца и оставляет её в captured.
func (t *Transaction) Refund(amount int64, now time.Time) error {
	if amount <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "сумма возврата должна быть положительной")
	}

	if t.IsFullRefund(amount) {
		if t.Status != valueobject.TransactionStatusCaptured && t.Status != valueobject.TransactionStatusAuthorized {
			return t.invalid("refund")
		}
		t.RefundedAmount = t.Amount
		t.Status = valueobject.TransactionStatusRefunded
		t.UpdatedAt = now
		return nil
	}

	if err := t.CheckPartialRefund(amount); err != nil {
		return err
	}
	t.RefundedAmount += amount
	t.UpdatedAt = now
	return nil
}

// CheckPartialRefund проверяет частичный возврат, ничего не меняя:
// только из списанных средств и не больше оставшегося заработка продавца.
func (t *Transaction) CheckPartialRefund(amount int64) error {
	if amount <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "сумма возврата должна быть положительной")
	}
	if t.Status != valueobject.TransactionStatusCaptured {
		return t.invalid("refund_partial")
	}
	if amount > t.SellerEarnings-t.RefundedAmount {
		return apperror.New(apperror.ErrCodeValidation, "частичный возврат превышает заработок продавца").
			WithDetail("max_amount", t.SellerEarnings-t.RefundedAmount)
	}
	return nil
}

// Available - освобождённые средства, ещё не зарезервированные выплатами.
func (t *Transaction) Available() int64 {
	if t.Status != valueobject.TransactionStatusReleased {
		return 0
	}
	return t.ReleasedAmount - t.EarmarkedAmount
}

func (t *Transaction) Earmark(amount int64, now time.Time) error {
	if amount <= 0 || amount > t.Available() {
		return apperror.Consistency("transaction %s: earmark %d exceeds available %d", t.ID, amount, t.Available())
	}
	t.EarmarkedAmount += amount
	t.UpdatedAt = now
	return nil
}

// ReleaseEarmark возвращает резерв неудавшейся выплаты.
func (t *Transaction) ReleaseEarmark(amount int64, now time.Time) error {
	if amount <= 0 || amount > t.EarmarkedAmount {
		return apperror.Consistency("transaction %s: release earmark %d exceeds earmarked %d", t.ID, amount, t.EarmarkedAmount)
	}
	t.EarmarkedAmount -= amount
	t.UpdatedAt = now
	return nil
}
