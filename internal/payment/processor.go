// Package payment описывает внешний платёжный процессор.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDeclined - процессор окончательно отклонил операцию. Повтор не поможет.
	ErrDeclined    = errors.New("payment: declined")
	// ErrUnavailable - шлюз не обработал запрос. Повтор с тем же ключом безопасен.
	ErrUnavailable = errors.New("payment: processor unavailable")
)

// PayoutRequest - перевод продавцу. PayoutID служит ключом идемпотентности у процессора.
type PayoutRequest struct {
	PayoutID uuid.UUID
	SellerID uuid.UUID
	Amount   int64
	Currency string
}

// RefundRequest - возврат покупателю. Запрос с уже виденным IdempotencyKey
// процессор не проводит повторно.
type RefundRequest struct {
	AuthRef        string
	Amount         int64
	IdempotencyKey string
}

type AuthorizeRequest struct {
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	Amount   int64
	Currency string
}

// Processor - шлюз, который удерживает, списывает и возвращает деньги покупателя
// и переводит выплаты продавцу. Все вызовы должны уважать отмену ctx.
type Processor interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (string, error)
	Capture(ctx context.Context, authRef string, amount int64) error
	Refund(ctx context.Context, req RefundRequest) error
	TransferPayout(ctx context.Context, req PayoutRequest) (string, error)
}

// Sandbox - процессор для разработки и тестов. Поведение задаётся полями.
type Sandbox struct {
	// DeclineAbove отклоняет авторизации больше суммы; 0 отключает проверку.
	DeclineAbove int64
	// Latency задерживает каждый вызов; с маленьким таймаутом это имитирует зависание шлюза.
	Latency time.Duration
	// FailTransfers отклоняет все выплаты.
	FailTransfers bool

	mu        sync.Mutex
	calls     map[string]int
	seq       int
	transfers map[uuid.UUID]string
	refunds   map[string]RefundRequest
}

func NewSandbox() *Sandbox {
	return &Sandbox{calls: make(map[string]int)}
}

func (s *Sandbox) wait(ctx context.Context, op string) error {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
	s.mu.Unlock()

	if s.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Sandbox) ref(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s_sandbox_%d", prefix, s.seq)
}

func (s *Sandbox) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	if err := s.wait(ctx, "authorize"); err != nil {
		return "", err
	}
	if s.DeclineAbove > 0 && req.Amount > s.DeclineAbove {
		return "", fmt.Errorf("%w: amount %d over limit", ErrDeclined, req.Amount)
	}
	return s.ref("auth"), nil
}

func (s *Sandbox) Capture(ctx context.Context, authRef string, amount int64) error {
	if err := s.wait(ctx, "capture"); err != nil {
		return err
	}
	if authRef == "" {
		return fmt.Errorf("%w: empty authorization", ErrDeclined)
	}
	return nil
}

// Refund проводит возврат один раз на ключ идемпотентности.
func (s *Sandbox) Refund(ctx context.Context, req RefundRequest) error {
	if err := s.wait(ctx, "refund"); err != nil {
		return err
	}
	if req.AuthRef == "" {
		return fmt.Errorf("%w: empty authorization", ErrDeclined)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refunds == nil {
		s.refunds = make(map[string]RefundRequest)
	}
	if _, ok := s.refunds[req.IdempotencyKey]; !ok {
		s.refunds[req.IdempotencyKey] = req
	}
	return nil
}

// Refunded возвращает сумму, фактически возвращённую по авторизации.
func (s *Sandbox) Refunded(authRef string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, r := range s.refunds {
		if r.AuthRef == authRef {
			total += r.Amount
		}
	}
	return total
}

// TransferPayout повторно для той же выплаты возвращает прежнюю ссылку.
func (s *Sandbox) TransferPayout(ctx context.Context, req PayoutRequest) (string, error) {
	if err := s.wait(ctx, "transfer"); err != nil {
		return "", err
	}
	if s.FailTransfers {
		return "", fmt.Errorf("%w: transfers disabled", ErrDeclined)
	}

	s.mu.Lock()
	if ref, ok := s.transfers[req.PayoutID]; ok {
		s.mu.Unlock()
		return ref, nil
	}
	s.mu.Unlock()

	ref := s.ref("po")
	s.mu.Lock()
	if s.transfers == nil {
		s.transfers = make(map[uuid.UUID]string)
	}
	s.transfers[req.PayoutID] = ref
	s.mu.Unlock()
	return ref, nil
}

// Calls возвращает число вызовов операции.
func (s *Sandbox) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}
