package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest           ErrorCode = "BAD_REQUEST"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	ErrCodeDisputeAlreadyOpen   ErrorCode = "DISPUTE_ALREADY_OPEN"
	ErrCodeOrderNotDisputable   ErrorCode = "ORDER_NOT_DISPUTABLE"
	ErrCodeInvalidGig           ErrorCode = "INVALID_GIG"
	ErrCodeInvalidPackage       ErrorCode = "INVALID_PACKAGE"
	ErrCodeInsufficientBalance  ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodePaymentDeclined      ErrorCode = "PAYMENT_DECLINED"
	ErrCodeProcessorTimeout     ErrorCode = "PROCESSOR_TIMEOUT"
	ErrCodeProcessorError       ErrorCode = "PROCESSOR_ERROR"
	ErrCodeFraudBlocked         ErrorCode = "FRAUD_BLOCKED"
	ErrCodeConsistencyViolation ErrorCode = "CONSISTENCY_VIOLATION"
)

// AppError - типизированная ошибка, которую слой HTTP отдаёт клиенту как есть.
// Details содержит машиночитаемый контекст (например, текущий статус при конфликте).
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Details    map[string]any
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с копиями sentinel-ошибок.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail возвращает копию ошибки с дополнительным полем контекста.
func (e *AppError) WithDetail(key string, value any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Retryable сообщает клиенту, можно ли повторить запрос с тем же намерением.
// Вызовы процессора идемпотентны, поэтому сбой шлюза повторяем так же, как таймаут.
func (e *AppError) Retryable() bool {
	return e.Code == ErrCodeProcessorTimeout || e.Code == ErrCodeProcessorError
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// InvalidTransition формирует конфликт состояния с текущим статусом в деталях.
func InvalidTransition(entity, current, event string) *AppError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("%s: событие %q недопустимо в статусе %q", entity, event, current)).
		WithDetail("current_status", current).
		WithDetail("event", event)
}

// Consistency помечает нарушение инварианта леджера. Такие ошибки фатальны для транзакции.
func Consistency(format string, args ...any) *AppError {
	return New(ErrCodeConsistencyViolation, fmt.Sprintf(format, args...))
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeFraudBlocked:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidTransition, ErrCodeDisputeAlreadyOpen, ErrCodeOrderNotDisputable:
		return http.StatusConflict
	case ErrCodeInvalidGig, ErrCodeInvalidPackage, ErrCodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ErrCodePaymentDeclined:
		return http.StatusPaymentRequired
	case ErrCodeProcessorTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeProcessorError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или пустую строку для нетипизированных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsConsistency(err error) bool {
	return CodeOf(err) == ErrCodeConsistencyViolation
}

var (
	ErrOrderNotFound       = New(ErrCodeNotFound, "заказ не найден")
	ErrGigNotFound         = New(ErrCodeNotFound, "услуга не найдена")
	ErrTransactionNotFound = New(ErrCodeNotFound, "платёжная транзакция не найдена")
	ErrPayoutNotFound      = New(ErrCodeNotFound, "выплата не найдена")
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")

	ErrInvalidGig          = New(ErrCodeInvalidGig, "услуга неактивна или не опубликована")
	ErrInvalidPackage      = New(ErrCodeInvalidPackage, "пакет не принадлежит услуге")
	ErrInvalidExtra        = New(ErrCodeInvalidPackage, "дополнительная опция не принадлежит услуге")
	ErrDisputeAlreadyOpen  = New(ErrCodeDisputeAlreadyOpen, "по заказу уже открыт спор")
	ErrOrderNotDisputable  = New(ErrCodeOrderNotDisputable, "по завершённому или отменённому заказу нельзя открыть спор")
	ErrInsufficientBalance = New(ErrCodeInsufficientBalance, "недостаточно освобождённых средств для выплаты")
	ErrPaymentDeclined     = New(ErrCodePaymentDeclined, "платёжный процессор отклонил авторизацию")
	ErrProcessorTimeout    = New(ErrCodeProcessorTimeout, "платёжный процессор не ответил вовремя, запрос можно повторить")
	ErrProcessorFailed     = New(ErrCodeProcessorError, "платёжный процессор недоступен, запрос можно повторить")
	ErrEscrowNotCaptured   = New(ErrCodeConflict, "средства по заказу ещё не списаны в escrow")
	ErrFraudBlocked        = New(ErrCodeFraudBlocked, "операция заблокирована антифрод-политикой")
)
