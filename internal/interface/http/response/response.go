package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Response - единый конверт API. Alerts заполняется, когда антифрод пометил операцию, но не остановил её.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Alerts  interface{} `json:"alerts,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable"`
}

// masked - коды, текст которых не уходит клиенту.
var masked = map[apperror.ErrorCode]bool{
	apperror.ErrCodeConsistencyViolation: true,
	apperror.ErrCodeDatabaseError:        true,
}

func Success(c *gin.Context, data interface{}) {
	WithAlerts(c, http.StatusOK, data, nil)
}

func WithAlerts(c *gin.Context, status int, data, alerts interface{}) {
	c.JSON(status, Response{Success: true, Data: data, Alerts: alerts})
}

func fail(c *gin.Context, status int, info ErrorInfo) {
	c.JSON(status, Response{Success: false, Error: &info})
}

// Error переводит AppError в ответ. Нетипизированные и служебные ошибки уходят в лог через c.Error,
// а клиент видит только INTERNAL_ERROR.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && !masked[appErr.Code] {
		fail(c, appErr.HTTPStatus, ErrorInfo{
			Code:      string(appErr.Code),
			Message:   appErr.Message,
			Details:   appErr.Details,
			Retryable: appErr.Retryable(),
		})
		return
	}

	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrorInfo{
		Code:    string(apperror.ErrCodeInternal),
		Message: "внутренняя ошибка сервера",
	})
}

func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrorInfo{Code: string(apperror.ErrCodeBadRequest), Message: message})
}

func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrorInfo{Code: string(apperror.ErrCodeUnauthorized), Message: message})
}
