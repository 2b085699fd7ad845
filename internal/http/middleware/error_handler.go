package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/logger"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// ErrorHandler логирует ошибки, которые обработчики положили в c.Errors,
// и отвечает 500, если ответ ещё не отправлен.
func ErrorHandler() gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"code":   apperror.CodeOf(err.Err),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("request error")

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    apperror.ErrCodeInternal,
				"message": "внутренняя ошибка сервера",
			},
		})
	}
}
