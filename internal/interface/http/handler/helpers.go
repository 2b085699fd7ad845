package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/fingerprint"
	"github.com/ignatzorin/gig-escrow/internal/http/middleware"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow/internal/orchestrator"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// intent собирает участника и отпечаток устройства текущего запроса.
func intent(c *gin.Context) (orchestrator.Intent, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
		return orchestrator.Intent{}, false
	}
	in := orchestrator.Intent{Actor: actor}
	if fp, ok := fingerprint.FromGin(c); ok {
		in.Fingerprint = &fp
	}
	return in, true
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "параметр "+name+" должен быть валидным UUID")
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректные данные запроса"))
		return false
	}
	return true
}

// bindOptionalJSON допускает пустое тело: тогда dst остаётся со значениями по умолчанию.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst)
}
