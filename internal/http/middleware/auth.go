package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/auth"
	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/response"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		userID, role, err := tokens.ParseAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil || userID == uuid.Nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// ActorFrom возвращает участника, которого положил AuthMiddleware.
func ActorFrom(c *gin.Context) (entity.Actor, bool) {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return entity.Actor{}, false
	}
	id, ok := userID.(uuid.UUID)
	if !ok {
		return entity.Actor{}, false
	}
	role, _ := c.Get(ContextRoleKey)
	r, _ := role.(valueobject.Role)
	return entity.Actor{UserID: id, Role: r}, true
}
