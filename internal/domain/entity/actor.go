package entity

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
)

// Actor - кто выполняет операцию. Фоновые задачи действуют от имени системы.
type Actor struct {
	UserID uuid.UUID
	Role   valueobject.Role
}

// SystemActor - администратор без идентификатора пользователя.
var SystemActor = Actor{Role: valueobject.RoleAdmin}

func (a Actor) IsAdmin() bool {
	return a.Role == valueobject.RoleAdmin
}

func (a Actor) IsSystem() bool {
	return a.IsAdmin() && a.UserID == uuid.Nil
}

// Ref возвращает идентификатор для журналов; у системы его нет.
func (a Actor) Ref() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
