package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
)

// FraudAlert - сигнал антифрода. Сохраняется для аудита и больше не меняется.
type FraudAlert struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Type        valueobject.FraudType
	Severity    valueobject.Severity
	Description string
	Metadata    map[string]any
	Operation   string
	CreatedAt   time.Time
}

func NewFraudAlert(userID uuid.UUID, typ valueobject.FraudType, severity valueobject.Severity, description string, metadata map[string]any) *FraudAlert {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &FraudAlert{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        typ,
		Severity:    severity,
		Description: description,
		Metadata:    metadata,
	}
}
