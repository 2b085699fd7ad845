package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
)

// EvaluateFraudRequest - сигналы для ручной проверки. Отпечаток берётся из текущего запроса,
// если use_request_fingerprint=true.
type EvaluateFraudRequest struct {
	Operation             string `json:"operation"`
	UserID                string `json:"user_id" binding:"required,uuid"`
	GigID                 string `json:"gig_id" binding:"omitempty,uuid"`
	Price                 *int64 `json:"price"`
	ReviewRating          *int   `json:"review_rating" binding:"omitempty,min=1,max=5"`
	UseRequestFingerprint bool   `json:"use_request_fingerprint"`
}

type FraudAlertResponse struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Operation   string         `json:"operation"`
	CreatedAt   time.Time      `json:"created_at"`
}

func ToFraudAlertResponses(alerts []*entity.FraudAlert) []FraudAlertResponse {
	result := make([]FraudAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		result = append(result, FraudAlertResponse{
			ID:          a.ID,
			UserID:      a.UserID,
			Type:        string(a.Type),
			Severity:    string(a.Severity),
			Description: a.Description,
			Metadata:    a.Metadata,
			Operation:   a.Operation,
			CreatedAt:   a.CreatedAt,
		})
	}
	return result
}
