package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/fraud"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow/internal/orchestrator"
)

type FraudHandler struct {
	orch *orchestrator.Orchestrator
}

func NewFraudHandler(orch *orchestrator.Orchestrator) *FraudHandler {
	return &FraudHandler{orch: orch}
}

// Evaluate обслуживает POST /api/fraud/evaluate.
func (h *FraudHandler) Evaluate(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}

	var req dto.EvaluateFraudRequest
	if !bindJSON(c, &req) {
		return
	}

	signals := fraud.Signals{
		Operation:    req.Operation,
		UserID:       uuid.MustParse(req.UserID),
		Price:        req.Price,
		ReviewRating: req.ReviewRating,
	}
	if req.GigID != "" {
		signals.GigID = uuid.MustParse(req.GigID)
	}
	if req.UseRequestFingerprint {
		signals.Fingerprint = in.Fingerprint
	}

	alerts, err := h.orch.EvaluateFraud(c.Request.Context(), in, signals)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToFraudAlertResponses(alerts))
}
