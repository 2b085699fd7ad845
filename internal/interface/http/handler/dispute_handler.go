package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gig-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow/internal/orchestrator"
	"github.com/ignatzorin/gig-escrow/internal/usecase/dispute"
)

type DisputeHandler struct {
	orch *orchestrator.Orchestrator
}

func NewDisputeHandler(orch *orchestrator.Orchestrator) *DisputeHandler {
	return &DisputeHandler{orch: orch}
}

// Open обслуживает POST /api/orders/:id/disputes.
func (h *DisputeHandler) Open(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.OpenDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.orch.OpenDispute(c.Request.Context(), in, dispute.OpenDisputeInput{
		OrderID:     orderID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusCreated, dto.ToDisputeResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

// ByOrder обслуживает GET /api/orders/:id/disputes.
func (h *DisputeHandler) ByOrder(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	list, err := h.orch.DisputesByOrder(c.Request.Context(), in, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponses(list))
}

func (h *DisputeHandler) Get(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	disputeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	d, err := h.orch.GetDispute(c.Request.Context(), in, disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) SubmitEvidence(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	disputeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.EvidenceRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.orch.SubmitEvidence(c.Request.Context(), in, disputeID, req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ToDisputeResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

func (h *DisputeHandler) Escalate(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	disputeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.orch.EscalateDispute(c.Request.Context(), in, disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ToDisputeResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

func (h *DisputeHandler) Resolve(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	disputeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.orch.ResolveDispute(c.Request.Context(), in, dispute.ResolveDisputeInput{
		DisputeID:             disputeID,
		Outcome:               req.Outcome,
		RefundAmount:          req.RefundAmount,
		Notes:                 req.Notes,
		CancelOnPartialRefund: req.CancelOnPartialRefund,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ResolveDisputeResponse{
		Dispute:     dto.ToDisputeResponse(res.Value.Dispute),
		Order:       dto.ToOrderResponse(res.Value.Order),
		Transaction: dto.ToTransactionResponse(res.Value.Transaction),
	}, dto.ToFraudAlertResponses(res.Alerts))
}

func (h *DisputeHandler) Close(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	disputeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.orch.CloseDispute(c.Request.Context(), in, disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ToDisputeResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}
