package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow/internal/orchestrator"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

type EscrowHandler struct {
	orch     *orchestrator.Orchestrator
	currency string
}

func NewEscrowHandler(orch *orchestrator.Orchestrator, currency string) *EscrowHandler {
	return &EscrowHandler{orch: orch, currency: currency}
}

// Authorize обслуживает POST /api/orders/:id/payment/authorize.
func (h *EscrowHandler) Authorize(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.orch.AuthorizePayment(c.Request.Context(), in, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusCreated, dto.ToTransactionResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

// ByOrder обслуживает GET /api/orders/:id/payment.
func (h *EscrowHandler) ByOrder(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	tx, err := h.orch.TransactionByOrder(c.Request.Context(), in, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToTransactionResponse(tx))
}

func (h *EscrowHandler) Get(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	txID, ok := paramID(c, "id")
	if !ok {
		return
	}

	tx, err := h.orch.GetTransaction(c.Request.Context(), in, txID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToTransactionResponse(tx))
}

func (h *EscrowHandler) Capture(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	txID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.orch.Capture(c.Request.Context(), in, txID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ToTransactionResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

func (h *EscrowHandler) Release(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	txID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.orch.Release(c.Request.Context(), in, txID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ToTransactionResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

func (h *EscrowHandler) Refund(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	txID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.RefundRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.orch.Refund(c.Request.Context(), in, txID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ToTransactionResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

// CreatePayout обслуживает POST /api/payouts. Выплата всегда в валюте платформы.
func (h *EscrowHandler) CreatePayout(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}

	var req dto.CreatePayoutRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Currency != "" && req.Currency != h.currency {
		response.Error(c, apperror.New(apperror.ErrCodeValidation, "выплата возможна только в валюте платформы").
			WithDetail("currency", h.currency))
		return
	}

	res, err := h.orch.CreatePayout(c.Request.Context(), in, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusCreated, dto.ToPayoutResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

func (h *EscrowHandler) GetPayout(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	payoutID, ok := paramID(c, "id")
	if !ok {
		return
	}

	p, err := h.orch.GetPayout(c.Request.Context(), in, payoutID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToPayoutResponse(p))
}

// ProcessPayout - ручной запуск выплаты администратором.
func (h *EscrowHandler) ProcessPayout(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	payoutID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.orch.ProcessPayout(c.Request.Context(), in, payoutID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithAlerts(c, http.StatusOK, dto.ToPayoutResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

// Balance обслуживает GET /api/payouts/balance[?seller_id=].
func (h *EscrowHandler) Balance(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}

	sellerID := uuid.Nil
	if raw := c.Query("seller_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "seller_id должен быть валидным UUID")
			return
		}
		sellerID = id
	}

	b, err := h.orch.Balance(c.Request.Context(), in, sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToBalanceResponse(b))
}
