package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow/internal/orchestrator"
	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow/internal/usecase/order"
)

type OrderHandler struct {
	orch *orchestrator.Orchestrator
}

func NewOrderHandler(orch *orchestrator.Orchestrator) *OrderHandler {
	return &OrderHandler{orch: orch}
}

// CreateOrder обслуживает POST /api/orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	extras, err := req.ExtraUUIDs()
	if err != nil {
		response.Error(c, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error()))
		return
	}

	res, err := h.orch.CreateOrder(c.Request.Context(), in, order.CreateOrderInput{
		GigID:     uuid.MustParse(req.GigID),
		PackageID: uuid.MustParse(req.PackageID),
		ExtraIDs:  extras,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.WithAlerts(c, http.StatusCreated, dto.ToOrderResponse(res.Value), dto.ToFraudAlertResponses(res.Alerts))
}

// Transition обслуживает POST /api/orders/:id/transitions.
func (h *OrderHandler) Transition(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.orch.TransitionOrder(c.Request.Context(), in, orderID, valueobject.OrderEvent(req.Event))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.WithAlerts(c, http.StatusOK, dto.TransitionResponse{
		Order:       dto.ToOrderResponse(res.Value.Order),
		From:        string(res.Value.From),
		Event:       string(res.Value.Event),
		Transaction: dto.ToTransactionResponse(res.Value.Transaction),
	}, dto.ToFraudAlertResponses(res.Alerts))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	o, err := h.orch.GetOrder(c.Request.Context(), in, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

func (h *OrderHandler) History(c *gin.Context) {
	in, ok := intent(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	entries, err := h.orch.OrderHistory(c.Request.Context(), in, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderHistoryResponses(entries))
}
