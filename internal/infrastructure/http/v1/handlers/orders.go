package handlers

import (
	"github.com/gin-gonic/gin"

	"stockbook/internal/domain/orders"
	"stockbook/internal/infrastructure/http/v1/dto"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	*BaseHandler
	service *orders.Service
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(base *BaseHandler, service *orders.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service}
}

// Create handles POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	counterpartyID, lines, err := req.ToInputs()
	if err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.service.Create(c.Request.Context(), orders.Kind(req.Kind), counterpartyID, lines)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, order.ID)
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// Cancel handles POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.Cancel(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	var req dto.OrderListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, result.Items))
}
