package handlers

import (
	"github.com/gin-gonic/gin"

	"stockbook/internal/domain/catalogs/counterparty"
	"stockbook/internal/infrastructure/http/v1/dto"
)

// CounterpartyHandler handles HTTP requests for the counterparty catalog.
type CounterpartyHandler struct {
	*BaseHandler
	service *counterparty.Service
}

// NewCounterpartyHandler creates a new counterparty handler.
func NewCounterpartyHandler(base *BaseHandler, service *counterparty.Service) *CounterpartyHandler {
	return &CounterpartyHandler{BaseHandler: base, service: service}
}

// Create handles POST /catalogs/counterparties
func (h *CounterpartyHandler) Create(c *gin.Context) {
	var req dto.CreateCounterpartyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cp := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), cp); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, cp.ID)
}

// Get handles GET /catalogs/counterparties/:id
func (h *CounterpartyHandler) Get(c *gin.Context) {
	counterpartyID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	cp, err := h.service.GetByID(c.Request.Context(), counterpartyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, cp)
}

// Update handles PUT /catalogs/counterparties/:id
func (h *CounterpartyHandler) Update(c *gin.Context) {
	counterpartyID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateCounterpartyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cp, err := h.service.GetByID(c.Request.Context(), counterpartyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(cp)
	if err := h.service.Update(c.Request.Context(), cp); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, cp)
}

// SetActive handles PATCH /catalogs/counterparties/:id/active
func (h *CounterpartyHandler) SetActive(c *gin.Context) {
	counterpartyID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), counterpartyID, *req.Active); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /catalogs/counterparties
func (h *CounterpartyHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.service.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, result.Items))
}
