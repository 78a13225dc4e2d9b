package handlers

import (
	"github.com/gin-gonic/gin"

	"stockbook/internal/domain/returns"
	"stockbook/internal/infrastructure/http/v1/dto"
)

// ReturnHandler handles HTTP requests for returns.
type ReturnHandler struct {
	*BaseHandler
	service *returns.Service
}

// NewReturnHandler creates a new return handler.
func NewReturnHandler(base *BaseHandler, service *returns.Service) *ReturnHandler {
	return &ReturnHandler{BaseHandler: base, service: service}
}

// Create handles POST /returns
func (h *ReturnHandler) Create(c *gin.Context) {
	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, ret.ID)
}

// Get handles GET /returns/:id
func (h *ReturnHandler) Get(c *gin.Context) {
	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ret, err := h.service.GetByID(c.Request.Context(), returnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, ret)
}

// Toggle handles POST /returns/:id/toggle
// Active returns are annulled, annulled ones reinstated.
func (h *ReturnHandler) Toggle(c *gin.Context) {
	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ret, err := h.service.Toggle(c.Request.Context(), returnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, ret)
}

// ListByOrder handles GET /orders/:id/returns
func (h *ReturnHandler) ListByOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	items, err := h.service.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": items})
}

// List handles GET /returns
func (h *ReturnHandler) List(c *gin.Context) {
	var req dto.ReturnListRequest
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
