package handlers

import (
	"github.com/gin-gonic/gin"

	"stockbook/internal/domain/catalogs/variant"
	"stockbook/internal/infrastructure/http/v1/dto"
)

// VariantHandler handles HTTP requests for the variant catalog.
type VariantHandler struct {
	*BaseHandler
	service *variant.Service
}

// NewVariantHandler creates a new variant handler.
func NewVariantHandler(base *BaseHandler, service *variant.Service) *VariantHandler {
	return &VariantHandler{BaseHandler: base, service: service}
}

// Create handles POST /catalogs/variants
func (h *VariantHandler) Create(c *gin.Context) {
	var req dto.CreateVariantRequest
	if !h.BindJSON(c, &req) {
		return
	}

	v, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), v); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, v.ID)
}

// Get handles GET /catalogs/variants/:id
func (h *VariantHandler) Get(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	v, err := h.service.GetByID(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, v)
}

// GetBySKU handles GET /catalogs/variants/by-sku/:sku
func (h *VariantHandler) GetBySKU(c *gin.Context) {
	v, err := h.service.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, v)
}

// GetByProduct handles GET /catalogs/products/:id/variants
func (h *VariantHandler) GetByProduct(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	items, err := h.service.GetByProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": items})
}

// Update handles PUT /catalogs/variants/:id
func (h *VariantHandler) Update(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateVariantRequest
	if !h.BindJSON(c, &req) {
		return
	}

	v, err := h.service.GetByID(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(v)
	if err := h.service.Update(c.Request.Context(), v); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, v)
}

// SetActive handles PATCH /catalogs/variants/:id/active
func (h *VariantHandler) SetActive(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), variantID, *req.Active); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /catalogs/variants
func (h *VariantHandler) List(c *gin.Context) {
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
