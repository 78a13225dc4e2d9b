package handlers

import (
	"github.com/gin-gonic/gin"

	"stockbook/internal/domain/catalogs/product"
	"stockbook/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, service: service}
}

// Create handles POST /catalogs/products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, p.ID)
}

// Get handles GET /catalogs/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// GetByCode handles GET /catalogs/products/by-code/:code
func (h *ProductHandler) GetByCode(c *gin.Context) {
	p, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// Update handles PUT /catalogs/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(p)
	if err := h.service.Update(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// SetActive handles PATCH /catalogs/products/:id/active
func (h *ProductHandler) SetActive(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), productID, *req.Active); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /catalogs/products
func (h *ProductHandler) List(c *gin.Context) {
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
