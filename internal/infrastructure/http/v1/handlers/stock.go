package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/domain/ledger"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock ledger handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// GetStock handles GET /ledger/stock/:variantId
func (h *StockHandler) GetStock(c *gin.Context) {
	variantID, ok := h.ParseID(c, "variantId")
	if !ok {
		return
	}

	quantity, err := h.service.GetStock(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"variantId": variantID.String(),
		"quantity":  quantity,
	})
}

// GetMovements handles GET /ledger/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	ctx := c.Request.Context()

	variantIDStr := c.Query("variantId")
	if variantIDStr == "" {
		h.Error(c, apperror.NewValidation("variantId is required"))
		return
	}
	variantID, err := id.Parse(variantIDStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid variantId format"))
		return
	}

	filter := ledger.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if dirStr := c.Query("direction"); dirStr != "" {
		direction := entity.Direction(dirStr)
		if direction != entity.DirectionReceipt && direction != entity.DirectionExpense {
			h.Error(c, apperror.NewValidation("direction must be receipt or expense"))
			return
		}
		filter.Direction = &direction
	}

	if fromStr := c.Query("fromDate"); fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid fromDate format, expected YYYY-MM-DD"))
			return
		}
		filter.FromDate = &from
	}
	if toStr := c.Query("toDate"); toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid toDate format, expected YYYY-MM-DD"))
			return
		}
		filter.ToDate = &to
	}

	movements, err := h.service.GetMovementHistory(ctx, variantID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": movements})
}

// GetReturnedAggregate handles GET /ledger/returned/:productId
func (h *StockHandler) GetReturnedAggregate(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	quantity, err := h.service.GetReturnedAggregate(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"productId": productID.String(),
		"quantity":  quantity,
	})
}
