package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/domain/reports"
)

// ReportHandler handles HTTP requests for reports.
type ReportHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportHandler creates a new report handler.
func NewReportHandler(base *BaseHandler, service *reports.Service) *ReportHandler {
	return &ReportHandler{BaseHandler: base, service: service}
}

// Turnover handles GET /reports/turnover
func (h *ReportHandler) Turnover(c *gin.Context) {
	filter := reports.TurnoverFilter{}

	fromStr := c.Query("fromDate")
	toStr := c.Query("toDate")
	if fromStr == "" || toStr == "" {
		h.Error(c, apperror.NewValidation("fromDate and toDate are required"))
		return
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid fromDate format, expected YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid toDate format, expected YYYY-MM-DD"))
		return
	}
	filter.FromDate = from
	filter.ToDate = to

	if pStr := c.Query("productId"); pStr != "" {
		productID, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = &productID
	}
	if vStr := c.Query("variantId"); vStr != "" {
		variantID, err := id.Parse(vStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid variantId format"))
			return
		}
		filter.VariantID = &variantID
	}

	rows, err := h.service.GetTurnover(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": rows})
}

// Snapshot handles GET /reports/stock-snapshot
func (h *ReportHandler) Snapshot(c *gin.Context) {
	filter := reports.SnapshotFilter{
		ExcludeZero: c.Query("excludeZero") == "true",
		Limit:       h.ParseIntQuery(c, "limit", 100),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}

	if pStr := c.Query("productId"); pStr != "" {
		productID, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = &productID
	}

	rows, err := h.service.GetStockSnapshot(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": rows})
}

// ReconcileReturns handles GET /reports/returns-reconciliation
// Cross-checks the returned-stock counters against the return documents.
func (h *ReportHandler) ReconcileReturns(c *gin.Context) {
	var productID *id.ID
	if pStr := c.Query("productId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		productID = &parsed
	}

	rows, err := h.service.ReconcileReturns(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": rows})
}
