// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockbook/internal/core/apperror"
	appctx "stockbook/internal/core/context"
	"stockbook/internal/core/id"
	"stockbook/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers the error on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler (single
// source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses a path parameter as an entity ID.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param+" format"))
		return id.Nil(), false
	}
	return parsed, true
}

// ParseIntQuery parses an integer query parameter with a default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// GetCaller extracts the authenticated caller subject from the request context.
func (h *BaseHandler) GetCaller(c *gin.Context) string {
	return appctx.GetCallerSubject(c.Request.Context())
}

// Created sends a 201 response with the new entity ID.
func (h *BaseHandler) Created(c *gin.Context, entityID id.ID) {
	c.JSON(http.StatusCreated, dto.NewIDResponse(entityID))
}

// OK sends a 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends a 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Success sends a success response without a payload.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}
