// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"stockbook/internal/core/id"
	"stockbook/internal/domain"
)

// --- List ---

// ListRequest contains common list query parameters.
type ListRequest struct {
	Search     string `form:"search"`
	ActiveOnly bool   `form:"activeOnly"`
	OrderBy    string `form:"orderBy"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the request to a domain filter with defaults.
func (r *ListRequest) ToFilter() domain.ListFilter {
	filter := domain.DefaultListFilter()
	filter.Search = r.Search
	filter.ActiveOnly = r.ActiveOnly
	if r.OrderBy != "" {
		filter.OrderBy = r.OrderBy
	}
	if r.Limit > 0 {
		filter.Limit = r.Limit
	}
	filter.Offset = r.Offset
	return filter
}

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse builds a ListResponse from a domain result.
func NewListResponse[T any](result domain.ListResult[T], items any) ListResponse {
	return ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates an ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Activation ---

// SetActiveRequest toggles catalog entry availability.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
