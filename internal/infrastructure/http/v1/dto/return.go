package dto

import (
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/returns"
)

// CreateReturnRequest for creating returns against sale orders.
type CreateReturnRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"required"`
	Refund    bool   `json:"refund"`
}

// ToInput converts the request to a service input.
func (r *CreateReturnRequest) ToInput() (returns.CreateInput, error) {
	orderID, err := id.Parse(r.OrderID)
	if err != nil {
		return returns.CreateInput{}, err
	}
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return returns.CreateInput{}, err
	}

	return returns.CreateInput{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  types.Quantity(r.Quantity),
		Reason:    r.Reason,
		Refund:    r.Refund,
	}, nil
}

// ReturnListRequest contains return list query parameters.
type ReturnListRequest struct {
	OrderID  string     `form:"orderId"`
	Status   string     `form:"status" binding:"omitempty,oneof=active annulled"`
	FromDate *time.Time `form:"fromDate" time_format:"2006-01-02"`
	ToDate   *time.Time `form:"toDate" time_format:"2006-01-02"`
	OrderBy  string     `form:"orderBy"`
	Limit    int        `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset   int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the request to a domain filter.
func (r *ReturnListRequest) ToFilter() (returns.ListFilter, error) {
	filter := returns.DefaultListFilter()

	if r.OrderID != "" {
		orderID, err := id.Parse(r.OrderID)
		if err != nil {
			return filter, err
		}
		filter.OrderID = &orderID
	}
	if r.Status != "" {
		status := returns.Status(r.Status)
		filter.Status = &status
	}
	filter.FromDate = r.FromDate
	filter.ToDate = r.ToDate
	if r.OrderBy != "" {
		filter.OrderBy = r.OrderBy
	}
	if r.Limit > 0 {
		filter.Limit = r.Limit
	}
	filter.Offset = r.Offset

	return filter, nil
}
