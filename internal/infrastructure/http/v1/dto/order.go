package dto

import (
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/orders"
)

// CreateOrderRequest for creating purchase and sale orders.
type CreateOrderRequest struct {
	Kind           string             `json:"kind" binding:"required,oneof=purchase sale"`
	CounterpartyID string             `json:"counterpartyId" binding:"required"`
	Lines          []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// OrderLineRequest is one requested order line.
type OrderLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	// UnitPrice overrides the catalog price when set (minor units)
	UnitPrice *int64 `json:"unitPrice" binding:"omitempty,gt=0"`
}

// ToInputs converts the request lines to service inputs.
func (r *CreateOrderRequest) ToInputs() (id.ID, []orders.LineInput, error) {
	counterpartyID, err := id.Parse(r.CounterpartyID)
	if err != nil {
		return id.Nil(), nil, err
	}

	inputs := make([]orders.LineInput, 0, len(r.Lines))
	for _, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return id.Nil(), nil, err
		}
		variantID, err := id.Parse(line.VariantID)
		if err != nil {
			return id.Nil(), nil, err
		}

		in := orders.LineInput{
			ProductID: productID,
			VariantID: variantID,
			Quantity:  types.Quantity(line.Quantity),
		}
		if line.UnitPrice != nil {
			price := types.MinorUnits(*line.UnitPrice)
			in.UnitPriceOverride = &price
		}
		inputs = append(inputs, in)
	}

	return counterpartyID, inputs, nil
}

// CancelOrderRequest for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OrderListRequest contains order list query parameters.
type OrderListRequest struct {
	Kind           string     `form:"kind" binding:"omitempty,oneof=purchase sale"`
	Status         string     `form:"status" binding:"omitempty,oneof=active cancelled"`
	CounterpartyID string     `form:"counterpartyId"`
	FromDate       *time.Time `form:"fromDate" time_format:"2006-01-02"`
	ToDate         *time.Time `form:"toDate" time_format:"2006-01-02"`
	OrderBy        string     `form:"orderBy"`
	Limit          int        `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset         int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the request to a domain filter.
func (r *OrderListRequest) ToFilter() (orders.ListFilter, error) {
	filter := orders.DefaultListFilter()

	if r.Kind != "" {
		kind := orders.Kind(r.Kind)
		filter.Kind = &kind
	}
	if r.Status != "" {
		status := orders.Status(r.Status)
		filter.Status = &status
	}
	if r.CounterpartyID != "" {
		counterpartyID, err := id.Parse(r.CounterpartyID)
		if err != nil {
			return filter, err
		}
		filter.CounterpartyID = &counterpartyID
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
