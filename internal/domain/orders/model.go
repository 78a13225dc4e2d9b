// Package orders provides purchase and sale order documents.
package orders

import (
	"context"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// Kind distinguishes stock inflow from outflow.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSale     Kind = "sale"
)

// Status is the order lifecycle state.
// The only transition is active -> cancelled, and it is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Order is a purchase or sale document header.
type Order struct {
	entity.BaseDocument

	// Number is the human-readable document number (ORD-2026-00001)
	Number string `db:"number" json:"number"`

	Kind Kind `db:"kind" json:"kind"`

	// CounterpartyID references a supplier (purchase) or customer (sale)
	CounterpartyID id.ID `db:"counterparty_id" json:"counterpartyId"`

	Status Status `db:"status" json:"status"`

	CancelReason string     `db:"cancel_reason" json:"cancelReason,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	// Totals (calculated from lines)
	TotalQuantity types.Quantity   `db:"total_quantity" json:"totalQuantity"`
	TotalAmount   types.MinorUnits `db:"total_amount" json:"totalAmount"`

	// Table part
	Lines []OrderLine `db:"-" json:"lines"`
}

// OrderLine is one product/variant entry within an order.
// Lines are immutable after creation except for the return-tracking
// fields, which only the return engine updates.
type OrderLine struct {
	LineID  id.ID `db:"line_id" json:"lineId"`
	OrderID id.ID `db:"order_id" json:"orderId"`
	LineNo  int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`
	VariantID id.ID `db:"variant_id" json:"variantId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// UnitPrice is snapshotted at creation and never recomputed
	UnitPrice types.MinorUnits `db:"unit_price" json:"unitPrice"`
	Amount    types.MinorUnits `db:"amount" json:"amount"`

	// Return tracking (sale lines only)
	ReturnedQuantity types.Quantity `db:"returned_quantity" json:"returnedQuantity"`
	FullyReturned    bool           `db:"fully_returned" json:"fullyReturned"`
}

// RemainingQuantity returns how much of the line can still be returned.
func (l *OrderLine) RemainingQuantity() types.Quantity {
	return l.Quantity - l.ReturnedQuantity
}

// New creates a new active order.
func New(kind Kind, counterpartyID id.ID) *Order {
	return &Order{
		BaseDocument:   entity.NewBaseDocument(),
		Kind:           kind,
		CounterpartyID: counterpartyID,
		Status:         StatusActive,
		Lines:          make([]OrderLine, 0),
	}
}

// AddLine adds a line and recalculates totals.
func (o *Order) AddLine(productID, variantID id.ID, quantity types.Quantity, unitPrice types.MinorUnits) {
	line := OrderLine{
		LineID:    id.New(),
		OrderID:   o.ID,
		LineNo:    len(o.Lines) + 1,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Amount:    unitPrice.MulQuantity(quantity),
	}

	o.Lines = append(o.Lines, line)
	o.recalculateTotals()
}

func (o *Order) recalculateTotals() {
	o.TotalQuantity = 0
	o.TotalAmount = 0

	for _, line := range o.Lines {
		o.TotalQuantity += line.Quantity
		o.TotalAmount += line.Amount
	}
}

// IsCancelled reports whether the order reached its terminal state.
func (o *Order) IsCancelled() bool {
	return o.Status == StatusCancelled
}

// IsSale reports whether the order is a sale.
func (o *Order) IsSale() bool {
	return o.Kind == KindSale
}

// CanCancel is the single place the status transition is checked.
func (o *Order) CanCancel() error {
	if o.Status == StatusCancelled {
		return apperror.NewOrderCancelled(o.ID.String())
	}
	return nil
}

// MarkCancelled applies the terminal transition.
// Callers must check CanCancel first.
func (o *Order) MarkCancelled(reason string) {
	now := time.Now().UTC()
	o.Status = StatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.Touch()
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	switch o.Kind {
	case KindPurchase, KindSale:
	default:
		return apperror.NewValidation("invalid order kind").
			WithDetail("field", "kind").
			WithDetail("value", string(o.Kind))
	}

	if id.IsNil(o.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").
			WithDetail("field", "counterpartyId")
	}

	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range o.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if id.IsNil(line.VariantID) {
			return apperror.NewValidation("variant is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitPrice <= 0 {
			return apperror.NewValidation("unit price must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// GetDocumentType returns the ledger recorder type.
func (o *Order) GetDocumentType() string { return "Order" }
