// Package returns provides post-sale return documents.
package returns

import (
	"context"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// Status is the return lifecycle state.
// Unlike orders, the transition is reversible: active <-> annulled.
type Status string

const (
	StatusActive   Status = "active"
	StatusAnnulled Status = "annulled"
)

// Return is a partial or full give-back against one sale order line.
type Return struct {
	entity.BaseDocument

	// Number is the human-readable document number (RET-2026-00001)
	Number string `db:"number" json:"number"`

	// OrderID references the sale order
	OrderID id.ID `db:"order_id" json:"orderId"`

	// LineID references the returned line
	LineID id.ID `db:"line_id" json:"lineId"`

	ProductID id.ID `db:"product_id" json:"productId"`
	VariantID id.ID `db:"variant_id" json:"variantId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	Reason string `db:"reason" json:"reason"`

	// Amount is fixed at creation from the line's snapshotted unit price
	Amount types.MinorUnits `db:"amount" json:"amount"`

	Status Status `db:"status" json:"status"`

	// Refund marks whether money was given back
	Refund bool `db:"refund" json:"refund"`
}

// New creates a new active return priced from the referenced line.
func New(orderID id.ID, line LineRef, quantity types.Quantity, reason string) *Return {
	return &Return{
		BaseDocument: entity.NewBaseDocument(),
		OrderID:      orderID,
		LineID:       line.LineID,
		ProductID:    line.ProductID,
		VariantID:    line.VariantID,
		Quantity:     quantity,
		Reason:       reason,
		Amount:       line.UnitPrice.MulQuantity(quantity),
		Status:       StatusActive,
	}
}

// LineRef carries the line fields a return snapshot needs.
type LineRef struct {
	LineID    id.ID
	ProductID id.ID
	VariantID id.ID
	UnitPrice types.MinorUnits
}

// IsActive reports whether the return currently counts against its line.
func (r *Return) IsActive() bool {
	return r.Status == StatusActive
}

// Toggled returns the opposite status.
func (r *Return) Toggled() Status {
	if r.Status == StatusActive {
		return StatusAnnulled
	}
	return StatusActive
}

// Validate implements entity.Validatable.
func (r *Return) Validate(ctx context.Context) error {
	if id.IsNil(r.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}

	if id.IsNil(r.LineID) {
		return apperror.NewValidation("line is required").
			WithDetail("field", "lineId")
	}

	if !r.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	if r.Reason == "" {
		return apperror.NewValidation("reason is required").
			WithDetail("field", "reason")
	}

	return nil
}

// GetDocumentType returns the ledger recorder type.
func (r *Return) GetDocumentType() string { return "Return" }
