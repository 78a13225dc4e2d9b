package entity

import (
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// Direction defines which way a stock movement changes a counter.
type Direction string

const (
	// DirectionReceipt increases stock (purchase, sale cancellation)
	DirectionReceipt Direction = "receipt"
	// DirectionExpense decreases stock (sale, purchase cancellation)
	DirectionExpense Direction = "expense"
)

// StockMovement is one journal entry behind a variant counter change.
// Movements are immutable - the counter is authoritative, the journal
// exists for reports and reconciliation.
type StockMovement struct {
	// LineID is unique identifier for this movement row (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the document that caused this movement
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the document type ("Order", "Return")
	RecorderType string `db:"recorder_type" json:"recorderType"`

	// Direction: receipt or expense
	Direction Direction `db:"direction" json:"direction"`

	ProductID id.ID `db:"product_id" json:"productId"`
	VariantID id.ID `db:"variant_id" json:"variantId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a new stock movement.
func NewStockMovement(
	recorderID id.ID,
	recorderType string,
	direction Direction,
	productID, variantID id.ID,
	quantity types.Quantity,
) StockMovement {
	return StockMovement{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Direction:    direction,
		ProductID:    productID,
		VariantID:    variantID,
		Quantity:     quantity,
		CreatedAt:    time.Now().UTC(),
	}
}

// SignedQuantity returns quantity with sign based on direction.
// Receipt = positive, Expense = negative.
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.Direction == DirectionExpense {
		return m.Quantity.Neg()
	}
	return m.Quantity
}
