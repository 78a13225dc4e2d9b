// Package reports provides read-only reporting over the ledger journal
// and the return aggregates.
package reports

import (
	"context"
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// Repository defines the reporting queries.
// All queries are read-only and may run outside a transaction.
type Repository interface {
	// GetTurnover calculates receipt and expense totals for a period
	GetTurnover(ctx context.Context, filter TurnoverFilter) ([]Turnover, error)

	// GetReturnSummary aggregates active returns per product
	GetReturnSummary(ctx context.Context, productID *id.ID) ([]ReturnSummary, error)

	// GetReturnedAggregates reads the stored product-level counters
	GetReturnedAggregates(ctx context.Context, productID *id.ID) (map[id.ID]types.Quantity, error)

	// GetStockSnapshot returns current counters per variant
	GetStockSnapshot(ctx context.Context, filter SnapshotFilter) ([]StockSnapshot, error)
}

// TurnoverFilter for turnover reports.
type TurnoverFilter struct {
	ProductID *id.ID
	VariantID *id.ID
	FromDate  time.Time
	ToDate    time.Time
}

// Turnover is the receipt/expense movement summary for one variant.
type Turnover struct {
	ProductID      id.ID          `db:"product_id" json:"productId"`
	VariantID      id.ID          `db:"variant_id" json:"variantId"`
	OpeningBalance types.Quantity `db:"opening_balance" json:"openingBalance"`
	Receipt        types.Quantity `db:"receipt" json:"receipt"`
	Expense        types.Quantity `db:"expense" json:"expense"`
	ClosingBalance types.Quantity `db:"closing_balance" json:"closingBalance"`
}

// ReturnSummary is the per-product total of active return quantities,
// derived from the return documents rather than the stored counter.
type ReturnSummary struct {
	ProductID     id.ID          `db:"product_id" json:"productId"`
	ActiveReturns int64          `db:"active_returns" json:"activeReturns"`
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
}

// SnapshotFilter for stock snapshots.
type SnapshotFilter struct {
	ProductID   *id.ID
	ExcludeZero bool
	Limit       int
	Offset      int
}

// StockSnapshot is one variant counter at read time.
type StockSnapshot struct {
	ProductID id.ID          `db:"product_id" json:"productId"`
	VariantID id.ID          `db:"variant_id" json:"variantId"`
	SKU       string         `db:"sku" json:"sku"`
	Quantity  types.Quantity `db:"stock_quantity" json:"quantity"`
}
