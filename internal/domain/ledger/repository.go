// Package ledger owns the per-variant stock counters.
// It exposes one atomic adjust primitive; no other component mutates
// stock_quantity or the returned-stock aggregate.
package ledger

import (
	"context"
	"time"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// Repository defines storage operations for the stock ledger.
// Mutating methods must run inside a transaction.
type Repository interface {
	// AdjustStock atomically applies delta to a variant counter.
	// The update carries the non-negativity condition itself
	// (stock_quantity + delta >= 0); if the condition fails no row is
	// touched and an insufficient-stock error is returned.
	AdjustStock(ctx context.Context, variantID id.ID, delta types.Quantity) (types.Quantity, error)

	// GetStock returns the current counter without locking.
	GetStock(ctx context.Context, variantID id.ID) (types.Quantity, error)

	// GetStocksForUpdate locks the variant rows and returns their
	// counters. Implementations must lock in ascending variant ID
	// order so concurrent callers cannot deadlock.
	GetStocksForUpdate(ctx context.Context, variantIDs []id.ID) (map[id.ID]types.Quantity, error)

	// CreateMovements appends journal entries for a counter change.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByRecorder retrieves all movements for a document.
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// GetMovementHistory returns movement history for a variant.
	GetMovementHistory(ctx context.Context, variantID id.ID, filter MovementFilter) ([]entity.StockMovement, error)

	// AdjustReturnedAggregate applies delta to the product-level
	// returned-stock counter. Same conditional non-negativity rule
	// as AdjustStock.
	AdjustReturnedAggregate(ctx context.Context, productID id.ID, delta types.Quantity) (types.Quantity, error)

	// GetReturnedAggregate returns the product-level returned-stock counter.
	GetReturnedAggregate(ctx context.Context, productID id.ID) (types.Quantity, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Direction *entity.Direction
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}
