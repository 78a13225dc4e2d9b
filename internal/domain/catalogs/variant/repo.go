package variant

import (
	"context"

	"stockbook/internal/core/id"
	"stockbook/internal/domain"
)

// Repository defines the interface for Variant persistence.
// Stock mutation is deliberately absent here; only the ledger
// repository writes stock_quantity.
type Repository interface {
	// Create inserts a new variant
	Create(ctx context.Context, v *Variant) error

	// GetByID retrieves variant by ID
	GetByID(ctx context.Context, id id.ID) (*Variant, error)

	// GetBySKU retrieves variant by SKU
	GetBySKU(ctx context.Context, sku string) (*Variant, error)

	// GetByProduct retrieves all variants of a product
	GetByProduct(ctx context.Context, productID id.ID) ([]*Variant, error)

	// Update modifies label, price and active flag (not stock)
	Update(ctx context.Context, v *Variant) error

	// SetActive retires or reinstates a variant
	SetActive(ctx context.Context, id id.ID, active bool) error

	// List retrieves variants with filtering and pagination
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Variant], error)

	// Exists checks if variant with given ID exists
	Exists(ctx context.Context, id id.ID) (bool, error)

	// ExistsBySKU checks if variant with given SKU exists
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
}
