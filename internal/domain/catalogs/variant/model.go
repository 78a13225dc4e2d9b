// Package variant provides the Variant catalog.
// A variant is the purchasable unit of a product (one size, one colour)
// and the grain at which stock is counted.
package variant

import (
	"context"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// Variant carries the per-unit stock counter.
// StockQuantity is mutated only by the stock ledger; every other
// component treats it as read-only.
type Variant struct {
	entity.BaseCatalog

	// ProductID is the owning product (optional for standalone units)
	ProductID id.ID `db:"product_id" json:"productId"`

	// SKU is the unique stock-keeping code
	SKU string `db:"sku" json:"sku"`

	// Label describes the variant within its product ("42", "XL", "red")
	Label string `db:"label" json:"label"`

	// StockQuantity is the on-hand counter, never negative
	StockQuantity types.Quantity `db:"stock_quantity" json:"stockQuantity"`

	// SalePrice is the current catalog price, snapshotted into order
	// lines at creation time
	SalePrice types.MinorUnits `db:"sale_price" json:"salePrice"`

	// Active marks whether the variant may join new orders
	Active bool `db:"active" json:"active"`
}

// New creates a new active variant with zero stock.
func New(productID id.ID, sku, label string, salePrice types.MinorUnits) *Variant {
	return &Variant{
		BaseCatalog: entity.NewBaseCatalog(),
		ProductID:   productID,
		SKU:         sku,
		Label:       label,
		SalePrice:   salePrice,
		Active:      true,
	}
}

// Validate implements entity.Validatable.
func (v *Variant) Validate(ctx context.Context) error {
	if v.SKU == "" {
		return apperror.NewValidation("sku is required").
			WithDetail("field", "sku")
	}

	if v.StockQuantity.IsNegative() {
		return apperror.NewValidation("stock quantity cannot be negative").
			WithDetail("field", "stockQuantity").
			WithDetail("value", v.StockQuantity.Int64())
	}

	if v.SalePrice < 0 {
		return apperror.NewValidation("sale price cannot be negative").
			WithDetail("field", "salePrice")
	}

	return nil
}
