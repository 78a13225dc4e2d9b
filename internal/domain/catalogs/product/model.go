// Package product provides the Product catalog.
package product

import (
	"context"

	"stockbook/internal/core/entity"
)

// Product groups sellable variants under one commercial name.
// Stock is never tracked at product level; each variant carries its
// own counter.
type Product struct {
	entity.Catalog

	// Description for storefront display
	Description string `db:"description" json:"description,omitempty"`

	// Category label (plain text, catalog management is external)
	Category string `db:"category" json:"category,omitempty"`
}

// New creates a new active product.
func New(code, name string) *Product {
	return &Product{
		Catalog: entity.NewCatalog(code, name),
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	return p.Catalog.Validate(ctx)
}
