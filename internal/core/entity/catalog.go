// Package entity provides core domain entities.
package entity

import (
	"context"

	"stockbook/internal/core/apperror"
)

// Catalog is the base type for reference data.
// Examples: Product, Variant, Counterparty.
type Catalog struct {
	BaseCatalog

	// Code is a human-readable identifier (unique per catalog)
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// Active marks whether the entry may participate in new documents.
	// Retired entries stay referenceable from existing documents.
	Active bool `db:"active" json:"active"`
}

// NewCatalog creates a new active Catalog with generated ID.
func NewCatalog(code, name string) Catalog {
	return Catalog{
		BaseCatalog: NewBaseCatalog(),
		Code:        code,
		Name:        name,
		Active:      true,
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	return nil
}
