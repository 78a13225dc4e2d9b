// Package counterparty provides the Counterparty catalog.
package counterparty

import (
	"context"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
)

// Type classifies a counterparty by the order kinds it may appear on.
type Type string

const (
	TypeCustomer Type = "customer"
	TypeSupplier Type = "supplier"
	TypeBoth     Type = "both"
)

// Counterparty is a customer, a supplier, or both.
// Purchase orders require a supplier, sale orders require a customer.
type Counterparty struct {
	entity.Catalog

	Type Type `db:"type" json:"type"`

	// Contact details
	Email string `db:"email" json:"email,omitempty"`
	Phone string `db:"phone" json:"phone,omitempty"`
}

// New creates a new active counterparty.
func New(code, name string, cpType Type) *Counterparty {
	return &Counterparty{
		Catalog: entity.NewCatalog(code, name),
		Type:    cpType,
	}
}

// IsCustomer reports whether the counterparty may appear on sale orders.
func (c *Counterparty) IsCustomer() bool {
	return c.Type == TypeCustomer || c.Type == TypeBoth
}

// IsSupplier reports whether the counterparty may appear on purchase orders.
func (c *Counterparty) IsSupplier() bool {
	return c.Type == TypeSupplier || c.Type == TypeBoth
}

// Validate implements entity.Validatable.
func (c *Counterparty) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch c.Type {
	case TypeCustomer, TypeSupplier, TypeBoth:
	default:
		return apperror.NewValidation("invalid counterparty type").
			WithDetail("field", "type").
			WithDetail("value", string(c.Type))
	}

	return nil
}
