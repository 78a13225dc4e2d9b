package dto

import (
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/catalogs/counterparty"
	"stockbook/internal/domain/catalogs/product"
	"stockbook/internal/domain/catalogs/variant"
)

// --- Products ---

// CreateProductRequest for creating products.
type CreateProductRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ToEntity converts the request to a domain product.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.New(r.Code, r.Name)
	p.Description = r.Description
	p.Category = r.Category
	return p
}

// UpdateProductRequest for updating products.
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Version     int     `json:"version" binding:"required,min=1"`
}

// ApplyTo overlays the request onto an existing product.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	p.Version = r.Version
}

// --- Variants ---

// CreateVariantRequest for creating variants.
type CreateVariantRequest struct {
	ProductID string `json:"productId" binding:"required"`
	SKU       string `json:"sku" binding:"required"`
	Label     string `json:"label"`
	SalePrice int64  `json:"salePrice" binding:"required,gt=0"`
}

// ToEntity converts the request to a domain variant.
func (r *CreateVariantRequest) ToEntity() (*variant.Variant, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return nil, err
	}
	return variant.New(productID, r.SKU, r.Label, types.MinorUnits(r.SalePrice)), nil
}

// UpdateVariantRequest for updating variants.
// Stock quantity is absent: only ledger operations move stock.
type UpdateVariantRequest struct {
	Label     *string `json:"label"`
	SalePrice *int64  `json:"salePrice" binding:"omitempty,gt=0"`
	Version   int     `json:"version" binding:"required,min=1"`
}

// ApplyTo overlays the request onto an existing variant.
func (r *UpdateVariantRequest) ApplyTo(v *variant.Variant) {
	if r.Label != nil {
		v.Label = *r.Label
	}
	if r.SalePrice != nil {
		v.SalePrice = types.MinorUnits(*r.SalePrice)
	}
	v.Version = r.Version
}

// --- Counterparties ---

// CreateCounterpartyRequest for creating counterparties.
type CreateCounterpartyRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name" binding:"required"`
	Type  string `json:"type" binding:"required,oneof=customer supplier both"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ToEntity converts the request to a domain counterparty.
func (r *CreateCounterpartyRequest) ToEntity() *counterparty.Counterparty {
	cp := counterparty.New(r.Code, r.Name, counterparty.Type(r.Type))
	cp.Email = r.Email
	cp.Phone = r.Phone
	return cp
}

// UpdateCounterpartyRequest for updating counterparties.
type UpdateCounterpartyRequest struct {
	Name    *string `json:"name"`
	Type    *string `json:"type" binding:"omitempty,oneof=customer supplier both"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Version int     `json:"version" binding:"required,min=1"`
}

// ApplyTo overlays the request onto an existing counterparty.
func (r *UpdateCounterpartyRequest) ApplyTo(cp *counterparty.Counterparty) {
	if r.Name != nil {
		cp.Name = *r.Name
	}
	if r.Type != nil {
		cp.Type = counterparty.Type(*r.Type)
	}
	if r.Email != nil {
		cp.Email = *r.Email
	}
	if r.Phone != nil {
		cp.Phone = *r.Phone
	}
	cp.Version = r.Version
}
