package variant

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain"
)

// Service provides business logic for the Variant catalog.
// Variant does not embed domain.CatalogService because its repository
// keys on SKU rather than code and excludes stock writes.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new Variant service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create validates and persists a new variant.
func (s *Service) Create(ctx context.Context, v *Variant) error {
	if err := v.Validate(ctx); err != nil {
		return err
	}

	exists, err := s.repo.ExistsBySKU(ctx, v.SKU)
	if err != nil {
		return err
	}
	if exists {
		return apperror.NewDuplicate("variant", "sku", v.SKU)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, v); err != nil {
			return fmt.Errorf("create variant: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a variant by ID.
func (s *Service) GetByID(ctx context.Context, variantID id.ID) (*Variant, error) {
	v, err := s.repo.GetByID(ctx, variantID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("variant", variantID.String())
		}
		return nil, err
	}
	return v, nil
}

// GetBySKU retrieves a variant by SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*Variant, error) {
	v, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("variant", sku)
		}
		return nil, err
	}
	return v, nil
}

// GetByProduct retrieves all variants of a product.
func (s *Service) GetByProduct(ctx context.Context, productID id.ID) ([]*Variant, error) {
	return s.repo.GetByProduct(ctx, productID)
}

// Update modifies variant attributes (label, price, active flag).
func (s *Service) Update(ctx context.Context, v *Variant) error {
	if err := v.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, v); err != nil {
			return fmt.Errorf("update variant: %w", err)
		}
		return nil
	})
}

// SetActive retires or reinstates a variant.
func (s *Service) SetActive(ctx context.Context, variantID id.ID, active bool) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetActive(ctx, variantID, active)
	})
}

// List retrieves variants with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Variant], error) {
	return s.repo.List(ctx, filter)
}
