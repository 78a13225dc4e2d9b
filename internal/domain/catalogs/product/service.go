package product

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain"
	"stockbook/pkg/numerator"
)

// Service provides business logic for the Product catalog.
type Service struct {
	*domain.CatalogService[*Product]
	repo Repository
}

// NewService creates a new Product service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  num,
		EntityName: "product",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)

	return svc
}

// prepareForCreate generates the code and checks uniqueness.
func (s *Service) prepareForCreate(ctx context.Context, p *Product) error {
	if p.Code == "" {
		code, err := s.GenerateCode(ctx, "PRD")
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		p.Code = code
		return nil
	}

	exists, err := s.repo.ExistsByCode(ctx, p.Code)
	if err != nil {
		return err
	}
	if exists {
		return apperror.NewDuplicate("product", "code", p.Code)
	}

	return nil
}
