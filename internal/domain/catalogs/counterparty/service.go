package counterparty

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/tx"
	"stockbook/internal/domain"
	"stockbook/pkg/numerator"
)

// Service provides business logic for the Counterparty catalog.
type Service struct {
	*domain.CatalogService[*Counterparty]
	repo Repository
}

// NewService creates a new Counterparty service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Counterparty]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  num,
		EntityName: "counterparty",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)

	return svc
}

// prepareForCreate generates the code and checks uniqueness.
func (s *Service) prepareForCreate(ctx context.Context, cp *Counterparty) error {
	if cp.Code == "" {
		code, err := s.GenerateCode(ctx, "CP")
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		cp.Code = code
		return nil
	}

	exists, err := s.repo.ExistsByCode(ctx, cp.Code)
	if err != nil {
		return err
	}
	if exists {
		return apperror.NewDuplicate("counterparty", "code", cp.Code)
	}

	return nil
}
