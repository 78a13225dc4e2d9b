// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"
	"fmt"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/tx"
	"stockbook/pkg/logger"
	"stockbook/pkg/numerator"
)

// CatalogService provides business logic for catalog entities.
// Entity-specific services embed it and register hooks for their own rules.
type CatalogService[T entity.Validatable] struct {
	repo      CatalogRepository[T]
	txManager tx.Manager
	numerator *numerator.Service
	hooks     *HookRegistry[T]

	// entityName for error messages and numerator prefix
	entityName string
}

// CatalogServiceConfig configures the catalog service.
type CatalogServiceConfig[T entity.Validatable] struct {
	Repo       CatalogRepository[T]
	TxManager  tx.Manager
	Numerator  *numerator.Service
	EntityName string
}

// NewCatalogService creates a new catalog service.
func NewCatalogService[T entity.Validatable](cfg CatalogServiceConfig[T]) *CatalogService[T] {
	return &CatalogService[T]{
		repo:       cfg.Repo,
		txManager:  cfg.TxManager,
		numerator:  cfg.Numerator,
		hooks:      NewHookRegistry[T](),
		entityName: cfg.EntityName,
	}
}

// Hooks returns the hook registry for external registration.
func (s *CatalogService[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

// Numerator exposes the numbering service for code-generation hooks.
func (s *CatalogService[T]) Numerator() *numerator.Service {
	return s.numerator
}

func (s *CatalogService[T]) normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func (s *CatalogService[T]) normalizeGetErr(err error, idOrCode any) error {
	if err == nil {
		return nil
	}
	// Preserve existing AppError, but map not-found to the correct entity name.
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.entityName, idOrCode)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", s.entityName).WithDetail("id", idOrCode)
}

// Create creates a new catalog entity.
func (s *CatalogService[T]) Create(ctx context.Context, entity T) error {
	if err := entity.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	if err := s.hooks.RunBeforeCreate(ctx, entity); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, entity); err != nil {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// After-create hooks run outside the transaction; the entity is
	// already committed, so failures are logged, not propagated.
	if err := s.hooks.RunAfterCreate(ctx, entity); err != nil {
		logger.Warn(ctx, "after-create hook failed", "entity", s.entityName, "error", err)
	}

	return nil
}

// GetByID retrieves entity by ID.
func (s *CatalogService[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	entity, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return entity, s.normalizeGetErr(err, entityID.String())
	}
	return entity, nil
}

// GetByCode retrieves entity by code.
func (s *CatalogService[T]) GetByCode(ctx context.Context, code string) (T, error) {
	entity, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return entity, s.normalizeGetErr(err, code)
	}
	return entity, nil
}

// Update updates an existing entity.
func (s *CatalogService[T]) Update(ctx context.Context, entity T) error {
	if err := entity.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	if err := s.hooks.RunBeforeUpdate(ctx, entity); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, entity); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterUpdate(ctx, entity); err != nil {
		logger.Warn(ctx, "after-update hook failed", "entity", s.entityName, "error", err)
	}

	return nil
}

// SetActive retires or reinstates a catalog entry.
func (s *CatalogService[T]) SetActive(ctx context.Context, entityID id.ID, active bool) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetActive(ctx, entityID, active); err != nil {
			return fmt.Errorf("set active %s: %w", s.entityName, err)
		}
		return nil
	})
}

// List retrieves entities with filtering.
func (s *CatalogService[T]) List(ctx context.Context, filter ListFilter) (ListResult[T], error) {
	return s.repo.List(ctx, filter)
}

// Exists checks if entity exists.
func (s *CatalogService[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	return s.repo.Exists(ctx, entityID)
}

// GenerateCode produces the next catalog code with the given prefix.
// Intended for use from before-create hooks.
func (s *CatalogService[T]) GenerateCode(ctx context.Context, prefix string) (string, error) {
	cfg := numerator.Config{Prefix: prefix, PadWidth: 5, ResetPeriod: "never"}
	return s.numerator.GetNextNumber(ctx, cfg, nil, time.Now())
}
