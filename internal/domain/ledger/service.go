package ledger

import (
	"context"
	"fmt"
	"sort"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/pkg/logger"
)

// Adjustment is one requested counter change.
type Adjustment struct {
	ProductID id.ID
	VariantID id.ID
	Delta     types.Quantity
}

// Service is the single writer of variant stock counters.
// Transactions are managed by the caller (order and return engines);
// every mutating method here expects an open transaction in ctx.
type Service struct {
	repo Repository
}

// NewService creates a new stock ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Apply validates and applies a set of counter adjustments, recording a
// journal movement per adjustment.
//
// Negative deltas are pre-checked under row locks so the caller gets a
// precise per-variant deficit before anything is written. The lock order
// is ascending variant ID. The conditional update in the repository
// remains the enforcement backstop; the pre-check only improves the
// error message.
func (s *Service) Apply(ctx context.Context, recorderID id.ID, recorderType string, adjustments []Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	for i, adj := range adjustments {
		if adj.Delta.IsZero() {
			return apperror.NewValidation(fmt.Sprintf("adjustment %d: delta must be non-zero", i))
		}
		if id.IsNil(adj.VariantID) {
			return apperror.NewValidation(fmt.Sprintf("adjustment %d: variant is required", i))
		}
	}

	if err := s.checkOutflows(ctx, adjustments); err != nil {
		return err
	}

	movements := make([]entity.StockMovement, 0, len(adjustments))
	for _, adj := range adjustments {
		if _, err := s.repo.AdjustStock(ctx, adj.VariantID, adj.Delta); err != nil {
			return fmt.Errorf("adjust stock for %s: %w", adj.VariantID, err)
		}

		direction := entity.DirectionReceipt
		quantity := adj.Delta
		if adj.Delta.IsNegative() {
			direction = entity.DirectionExpense
			quantity = adj.Delta.Neg()
		}

		movements = append(movements, entity.NewStockMovement(
			recorderID, recorderType, direction,
			adj.ProductID, adj.VariantID, quantity,
		))
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "applied stock adjustments",
		"count", len(adjustments),
		"recorder_id", recorderID,
		"recorder_type", recorderType,
	)

	return nil
}

// checkOutflows locks the variants with negative deltas and verifies
// each running balance stays non-negative.
func (s *Service) checkOutflows(ctx context.Context, adjustments []Adjustment) error {
	outflowIDs := make([]id.ID, 0, len(adjustments))
	seen := make(map[id.ID]bool)
	for _, adj := range adjustments {
		if adj.Delta.IsNegative() && !seen[adj.VariantID] {
			outflowIDs = append(outflowIDs, adj.VariantID)
			seen[adj.VariantID] = true
		}
	}
	if len(outflowIDs) == 0 {
		return nil
	}

	sort.Slice(outflowIDs, func(i, j int) bool {
		return outflowIDs[i].String() < outflowIDs[j].String()
	})

	available, err := s.repo.GetStocksForUpdate(ctx, outflowIDs)
	if err != nil {
		return fmt.Errorf("lock variant stocks: %w", err)
	}

	// Running balance catches several lines draining the same variant
	running := make(map[id.ID]types.Quantity, len(available))
	for vid, qty := range available {
		running[vid] = qty
	}

	for _, adj := range adjustments {
		if !adj.Delta.IsNegative() {
			continue
		}

		have, ok := running[adj.VariantID]
		if !ok {
			return apperror.NewNotFound("variant", adj.VariantID.String())
		}

		requested := adj.Delta.Neg()
		if have < requested {
			return apperror.NewInsufficientStock(adj.VariantID.String(), requested, have).
				WithDetail("product_id", adj.ProductID.String())
		}
		running[adj.VariantID] = have - requested
	}

	return nil
}

// GetStock returns the current counter for a variant.
func (s *Service) GetStock(ctx context.Context, variantID id.ID) (types.Quantity, error) {
	return s.repo.GetStock(ctx, variantID)
}

// GetMovements returns all journal entries recorded by a document.
func (s *Service) GetMovements(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}

// GetMovementHistory returns movement history for a variant.
func (s *Service) GetMovementHistory(ctx context.Context, variantID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	return s.repo.GetMovementHistory(ctx, variantID, filter)
}

// AdjustReturnedAggregate moves the product-level returned-stock
// counter. Kept on the ledger so returns stay out of direct storage
// writes; the aggregate is tracked separately from the variant counters
// and reconciled by reports.
func (s *Service) AdjustReturnedAggregate(ctx context.Context, productID id.ID, delta types.Quantity) (types.Quantity, error) {
	if delta.IsZero() {
		return s.repo.GetReturnedAggregate(ctx, productID)
	}
	return s.repo.AdjustReturnedAggregate(ctx, productID, delta)
}

// GetReturnedAggregate returns the product-level returned-stock counter.
func (s *Service) GetReturnedAggregate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return s.repo.GetReturnedAggregate(ctx, productID)
}
