package reports

import (
	"context"
	"fmt"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/pkg/logger"
)

// Service provides reporting operations.
type Service struct {
	repo Repository
}

// NewService creates a new reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetTurnover generates a movement turnover report for the period.
func (s *Service) GetTurnover(ctx context.Context, filter TurnoverFilter) ([]Turnover, error) {
	if !filter.ToDate.After(filter.FromDate) {
		return nil, apperror.NewValidation("to_date must be after from_date")
	}

	rows, err := s.repo.GetTurnover(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("turnover report: %w", err)
	}
	return rows, nil
}

// GetStockSnapshot returns current variant counters.
func (s *Service) GetStockSnapshot(ctx context.Context, filter SnapshotFilter) ([]StockSnapshot, error) {
	return s.repo.GetStockSnapshot(ctx, filter)
}

// ReconciliationRow compares the stored returned-stock counter of one
// product against the sum of its active return documents.
type ReconciliationRow struct {
	ProductID     id.ID          `json:"productId"`
	StoredCounter types.Quantity `json:"storedCounter"`
	DocumentSum   types.Quantity `json:"documentSum"`
	Drift         types.Quantity `json:"drift"`
}

// ReconcileReturns cross-checks the returned-stock aggregates against
// the return documents and reports any drift. The counter and the
// documents are updated in the same transaction, so a non-zero drift
// means a defect or manual data surgery.
func (s *Service) ReconcileReturns(ctx context.Context, productID *id.ID) ([]ReconciliationRow, error) {
	summaries, err := s.repo.GetReturnSummary(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("return summary: %w", err)
	}

	counters, err := s.repo.GetReturnedAggregates(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("returned aggregates: %w", err)
	}

	rows := make([]ReconciliationRow, 0, len(counters))
	seen := make(map[id.ID]bool, len(summaries))

	for _, sum := range summaries {
		seen[sum.ProductID] = true
		rows = append(rows, ReconciliationRow{
			ProductID:     sum.ProductID,
			StoredCounter: counters[sum.ProductID],
			DocumentSum:   sum.TotalQuantity,
			Drift:         counters[sum.ProductID] - sum.TotalQuantity,
		})
	}

	// Counters with no matching documents drift by their full value
	for pid, counter := range counters {
		if seen[pid] || counter == 0 {
			continue
		}
		rows = append(rows, ReconciliationRow{
			ProductID:     pid,
			StoredCounter: counter,
			DocumentSum:   0,
			Drift:         counter,
		})
	}

	for _, row := range rows {
		if row.Drift != 0 {
			logger.Warn(ctx, "returned-stock counter drift",
				"product_id", row.ProductID,
				"stored", row.StoredCounter.Int64(),
				"documents", row.DocumentSum.Int64(),
			)
		}
	}

	return rows, nil
}
