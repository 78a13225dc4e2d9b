package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

type stubRepo struct {
	turnover   []Turnover
	summaries  []ReturnSummary
	aggregates map[id.ID]types.Quantity
	snapshots  []StockSnapshot
}

func (r *stubRepo) GetTurnover(ctx context.Context, filter TurnoverFilter) ([]Turnover, error) {
	return r.turnover, nil
}

func (r *stubRepo) GetReturnSummary(ctx context.Context, productID *id.ID) ([]ReturnSummary, error) {
	return r.summaries, nil
}

func (r *stubRepo) GetReturnedAggregates(ctx context.Context, productID *id.ID) (map[id.ID]types.Quantity, error) {
	return r.aggregates, nil
}

func (r *stubRepo) GetStockSnapshot(ctx context.Context, filter SnapshotFilter) ([]StockSnapshot, error) {
	return r.snapshots, nil
}

func TestGetTurnover_PeriodValidated(t *testing.T) {
	svc := NewService(&stubRepo{})
	now := time.Now()

	_, err := svc.GetTurnover(context.Background(), TurnoverFilter{
		FromDate: now,
		ToDate:   now.Add(-time.Hour),
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestReconcileReturns_NoDrift(t *testing.T) {
	p1, p2 := id.New(), id.New()
	repo := &stubRepo{
		summaries: []ReturnSummary{
			{ProductID: p1, ActiveReturns: 2, TotalQuantity: 5},
			{ProductID: p2, ActiveReturns: 1, TotalQuantity: 3},
		},
		aggregates: map[id.ID]types.Quantity{p1: 5, p2: 3},
	}

	rows, err := NewService(repo).ReconcileReturns(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, types.Quantity(0), row.Drift)
	}
}

func TestReconcileReturns_ReportsDrift(t *testing.T) {
	p1, orphan := id.New(), id.New()
	repo := &stubRepo{
		summaries: []ReturnSummary{
			{ProductID: p1, ActiveReturns: 1, TotalQuantity: 4},
		},
		aggregates: map[id.ID]types.Quantity{
			p1:     6, // counter ahead of documents by 2
			orphan: 3, // counter with no documents at all
		},
	}

	rows, err := NewService(repo).ReconcileReturns(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byProduct := make(map[id.ID]ReconciliationRow)
	for _, row := range rows {
		byProduct[row.ProductID] = row
	}

	assert.Equal(t, types.Quantity(2), byProduct[p1].Drift)
	assert.Equal(t, types.Quantity(3), byProduct[orphan].Drift)
	assert.Equal(t, types.Quantity(0), byProduct[orphan].DocumentSum)
}
