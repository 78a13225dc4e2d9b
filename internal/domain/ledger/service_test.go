package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
)

// memRepo is an in-memory ledger repository enforcing the same
// conditional non-negativity rule as the SQL implementation.
type memRepo struct {
	mu         sync.Mutex
	stocks     map[id.ID]types.Quantity
	aggregates map[id.ID]types.Quantity
	movements  []entity.StockMovement
}

func newMemRepo() *memRepo {
	return &memRepo{
		stocks:     make(map[id.ID]types.Quantity),
		aggregates: make(map[id.ID]types.Quantity),
	}
}

func (r *memRepo) AdjustStock(ctx context.Context, variantID id.ID, delta types.Quantity) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.stocks[variantID]
	if !ok {
		return 0, apperror.NewNotFound("variant", variantID.String())
	}
	next := current + delta
	if next.IsNegative() {
		return 0, apperror.NewInsufficientStock(variantID.String(), delta.Neg(), current)
	}
	r.stocks[variantID] = next
	return next, nil
}

func (r *memRepo) GetStock(ctx context.Context, variantID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qty, ok := r.stocks[variantID]
	if !ok {
		return 0, apperror.NewNotFound("variant", variantID.String())
	}
	return qty, nil
}

func (r *memRepo) GetStocksForUpdate(ctx context.Context, variantIDs []id.ID) (map[id.ID]types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[id.ID]types.Quantity, len(variantIDs))
	for _, vid := range variantIDs {
		if qty, ok := r.stocks[vid]; ok {
			out[vid] = qty
		}
	}
	return out, nil
}

func (r *memRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) GetMovementHistory(ctx context.Context, variantID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.VariantID == variantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) AdjustReturnedAggregate(ctx context.Context, productID id.ID, delta types.Quantity) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.aggregates[productID] + delta
	if next.IsNegative() {
		return 0, apperror.NewInsufficientStock(productID.String(), delta.Neg(), r.aggregates[productID])
	}
	r.aggregates[productID] = next
	return next, nil
}

func (r *memRepo) GetReturnedAggregate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregates[productID], nil
}

func TestApply_ReceiptIncreasesStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	variantID := id.New()
	productID := id.New()
	repo.stocks[variantID] = 10

	recorderID := id.New()
	err := svc.Apply(ctx, recorderID, "Order", []Adjustment{
		{ProductID: productID, VariantID: variantID, Delta: 5},
	})
	require.NoError(t, err)

	qty, err := svc.GetStock(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(15), qty)

	movements, err := svc.GetMovements(ctx, recorderID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, entity.DirectionReceipt, movements[0].Direction)
	assert.Equal(t, types.Quantity(5), movements[0].Quantity)
}

func TestApply_ExpenseDecreasesStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	variantID := id.New()
	repo.stocks[variantID] = 10

	err := svc.Apply(ctx, id.New(), "Order", []Adjustment{
		{ProductID: id.New(), VariantID: variantID, Delta: -4},
	})
	require.NoError(t, err)

	qty, _ := svc.GetStock(ctx, variantID)
	assert.Equal(t, types.Quantity(6), qty)
}

func TestApply_InsufficientStockNamesDeficit(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	variantID := id.New()
	productID := id.New()
	repo.stocks[variantID] = 5

	err := svc.Apply(ctx, id.New(), "Order", []Adjustment{
		{ProductID: productID, VariantID: variantID, Delta: -6},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(6), appErr.Details["requested"])
	assert.Equal(t, int64(5), appErr.Details["available"])
	assert.Equal(t, int64(1), appErr.Details["deficit"])
	assert.Equal(t, productID.String(), appErr.Details["product_id"])

	// No partial mutation
	qty, _ := svc.GetStock(ctx, variantID)
	assert.Equal(t, types.Quantity(5), qty)
	assert.Empty(t, repo.movements)
}

func TestApply_RunningBalanceAcrossLines(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	variantID := id.New()
	repo.stocks[variantID] = 5

	// Two lines draining the same variant: 3 + 3 > 5
	err := svc.Apply(ctx, id.New(), "Order", []Adjustment{
		{ProductID: id.New(), VariantID: variantID, Delta: -3},
		{ProductID: id.New(), VariantID: variantID, Delta: -3},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	qty, _ := svc.GetStock(ctx, variantID)
	assert.Equal(t, types.Quantity(5), qty)
}

func TestApply_ZeroDeltaRejected(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	err := svc.Apply(context.Background(), id.New(), "Order", []Adjustment{
		{ProductID: id.New(), VariantID: id.New(), Delta: 0},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestApply_UnknownVariant(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	err := svc.Apply(context.Background(), id.New(), "Order", []Adjustment{
		{ProductID: id.New(), VariantID: id.New(), Delta: -1},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestAdjustReturnedAggregate(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	productID := id.New()

	qty, err := svc.AdjustReturnedAggregate(ctx, productID, 2)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(2), qty)

	qty, err = svc.AdjustReturnedAggregate(ctx, productID, -2)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), qty)

	_, err = svc.AdjustReturnedAggregate(ctx, productID, -1)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
}
