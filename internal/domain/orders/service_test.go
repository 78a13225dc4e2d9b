package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain"
	"stockbook/internal/domain/catalogs/counterparty"
	"stockbook/internal/domain/catalogs/variant"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/ledger"
	"stockbook/pkg/numerator"
)

// --- test doubles ---

// passTx runs the function directly; rollback semantics are asserted
// through the fakes' state instead.
type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type seqRow struct{ val int64 }

func (r seqRow) Scan(dest ...any) error {
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = r.val
	}
	return nil
}

type seqQuerier struct {
	mu  sync.Mutex
	val int64
}

func (q *seqQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.mu.Lock()
	defer q.mu.Unlock()
	inc := int64(1)
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			inc = v
		}
	}
	q.val += inc
	return seqRow{val: q.val}
}

// memStock implements ledger.Repository over a mutex-guarded map.
// AdjustStock carries the same conditional non-negativity rule as the
// SQL implementation, so oversell is impossible even when two callers
// pass the advisory pre-check simultaneously.
type memStock struct {
	mu         sync.Mutex
	stocks     map[id.ID]types.Quantity
	aggregates map[id.ID]types.Quantity
	movements  []entity.StockMovement
}

func newMemStock() *memStock {
	return &memStock{
		stocks:     make(map[id.ID]types.Quantity),
		aggregates: make(map[id.ID]types.Quantity),
	}
}

func (r *memStock) AdjustStock(ctx context.Context, variantID id.ID, delta types.Quantity) (types.Quantity, error) {
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

func (r *memStock) GetStock(ctx context.Context, variantID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stocks[variantID], nil
}

func (r *memStock) GetStocksForUpdate(ctx context.Context, variantIDs []id.ID) (map[id.ID]types.Quantity, error) {
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

func (r *memStock) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memStock) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
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

func (r *memStock) GetMovementHistory(ctx context.Context, variantID id.ID, filter ledger.MovementFilter) ([]entity.StockMovement, error) {
	return nil, nil
}

func (r *memStock) AdjustReturnedAggregate(ctx context.Context, productID id.ID, delta types.Quantity) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.aggregates[productID] + delta
	if next.IsNegative() {
		return 0, apperror.NewInsufficientStock(productID.String(), delta.Neg(), r.aggregates[productID])
	}
	r.aggregates[productID] = next
	return next, nil
}

func (r *memStock) GetReturnedAggregate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregates[productID], nil
}

// memOrderRepo is an in-memory order store.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[id.ID]*Order
	lines  map[id.ID][]OrderLine
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders: make(map[id.ID]*Order),
		lines:  make(map[id.ID][]OrderLine),
	}
}

func (r *memOrderRepo) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	cp.Lines = nil
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) SaveLines(ctx context.Context, orderID id.ID, lines []OrderLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[orderID] = append([]OrderLine(nil), lines...)
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) GetByIDForUpdate(ctx context.Context, orderID id.ID) (*Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *memOrderRepo) GetLines(ctx context.Context, orderID id.ID) ([]OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderLine(nil), r.lines[orderID]...), nil
}

func (r *memOrderRepo) FindLineByProduct(ctx context.Context, orderID, productID id.ID) (*OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines[orderID] {
		if l.ProductID == productID {
			cp := l
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("order line", productID.String())
}

func (r *memOrderRepo) FindLineByProductForUpdate(ctx context.Context, orderID, productID id.ID) (*OrderLine, error) {
	return r.FindLineByProduct(ctx, orderID, productID)
}

func (r *memOrderRepo) GetLineForUpdate(ctx context.Context, lineID id.ID) (*OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lines := range r.lines {
		for _, l := range lines {
			if l.LineID == lineID {
				cp := l
				return &cp, nil
			}
		}
	}
	return nil, apperror.NewNotFound("order line", lineID.String())
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return apperror.NewNotFound("order", o.ID.String())
	}
	stored.Status = o.Status
	stored.CancelReason = o.CancelReason
	stored.CancelledAt = o.CancelledAt
	stored.Version = o.Version
	return nil
}

func (r *memOrderRepo) UpdateLineReturned(ctx context.Context, lineID id.ID, returned types.Quantity, fullyReturned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID, lines := range r.lines {
		for i, l := range lines {
			if l.LineID == lineID {
				r.lines[orderID][i].ReturnedQuantity = returned
				r.lines[orderID][i].FullyReturned = fullyReturned
				return nil
			}
		}
	}
	return apperror.NewNotFound("order line", lineID.String())
}

func (r *memOrderRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*Order
	for _, o := range r.orders {
		cp := *o
		items = append(items, &cp)
	}
	return domain.ListResult[*Order]{Items: items, TotalCount: int64(len(items))}, nil
}

type staticCounterparties struct {
	byID map[id.ID]*counterparty.Counterparty
}

func (s staticCounterparties) GetByID(ctx context.Context, cpID id.ID) (*counterparty.Counterparty, error) {
	cp, ok := s.byID[cpID]
	if !ok {
		return nil, apperror.NewNotFound("counterparty", cpID.String())
	}
	return cp, nil
}

type staticVariants struct {
	byID map[id.ID]*variant.Variant
}

func (s staticVariants) GetByID(ctx context.Context, vID id.ID) (*variant.Variant, error) {
	v, ok := s.byID[vID]
	if !ok {
		return nil, apperror.NewNotFound("variant", vID.String())
	}
	return v, nil
}

// fixture wires a service over in-memory stores.
type fixture struct {
	svc      *Service
	stock    *memStock
	repo     *memOrderRepo
	product  *variant.Variant
	customer *counterparty.Counterparty
	supplier *counterparty.Counterparty
}

func newFixture(t *testing.T, initialStock types.Quantity) *fixture {
	t.Helper()

	productID := id.New()
	v := variant.New(productID, "SKU-001", "42", 1999)
	v.StockQuantity = initialStock

	customer := counterparty.New("CP-C", "Customer", counterparty.TypeCustomer)
	supplier := counterparty.New("CP-S", "Supplier", counterparty.TypeSupplier)

	stock := newMemStock()
	stock.stocks[v.ID] = initialStock

	repo := newMemOrderRepo()
	svc := NewService(
		repo,
		staticCounterparties{byID: map[id.ID]*counterparty.Counterparty{
			customer.ID: customer,
			supplier.ID: supplier,
		}},
		staticVariants{byID: map[id.ID]*variant.Variant{v.ID: v}},
		ledger.NewService(stock),
		passTx{},
		numerator.New(&seqQuerier{}),
		events.NopPublisher{},
		events.NopAuditTrail{},
	)

	return &fixture{
		svc:      svc,
		stock:    stock,
		repo:     repo,
		product:  v,
		customer: customer,
		supplier: supplier,
	}
}

func (f *fixture) lineInput(qty types.Quantity) []LineInput {
	return []LineInput{{
		ProductID: f.product.ProductID,
		VariantID: f.product.ID,
		Quantity:  qty,
	}}
}

// --- tests ---

func TestCreate_SaleDecreasesStock(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, KindSale, f.customer.ID, f.lineInput(4))
	require.NoError(t, err)

	assert.Equal(t, StatusActive, order.Status)
	assert.Equal(t, types.Quantity(4), order.TotalQuantity)
	assert.Equal(t, types.MinorUnits(4*1999), order.TotalAmount)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, types.Quantity(0), order.Lines[0].ReturnedQuantity)
	assert.NotEmpty(t, order.Number)

	qty, _ := f.stock.GetStock(ctx, f.product.ID)
	assert.Equal(t, types.Quantity(6), qty)
}

func TestCreate_PurchaseIncreasesStock(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, KindPurchase, f.supplier.ID, f.lineInput(5))
	require.NoError(t, err)

	qty, _ := f.stock.GetStock(ctx, f.product.ID)
	assert.Equal(t, types.Quantity(15), qty)
}

func TestCreate_InsufficientStockNamesDeficit(t *testing.T) {
	// Scenario: stock 5, sale of 6 rejected with deficit 1
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, KindSale, f.customer.ID, f.lineInput(6))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(1), appErr.Details["deficit"])

	qty, _ := f.stock.GetStock(ctx, f.product.ID)
	assert.Equal(t, types.Quantity(5), qty)
}

func TestCreate_CounterpartyRoleEnforced(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	// Customer cannot supply
	_, err := f.svc.Create(ctx, KindPurchase, f.customer.ID, f.lineInput(1))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	// Supplier cannot buy
	_, err = f.svc.Create(ctx, KindSale, f.supplier.ID, f.lineInput(1))
	require.Error(t, err)
}

func TestCreate_EmptyLinesRejected(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.Create(context.Background(), KindSale, f.customer.ID, nil)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCreate_InactiveVariantRejected(t *testing.T) {
	f := newFixture(t, 10)
	f.product.Active = false

	_, err := f.svc.Create(context.Background(), KindSale, f.customer.ID, f.lineInput(1))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCreate_PriceOverrideWins(t *testing.T) {
	f := newFixture(t, 10)
	override := types.MinorUnits(1500)

	order, err := f.svc.Create(context.Background(), KindSale, f.customer.ID, []LineInput{{
		ProductID:         f.product.ProductID,
		VariantID:         f.product.ID,
		Quantity:          2,
		UnitPriceOverride: &override,
	}})
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(1500), order.Lines[0].UnitPrice)
	assert.Equal(t, types.MinorUnits(3000), order.Lines[0].Amount)
}

func TestCancel_RoundTripRestoresStock(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, KindSale, f.customer.ID, f.lineInput(4))
	require.NoError(t, err)

	qty, _ := f.stock.GetStock(ctx, f.product.ID)
	require.Equal(t, types.Quantity(6), qty)

	cancelled, err := f.svc.Cancel(ctx, order.ID, "customer changed mind")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "customer changed mind", cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)

	qty, _ = f.stock.GetStock(ctx, f.product.ID)
	assert.Equal(t, types.Quantity(10), qty)
}

func TestCancel_PurchaseReversalChecksStock(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, KindPurchase, f.supplier.ID, f.lineInput(5))
	require.NoError(t, err)

	// Sell 3 of the 5 received
	_, err = f.svc.Create(ctx, KindSale, f.customer.ID, f.lineInput(3))
	require.NoError(t, err)

	// Cancelling the purchase would need to remove 5, but only 2 remain
	_, err = f.svc.Cancel(ctx, order.ID, "supplier recall")
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestCancel_SecondCancelRejected(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, KindSale, f.customer.ID, f.lineInput(4))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.ID, "first")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.ID, "second")
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeOrderCancelled, appErr.Code)

	// Stock reversed exactly once
	qty, _ := f.stock.GetStock(ctx, f.product.ID)
	assert.Equal(t, types.Quantity(10), qty)
}

func TestCancel_UnknownOrder(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.Cancel(context.Background(), id.New(), "reason")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_ConcurrentSalesNeverOversell(t *testing.T) {
	// Scenario: stock 5, two concurrent sales of 4 each.
	// Exactly one succeeds; stock ends at 1, never negative.
	f := newFixture(t, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = f.svc.Create(ctx, KindSale, f.customer.ID, f.lineInput(4))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperror.IsInsufficientStock(err), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	qty, _ := f.stock.GetStock(ctx, f.product.ID)
	assert.Equal(t, types.Quantity(1), qty)
	assert.False(t, qty.IsNegative())
}

func TestGetByID_IncludesLines(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, KindSale, f.customer.ID, f.lineInput(2))
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, created.Lines[0].LineID, got.Lines[0].LineID)
}
