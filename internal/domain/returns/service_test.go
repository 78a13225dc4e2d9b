package returns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/ledger"
	"stockbook/internal/domain/orders"
	"stockbook/pkg/numerator"
)

// --- test doubles ---

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

// memAggregates implements the slice of ledger.Repository the return
// flow touches (the returned-stock aggregate).
type memAggregates struct {
	mu         sync.Mutex
	aggregates map[id.ID]types.Quantity
}

func newMemAggregates() *memAggregates {
	return &memAggregates{aggregates: make(map[id.ID]types.Quantity)}
}

func (r *memAggregates) AdjustStock(ctx context.Context, variantID id.ID, delta types.Quantity) (types.Quantity, error) {
	return 0, nil
}

func (r *memAggregates) GetStock(ctx context.Context, variantID id.ID) (types.Quantity, error) {
	return 0, nil
}

func (r *memAggregates) GetStocksForUpdate(ctx context.Context, variantIDs []id.ID) (map[id.ID]types.Quantity, error) {
	return nil, nil
}

func (r *memAggregates) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	return nil
}

func (r *memAggregates) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return nil, nil
}

func (r *memAggregates) GetMovementHistory(ctx context.Context, variantID id.ID, filter ledger.MovementFilter) ([]entity.StockMovement, error) {
	return nil, nil
}

func (r *memAggregates) AdjustReturnedAggregate(ctx context.Context, productID id.ID, delta types.Quantity) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.aggregates[productID] + delta
	if next.IsNegative() {
		return 0, apperror.NewInsufficientStock(productID.String(), delta.Neg(), r.aggregates[productID])
	}
	r.aggregates[productID] = next
	return next, nil
}

func (r *memAggregates) GetReturnedAggregate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregates[productID], nil
}

// memOrderStore holds one sale order with lines.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[id.ID]*orders.Order
	lines  map[id.ID]*orders.OrderLine
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{
		orders: make(map[id.ID]*orders.Order),
		lines:  make(map[id.ID]*orders.OrderLine),
	}
}

func (s *memOrderStore) add(o *orders.Order) {
	s.orders[o.ID] = o
	for i := range o.Lines {
		s.lines[o.Lines[i].LineID] = &o.Lines[i]
	}
}

func (s *memOrderStore) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	return o, nil
}

func (s *memOrderStore) FindLineByProductForUpdate(ctx context.Context, orderID, productID id.ID) (*orders.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	for _, l := range o.Lines {
		if l.ProductID == productID {
			cp := *s.lines[l.LineID]
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("order line", productID.String())
}

func (s *memOrderStore) GetLineForUpdate(ctx context.Context, lineID id.ID) (*orders.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("order line", lineID.String())
	}
	cp := *l
	return &cp, nil
}

func (s *memOrderStore) UpdateLineReturned(ctx context.Context, lineID id.ID, returned types.Quantity, fullyReturned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok {
		return apperror.NewNotFound("order line", lineID.String())
	}
	l.ReturnedQuantity = returned
	l.FullyReturned = fullyReturned
	return nil
}

// memReturnRepo is an in-memory return store.
type memReturnRepo struct {
	mu      sync.Mutex
	returns map[id.ID]*Return
}

func newMemReturnRepo() *memReturnRepo {
	return &memReturnRepo{returns: make(map[id.ID]*Return)}
}

func (r *memReturnRepo) Create(ctx context.Context, ret *Return) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ret
	r.returns[ret.ID] = &cp
	return nil
}

func (r *memReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*Return, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret, ok := r.returns[returnID]
	if !ok {
		return nil, apperror.NewNotFound("return", returnID.String())
	}
	cp := *ret
	return &cp, nil
}

func (r *memReturnRepo) GetByIDForUpdate(ctx context.Context, returnID id.ID) (*Return, error) {
	return r.GetByID(ctx, returnID)
}

func (r *memReturnRepo) UpdateStatus(ctx context.Context, ret *Return) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.returns[ret.ID]
	if !ok {
		return apperror.NewNotFound("return", ret.ID.String())
	}
	stored.Status = ret.Status
	stored.Version = ret.Version
	return nil
}

func (r *memReturnRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*Return, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Return
	for _, ret := range r.returns {
		if ret.OrderID == orderID {
			cp := *ret
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memReturnRepo) ListByLine(ctx context.Context, lineID id.ID, activeOnly bool) ([]*Return, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Return
	for _, ret := range r.returns {
		if ret.LineID == lineID && (!activeOnly || ret.IsActive()) {
			cp := *ret
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memReturnRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Return], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*Return
	for _, ret := range r.returns {
		cp := *ret
		items = append(items, &cp)
	}
	return domain.ListResult[*Return]{Items: items, TotalCount: int64(len(items))}, nil
}

// fixture wires a return service over one sale order with a 4-unit line.
type fixture struct {
	svc        *Service
	store      *memOrderStore
	repo       *memReturnRepo
	aggregates *memAggregates
	order      *orders.Order
	line       orders.OrderLine
}

func newFixture(t *testing.T, policy *Policy) *fixture {
	t.Helper()

	order := orders.New(orders.KindSale, id.New())
	order.AddLine(id.New(), id.New(), 4, 1999)
	order.Number = "ORD-2026-00001"

	store := newMemOrderStore()
	store.add(order)

	repo := newMemReturnRepo()
	aggregates := newMemAggregates()

	svc := NewService(
		repo,
		store,
		ledger.NewService(aggregates),
		passTx{},
		numerator.New(&seqQuerier{}),
		policy,
		events.NopPublisher{},
		events.NopAuditTrail{},
	)

	return &fixture{
		svc:        svc,
		store:      store,
		repo:       repo,
		aggregates: aggregates,
		order:      order,
		line:       order.Lines[0],
	}
}

func (f *fixture) createInput(qty types.Quantity) CreateInput {
	return CreateInput{
		OrderID:   f.order.ID,
		ProductID: f.line.ProductID,
		Quantity:  qty,
		Reason:    "defective",
	}
}

// --- tests ---

func TestCreate_PartialReturn(t *testing.T) {
	// Scenario: line qty 4, return 2 accepted, then 3 rejected (2+3 > 4)
	f := newFixture(t, nil)
	ctx := context.Background()

	ret, err := f.svc.Create(ctx, f.createInput(2))
	require.NoError(t, err)

	assert.Equal(t, StatusActive, ret.Status)
	assert.Equal(t, types.Quantity(2), ret.Quantity)
	assert.Equal(t, types.MinorUnits(2*1999), ret.Amount)
	assert.NotEmpty(t, ret.Number)

	line, _ := f.store.GetLineForUpdate(ctx, f.line.LineID)
	assert.Equal(t, types.Quantity(2), line.ReturnedQuantity)
	assert.False(t, line.FullyReturned)

	agg, _ := f.aggregates.GetReturnedAggregate(ctx, f.line.ProductID)
	assert.Equal(t, types.Quantity(2), agg)

	_, err = f.svc.Create(ctx, f.createInput(3))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeReturnExceedsSold, appErr.Code)
	assert.Equal(t, int64(3), appErr.Details["requested"])
	assert.Equal(t, int64(2), appErr.Details["remaining"])
}

func TestCreate_FullReturnSetsFlag(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.createInput(4))
	require.NoError(t, err)

	line, _ := f.store.GetLineForUpdate(ctx, f.line.LineID)
	assert.Equal(t, types.Quantity(4), line.ReturnedQuantity)
	assert.True(t, line.FullyReturned)
}

func TestCreate_CancelledOrderRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.order.MarkCancelled("test")

	_, err := f.svc.Create(context.Background(), f.createInput(1))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeOrderCancelled, appErr.Code)
}

func TestCreate_PurchaseOrderRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.order.Kind = orders.KindPurchase

	_, err := f.svc.Create(context.Background(), f.createInput(1))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCreate_UnknownLineRejected(t *testing.T) {
	f := newFixture(t, nil)

	in := f.createInput(1)
	in.ProductID = id.New()
	_, err := f.svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_PolicyRejection(t *testing.T) {
	policy, err := NewPolicy(`reason != "buyer remorse"`)
	require.NoError(t, err)
	f := newFixture(t, policy)

	in := f.createInput(1)
	in.Reason = "buyer remorse"
	_, err = f.svc.Create(context.Background(), in)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeReturnPolicy, appErr.Code)

	// Nothing persisted
	list, _ := f.repo.ListByOrder(context.Background(), f.order.ID)
	assert.Empty(t, list)
}

func TestCreate_DefaultPolicyWindowExpired(t *testing.T) {
	f := newFixture(t, nil)
	f.order.CreatedAt = time.Now().UTC().AddDate(0, 0, -120)

	_, err := f.svc.Create(context.Background(), f.createInput(1))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeReturnPolicy, appErr.Code)
}

func TestToggle_AnnulReleasesQuantity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ret, err := f.svc.Create(ctx, f.createInput(3))
	require.NoError(t, err)

	toggled, err := f.svc.Toggle(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAnnulled, toggled.Status)

	line, _ := f.store.GetLineForUpdate(ctx, f.line.LineID)
	assert.Equal(t, types.Quantity(0), line.ReturnedQuantity)

	agg, _ := f.aggregates.GetReturnedAggregate(ctx, f.line.ProductID)
	assert.Equal(t, types.Quantity(0), agg)
}

func TestToggle_ReinstateReoccupiesQuantity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ret, err := f.svc.Create(ctx, f.createInput(3))
	require.NoError(t, err)

	_, err = f.svc.Toggle(ctx, ret.ID)
	require.NoError(t, err)

	reinstated, err := f.svc.Toggle(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, reinstated.Status)

	line, _ := f.store.GetLineForUpdate(ctx, f.line.LineID)
	assert.Equal(t, types.Quantity(3), line.ReturnedQuantity)

	agg, _ := f.aggregates.GetReturnedAggregate(ctx, f.line.ProductID)
	assert.Equal(t, types.Quantity(3), agg)
}

func TestToggle_ReinstateBoundedBySold(t *testing.T) {
	// Annul a 3-unit return, fill the line with a new 4-unit return,
	// then reinstating the first must fail (3 + 4 > 4).
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.createInput(3))
	require.NoError(t, err)

	_, err = f.svc.Toggle(ctx, first.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.createInput(4))
	require.NoError(t, err)

	_, err = f.svc.Toggle(ctx, first.ID)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeReturnExceedsSold, appErr.Code)

	// Line untouched by the failed reinstate
	line, _ := f.store.GetLineForUpdate(ctx, f.line.LineID)
	assert.Equal(t, types.Quantity(4), line.ReturnedQuantity)
}

func TestToggle_UnknownReturn(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Toggle(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestBoundedReturns_ActiveSumNeverExceedsSold(t *testing.T) {
	// Random-ish sequence of creates and toggles; after every step the
	// sum of active return quantities stays within the line quantity.
	f := newFixture(t, nil)
	ctx := context.Background()

	checkInvariant := func() {
		active, err := f.repo.ListByLine(ctx, f.line.LineID, true)
		require.NoError(t, err)
		var sum types.Quantity
		for _, r := range active {
			sum += r.Quantity
		}
		assert.LessOrEqual(t, sum.Int64(), f.line.Quantity.Int64())

		line, _ := f.store.GetLineForUpdate(ctx, f.line.LineID)
		assert.Equal(t, sum, line.ReturnedQuantity)
	}

	r1, err := f.svc.Create(ctx, f.createInput(2))
	require.NoError(t, err)
	checkInvariant()

	r2, err := f.svc.Create(ctx, f.createInput(2))
	require.NoError(t, err)
	checkInvariant()

	_, err = f.svc.Create(ctx, f.createInput(1))
	require.Error(t, err)
	checkInvariant()

	_, err = f.svc.Toggle(ctx, r1.ID)
	require.NoError(t, err)
	checkInvariant()

	_, err = f.svc.Create(ctx, f.createInput(2))
	require.NoError(t, err)
	checkInvariant()

	_, err = f.svc.Toggle(ctx, r1.ID)
	require.Error(t, err)
	checkInvariant()

	_, err = f.svc.Toggle(ctx, r2.ID)
	require.NoError(t, err)
	checkInvariant()

	_, err = f.svc.Toggle(ctx, r1.ID)
	require.NoError(t, err)
	checkInvariant()
}

func TestPolicy_CompileErrors(t *testing.T) {
	_, err := NewPolicy("quantity <")
	require.Error(t, err)

	_, err = NewPolicy("quantity + 1")
	require.Error(t, err)
}
