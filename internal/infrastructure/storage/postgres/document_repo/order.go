// Package document_repo provides PostgreSQL implementations for
// document repositories (orders, returns).
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain"
	"stockbook/internal/domain/orders"
	"stockbook/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "doc_orders"
	orderLinesTable = "doc_order_lines"
)

var orderLineCols = []string{
	"line_id", "order_id", "line_no", "product_id", "variant_id",
	"quantity", "unit_price", "amount", "returned_quantity", "fully_returned",
}

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[orders.Order](),
	}
}

// Create inserts the order header.
func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	data := postgres.StructToMap(o)

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.builder.
		Insert(ordersTable).
		SetMap(filtered).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// SaveLines inserts the order lines with COPY.
func (r *OrderRepo) SaveLines(ctx context.Context, orderID id.ID, lines []orders.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	inserter := postgres.NewBatchInserter(r.txManager)
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{
			l.LineID, orderID, l.LineNo, l.ProductID, l.VariantID,
			l.Quantity, l.UnitPrice, l.Amount, l.ReturnedQuantity, l.FullyReturned,
		})
	}

	if _, err := inserter.CopyFromSlice(ctx, orderLinesTable, orderLineCols, rows); err != nil {
		return fmt.Errorf("copy order lines: %w", err)
	}

	return nil
}

func (r *OrderRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(r.selectCols...).
		From(ordersTable)
}

// GetByID retrieves the header without lines.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.getHeader(ctx, orderID, false)
}

// GetByIDForUpdate retrieves the header with a row lock.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.getHeader(ctx, orderID, true)
}

func (r *OrderRepo) getHeader(ctx context.Context, orderID id.ID, forUpdate bool) (*orders.Order, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": orderID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	o := &orders.Order{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

// GetLines retrieves all lines of an order.
func (r *OrderRepo) GetLines(ctx context.Context, orderID id.ID) ([]orders.OrderLine, error) {
	sql, args, err := r.builder.
		Select(orderLineCols...).
		From(orderLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []orders.OrderLine
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// FindLineByProduct resolves the line by order + product.
func (r *OrderRepo) FindLineByProduct(ctx context.Context, orderID, productID id.ID) (*orders.OrderLine, error) {
	return r.findLine(ctx, squirrel.Eq{"order_id": orderID, "product_id": productID}, false, productID.String())
}

// FindLineByProductForUpdate resolves the line with a row lock.
func (r *OrderRepo) FindLineByProductForUpdate(ctx context.Context, orderID, productID id.ID) (*orders.OrderLine, error) {
	return r.findLine(ctx, squirrel.Eq{"order_id": orderID, "product_id": productID}, true, productID.String())
}

// GetLineForUpdate retrieves a line by ID with a row lock.
func (r *OrderRepo) GetLineForUpdate(ctx context.Context, lineID id.ID) (*orders.OrderLine, error) {
	return r.findLine(ctx, squirrel.Eq{"line_id": lineID}, true, lineID.String())
}

func (r *OrderRepo) findLine(ctx context.Context, cond squirrel.Eq, forUpdate bool, key string) (*orders.OrderLine, error) {
	q := r.builder.
		Select(orderLineCols...).
		From(orderLinesTable).
		Where(cond).
		OrderBy("line_no ASC").
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	line := &orders.OrderLine{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order line", key)
		}
		return nil, fmt.Errorf("find line: %w", err)
	}

	return line, nil
}

// UpdateStatus persists the cancel transition with optimistic locking.
// Callers Touch the document first, so the in-memory version is one
// ahead of the stored row.
func (r *OrderRepo) UpdateStatus(ctx context.Context, o *orders.Order) error {
	sql, args, err := r.builder.
		Update(ordersTable).
		Set("status", o.Status).
		Set("cancel_reason", o.CancelReason).
		Set("cancelled_at", o.CancelledAt).
		Set("updated_at", o.UpdatedAt).
		Set("updated_by", o.UpdatedBy).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": o.ID}).
		Where(squirrel.Eq{"version": o.Version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("order", o.ID)
	}

	return nil
}

// UpdateLineReturned persists the return-tracking fields of a line.
func (r *OrderRepo) UpdateLineReturned(ctx context.Context, lineID id.ID, returned types.Quantity, fullyReturned bool) error {
	sql, args, err := r.builder.
		Update(orderLinesTable).
		Set("returned_quantity", returned).
		Set("fully_returned", fullyReturned).
		Where(squirrel.Eq{"line_id": lineID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update line returned: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order line", lineID.String())
	}

	return nil
}

// List retrieves order headers with filtering.
func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	result := domain.ListResult[*orders.Order]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.CounterpartyID != nil {
		q = q.Where(squirrel.Eq{"counterparty_id": *filter.CounterpartyID})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}

	countSQL, countArgs, err := r.builder.
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := parseDocOrderBy(filter.OrderBy, r.selectCols)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list orders: %w", err)
	}

	return result, nil
}

var _ orders.Repository = (*OrderRepo)(nil)
