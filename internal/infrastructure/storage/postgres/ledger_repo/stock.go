// Package ledger_repo provides the PostgreSQL implementation of the
// stock ledger repository. This package is the only writer of
// cat_variants.stock_quantity and agg_returned_stock.quantity.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/ledger"
	"stockbook/internal/infrastructure/storage/postgres"
)

const (
	variantsTable  = "cat_variants"
	movementsTable = "stock_movements"
	returnedTable  = "agg_returned_stock"
)

var movementCols = []string{
	"line_id", "recorder_id", "recorder_type", "direction",
	"product_id", "variant_id", "quantity", "created_at",
}

// StockRepo implements ledger.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// AdjustStock applies delta to a variant counter. The non-negativity
// condition rides on the UPDATE itself, so under any interleaving the
// counter can never go below zero regardless of what the caller
// pre-checked.
func (r *StockRepo) AdjustStock(ctx context.Context, variantID id.ID, delta types.Quantity) (types.Quantity, error) {
	querier := r.txManager.GetQuerier(ctx)

	var newQty types.Quantity
	err := querier.QueryRow(ctx, `
		UPDATE `+variantsTable+`
		SET stock_quantity = stock_quantity + $1
		WHERE id = $2 AND stock_quantity + $1 >= 0
		RETURNING stock_quantity
	`, delta, variantID).Scan(&newQty)

	if err == nil {
		return newQty, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	// No row updated: either the variant is missing or the condition
	// failed. Re-read to tell the two apart.
	current, getErr := r.GetStock(ctx, variantID)
	if getErr != nil {
		return 0, getErr
	}

	return 0, apperror.NewInsufficientStock(variantID.String(), delta.Neg(), current)
}

// GetStock returns the current counter without locking.
func (r *StockRepo) GetStock(ctx context.Context, variantID id.ID) (types.Quantity, error) {
	querier := r.txManager.GetQuerier(ctx)

	var qty types.Quantity
	err := querier.QueryRow(ctx,
		`SELECT stock_quantity FROM `+variantsTable+` WHERE id = $1`,
		variantID,
	).Scan(&qty)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperror.NewNotFound("variant", variantID.String())
	}
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}

	return qty, nil
}

// GetStocksForUpdate locks the variant rows in ascending ID order and
// returns their counters. The fixed lock order keeps concurrent
// multi-line documents from deadlocking against each other.
func (r *StockRepo) GetStocksForUpdate(ctx context.Context, variantIDs []id.ID) (map[id.ID]types.Quantity, error) {
	if len(variantIDs) == 0 {
		return map[id.ID]types.Quantity{}, nil
	}

	sorted := make([]id.ID, len(variantIDs))
	copy(sorted, variantIDs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	sql, args, err := r.builder.
		Select("id", "stock_quantity").
		From(variantsTable).
		Where(squirrel.Eq{"id": sorted}).
		OrderBy("id ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []struct {
		ID            id.ID          `db:"id"`
		StockQuantity types.Quantity `db:"stock_quantity"`
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("lock stocks: %w", err)
	}

	stocks := make(map[id.ID]types.Quantity, len(rows))
	for _, row := range rows {
		stocks[row.ID] = row.StockQuantity
	}

	for _, vid := range sorted {
		if _, ok := stocks[vid]; !ok {
			return nil, apperror.NewNotFound("variant", vid.String())
		}
	}

	return stocks, nil
}

// CreateMovements batch inserts journal entries.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, movementValues(m))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementCols, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementCols...)
	for _, m := range movements {
		q = q.Values(movementValues(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

func movementValues(m entity.StockMovement) []any {
	return []any{
		m.LineID, m.RecorderID, m.RecorderType, m.Direction,
		m.ProductID, m.VariantID, m.Quantity, m.CreatedAt,
	}
}

// GetMovementsByRecorder retrieves all movements for a document.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	sql, args, err := r.builder.
		Select(movementCols...).
		From(movementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("get movements: %w", err)
	}

	return movements, nil
}

// GetMovementHistory returns movement history for a variant.
func (r *StockRepo) GetMovementHistory(ctx context.Context, variantID id.ID, filter ledger.MovementFilter) ([]entity.StockMovement, error) {
	q := r.builder.
		Select(movementCols...).
		From(movementsTable).
		Where(squirrel.Eq{"variant_id": variantID})

	if filter.Direction != nil {
		q = q.Where(squirrel.Eq{"direction": *filter.Direction})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("get movement history: %w", err)
	}

	return movements, nil
}

// AdjustReturnedAggregate applies delta to the product-level
// returned-stock counter, creating the row on first use.
func (r *StockRepo) AdjustReturnedAggregate(ctx context.Context, productID id.ID, delta types.Quantity) (types.Quantity, error) {
	if delta == 0 {
		return r.GetReturnedAggregate(ctx, productID)
	}

	querier := r.txManager.GetQuerier(ctx)

	if delta.IsNegative() {
		// A decrement can only apply to an existing row, and the
		// condition rides on the UPDATE like AdjustStock.
		var newQty types.Quantity
		err := querier.QueryRow(ctx, `
			UPDATE `+returnedTable+`
			SET quantity = quantity + $1, updated_at = now()
			WHERE product_id = $2 AND quantity + $1 >= 0
			RETURNING quantity
		`, delta, productID).Scan(&newQty)

		if errors.Is(err, pgx.ErrNoRows) {
			current, getErr := r.GetReturnedAggregate(ctx, productID)
			if getErr != nil {
				return 0, getErr
			}
			return 0, apperror.NewInsufficientStock(productID.String(), delta.Neg(), current)
		}
		if err != nil {
			return 0, fmt.Errorf("adjust returned aggregate: %w", err)
		}
		return newQty, nil
	}

	var newQty types.Quantity
	err := querier.QueryRow(ctx, `
		INSERT INTO `+returnedTable+` (product_id, quantity, updated_at)
		VALUES ($2, $1, now())
		ON CONFLICT (product_id) DO UPDATE
		SET quantity = `+returnedTable+`.quantity + $1, updated_at = now()
		RETURNING quantity
	`, delta, productID).Scan(&newQty)
	if err != nil {
		return 0, fmt.Errorf("adjust returned aggregate: %w", err)
	}

	return newQty, nil
}

// GetReturnedAggregate returns the product-level counter, zero when the
// product has never seen a return.
func (r *StockRepo) GetReturnedAggregate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	var qty types.Quantity
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT quantity FROM `+returnedTable+` WHERE product_id = $1`,
		productID,
	).Scan(&qty)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get returned aggregate: %w", err)
	}

	return qty, nil
}

var _ ledger.Repository = (*StockRepo)(nil)
