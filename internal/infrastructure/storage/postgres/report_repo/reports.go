// Package report_repo provides PostgreSQL implementations for report
// repositories.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/reports"
	"stockbook/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetTurnover calculates receipt/expense totals per variant for the
// period from the movement journal. The opening balance is the signed
// movement sum before the period start.
func (r *ReportRepo) GetTurnover(ctx context.Context, filter reports.TurnoverFilter) ([]reports.Turnover, error) {
	query := `
		SELECT
			m.product_id,
			m.variant_id,
			COALESCE(SUM(CASE WHEN m.created_at < $1 THEN
				CASE WHEN m.direction = 'receipt' THEN m.quantity ELSE -m.quantity END
			ELSE 0 END), 0) AS opening_balance,
			COALESCE(SUM(CASE WHEN m.created_at >= $1 AND m.created_at < $2 AND m.direction = 'receipt'
				THEN m.quantity ELSE 0 END), 0) AS receipt,
			COALESCE(SUM(CASE WHEN m.created_at >= $1 AND m.created_at < $2 AND m.direction = 'expense'
				THEN m.quantity ELSE 0 END), 0) AS expense,
			COALESCE(SUM(CASE WHEN m.created_at < $2 THEN
				CASE WHEN m.direction = 'receipt' THEN m.quantity ELSE -m.quantity END
			ELSE 0 END), 0) AS closing_balance
		FROM stock_movements m
		WHERE m.created_at < $2
	`
	args := []any{filter.FromDate, filter.ToDate}

	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		query += fmt.Sprintf(" AND m.product_id = $%d", len(args))
	}
	if filter.VariantID != nil {
		args = append(args, *filter.VariantID)
		query += fmt.Sprintf(" AND m.variant_id = $%d", len(args))
	}

	query += `
		GROUP BY m.product_id, m.variant_id
		ORDER BY m.product_id, m.variant_id
	`

	var rows []reports.Turnover
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("turnover query: %w", err)
	}

	return rows, nil
}

// GetReturnSummary aggregates active returns per product from the
// return documents.
func (r *ReportRepo) GetReturnSummary(ctx context.Context, productID *id.ID) ([]reports.ReturnSummary, error) {
	q := r.builder.
		Select(
			"product_id",
			"COUNT(*) AS active_returns",
			"COALESCE(SUM(quantity), 0) AS total_quantity",
		).
		From("doc_returns").
		Where(squirrel.Eq{"status": "active"}).
		GroupBy("product_id").
		OrderBy("product_id")

	if productID != nil {
		q = q.Where(squirrel.Eq{"product_id": *productID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []reports.ReturnSummary
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("return summary query: %w", err)
	}

	return rows, nil
}

// GetReturnedAggregates reads the stored product-level counters.
func (r *ReportRepo) GetReturnedAggregates(ctx context.Context, productID *id.ID) (map[id.ID]types.Quantity, error) {
	q := r.builder.
		Select("product_id", "quantity").
		From("agg_returned_stock")

	if productID != nil {
		q = q.Where(squirrel.Eq{"product_id": *productID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []struct {
		ProductID id.ID          `db:"product_id"`
		Quantity  types.Quantity `db:"quantity"`
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("returned aggregates query: %w", err)
	}

	counters := make(map[id.ID]types.Quantity, len(rows))
	for _, row := range rows {
		counters[row.ProductID] = row.Quantity
	}

	return counters, nil
}

// GetStockSnapshot returns current counters per variant.
func (r *ReportRepo) GetStockSnapshot(ctx context.Context, filter reports.SnapshotFilter) ([]reports.StockSnapshot, error) {
	q := r.builder.
		Select("product_id", "id AS variant_id", "sku", "stock_quantity").
		From("cat_variants").
		OrderBy("sku ASC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.Gt{"stock_quantity": 0})
	}
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

	var rows []reports.StockSnapshot
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("stock snapshot query: %w", err)
	}

	return rows, nil
}

var _ reports.Repository = (*ReportRepo)(nil)
