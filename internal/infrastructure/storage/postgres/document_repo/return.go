package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/domain"
	"stockbook/internal/domain/returns"
	"stockbook/internal/infrastructure/storage/postgres"
)

const returnsTable = "doc_returns"

// ReturnRepo implements returns.Repository.
type ReturnRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewReturnRepo creates a new return repository.
func NewReturnRepo(txManager *postgres.TxManager) *ReturnRepo {
	return &ReturnRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[returns.Return](),
	}
}

func (r *ReturnRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(r.selectCols...).
		From(returnsTable)
}

// Create inserts the return document.
func (r *ReturnRepo) Create(ctx context.Context, ret *returns.Return) error {
	data := postgres.StructToMap(ret)

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.builder.
		Insert(returnsTable).
		SetMap(filtered).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert return: %w", err)
	}

	return nil
}

// GetByID retrieves a return.
func (r *ReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*returns.Return, error) {
	return r.getOne(ctx, returnID, false)
}

// GetByIDForUpdate retrieves a return with a row lock.
func (r *ReturnRepo) GetByIDForUpdate(ctx context.Context, returnID id.ID) (*returns.Return, error) {
	return r.getOne(ctx, returnID, true)
}

func (r *ReturnRepo) getOne(ctx context.Context, returnID id.ID, forUpdate bool) (*returns.Return, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": returnID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	ret := &returns.Return{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), ret, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("return", returnID.String())
		}
		return nil, fmt.Errorf("get return: %w", err)
	}

	return ret, nil
}

// UpdateStatus persists a status flip with optimistic locking.
// Callers Touch the document first, so the in-memory version is one
// ahead of the stored row.
func (r *ReturnRepo) UpdateStatus(ctx context.Context, ret *returns.Return) error {
	sql, args, err := r.builder.
		Update(returnsTable).
		Set("status", ret.Status).
		Set("updated_at", ret.UpdatedAt).
		Set("updated_by", ret.UpdatedBy).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": ret.ID}).
		Where(squirrel.Eq{"version": ret.Version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update return status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("return", ret.ID)
	}

	return nil
}

// ListByOrder retrieves all returns against an order.
func (r *ReturnRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*returns.Return, error) {
	return r.list(ctx, squirrel.Eq{"order_id": orderID})
}

// ListByLine retrieves returns against a line, optionally active only.
func (r *ReturnRepo) ListByLine(ctx context.Context, lineID id.ID, activeOnly bool) ([]*returns.Return, error) {
	cond := squirrel.Eq{"line_id": lineID}
	if activeOnly {
		cond["status"] = returns.StatusActive
	}
	return r.list(ctx, cond)
}

func (r *ReturnRepo) list(ctx context.Context, cond squirrel.Eq) ([]*returns.Return, error) {
	sql, args, err := r.baseSelect().
		Where(cond).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*returns.Return
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}

	return items, nil
}

// List retrieves returns with filtering.
func (r *ReturnRepo) List(ctx context.Context, filter returns.ListFilter) (domain.ListResult[*returns.Return], error) {
	result := domain.ListResult[*returns.Return]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
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
		return result, fmt.Errorf("list returns: %w", err)
	}

	return result, nil
}

var _ returns.Repository = (*ReturnRepo)(nil)
