// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/domain"
	"stockbook/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo provides common CRUD operations for catalog entities.
// Embed this in specific catalog repositories.
type BaseCatalogRepo[T any] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](
	txManager *postgres.TxManager,
	tableName string,
	entityName string,
	selectCols []string,
	newFn func() T,
) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the transaction-aware querier for the context.
func (r *BaseCatalogRepo[T]) Querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new entity using its "db" tags.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	// Only columns that exist in the table
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(r.tableName).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate(r.entityName, "code", fmt.Sprint(data["code"])).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}

	return nil
}

// Update modifies an existing entity with optimistic locking.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	entityID, ok := data["id"]
	if !ok {
		return fmt.Errorf("entity has no 'id' field with db tag")
	}

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "version" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(r.tableName).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entityName, entityID)
	}

	return nil
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves entity by ID.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	entity := r.newFn()

	q := r.baseSelect().
		Where(squirrel.Eq{"id": entityID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, entityID.String())
		}
		return entity, fmt.Errorf("get by id: %w", err)
	}

	return entity, nil
}

// GetByCode retrieves entity by code.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	entity := r.newFn()

	q := r.baseSelect().
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, code)
		}
		return entity, fmt.Errorf("get by code: %w", err)
	}

	return entity, nil
}

// SetActive retires or reinstates an entry.
func (r *BaseCatalogRepo[T]) SetActive(ctx context.Context, entityID id.ID, active bool) error {
	q := r.Builder().
		Update(r.tableName).
		Set("active", active).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set active: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("execute set active: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}

	return nil
}

// List retrieves entities with filtering and pagination.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"active": true})
	}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}

	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}

	// Count before pagination
	countQ := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub")

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
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
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

// Exists checks if entity exists.
func (r *BaseCatalogRepo[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	return r.existsWhere(ctx, squirrel.Eq{"id": entityID})
}

// ExistsByCode checks if entity with given code exists.
func (r *BaseCatalogRepo[T]) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return r.existsWhere(ctx, squirrel.Eq{"code": code})
}

func (r *BaseCatalogRepo[T]) existsWhere(ctx context.Context, cond squirrel.Eq) (bool, error) {
	q := r.Builder().
		Select("1").
		From(r.tableName).
		Where(cond).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists int
	err = r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	return true, nil
}

func (r *BaseCatalogRepo[T]) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if orderBy == "" {
		return "code ASC", nil
	}

	// "-field" sorts DESC
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// isUniqueViolation reports a PostgreSQL unique constraint error (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
