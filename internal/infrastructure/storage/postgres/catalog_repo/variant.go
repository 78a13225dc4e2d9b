package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/domain"
	"stockbook/internal/domain/catalogs/variant"
	"stockbook/internal/infrastructure/storage/postgres"
)

const variantTable = "cat_variants"

// VariantRepo implements variant.Repository.
// It does not embed BaseCatalogRepo: variants key on SKU rather than
// code, and stock_quantity is owned by the ledger repository, so every
// write here must leave that column alone.
type VariantRepo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

// NewVariantRepo creates a new variant repository.
func NewVariantRepo(txManager *postgres.TxManager) *VariantRepo {
	return &VariantRepo{
		txManager:  txManager,
		selectCols: postgres.ExtractDBColumns[variant.Variant](),
	}
}

func (r *VariantRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *VariantRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().
		Select(r.selectCols...).
		From(variantTable)
}

// Create inserts a new variant. The stock counter starts at whatever
// the model carries (zero for catalog-created variants).
func (r *VariantRepo) Create(ctx context.Context, v *variant.Variant) error {
	data := postgres.StructToMap(v)

	q := r.builder().
		Insert(variantTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("variant", "sku", v.SKU).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", variantTable, err)
	}

	return nil
}

// GetByID retrieves a variant by ID.
func (r *VariantRepo) GetByID(ctx context.Context, variantID id.ID) (*variant.Variant, error) {
	return r.getOne(ctx, squirrel.Eq{"id": variantID}, variantID.String())
}

// GetBySKU retrieves a variant by SKU.
func (r *VariantRepo) GetBySKU(ctx context.Context, sku string) (*variant.Variant, error) {
	return r.getOne(ctx, squirrel.Eq{"sku": sku}, sku)
}

func (r *VariantRepo) getOne(ctx context.Context, cond squirrel.Eq, key string) (*variant.Variant, error) {
	v := &variant.Variant{}

	sql, args, err := r.baseSelect().Where(cond).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), v, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("variant", key)
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	return v, nil
}

// GetByProduct retrieves all variants of a product.
func (r *VariantRepo) GetByProduct(ctx context.Context, productID id.ID) ([]*variant.Variant, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("sku ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*variant.Variant
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get by product: %w", err)
	}

	return items, nil
}

// Update modifies label, price and active flag with optimistic locking.
// stock_quantity is explicitly excluded from the SET list.
func (r *VariantRepo) Update(ctx context.Context, v *variant.Variant) error {
	q := r.builder().
		Update(variantTable).
		Set("product_id", v.ProductID).
		Set("sku", v.SKU).
		Set("label", v.Label).
		Set("sale_price", v.SalePrice).
		Set("active", v.Active).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": v.ID}).
		Where(squirrel.Eq{"version": v.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", variantTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("variant", v.ID)
	}

	return nil
}

// SetActive retires or reinstates a variant.
func (r *VariantRepo) SetActive(ctx context.Context, variantID id.ID, active bool) error {
	q := r.builder().
		Update(variantTable).
		Set("active", active).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": variantID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set active: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("execute set active: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("variant", variantID.String())
	}

	return nil
}

// List retrieves variants with filtering and pagination.
func (r *VariantRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*variant.Variant], error) {
	result := domain.ListResult[*variant.Variant]{
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
			squirrel.ILike{"sku": pattern},
			squirrel.ILike{"label": pattern},
		})
	}

	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}

	countSQL, countArgs, err := r.builder().
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

// Exists checks if a variant with the given ID exists.
func (r *VariantRepo) Exists(ctx context.Context, variantID id.ID) (bool, error) {
	return r.existsWhere(ctx, squirrel.Eq{"id": variantID})
}

// ExistsBySKU checks if a variant with the given SKU exists.
func (r *VariantRepo) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	return r.existsWhere(ctx, squirrel.Eq{"sku": sku})
}

func (r *VariantRepo) existsWhere(ctx context.Context, cond squirrel.Eq) (bool, error) {
	sql, args, err := r.builder().
		Select("1").
		From(variantTable).
		Where(cond).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists int
	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	return true, nil
}

func (r *VariantRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if orderBy == "" {
		return "sku ASC", nil
	}

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
