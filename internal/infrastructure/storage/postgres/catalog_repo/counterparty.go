package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockbook/internal/core/apperror"
	"stockbook/internal/domain/catalogs/counterparty"
	"stockbook/internal/infrastructure/storage/postgres"
)

const counterpartyTable = "cat_counterparties"

// CounterpartyRepo implements counterparty.Repository.
type CounterpartyRepo struct {
	*BaseCatalogRepo[*counterparty.Counterparty]
}

// NewCounterpartyRepo creates a new counterparty repository.
func NewCounterpartyRepo(txManager *postgres.TxManager) *CounterpartyRepo {
	return &CounterpartyRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*counterparty.Counterparty](
			txManager,
			counterpartyTable,
			"counterparty",
			postgres.ExtractDBColumns[counterparty.Counterparty](),
			func() *counterparty.Counterparty { return &counterparty.Counterparty{} },
		),
	}
}

// FindByType retrieves active counterparties of a given type, including
// the "both" entries that satisfy either role.
func (r *CounterpartyRepo) FindByType(ctx context.Context, cpType counterparty.Type) ([]*counterparty.Counterparty, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"type": []counterparty.Type{cpType, counterparty.TypeBoth}}).
		Where(squirrel.Eq{"active": true}).
		OrderBy("name ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var items []*counterparty.Counterparty
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, err
	}

	return items, nil
}
