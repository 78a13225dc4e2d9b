package returns

import (
	"context"
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/domain"
)

// Repository defines storage operations for returns.
type Repository interface {
	// Create inserts the return document
	Create(ctx context.Context, r *Return) error

	// GetByID retrieves a return
	GetByID(ctx context.Context, returnID id.ID) (*Return, error)

	// GetByIDForUpdate retrieves a return with a row lock.
	// Used by toggling so concurrent flips serialize.
	GetByIDForUpdate(ctx context.Context, returnID id.ID) (*Return, error)

	// UpdateStatus persists a status flip with optimistic locking
	UpdateStatus(ctx context.Context, r *Return) error

	// ListByOrder retrieves all returns against an order
	ListByOrder(ctx context.Context, orderID id.ID) ([]*Return, error)

	// ListByLine retrieves returns against a line, optionally active only
	ListByLine(ctx context.Context, lineID id.ID, activeOnly bool) ([]*Return, error)

	// List retrieves returns with filtering
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Return], error)
}

// ListFilter for filtering return lists.
type ListFilter struct {
	OrderID  *id.ID
	Status   *Status
	FromDate *time.Time
	ToDate   *time.Time
	OrderBy  string
	Limit    int
	Offset   int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}
