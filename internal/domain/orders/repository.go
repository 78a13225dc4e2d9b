package orders

import (
	"context"
	"time"

	"stockbook/internal/core/id"
	"stockbook/internal/core/types"
	"stockbook/internal/domain"
)

// Repository defines storage operations for orders.
type Repository interface {
	// Create inserts the order header
	Create(ctx context.Context, o *Order) error

	// SaveLines inserts the order lines
	SaveLines(ctx context.Context, orderID id.ID, lines []OrderLine) error

	// GetByID retrieves the header without lines
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// GetByIDForUpdate retrieves the header with a row lock.
	// Used by cancellation so concurrent cancels serialize.
	GetByIDForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	// GetLines retrieves all lines of an order
	GetLines(ctx context.Context, orderID id.ID) ([]OrderLine, error)

	// FindLineByProduct resolves the sale line by order + product
	FindLineByProduct(ctx context.Context, orderID, productID id.ID) (*OrderLine, error)

	// FindLineByProductForUpdate resolves the line with a row lock.
	// Used by the return engine during bound check + update.
	FindLineByProductForUpdate(ctx context.Context, orderID, productID id.ID) (*OrderLine, error)

	// GetLineForUpdate retrieves a line by ID with a row lock
	GetLineForUpdate(ctx context.Context, lineID id.ID) (*OrderLine, error)

	// UpdateStatus persists the cancel transition with optimistic locking
	UpdateStatus(ctx context.Context, o *Order) error

	// UpdateLineReturned persists the return-tracking fields of a line
	UpdateLineReturned(ctx context.Context, lineID id.ID, returned types.Quantity, fullyReturned bool) error

	// List retrieves order headers with filtering
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)
}

// ListFilter for filtering order lists.
type ListFilter struct {
	Kind           *Kind
	Status         *Status
	CounterpartyID *id.ID
	FromDate       *time.Time
	ToDate         *time.Time
	OrderBy        string
	Limit          int
	Offset         int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}
