package orders

import (
	"context"
	"fmt"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/tx"
	"stockbook/internal/core/types"
	"stockbook/internal/domain"
	"stockbook/internal/domain/catalogs/counterparty"
	"stockbook/internal/domain/catalogs/variant"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/ledger"
	"stockbook/internal/metrics"
	"stockbook/pkg/logger"
	"stockbook/pkg/numerator"
)

// CounterpartyLookup resolves counterparties during order validation.
type CounterpartyLookup interface {
	GetByID(ctx context.Context, id id.ID) (*counterparty.Counterparty, error)
}

// VariantLookup resolves variants during order validation.
type VariantLookup interface {
	GetByID(ctx context.Context, id id.ID) (*variant.Variant, error)
}

// LineInput is one requested order line.
// UnitPriceOverride, when set, wins over the variant's catalog price.
type LineInput struct {
	ProductID         id.ID
	VariantID         id.ID
	Quantity          types.Quantity
	UnitPriceOverride *types.MinorUnits
}

// Service provides business operations for orders.
// Every mutation runs as one transaction: header, lines, ledger
// adjustments, audit record and outbox event commit or roll back
// together.
type Service struct {
	repo           Repository
	counterparties CounterpartyLookup
	variants       VariantLookup
	ledger         *ledger.Service
	txManager      tx.Manager
	numerator      *numerator.Service
	events         events.Publisher
	audit          events.AuditTrail
}

// NewService creates a new order service.
func NewService(
	repo Repository,
	counterparties CounterpartyLookup,
	variants VariantLookup,
	ledgerSvc *ledger.Service,
	txManager tx.Manager,
	num *numerator.Service,
	publisher events.Publisher,
	audit events.AuditTrail,
) *Service {
	return &Service{
		repo:           repo,
		counterparties: counterparties,
		variants:       variants,
		ledger:         ledgerSvc,
		txManager:      txManager,
		numerator:      num,
		events:         publisher,
		audit:          audit,
	}
}

// Create validates and creates an order of the given kind.
// Purchases increase variant stock, sales decrease it; any ledger
// failure rolls the whole order back.
func (s *Service) Create(ctx context.Context, kind Kind, counterpartyID id.ID, lines []LineInput) (*Order, error) {
	if len(lines) == 0 {
		return nil, apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	if err := s.checkCounterparty(ctx, kind, counterpartyID); err != nil {
		return nil, err
	}

	// Fail-fast: resolve and validate every line before any mutation
	order := New(kind, counterpartyID)
	for i, in := range lines {
		price, err := s.resolveLine(ctx, i, in)
		if err != nil {
			return nil, err
		}
		order.AddLine(in.ProductID, in.VariantID, in.Quantity, price)
	}

	if err := order.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ORD"),
		&numerator.Options{Strategy: numerator.StrategyCached}, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	order.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, order.ID, order.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		if err := s.ledger.Apply(ctx, order.ID, order.GetDocumentType(), s.adjustments(order, false)); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, "Order", order.ID, "create", map[string]any{
			"kind":   string(order.Kind),
			"number": order.Number,
			"lines":  len(order.Lines),
		}); err != nil {
			return fmt.Errorf("audit order create: %w", err)
		}

		return s.events.Publish(ctx, events.Event{
			AggregateType: "Order",
			AggregateID:   order.ID,
			Type:          "OrderCreated",
			Payload:       order,
		})
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			metrics.InsufficientStock.Inc()
		}
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(string(kind)).Inc()
	logger.Info(ctx, "order created",
		"id", order.ID,
		"number", order.Number,
		"kind", order.Kind,
		"total_quantity", order.TotalQuantity.Int64(),
	)

	return order, nil
}

// Cancel applies the terminal active -> cancelled transition and
// reverses every ledger adjustment from the order's persisted lines.
// Cancelling an already-cancelled order is rejected, not a no-op.
func (s *Service) Cancel(ctx context.Context, orderID id.ID, reason string) (*Order, error) {
	var order *Order

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		// Row lock serializes concurrent cancels of the same order
		order, err = s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("order", orderID.String())
			}
			return err
		}

		if err := order.CanCancel(); err != nil {
			return err
		}

		// Reversal derives from persisted lines, never from current
		// catalog state
		order.Lines, err = s.repo.GetLines(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get lines: %w", err)
		}

		if err := s.ledger.Apply(ctx, order.ID, order.GetDocumentType(), s.adjustments(order, true)); err != nil {
			return err
		}

		order.MarkCancelled(reason)
		if err := s.repo.UpdateStatus(ctx, order); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		if err := s.audit.Record(ctx, "Order", order.ID, "cancel", map[string]any{
			"reason": reason,
		}); err != nil {
			return fmt.Errorf("audit order cancel: %w", err)
		}

		return s.events.Publish(ctx, events.Event{
			AggregateType: "Order",
			AggregateID:   order.ID,
			Type:          "OrderCancelled",
			Payload:       order,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCancelled.WithLabelValues(string(order.Kind)).Inc()
	logger.Info(ctx, "order cancelled", "id", order.ID, "number", order.Number, "reason", reason)

	return order, nil
}

// GetByID retrieves an order with its lines.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, err
	}

	order.Lines, err = s.repo.GetLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return order, nil
}

// List retrieves order headers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// checkCounterparty verifies the counterparty exists, is active and
// matches the order kind.
func (s *Service) checkCounterparty(ctx context.Context, kind Kind, counterpartyID id.ID) error {
	if id.IsNil(counterpartyID) {
		return apperror.NewValidation("counterparty is required").
			WithDetail("field", "counterpartyId")
	}

	cp, err := s.counterparties.GetByID(ctx, counterpartyID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("counterparty", counterpartyID.String())
		}
		return err
	}

	if !cp.Active {
		return apperror.NewValidation("counterparty is not active").
			WithDetail("counterparty_id", counterpartyID.String())
	}

	switch kind {
	case KindPurchase:
		if !cp.IsSupplier() {
			return apperror.NewValidation("counterparty is not a supplier").
				WithDetail("counterparty_id", counterpartyID.String())
		}
	case KindSale:
		if !cp.IsCustomer() {
			return apperror.NewValidation("counterparty is not a customer").
				WithDetail("counterparty_id", counterpartyID.String())
		}
	}

	return nil
}

// resolveLine validates the referenced variant and resolves the unit
// price snapshot.
func (s *Service) resolveLine(ctx context.Context, lineNo int, in LineInput) (types.MinorUnits, error) {
	if !in.Quantity.IsPositive() {
		return 0, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "lines").
			WithDetail("lineNo", lineNo+1)
	}

	v, err := s.variants.GetByID(ctx, in.VariantID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return 0, apperror.NewNotFound("variant", in.VariantID.String())
		}
		return 0, err
	}

	if !v.Active {
		return 0, apperror.NewValidation("variant is not active").
			WithDetail("variant_id", in.VariantID.String())
	}

	if !id.IsNil(in.ProductID) && !id.IsNil(v.ProductID) && in.ProductID != v.ProductID {
		return 0, apperror.NewValidation("variant does not belong to product").
			WithDetail("variant_id", in.VariantID.String()).
			WithDetail("product_id", in.ProductID.String())
	}

	price := v.SalePrice
	if in.UnitPriceOverride != nil {
		price = *in.UnitPriceOverride
	}
	if price <= 0 {
		return 0, apperror.NewValidation("unit price must be positive").
			WithDetail("field", "lines").
			WithDetail("lineNo", lineNo+1)
	}

	return price, nil
}

// adjustments derives ledger deltas from order lines.
// Purchases add stock, sales remove it; reverse inverts both.
func (s *Service) adjustments(order *Order, reverse bool) []ledger.Adjustment {
	sign := types.Quantity(1)
	if order.Kind == KindSale {
		sign = -1
	}
	if reverse {
		sign = -sign
	}

	out := make([]ledger.Adjustment, 0, len(order.Lines))
	for _, line := range order.Lines {
		out = append(out, ledger.Adjustment{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Delta:     sign * line.Quantity,
		})
	}
	return out
}
