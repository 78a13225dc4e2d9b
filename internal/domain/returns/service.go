package returns

import (
	"context"
	"fmt"
	"time"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/id"
	"stockbook/internal/core/tx"
	"stockbook/internal/core/types"
	"stockbook/internal/domain"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/ledger"
	"stockbook/internal/domain/orders"
	"stockbook/internal/metrics"
	"stockbook/pkg/logger"
	"stockbook/pkg/numerator"
)

// OrderStore is the slice of the order repository the return engine
// needs: resolving sale lines under lock and updating their
// return-tracking fields.
type OrderStore interface {
	GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error)
	FindLineByProductForUpdate(ctx context.Context, orderID, productID id.ID) (*orders.OrderLine, error)
	GetLineForUpdate(ctx context.Context, lineID id.ID) (*orders.OrderLine, error)
	UpdateLineReturned(ctx context.Context, lineID id.ID, returned types.Quantity, fullyReturned bool) error
}

// CreateInput is a requested return.
type CreateInput struct {
	OrderID   id.ID
	ProductID id.ID
	Quantity  types.Quantity
	Reason    string
	Refund    bool
}

// Service provides business operations for returns.
// The line row is locked during the bound check + update so two
// concurrent returns against one line cannot jointly exceed the sold
// quantity.
type Service struct {
	repo      Repository
	orderRepo OrderStore
	ledger    *ledger.Service
	txManager tx.Manager
	numerator *numerator.Service
	policy    *Policy
	events    events.Publisher
	audit     events.AuditTrail
}

// NewService creates a new return service.
func NewService(
	repo Repository,
	orderRepo OrderStore,
	ledgerSvc *ledger.Service,
	txManager tx.Manager,
	num *numerator.Service,
	policy *Policy,
	publisher events.Publisher,
	audit events.AuditTrail,
) *Service {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Service{
		repo:      repo,
		orderRepo: orderRepo,
		ledger:    ledgerSvc,
		txManager: txManager,
		numerator: num,
		policy:    policy,
		events:    publisher,
		audit:     audit,
	}
}

// Create validates and creates a return against a sale order line.
// Return record, line update and aggregate adjustment commit atomically.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Return, error) {
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if in.Reason == "" {
		return nil, apperror.NewValidation("reason is required").
			WithDetail("field", "reason")
	}

	var ret *Return

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orderRepo.GetByID(ctx, in.OrderID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("order", in.OrderID.String())
			}
			return err
		}

		if !order.IsSale() {
			return apperror.NewValidation("returns apply to sale orders only").
				WithDetail("order_id", in.OrderID.String()).
				WithDetail("kind", string(order.Kind))
		}
		if order.IsCancelled() {
			return apperror.NewOrderCancelled(order.ID.String())
		}

		// Lock the line for the bound check + update
		line, err := s.orderRepo.FindLineByProductForUpdate(ctx, in.OrderID, in.ProductID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("order line", in.ProductID.String())
			}
			return err
		}

		remaining := line.RemainingQuantity()
		if in.Quantity > remaining {
			return apperror.NewReturnExceedsSold(line.LineID.String(), in.Quantity, remaining)
		}

		if err := s.policy.Check(PolicyInput{
			Quantity:      in.Quantity.Int64(),
			Remaining:     remaining.Int64(),
			Reason:        in.Reason,
			Refund:        in.Refund,
			DaysSinceSale: int64(time.Since(order.CreatedAt).Hours() / 24),
			AmountCents:   int64(line.UnitPrice.MulQuantity(in.Quantity)),
		}); err != nil {
			return err
		}

		ret = New(in.OrderID, LineRef{
			LineID:    line.LineID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			UnitPrice: line.UnitPrice,
		}, in.Quantity, in.Reason)
		ret.Refund = in.Refund

		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("RET"),
			&numerator.Options{Strategy: numerator.StrategyCached}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		ret.Number = number

		if err := ret.Validate(ctx); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, ret); err != nil {
			return fmt.Errorf("create return: %w", err)
		}

		newReturned := line.ReturnedQuantity + in.Quantity
		if err := s.orderRepo.UpdateLineReturned(ctx, line.LineID, newReturned, newReturned == line.Quantity); err != nil {
			return fmt.Errorf("update line returned: %w", err)
		}

		if _, err := s.ledger.AdjustReturnedAggregate(ctx, line.ProductID, in.Quantity); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, "Return", ret.ID, "create", map[string]any{
			"order_id": in.OrderID.String(),
			"quantity": in.Quantity.Int64(),
			"reason":   in.Reason,
		}); err != nil {
			return fmt.Errorf("audit return create: %w", err)
		}

		return s.events.Publish(ctx, events.Event{
			AggregateType: "Return",
			AggregateID:   ret.ID,
			Type:          "ReturnCreated",
			Payload:       ret,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.ReturnsCreated.Inc()
	logger.Info(ctx, "return created",
		"id", ret.ID,
		"number", ret.Number,
		"order_id", ret.OrderID,
		"quantity", ret.Quantity.Int64(),
	)

	return ret, nil
}

// Toggle flips a return between active and annulled.
// Annulling reverses the aggregate adjustment and the line counter;
// reinstating re-applies both, subject to the same bound as creation.
func (s *Service) Toggle(ctx context.Context, returnID id.ID) (*Return, error) {
	var ret *Return

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		ret, err = s.repo.GetByIDForUpdate(ctx, returnID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("return", returnID.String())
			}
			return err
		}

		line, err := s.orderRepo.GetLineForUpdate(ctx, ret.LineID)
		if err != nil {
			return fmt.Errorf("lock order line: %w", err)
		}

		var newReturned types.Quantity
		var delta types.Quantity

		if ret.IsActive() {
			// active -> annulled: release the returned units
			newReturned = line.ReturnedQuantity - ret.Quantity
			if newReturned.IsNegative() {
				return apperror.NewConcurrentModification("order line", line.LineID.String())
			}
			delta = ret.Quantity.Neg()
		} else {
			// annulled -> active: re-occupy, same bound as creation
			newReturned = line.ReturnedQuantity + ret.Quantity
			if newReturned > line.Quantity {
				return apperror.NewReturnExceedsSold(line.LineID.String(), ret.Quantity, line.RemainingQuantity())
			}
			delta = ret.Quantity
		}

		if err := s.orderRepo.UpdateLineReturned(ctx, line.LineID, newReturned, newReturned == line.Quantity); err != nil {
			return fmt.Errorf("update line returned: %w", err)
		}

		if _, err := s.ledger.AdjustReturnedAggregate(ctx, ret.ProductID, delta); err != nil {
			return err
		}

		ret.Status = ret.Toggled()
		ret.Touch()
		if err := s.repo.UpdateStatus(ctx, ret); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		if err := s.audit.Record(ctx, "Return", ret.ID, "toggle", map[string]any{
			"status": string(ret.Status),
		}); err != nil {
			return fmt.Errorf("audit return toggle: %w", err)
		}

		return s.events.Publish(ctx, events.Event{
			AggregateType: "Return",
			AggregateID:   ret.ID,
			Type:          "ReturnToggled",
			Payload:       ret,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.ReturnsToggled.WithLabelValues(string(ret.Status)).Inc()
	logger.Info(ctx, "return toggled", "id", ret.ID, "status", ret.Status)

	return ret, nil
}

// GetByID retrieves a return.
func (s *Service) GetByID(ctx context.Context, returnID id.ID) (*Return, error) {
	ret, err := s.repo.GetByID(ctx, returnID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("return", returnID.String())
		}
		return nil, err
	}
	return ret, nil
}

// ListByOrder retrieves all returns against an order.
func (s *Service) ListByOrder(ctx context.Context, orderID id.ID) ([]*Return, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// List retrieves returns with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Return], error) {
	return s.repo.List(ctx, filter)
}
