package postgres

import (
	"context"

	"stockbook/internal/core/id"
	"stockbook/internal/domain/events"
)

// EventPublisher adapts the outbox to the domain events.Publisher
// interface.
type EventPublisher struct {
	outbox *OutboxPublisher
}

// NewEventPublisher creates a publisher backed by the outbox table.
func NewEventPublisher(outbox *OutboxPublisher) *EventPublisher {
	return &EventPublisher{outbox: outbox}
}

// Publish writes the event into the outbox within the current
// transaction.
func (p *EventPublisher) Publish(ctx context.Context, e events.Event) error {
	return p.outbox.Publish(ctx, DomainEvent{
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.Type,
		Payload:       e.Payload,
	})
}

// AuditTrail adapts AuditService to the domain events.AuditTrail
// interface.
type AuditTrail struct {
	audit *AuditService
}

// NewAuditTrail creates an audit trail backed by sys_audit.
func NewAuditTrail(audit *AuditService) *AuditTrail {
	return &AuditTrail{audit: audit}
}

// Record logs a document lifecycle change.
func (t *AuditTrail) Record(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	return t.audit.LogChange(ctx, entityType, entityID, auditAction(action), changes)
}

func auditAction(action string) AuditAction {
	switch action {
	case "create":
		return AuditActionCreate
	case "cancel":
		return AuditActionCancel
	case "toggle":
		return AuditActionToggle
	default:
		return AuditActionUpdate
	}
}

var (
	_ events.Publisher  = (*EventPublisher)(nil)
	_ events.AuditTrail = (*AuditTrail)(nil)
)
