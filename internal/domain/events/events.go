// Package events defines the integration surface between domain
// services and the transactional outbox / audit trail.
package events

import (
	"context"

	"stockbook/internal/core/id"
)

// Event is a domain event emitted inside a business transaction.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher records events so they commit or roll back with the
// surrounding transaction.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// AuditTrail records document lifecycle changes.
type AuditTrail interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// NopPublisher discards events. Used in tests and tools that run
// without the outbox.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, e Event) error { return nil }

// NopAuditTrail discards audit records.
type NopAuditTrail struct{}

func (NopAuditTrail) Record(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	return nil
}
