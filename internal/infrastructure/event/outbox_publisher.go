package event

import (
	"context"
	"fmt"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events to the outbox inside the caller's
// transaction, so an event row exists exactly when the commit that raised it does.
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

type OutboxPublisherOption func(*OutboxPublisher)

// WithMaxRetries sets the delivery attempts an entry gets before it is dead.
// Values below one keep the default.
func WithMaxRetries(n int) OutboxPublisherOption {
	return func(p *OutboxPublisher) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

func NewOutboxPublisher(serializer *EventSerializer, opts ...OutboxPublisherOption) *OutboxPublisher {
	p := &OutboxPublisher{serializer: serializer, maxRetries: shared.DefaultMaxRetries}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SaveEvents stores the events as pending entries through tx. An event
// passed twice is stored once.
func (p *OutboxPublisher) SaveEvents(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(events))
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, ev := range events {
		if _, dup := seen[ev.EventID()]; dup {
			continue
		}
		seen[ev.EventID()] = struct{}{}

		payload, err := p.serializer.Serialize(ev)
		if err != nil {
			return fmt.Errorf("outbox %s: %w", ev.EventType(), err)
		}
		entry := shared.NewOutboxEntry(ev, payload)
		entry.MaxRetries = p.maxRetries
		entries = append(entries, entry)
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}
