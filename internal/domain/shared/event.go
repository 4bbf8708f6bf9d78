package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by a committed aggregate change.
// Events are immutable once raised and are identified by EventID across
// redeliveries, which is what idempotent handlers key on.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// EventMeta carries the identity of an event. Concrete events embed it and
// add their payload next to it; the JSON keys are kept distinct from payload
// keys so the outbox can round-trip the flattened form.
type EventMeta struct {
	ID            uuid.UUID `json:"event_id"`
	Name          string    `json:"event_type"`
	At            time.Time `json:"occurred_at"`
	Aggregate     uuid.UUID `json:"aggregate_id"`
	AggregateKind string    `json:"aggregate_type"`
}

// NewEventMeta stamps a new event of eventType raised by the given aggregate.
func NewEventMeta(eventType, aggregateType string, aggregateID uuid.UUID) EventMeta {
	return EventMeta{
		ID:            uuid.New(),
		Name:          eventType,
		At:            time.Now().UTC(),
		Aggregate:     aggregateID,
		AggregateKind: aggregateType,
	}
}

func (m *EventMeta) EventID() uuid.UUID     { return m.ID }
func (m *EventMeta) EventType() string      { return m.Name }
func (m *EventMeta) OccurredAt() time.Time  { return m.At }
func (m *EventMeta) AggregateID() uuid.UUID { return m.Aggregate }
func (m *EventMeta) AggregateType() string  { return m.AggregateKind }

// EventHandler reacts to delivered events. EventTypes lists the types it is
// subscribed to when the bus is not given any; empty means every type.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher hands events to their subscribers, either right away or
// through the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is a publisher handlers can subscribe to.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
