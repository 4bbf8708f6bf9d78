package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
)

// EventRecorder is an event handler that keeps everything it receives.
// Subscribe it to a bus to observe what document commits published.
type EventRecorder struct {
	mu         sync.Mutex
	eventTypes []string
	events     []shared.DomainEvent
	failWith   error
}

// NewEventRecorder subscribes to eventTypes, or to everything when none are given.
func NewEventRecorder(eventTypes ...string) *EventRecorder {
	return &EventRecorder{eventTypes: eventTypes}
}

func (r *EventRecorder) EventTypes() []string {
	return r.eventTypes
}

// Handle records ev, then returns the error set by FailWith.
func (r *EventRecorder) Handle(_ context.Context, ev shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.failWith
}

// FailWith makes every following Handle return err. Nil restores success.
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// Events returns a copy of the received events in arrival order.
func (r *EventRecorder) Events() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *EventRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// OfType returns the received events of eventType in arrival order.
func (r *EventRecorder) OfType(eventType string) []shared.DomainEvent {
	return slices.DeleteFunc(r.Events(), func(ev shared.DomainEvent) bool {
		return ev.EventType() != eventType
	})
}

// Committed returns the payload of every received commit event.
func (r *EventRecorder) Committed() []document.CommittedDocument {
	var out []document.CommittedDocument
	for _, ev := range r.Events() {
		if c, ok := ev.(document.DocumentCommitted); ok {
			out = append(out, c.Document())
		}
	}
	return out
}

// Reset forgets the received events and clears FailWith.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.failWith = nil
}

// WaitForEvents reports whether r received at least n events within timeout.
func (r *EventRecorder) WaitForEvents(n int, timeout time.Duration) bool {
	return poll(func() bool { return r.Count() >= n }, timeout, 10*time.Millisecond)
}

// TestEvent is an event raised for a document key that carries no payload of its own.
type TestEvent struct {
	shared.EventMeta
	Key document.Key
}

// NewTestEvent creates a quote event of eventType in the given project.
func NewTestEvent(eventType string, projectID uuid.UUID) *TestEvent {
	return &TestEvent{
		EventMeta: shared.NewEventMeta(eventType, document.AggregateTypeStoredDocument, projectID),
		Key:       document.NewKey(projectID, document.TypeQuote),
	}
}

// NewTestEventWithID is NewTestEvent with a fixed event ID, for redelivery tests.
func NewTestEventWithID(eventID uuid.UUID, eventType string, projectID uuid.UUID) *TestEvent {
	ev := NewTestEvent(eventType, projectID)
	ev.ID = eventID
	return ev
}
