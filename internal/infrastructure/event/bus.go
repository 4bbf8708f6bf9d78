package event

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// InMemoryEventBus delivers events synchronously to the handlers registered for their type.
// A failing or panicking handler is logged and never stops delivery to the others,
// so a broken projection cannot undo a committed document.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool
	failures atomic.Int64
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(log *zap.Logger) *InMemoryEventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   log.Named("event_bus"),
	}
}

// Publish hands every event to its handlers in registration order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	_, err := b.deliver(ctx, events)
	return err
}

// Strict returns a publisher that also reports handler failures.
// The outbox processor uses it to decide whether an entry needs another attempt.
func (b *InMemoryEventBus) Strict() shared.EventPublisher {
	return strictPublisher{bus: b}
}

type strictPublisher struct {
	bus *InMemoryEventBus
}

func (p strictPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	failed, err := p.bus.deliver(ctx, events)
	if err != nil {
		return err
	}
	return errors.Join(failed...)
}

func (b *InMemoryEventBus) deliver(ctx context.Context, events []shared.DomainEvent) ([]error, error) {
	var failed []error
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return failed, fmt.Errorf("publish cancelled before %s: %w", ev.EventType(), err)
		}
		for _, handler := range b.registry.HandlersFor(ev.EventType()) {
			if err := b.dispatch(ctx, handler, ev); err != nil {
				b.failures.Add(1)
				failed = append(failed, fmt.Errorf("%s %s: %w", ev.EventType(), ev.EventID(), err))
				logger.WithLogger(ctx, b.logger).Error("Event handler failed",
					zap.String("event_type", ev.EventType()),
					zap.String("event_id", ev.EventID().String()),
					zap.String("aggregate_id", ev.AggregateID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return failed, nil
}

// Subscribe registers a handler. Without explicit types the handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from every event type
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start marks the bus as running
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("Event bus started", zap.Int("handlers", len(b.registry.All())))
	return nil
}

// Stop marks the bus as stopped. Delivery is synchronous, so nothing is in flight.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.logger.Info("Event bus stopped", zap.Int64("handler_failures", b.failures.Load()))
	return nil
}

// Running reports whether Start has been called without a matching Stop
func (b *InMemoryEventBus) Running() bool {
	return b.running.Load()
}

// Failures returns how many handler invocations failed since creation
func (b *InMemoryEventBus) Failures() int64 {
	return b.failures.Load()
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, ev)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
