package event

import (
	"context"
	"sync/atomic"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Outcome is what an idempotent handler did with one delivery
type Outcome string

const (
	OutcomeHandled   Outcome = "handled"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// DeliveryCounts tallies handler outcomes. Handlers may share one. With a
// counter attached every outcome is also exported, tagged with the handler scope.
type DeliveryCounts struct {
	handled   atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
	counter   *telemetry.Counter
}

func NewDeliveryCounts(counter *telemetry.Counter) *DeliveryCounts {
	return &DeliveryCounts{counter: counter}
}

// DeliverySnapshot is a point-in-time copy of DeliveryCounts
type DeliverySnapshot struct {
	Handled   int64 `json:"handled"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

func (d *DeliveryCounts) Snapshot() DeliverySnapshot {
	return DeliverySnapshot{
		Handled:   d.handled.Load(),
		Duplicate: d.duplicate.Load(),
		Failed:    d.failed.Load(),
	}
}

func (d *DeliveryCounts) record(ctx context.Context, scope string, o Outcome) {
	switch o {
	case OutcomeHandled:
		d.handled.Add(1)
	case OutcomeDuplicate:
		d.duplicate.Add(1)
	case OutcomeFailed:
		d.failed.Add(1)
	}
	if d.counter != nil {
		d.counter.Inc(ctx, telemetry.AttrEventHandler.String(scope), telemetry.AttrOutcome.String(string(o)))
	}
}

// IdempotentHandler turns the outbox's at-least-once delivery into
// effectively-once handling for the wrapped handler.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	scope   string
	logger  *zap.Logger
	counts  *DeliveryCounts
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithDeliveryCounts shares one tally between handlers
func WithDeliveryCounts(counts *DeliveryCounts) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.counts = counts
	}
}

// WithIdempotencyScope namespaces the stored keys, so two handlers sharing a
// store each see every event once.
func WithIdempotencyScope(scope string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.scope = scope
	}
}

func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	log *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  log,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.counts == nil {
		h.counts = NewDeliveryCounts(nil)
	}
	if h.scope != "" {
		h.logger = h.logger.With(zap.String("handler", h.scope))
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle runs the wrapped handler unless the event was already handled.
// A store failure falls through to the handler since a repeat is recoverable
// and a loss is not. A failed handler releases the key so the redelivery
// reaches it again.
func (h *IdempotentHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, ev)
	}

	log := h.logger.With(
		zap.String("event_id", ev.EventID().String()),
		zap.String("event_type", ev.EventType()),
	)
	key := h.key(ev)
	fresh, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	if err != nil {
		log.Warn("Idempotency check failed, handling anyway", zap.Error(err))
	} else if !fresh {
		h.counts.record(ctx, h.scope, OutcomeDuplicate)
		log.Debug("Duplicate event skipped")
		return nil
	}

	if err := h.handler.Handle(ctx, ev); err != nil {
		h.counts.record(ctx, h.scope, OutcomeFailed)
		if ferr := h.store.Forget(ctx, key); ferr != nil {
			log.Warn("Failed to release idempotency key", zap.Error(ferr))
		}
		return err
	}
	h.counts.record(ctx, h.scope, OutcomeHandled)
	return nil
}

func (h *IdempotentHandler) key(ev shared.DomainEvent) string {
	if h.scope == "" {
		return ev.EventID().String()
	}
	return h.scope + ":" + ev.EventID().String()
}

func (h *IdempotentHandler) Counts() *DeliveryCounts {
	return h.counts
}

// Unwrap returns the wrapped handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.handler
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
