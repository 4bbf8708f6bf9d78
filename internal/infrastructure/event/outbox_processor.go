package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errProcessorRunning = errors.New("outbox processor already running")

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// CleanupEnabled deletes sent entries older than CleanupRetention every
	// CleanupInterval
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// withDefaults fills every unset or negative field from the defaults
func (c OutboxProcessorConfig) withDefaults() OutboxProcessorConfig {
	d := DefaultOutboxProcessorConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.CleanupRetention <= 0 {
		c.CleanupRetention = d.CleanupRetention
	}
	return c
}

// OutboxProcessor hands stored document events to the bus in the background.
// Delivery is at least once. An entry whose handlers fail is retried with
// backoff until its attempts run out, then it stays dead until requeued.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	log *zap.Logger,
) *OutboxProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     config.withDefaults(),
		logger:     log.Named("outbox"),
	}
}

// Start runs the delivery loop until ctx ends or Stop is called
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return errProcessorRunning
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	p.logger.Info("Outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Bool("cleanup", p.config.CleanupEnabled),
	)
	return nil
}

// Stop ends the loop and waits for the batch in flight, at most until ctx ends
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		p.logger.Info("Outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	var cleanup <-chan time.Time
	if p.config.CleanupEnabled {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.ProcessOnce(ctx)
		case <-cleanup:
			p.cleanup(ctx)
		}
	}
}

// ProcessOnce claims one batch of new entries plus one batch of retries that
// are due, publishes them and returns how many were delivered.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) int {
	due, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to find pending outbox entries", zap.Error(err))
		return 0
	}
	retries, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to find retryable outbox entries", zap.Error(err))
	}
	due = append(due, retries...)
	if len(due) == 0 {
		return 0
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, e := range due {
		ids = append(ids, e.ID)
	}
	claimed, err := p.repo.Claim(ctx, ids)
	if err != nil {
		p.logger.Error("Failed to claim outbox entries", zap.Int("entries", len(ids)), zap.Error(err))
		return 0
	}

	delivered := 0
	for _, entry := range claimed {
		if p.deliver(ctx, entry) {
			delivered++
		}
	}
	if failed := len(claimed) - delivered; failed > 0 {
		p.logger.Info("Outbox batch finished with failures",
			zap.Int("delivered", delivered),
			zap.Int("failed", failed),
		)
	}
	return delivered
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)

	ev, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, ev)
	}
	if err != nil {
		entry.MarkFailed(err.Error())
		fields := []zap.Field{
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Int("retry_count", entry.RetryCount),
			zap.Error(err),
		}
		if entry.IsDead() {
			log.Warn("Outbox entry moved to dead letter queue", fields...)
		} else {
			log.Error("Outbox delivery failed", append(fields, zap.Timep("next_retry_at", entry.NextRetryAt))...)
		}
		if uerr := p.repo.Update(ctx, entry); uerr != nil {
			log.Error("Failed to record outbox failure", zap.Error(uerr))
		}
		return false
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("Failed to mark outbox entry as sent", zap.Error(err))
		return false
	}
	log.Debug("Outbox entry delivered")
	return true
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	switch {
	case err != nil:
		p.logger.Error("Failed to clean up outbox entries", zap.Error(err))
	case deleted > 0:
		p.logger.Info("Cleaned up delivered outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
