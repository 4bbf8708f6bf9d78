package shared

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// ClaimableStatuses are the statuses a delivery worker may claim from
var ClaimableStatuses = []OutboxStatus{OutboxStatusPending, OutboxStatusFailed}

// Claimable reports whether an entry in this status may be claimed
func (s OutboxStatus) Claimable() bool {
	return slices.Contains(ClaimableStatuses, s)
}

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	// MaxBackoff caps the delay between two attempts
	MaxBackoff = 5 * time.Minute
)

// ErrOutboxTransition is returned when an entry is moved out of order
var ErrOutboxTransition = errors.New("invalid outbox status transition")

// RetryDelay is the wait after the given failed attempt (1-based): 1s, 2s,
// 4s and so on up to MaxBackoff.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 20 {
		return MaxBackoff
	}
	return min(DefaultBaseBackoff<<(attempt-1), MaxBackoff)
}

// OutboxEntry is a domain event persisted next to the change that raised it.
// It is delivered at least once; consumers must tolerate repeats.
type OutboxEntry struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event in a pending entry
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (e *OutboxEntry) moveTo(status OutboxStatus, now time.Time) {
	e.Status = status
	e.UpdatedAt = now
}

// CanRetry reports whether a failed entry has attempts left
func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

// MarkProcessing claims a pending or failed entry for delivery
func (e *OutboxEntry) MarkProcessing() error {
	if !e.Status.Claimable() {
		return ErrOutboxTransition
	}
	e.moveTo(OutboxStatusProcessing, time.Now())
	return nil
}

func (e *OutboxEntry) MarkSent() {
	now := time.Now()
	e.moveTo(OutboxStatusSent, now)
	e.ProcessedAt = &now
}

// MarkFailed records a failed attempt and schedules the next one after
// RetryDelay. Reaching MaxRetries makes the entry dead.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	now := time.Now()
	e.RetryCount++
	e.LastError = errMsg

	if e.RetryCount >= e.MaxRetries {
		e.moveTo(OutboxStatusDead, now)
		e.NextRetryAt = nil
		return
	}
	e.moveTo(OutboxStatusFailed, now)
	next := now.Add(RetryDelay(e.RetryCount))
	e.NextRetryAt = &next
}

// ResetForRetry puts a dead entry back into the pending queue with a fresh
// retry budget
func (e *OutboxEntry) ResetForRetry() error {
	if !e.IsDead() {
		return ErrOutboxTransition
	}
	e.moveTo(OutboxStatusPending, time.Now())
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	return nil
}

func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// OutboxRepository persists outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindPending returns pending entries, oldest first
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries whose next attempt is due before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	// Claim moves the given pending or failed entries to processing and returns
	// those this caller won. Entries claimed by someone else are left out.
	Claim(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteOlderThan removes sent entries created before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}

// IdempotencyStore remembers processed event IDs
type IdempotencyStore interface {
	// MarkProcessed returns true if the event was not seen before
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Forget drops the mark so a redelivered event is handled again
	Forget(ctx context.Context, eventID string) error
	Close() error
}

// IdempotencyConfig configures duplicate suppression for event handlers
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps processed IDs for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
