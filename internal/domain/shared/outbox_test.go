package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outboxTestEvent struct {
	EventMeta
}

func newOutboxTestEvent() *outboxTestEvent {
	return &outboxTestEvent{EventMeta: NewEventMeta("DocumentFinalized", "StoredDocument", uuid.New())}
}

func TestNewOutboxEntry(t *testing.T) {
	event := newOutboxTestEvent()
	payload := []byte(`{"number":"AN-2026-00001"}`)

	entry := NewOutboxEntry(event, payload)

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, event.EventID(), entry.EventID)
	assert.Equal(t, "DocumentFinalized", entry.EventType)
	assert.Equal(t, event.AggregateID(), entry.AggregateID)
	assert.Equal(t, "StoredDocument", entry.AggregateType)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     OutboxStatus
		retryCount int
		expected   bool
	}{
		{"pending", OutboxStatusPending, 0, false},
		{"failed with attempts left", OutboxStatusFailed, 2, true},
		{"failed at the limit", OutboxStatusFailed, DefaultMaxRetries, false},
		{"dead", OutboxStatusDead, DefaultMaxRetries, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &OutboxEntry{Status: tt.status, RetryCount: tt.retryCount, MaxRetries: DefaultMaxRetries}
			assert.Equal(t, tt.expected, entry.CanRetry())
		})
	}
}

func TestOutboxEntry_Lifecycle(t *testing.T) {
	entry := NewOutboxEntry(newOutboxTestEvent(), []byte(`{}`))

	require.NoError(t, entry.MarkProcessing())
	assert.Equal(t, OutboxStatusProcessing, entry.Status)
	assert.ErrorIs(t, entry.MarkProcessing(), ErrOutboxTransition)

	entry.MarkSent()
	assert.Equal(t, OutboxStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedAt)
	assert.ErrorIs(t, entry.ResetForRetry(), ErrOutboxTransition)
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	entry := NewOutboxEntry(newOutboxTestEvent(), []byte(`{}`))
	entry.MaxRetries = 3

	before := time.Now()
	entry.MarkFailed("projection unavailable")
	assert.Equal(t, OutboxStatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	assert.Equal(t, "projection unavailable", entry.LastError)
	require.NotNil(t, entry.NextRetryAt)
	assert.False(t, entry.NextRetryAt.Before(before.Add(DefaultBaseBackoff)))

	entry.MarkFailed("again")
	require.NotNil(t, entry.NextRetryAt)
	assert.False(t, entry.NextRetryAt.Before(before.Add(2*DefaultBaseBackoff)), "backoff doubles")

	entry.MarkFailed("last")
	assert.True(t, entry.IsDead())
	assert.Nil(t, entry.NextRetryAt)

	require.NoError(t, entry.ResetForRetry())
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Empty(t, entry.LastError)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, RetryDelay(0))
	assert.Equal(t, time.Second, RetryDelay(1))
	assert.Equal(t, 4*time.Second, RetryDelay(3))
	assert.Equal(t, MaxBackoff, RetryDelay(12))
	assert.Equal(t, MaxBackoff, RetryDelay(200))
}

func TestOutboxStatus_Claimable(t *testing.T) {
	assert.True(t, OutboxStatusPending.Claimable())
	assert.True(t, OutboxStatusFailed.Claimable())
	assert.False(t, OutboxStatusProcessing.Claimable())
	assert.False(t, OutboxStatusSent.Claimable())
	assert.False(t, OutboxStatusDead.Claimable())
}
