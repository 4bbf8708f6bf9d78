package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/cache"
	"github.com/erp/salesdocs/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Forget(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(0)
	defer store.Close()

	inner := newRecordingHandler(document.EventTypeDocumentFinalized)
	h := NewIdempotentHandler(inner, store, zap.NewNop())
	ctx := context.Background()
	ev := finalizedEvent(document.TypeQuote)

	require.NoError(t, h.Handle(ctx, ev))
	require.NoError(t, h.Handle(ctx, ev))
	require.NoError(t, h.Handle(ctx, finalizedEvent(document.TypeQuote)))

	assert.Equal(t, 2, inner.count())
	snap := h.Counts().Snapshot()
	assert.EqualValues(t, 2, snap.Handled)
	assert.EqualValues(t, 1, snap.Duplicate)
	assert.Equal(t, inner.EventTypes(), h.EventTypes())
	assert.Same(t, inner, h.Unwrap())
}

func TestIdempotentHandler_FailureAllowsRedelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(0)
	defer store.Close()

	inner := newRecordingHandler(document.EventTypeDocumentFinalized)
	inner.err = errors.New("project store down")
	h := NewIdempotentHandler(inner, store, zap.NewNop())
	ctx := context.Background()
	ev := finalizedEvent(document.TypeQuote)

	assert.Error(t, h.Handle(ctx, ev))
	inner.err = nil
	assert.NoError(t, h.Handle(ctx, ev))

	assert.Equal(t, 2, inner.count())
	assert.EqualValues(t, 1, h.Counts().Snapshot().Failed)
}

func TestIdempotentHandler_ScopesKeepHandlersApart(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(0)
	defer store.Close()

	projector := newRecordingHandler(document.EventTypeDocumentFinalized)
	audit := newRecordingHandler(document.EventTypeDocumentFinalized)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	counter, err := telemetry.NewCounter(provider.Meter("test"), "events.handled", "Event deliveries by outcome", "{event}")
	require.NoError(t, err)
	counts := NewDeliveryCounts(counter)
	h1 := NewIdempotentHandler(projector, store, nil, WithIdempotencyScope("projector"), WithDeliveryCounts(counts))
	h2 := NewIdempotentHandler(audit, store, nil, WithIdempotencyScope("audit"), WithDeliveryCounts(counts))

	ev := finalizedEvent(document.TypeInvoice)
	require.NoError(t, h1.Handle(context.Background(), ev))
	require.NoError(t, h2.Handle(context.Background(), ev))

	assert.Equal(t, 1, projector.count())
	assert.Equal(t, 1, audit.count())
	require.NoError(t, h1.Handle(context.Background(), ev))
	assert.Equal(t, DeliverySnapshot{Handled: 2, Duplicate: 1}, counts.Snapshot())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byHandler := map[string]int64{}
	for _, dp := range sum.DataPoints {
		handler, _ := dp.Attributes.Value(telemetry.AttrEventHandler)
		outcome, _ := dp.Attributes.Value(telemetry.AttrOutcome)
		byHandler[handler.AsString()+"/"+outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{
		"projector/handled":   1,
		"projector/duplicate": 1,
		"audit/handled":       1,
	}, byHandler)
}

func TestIdempotentHandler_StoreErrorStillHandles(t *testing.T) {
	store := new(MockIdempotencyStore)
	ev := finalizedEvent(document.TypeQuote)
	store.On("MarkProcessed", mock.Anything, ev.EventID().String(), time.Hour).
		Return(false, errors.New("redis down"))

	inner := newRecordingHandler(document.EventTypeDocumentFinalized)
	h := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{TTL: time.Hour, Enabled: true}))

	require.NoError(t, h.Handle(context.Background(), ev))
	assert.Equal(t, 1, inner.count())
	store.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := newRecordingHandler(document.EventTypeDocumentFinalized)
	h := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))

	ev := finalizedEvent(document.TypeQuote)
	require.NoError(t, h.Handle(context.Background(), ev))
	require.NoError(t, h.Handle(context.Background(), ev))

	assert.Equal(t, 2, inner.count())
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}
