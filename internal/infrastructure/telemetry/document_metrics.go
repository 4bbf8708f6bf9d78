package telemetry

import (
	"context"
	"fmt"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

// DocumentMeterName names the meter the document instruments live on
const DocumentMeterName = "salesdocs/documents"

// DocumentMetrics turns committed-version events into measurements.
// It is subscribed to the event bus like any other handler.
type DocumentMetrics struct {
	commits         *Counter
	fallbackNumbers *Counter
	grossAmount     *Histogram
}

// NewDocumentMetrics creates the document instruments on the given meter
func NewDocumentMetrics(meter metric.Meter) (*DocumentMetrics, error) {
	commits, err := NewCounter(meter,
		"documents.commits",
		"Document versions committed to the store",
		"{version}")
	if err != nil {
		return nil, err
	}
	fallback, err := NewCounter(meter,
		"documents.fallback_numbers",
		"Documents numbered without the sequence generator",
		"{document}")
	if err != nil {
		return nil, err
	}
	amount, err := NewHistogram(meter, HistogramOpts{
		Name:        "documents.gross_amount",
		Description: "Gross amount of committed documents",
		Unit:        "EUR",
		Boundaries:  AmountBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &DocumentMetrics{
		commits:         commits,
		fallbackNumbers: fallback,
		grossAmount:     amount,
	}, nil
}

// EventTypes returns the event types this handler is interested in
func (m *DocumentMetrics) EventTypes() []string {
	return []string{
		document.EventTypeDocumentFinalized,
		document.EventTypeDocumentVersioned,
	}
}

// Handle records one commit
func (m *DocumentMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	committed, ok := event.(document.DocumentCommitted)
	if !ok {
		return nil
	}
	doc := committed.Document()
	docType := AttrDocumentType.String(doc.DocumentType.String())

	switch e := event.(type) {
	case *document.DocumentFinalizedEvent:
		m.commits.Inc(ctx, docType, AttrCommitKind.String("finalized"), AttrSealed.Bool(e.Sealed))
	default:
		m.commits.Inc(ctx, docType, AttrCommitKind.String("versioned"), AttrSealed.Bool(false))
	}

	if doc.NumberSource == document.NumberSourceFallback {
		m.fallbackNumbers.Inc(ctx, docType)
	}
	if doc.GrossAmount != nil {
		m.grossAmount.Record(ctx, doc.GrossAmount.InexactFloat64(), docType)
	}
	return nil
}

// OutboxCounter reports entry counts per delivery status
type OutboxCounter interface {
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// RegisterOutboxBacklog exposes the outbox entry counts as an observable gauge.
// The counter is queried on every collection.
func RegisterOutboxBacklog(meter metric.Meter, counter OutboxCounter) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge(
		"outbox.entries",
		metric.WithDescription("Outbox entries by delivery status"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox gauge: %w", err)
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := counter.CountByStatus(ctx)
		if err != nil {
			return err
		}
		for status, n := range counts {
			o.ObserveInt64(gauge, n, metric.WithAttributes(AttrOutboxStatus.String(string(status))))
		}
		return nil
	}, gauge)
}

var _ shared.EventHandler = (*DocumentMetrics)(nil)
