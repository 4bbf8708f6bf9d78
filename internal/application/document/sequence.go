package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"go.uber.org/zap"
)

// SequenceAdapter issues document numbers and degrades to a local fallback
// when the sequence generator fails. Fallback numbers are marked as such and
// may collide within the same clock window; no retry is attempted.
type SequenceAdapter struct {
	generator document.SequenceGenerator
	now       func() time.Time
	logger    *zap.Logger
}

// SequenceAdapterOption configures the adapter
type SequenceAdapterOption func(*SequenceAdapter)

// WithClock overrides the clock used for fallback numbers
func WithClock(now func() time.Time) SequenceAdapterOption {
	return func(a *SequenceAdapter) {
		a.now = now
	}
}

// NewSequenceAdapter creates a new SequenceAdapter
func NewSequenceAdapter(generator document.SequenceGenerator, logger *zap.Logger, opts ...SequenceAdapterOption) *SequenceAdapter {
	a := &SequenceAdapter{
		generator: generator,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// NextNumber returns the next number for t. The number is always usable: a non-nil
// error accompanies a fallback number as a notice and must not block the caller.
func (a *SequenceAdapter) NextNumber(ctx context.Context, t document.DocumentType) (document.DocumentNumber, error) {
	if a.generator != nil {
		value, err := a.generator.Next(ctx, t)
		if err == nil && strings.TrimSpace(value) != "" {
			return document.DocumentNumber{Value: value, Source: document.NumberSourceGenerator}, nil
		}
		if err == nil {
			err = fmt.Errorf("sequence generator returned an empty number")
		}
		a.logger.Warn("Sequence generator failed, issuing fallback number",
			zap.String("document_type", t.String()),
			zap.Error(err),
		)
		number := FallbackNumber(t, a.now())
		return number, document.ErrNumberGenerationFailed.WithCause(err)
	}

	number := FallbackNumber(t, a.now())
	return number, document.ErrNumberGenerationFailed.WithMessage("no sequence generator configured")
}

// FallbackNumber derives "<PREFIX>-<NNNN>" from the clock's milliseconds modulo 10000
func FallbackNumber(t document.DocumentType, now time.Time) document.DocumentNumber {
	return document.DocumentNumber{
		Value:  fmt.Sprintf("%s-%04d", t.Prefix(), now.UnixMilli()%10000),
		Source: document.NumberSourceFallback,
	}
}
