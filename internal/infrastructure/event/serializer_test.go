package event

import (
	"testing"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_RegisterDocumentEvents(t *testing.T) {
	s := NewDocumentEventSerializer()

	assert.True(t, s.IsRegistered(document.EventTypeDocumentFinalized))
	assert.True(t, s.IsRegistered(document.EventTypeDocumentVersioned))
	assert.False(t, s.IsRegistered("ProjectArchived"))
	assert.Equal(t, []string{document.EventTypeDocumentFinalized, document.EventTypeDocumentVersioned}, s.RegisteredTypes())
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewDocumentEventSerializer()

	gross := decimal.RequireFromString("476.00")
	original := document.NewDocumentFinalizedEvent(&document.StoredDocument{
		ID:           uuid.New(),
		ProjectID:    uuid.New(),
		DocumentType: document.TypeInvoice,
		Number:       "RE-2026-00007",
		NumberSource: document.NumberSourceGenerator,
		Version:      1,
		GrossAmount:  &gross,
		IsCurrent:    true,
	})

	data, err := s.Serialize(original)
	require.NoError(t, err)

	decoded, err := s.Deserialize(document.EventTypeDocumentFinalized, data)
	require.NoError(t, err)

	ev, ok := decoded.(*document.DocumentFinalizedEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), ev.EventID())
	assert.Equal(t, original.AggregateID(), ev.AggregateID())
	assert.Equal(t, original.ProjectID, ev.ProjectID)
	assert.Equal(t, "RE-2026-00007", ev.Number)
	assert.True(t, ev.Sealed)
	require.NotNil(t, ev.GrossAmount)
	assert.True(t, gross.Equal(*ev.GrossAmount))
}

func TestEventSerializer_Errors(t *testing.T) {
	s := NewDocumentEventSerializer()

	_, err := s.Deserialize("ProjectArchived", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")

	_, err = s.Deserialize(document.EventTypeDocumentVersioned, []byte(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}
