package document

import (
	"time"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeStoredDocument is the aggregate type for document events
const AggregateTypeStoredDocument = "StoredDocument"

// Event type constants
const (
	EventTypeDocumentFinalized = "DocumentFinalized"
	EventTypeDocumentVersioned = "DocumentVersioned"
)

// DocumentCommitted is implemented by every event raised after a version commit
type DocumentCommitted interface {
	shared.DomainEvent
	Document() CommittedDocument
}

// CommittedDocument is the event payload describing the new version
type CommittedDocument struct {
	DocumentID   uuid.UUID        `json:"document_id"`
	ProjectID    uuid.UUID        `json:"project_id"`
	DocumentType DocumentType     `json:"document_type"`
	Number       string           `json:"number"`
	NumberSource NumberSource     `json:"number_source"`
	Version      int              `json:"version"`
	GrossAmount  *decimal.Decimal `json:"gross_amount,omitempty"`
	IssuedOn     time.Time        `json:"issued_on"`
}

func committedFrom(d *StoredDocument) CommittedDocument {
	issued := d.Snapshot.IssuedOn
	if issued.IsZero() {
		issued = d.CreatedAt
	}
	return CommittedDocument{
		DocumentID:   d.ID,
		ProjectID:    d.ProjectID,
		DocumentType: d.DocumentType,
		Number:       d.Number,
		NumberSource: d.NumberSource,
		Version:      d.Version,
		GrossAmount:  copyDecimal(d.GrossAmount),
		IssuedOn:     issued,
	}
}

// DocumentFinalizedEvent is raised when version 1 of a document is committed
type DocumentFinalizedEvent struct {
	shared.EventMeta
	CommittedDocument
	Sealed bool `json:"sealed"`
}

// NewDocumentFinalizedEvent creates a new DocumentFinalizedEvent
func NewDocumentFinalizedEvent(d *StoredDocument) *DocumentFinalizedEvent {
	return &DocumentFinalizedEvent{
		EventMeta:         shared.NewEventMeta(EventTypeDocumentFinalized, AggregateTypeStoredDocument, d.ID),
		CommittedDocument: committedFrom(d),
		Sealed:            d.IsSealed(),
	}
}

// Document returns the committed version
func (e *DocumentFinalizedEvent) Document() CommittedDocument {
	return e.CommittedDocument
}

// DocumentVersionedEvent is raised when version N>1 of a document is committed
type DocumentVersionedEvent struct {
	shared.EventMeta
	CommittedDocument
	PreviousVersion int `json:"previous_version"`
}

// NewDocumentVersionedEvent creates a new DocumentVersionedEvent
func NewDocumentVersionedEvent(d *StoredDocument) *DocumentVersionedEvent {
	return &DocumentVersionedEvent{
		EventMeta:         shared.NewEventMeta(EventTypeDocumentVersioned, AggregateTypeStoredDocument, d.ID),
		CommittedDocument: committedFrom(d),
		PreviousVersion:   d.Version - 1,
	}
}

// Document returns the committed version
func (e *DocumentVersionedEvent) Document() CommittedDocument {
	return e.CommittedDocument
}
