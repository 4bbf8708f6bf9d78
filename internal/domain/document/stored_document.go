package document

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NumberSource records who issued a document number
type NumberSource string

const (
	// NumberSourceGenerator marks numbers issued by the sequence generator
	NumberSourceGenerator NumberSource = "generator"
	// NumberSourceFallback marks locally derived numbers that may collide
	NumberSourceFallback NumberSource = "fallback"
)

// IsValid checks if the number source is known
func (s NumberSource) IsValid() bool {
	return s == NumberSourceGenerator || s == NumberSourceFallback
}

// DocumentNumber is a human-readable document number together with its origin
type DocumentNumber struct {
	Value  string       `json:"value"`
	Source NumberSource `json:"source"`
}

// IsFallback reports whether the number was derived locally
func (n DocumentNumber) IsFallback() bool {
	return n.Source == NumberSourceFallback
}

// Key identifies one document lifecycle: a document type within a project
type Key struct {
	ProjectID    uuid.UUID
	DocumentType DocumentType
}

// NewKey creates a lifecycle key
func NewKey(projectID uuid.UUID, t DocumentType) Key {
	return Key{ProjectID: projectID, DocumentType: t}
}

// String returns "<project>/<type>"
func (k Key) String() string {
	return k.ProjectID.String() + "/" + string(k.DocumentType)
}

// StoredDocument is one committed, immutable version of a document.
// Only IsCurrent changes after insert, and only inside the commit of the next version.
type StoredDocument struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	DocumentType   DocumentType
	Number         string
	NumberSource   NumberSource
	Version        int
	Snapshot       Payload
	ArtifactFileID string
	GrossAmount    *decimal.Decimal
	CreatedAt      time.Time
	IsCurrent      bool
	IsVoided       bool
	VoidReason     *string
}

// Key returns the lifecycle key of the document
func (d *StoredDocument) Key() Key {
	return NewKey(d.ProjectID, d.DocumentType)
}

// IsSealed reports whether no further version may be written
func (d *StoredDocument) IsSealed() bool {
	return d.DocumentType.IsSealable()
}

// FirstVersion is the input for committing version 1 of a document
type FirstVersion struct {
	ProjectID      uuid.UUID
	DocumentType   DocumentType
	Payload        Payload
	ArtifactFileID string
	Number         DocumentNumber
	GrossAmount    *decimal.Decimal
}

// Validate checks the commit input
func (f FirstVersion) Validate() error {
	if f.ProjectID == uuid.Nil {
		return ErrInvalidCommit.WithMessage("project id is required")
	}
	if !f.DocumentType.IsValid() {
		return ErrUnknownDocumentType
	}
	if f.Number.Value == "" {
		return ErrInvalidCommit.WithMessage("document number is required")
	}
	if f.ArtifactFileID == "" {
		return ErrInvalidCommit.WithMessage("artifact file id is required")
	}
	if f.GrossAmount != nil && f.GrossAmount.IsNegative() {
		return ErrInvalidCommit.WithMessage("gross amount cannot be negative")
	}
	return nil
}

// NextVersion is the input for committing version N+1 of a document
type NextVersion struct {
	ProjectID      uuid.UUID
	DocumentType   DocumentType
	Payload        Payload
	ArtifactFileID string
	GrossAmount    *decimal.Decimal
}

// Validate checks the commit input
func (n NextVersion) Validate() error {
	if n.ProjectID == uuid.Nil {
		return ErrInvalidCommit.WithMessage("project id is required")
	}
	if !n.DocumentType.IsValid() {
		return ErrUnknownDocumentType
	}
	if n.ArtifactFileID == "" {
		return ErrInvalidCommit.WithMessage("artifact file id is required")
	}
	if n.GrossAmount != nil && n.GrossAmount.IsNegative() {
		return ErrInvalidCommit.WithMessage("gross amount cannot be negative")
	}
	return nil
}

// DraftRecord is the single overwritable snapshot of an in-progress edit
type DraftRecord struct {
	ProjectID    uuid.UUID
	DocumentType DocumentType
	Payload      Payload
	UpdatedAt    time.Time
}

// Key returns the lifecycle key of the draft
func (d *DraftRecord) Key() Key {
	return NewKey(d.ProjectID, d.DocumentType)
}
