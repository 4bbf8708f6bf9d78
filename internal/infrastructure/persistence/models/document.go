package models

import (
	"fmt"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoredDocumentModel is the GORM model for the stored_documents table.
// Rows are insert-only; is_current is the only column ever updated.
type StoredDocumentModel struct {
	ID             uuid.UUID        `gorm:"type:uuid;primary_key"`
	ProjectID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_stored_documents_version,priority:1;index:idx_stored_documents_current,priority:1"`
	DocumentType   string           `gorm:"type:varchar(32);not null;uniqueIndex:uq_stored_documents_version,priority:2;index:idx_stored_documents_current,priority:2"`
	Version        int              `gorm:"not null;uniqueIndex:uq_stored_documents_version,priority:3"`
	Number         string           `gorm:"type:varchar(64);not null;index"`
	NumberSource   string           `gorm:"type:varchar(16);not null;default:'generator'"`
	Snapshot       string           `gorm:"type:jsonb;not null"`
	ArtifactFileID string           `gorm:"type:varchar(255);not null"`
	GrossAmount    *decimal.Decimal `gorm:"type:decimal(18,2)"`
	IsCurrent      bool             `gorm:"not null;default:false;index:idx_stored_documents_current,priority:3"`
	IsVoided       bool             `gorm:"not null;default:false"`
	VoidReason     *string          `gorm:"type:text"`
	CreatedAt      time.Time        `gorm:"not null"`
}

// TableName returns the table name for StoredDocumentModel
func (StoredDocumentModel) TableName() string {
	return "stored_documents"
}

// ToDomain converts the row to a domain StoredDocument
func (m *StoredDocumentModel) ToDomain() (*document.StoredDocument, error) {
	snapshot, err := document.UnmarshalPayload([]byte(m.Snapshot))
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of %s v%d: %w", m.Number, m.Version, err)
	}
	return &document.StoredDocument{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		DocumentType:   document.DocumentType(m.DocumentType),
		Number:         m.Number,
		NumberSource:   document.NumberSource(m.NumberSource),
		Version:        m.Version,
		Snapshot:       snapshot,
		ArtifactFileID: m.ArtifactFileID,
		GrossAmount:    m.GrossAmount,
		CreatedAt:      m.CreatedAt,
		IsCurrent:      m.IsCurrent,
		IsVoided:       m.IsVoided,
		VoidReason:     m.VoidReason,
	}, nil
}

// StoredDocumentModelFromDomain creates a row from a domain StoredDocument
func StoredDocumentModelFromDomain(d *document.StoredDocument) (*StoredDocumentModel, error) {
	snapshot, err := d.Snapshot.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return &StoredDocumentModel{
		ID:             d.ID,
		ProjectID:      d.ProjectID,
		DocumentType:   string(d.DocumentType),
		Version:        d.Version,
		Number:         d.Number,
		NumberSource:   string(d.NumberSource),
		Snapshot:       string(snapshot),
		ArtifactFileID: d.ArtifactFileID,
		GrossAmount:    d.GrossAmount,
		IsCurrent:      d.IsCurrent,
		IsVoided:       d.IsVoided,
		VoidReason:     d.VoidReason,
		CreatedAt:      d.CreatedAt,
	}, nil
}

// DraftModel is the GORM model for the document_drafts table.
// There is at most one row per (project_id, document_type).
type DraftModel struct {
	ProjectID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentType string    `gorm:"type:varchar(32);primaryKey"`
	Payload      string    `gorm:"type:jsonb;not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for DraftModel
func (DraftModel) TableName() string {
	return "document_drafts"
}

// ToDomain converts the row to a domain DraftRecord
func (m *DraftModel) ToDomain() (*document.DraftRecord, error) {
	payload, err := document.UnmarshalPayload([]byte(m.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &document.DraftRecord{
		ProjectID:    m.ProjectID,
		DocumentType: document.DocumentType(m.DocumentType),
		Payload:      payload,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}
