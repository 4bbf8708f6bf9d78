package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements document.DocumentRepository on GORM.
// Every commit runs in one transaction so the is_current flag moves atomically
// with the insert of the new version.
type GormDocumentRepository struct {
	db     *gorm.DB
	now    func() time.Time
	outbox OutboxWriter
}

// OutboxWriter stores domain events inside the caller's transaction
type OutboxWriter interface {
	SaveEvents(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

// DocumentRepositoryOption configures a GormDocumentRepository
type DocumentRepositoryOption func(*GormDocumentRepository)

// WithEventOutbox records a DocumentFinalized or DocumentVersioned event in the
// same transaction as every committed version.
func WithEventOutbox(w OutboxWriter) DocumentRepositoryOption {
	return func(r *GormDocumentRepository) {
		r.outbox = w
	}
}

// NewGormDocumentRepository creates a new GORM-based document repository
func NewGormDocumentRepository(db *gorm.DB, opts ...DocumentRepositoryOption) *GormDocumentRepository {
	r := &GormDocumentRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CommitFirstVersion writes version 1 of a document
func (r *GormDocumentRepository) CommitFirstVersion(ctx context.Context, in document.FirstVersion) (*document.StoredDocument, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	doc := &document.StoredDocument{
		ID:             uuid.New(),
		ProjectID:      in.ProjectID,
		DocumentType:   in.DocumentType,
		Number:         in.Number.Value,
		NumberSource:   in.Number.Source,
		Version:        1,
		Snapshot:       in.Payload.Clone(),
		ArtifactFileID: in.ArtifactFileID,
		GrossAmount:    in.GrossAmount,
		CreatedAt:      r.now(),
		IsCurrent:      true,
	}
	if doc.NumberSource == "" {
		doc.NumberSource = document.NumberSourceGenerator
	}
	model, err := models.StoredDocumentModelFromDomain(doc)
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.StoredDocumentModel{}).
			Where("project_id = ? AND document_type = ?", in.ProjectID, string(in.DocumentType)).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check existing versions: %w", err)
		}
		if existing > 0 {
			return document.ErrAlreadyFinalized
		}
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return r.recordEvent(ctx, tx, document.NewDocumentFinalizedEvent(doc))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent writer inserted version 1 between our check and insert
			return nil, document.ErrAlreadyFinalized.WithCause(err)
		}
		return nil, err
	}
	return doc, nil
}

// CommitNextVersion writes version N+1 and clears the current flag on version N
func (r *GormDocumentRepository) CommitNextVersion(ctx context.Context, in document.NextVersion) (*document.StoredDocument, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.DocumentType.IsSealable() {
		return nil, document.ErrSealedDocument
	}

	var doc *document.StoredDocument
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest models.StoredDocumentModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("project_id = ? AND document_type = ?", in.ProjectID, string(in.DocumentType)).
			Order("version DESC").
			First(&latest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return document.ErrNotFinalized
		}
		if err != nil {
			return fmt.Errorf("failed to lock latest version: %w", err)
		}

		if err := tx.Model(&models.StoredDocumentModel{}).
			Where("project_id = ? AND document_type = ? AND is_current = ?", in.ProjectID, string(in.DocumentType), true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to clear current version: %w", err)
		}

		doc = &document.StoredDocument{
			ID:             uuid.New(),
			ProjectID:      in.ProjectID,
			DocumentType:   in.DocumentType,
			Number:         latest.Number,
			NumberSource:   document.NumberSource(latest.NumberSource),
			Version:        latest.Version + 1,
			Snapshot:       in.Payload.Clone(),
			ArtifactFileID: in.ArtifactFileID,
			GrossAmount:    in.GrossAmount,
			CreatedAt:      r.now(),
			IsCurrent:      true,
		}
		doc.Snapshot.Number = latest.Number
		model, err := models.StoredDocumentModelFromDomain(doc)
		if err != nil {
			return err
		}
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return r.recordEvent(ctx, tx, document.NewDocumentVersionedEvent(doc))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, shared.ErrConcurrencyConflict.WithCause(err)
		}
		return nil, err
	}
	return doc, nil
}

// GetCurrent returns the version flagged current.
// More than one current row is reported as a structural inconsistency.
func (r *GormDocumentRepository) GetCurrent(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.StoredDocument, error) {
	var rows []models.StoredDocumentModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND document_type = ? AND is_current = ?", projectID, string(t), true).
		Order("version DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load current document: %w", err)
	}
	switch len(rows) {
	case 0:
		return nil, shared.ErrNotFound
	case 1:
		return rows[0].ToDomain()
	default:
		return nil, document.ErrStructuralInconsistency.WithMessage(
			fmt.Sprintf("%d current versions for %s/%s", len(rows), projectID, t))
	}
}

// GetVersion returns one specific version
func (r *GormDocumentRepository) GetVersion(ctx context.Context, projectID uuid.UUID, t document.DocumentType, version int) (*document.StoredDocument, error) {
	var model models.StoredDocumentModel
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND document_type = ? AND version = ?", projectID, string(t), version).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// ListHistory returns every version, newest first. Rows sharing a version
// number, which only a broken store can hold, are ordered by creation time.
func (r *GormDocumentRepository) ListHistory(ctx context.Context, projectID uuid.UUID, t document.DocumentType) ([]document.StoredDocument, error) {
	var rows []models.StoredDocumentModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND document_type = ?", projectID, string(t)).
		Order("version DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return toDomainDocuments(rows)
}

// ListCurrentByProject returns the current version of each document type of a project
func (r *GormDocumentRepository) ListCurrentByProject(ctx context.Context, projectID uuid.UUID) ([]document.StoredDocument, error) {
	var rows []models.StoredDocumentModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_current = ?", projectID, true).
		Order("document_type").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list current documents: %w", err)
	}
	return toDomainDocuments(rows)
}

func (r *GormDocumentRepository) recordEvent(ctx context.Context, tx *gorm.DB, ev shared.DomainEvent) error {
	if r.outbox == nil {
		return nil
	}
	if err := r.outbox.SaveEvents(ctx, tx, ev); err != nil {
		return fmt.Errorf("failed to write %s to outbox: %w", ev.EventType(), err)
	}
	return nil
}

func toDomainDocuments(rows []models.StoredDocumentModel) ([]document.StoredDocument, error) {
	out := make([]document.StoredDocument, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

// Ensure GormDocumentRepository implements the interface
var _ document.DocumentRepository = (*GormDocumentRepository)(nil)
