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

// GormDraftStore keeps one draft row per (project, type) and overwrites it on every save
type GormDraftStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormDraftStore creates a new GORM-based draft store
func NewGormDraftStore(db *gorm.DB) *GormDraftStore {
	return &GormDraftStore{db: db, now: time.Now}
}

// SaveDraft replaces the whole draft for the key
func (s *GormDraftStore) SaveDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType, payload document.Payload) error {
	data, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	model := &models.DraftModel{
		ProjectID:    projectID,
		DocumentType: string(t),
		Payload:      string(data),
		UpdatedAt:    s.now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "document_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(model).Error
}

// LoadDraft returns the draft or shared.ErrNotFound
func (s *GormDraftStore) LoadDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.DraftRecord, error) {
	var model models.DraftModel
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND document_type = ?", projectID, string(t)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// DeleteDraft removes the draft; deleting a missing draft succeeds
func (s *GormDraftStore) DeleteDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) error {
	return s.db.WithContext(ctx).
		Where("project_id = ? AND document_type = ?", projectID, string(t)).
		Delete(&models.DraftModel{}).Error
}

var _ document.DraftStore = (*GormDraftStore)(nil)
