package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProjectRepository implements document.ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GORM-based project repository
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// FindByID finds a project by its ID
func (r *GormProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.Project, error) {
	var model models.ProjectModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a project
func (r *GormProjectRepository) Save(ctx context.Context, project *document.Project) error {
	if project.IsNew() {
		project.Entity = shared.NewEntity()
	}
	model := models.ProjectModelFromDomain(project)
	return r.db.WithContext(ctx).Save(model).Error
}

// RecordStage stores the stage reference and status in one locked read-modify-write.
// The status never moves backwards: a stage before the current one only updates its reference.
func (r *GormProjectRepository) RecordStage(ctx context.Context, id uuid.UUID, t document.DocumentType, ref document.StageRef, status document.ProjectStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.ProjectModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("failed to lock project: %w", err)
		}

		project := model.ToDomain()
		project.RecordStage(t, ref)
		if status.IsValid() && stageOf(status) > stageOf(project.Status) {
			project.Status = status
		}

		return tx.Model(&models.ProjectModel{EntityColumns: models.EntityColumns{ID: id}}).
			Select("status", "stage_refs", "updated_at").
			Updates(models.ProjectModelFromDomain(project)).Error
	})
}

func stageOf(s document.ProjectStatus) int {
	for _, t := range document.Stages() {
		if document.StatusForStage(t) == s {
			return document.StageIndex(t)
		}
	}
	return -1
}

var _ document.ProjectRepository = (*GormProjectRepository)(nil)
