package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusProjector derives a project's status from the furthest stage that has a
// current document, and keeps the project's cached stage references up to date.
type StatusProjector struct {
	repo     document.DocumentRepository
	projects document.ProjectRepository
	logger   *zap.Logger
}

// NewStatusProjector creates a new StatusProjector
func NewStatusProjector(repo document.DocumentRepository, projects document.ProjectRepository, logger *zap.Logger) *StatusProjector {
	return &StatusProjector{
		repo:     repo,
		projects: projects,
		logger:   logger,
	}
}

// Derive reads the current document of every stage and returns the furthest status
func (p *StatusProjector) Derive(ctx context.Context, projectID uuid.UUID) (document.ProjectStatus, error) {
	status := document.ProjectStatusOpen
	for _, stage := range document.Stages() {
		_, err := p.repo.GetCurrent(ctx, projectID, stage)
		switch {
		case err == nil:
			status = document.StatusForStage(stage)
		case errors.Is(err, shared.ErrNotFound):
		default:
			return "", fmt.Errorf("failed to read %s: %w", stage, err)
		}
	}
	return status, nil
}

// EventTypes returns the event types this handler is interested in
func (p *StatusProjector) EventTypes() []string {
	return []string{
		document.EventTypeDocumentFinalized,
		document.EventTypeDocumentVersioned,
	}
}

// Handle records the committed stage on the project and refreshes its status
func (p *StatusProjector) Handle(ctx context.Context, event shared.DomainEvent) error {
	committed, ok := event.(document.DocumentCommitted)
	if !ok {
		p.logger.Warn("Unexpected event type for status projector",
			zap.String("event_type", event.EventType()),
		)
		return nil
	}
	doc := committed.Document()

	status, err := p.Derive(ctx, doc.ProjectID)
	if err != nil {
		return err
	}

	ref := document.StageRef{Number: doc.Number, IssuedOn: doc.IssuedOn}
	if err := p.projects.RecordStage(ctx, doc.ProjectID, doc.DocumentType, ref, status); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			p.logger.Debug("Project not tracked, skipping status update",
				zap.String("project_id", doc.ProjectID.String()),
			)
			return nil
		}
		return fmt.Errorf("failed to record stage on project: %w", err)
	}

	p.logger.Info("Project status updated",
		zap.String("project_id", doc.ProjectID.String()),
		zap.String("document_type", doc.DocumentType.String()),
		zap.String("status", string(status)),
	)
	return nil
}
