package document

import (
	"context"

	"github.com/google/uuid"
)

// DocumentRepository is the versioned, append-only store of finalized documents
type DocumentRepository interface {
	// CommitFirstVersion writes version 1; fails with ErrAlreadyFinalized if any version exists
	CommitFirstVersion(ctx context.Context, in FirstVersion) (*StoredDocument, error)
	// CommitNextVersion writes version N+1 and moves the current flag in the same transaction;
	// fails with ErrSealedDocument for sealable types
	CommitNextVersion(ctx context.Context, in NextVersion) (*StoredDocument, error)
	// GetCurrent returns the current version or shared.ErrNotFound
	GetCurrent(ctx context.Context, projectID uuid.UUID, t DocumentType) (*StoredDocument, error)
	// GetVersion returns a specific version or shared.ErrNotFound
	GetVersion(ctx context.Context, projectID uuid.UUID, t DocumentType, version int) (*StoredDocument, error)
	// ListHistory returns all versions, newest version first
	ListHistory(ctx context.Context, projectID uuid.UUID, t DocumentType) ([]StoredDocument, error)
	// ListCurrentByProject returns the current version of every type of a project
	ListCurrentByProject(ctx context.Context, projectID uuid.UUID) ([]StoredDocument, error)
}

// DraftStore keeps one overwritable draft per (project, type)
type DraftStore interface {
	// SaveDraft replaces the whole draft for the key
	SaveDraft(ctx context.Context, projectID uuid.UUID, t DocumentType, payload Payload) error
	// LoadDraft returns the draft or shared.ErrNotFound
	LoadDraft(ctx context.Context, projectID uuid.UUID, t DocumentType) (*DraftRecord, error)
	// DeleteDraft removes the draft; missing drafts are not an error
	DeleteDraft(ctx context.Context, projectID uuid.UUID, t DocumentType) error
}

// ProjectRepository reads projects and maintains their derived status
type ProjectRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)
	Save(ctx context.Context, project *Project) error
	// RecordStage stores the stage reference and status in one write
	RecordStage(ctx context.Context, id uuid.UUID, t DocumentType, ref StageRef, status ProjectStatus) error
}
