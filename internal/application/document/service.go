package document

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service owns one Controller per (project, document type) and is the entry point
// for transports. Keys are independent: a slow finalize on one key never blocks another.
type Service struct {
	deps      *Dependencies
	projector *StatusProjector
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[document.Key]*sessionEntry
}

type sessionEntry struct {
	once     sync.Once
	ctrl     *Controller
	err      error
	opened   atomic.Bool
	lastUsed atomic.Int64 // unix nanoseconds
}

// close waits for a concurrent Open to finish before tearing the controller down
func (e *sessionEntry) close() {
	e.once.Do(func() {})
	if e.ctrl != nil {
		e.ctrl.Close()
	}
}

// NewService creates a new document Service
func NewService(deps *Dependencies, projector *StatusProjector) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
		deps.Logger = logger
	}
	return &Service{
		deps:      deps,
		projector: projector,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[document.Key]*sessionEntry),
	}
}

// Session returns the opened controller for the key, creating it on first use
func (s *Service) Session(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*Controller, error) {
	if !t.IsValid() {
		return nil, document.ErrUnknownDocumentType
	}
	key := document.NewKey(projectID, t)

	s.mu.Lock()
	entry, ok := s.sessions[key]
	if !ok {
		entry = &sessionEntry{}
		s.sessions[key] = entry
	}
	entry.lastUsed.Store(s.now().UnixNano())
	s.mu.Unlock()

	entry.once.Do(func() {
		ctrl := NewController(key, s.deps)
		entry.err = ctrl.Open(ctx)
		entry.ctrl = ctrl
		entry.opened.Store(true)
	})

	if entry.err != nil {
		s.mu.Lock()
		if s.sessions[key] == entry {
			delete(s.sessions, key)
		}
		s.mu.Unlock()
		return nil, entry.err
	}
	return entry.ctrl, nil
}

// View returns the session view for the key
func (s *Service) View(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*SessionView, error) {
	ctrl, err := s.Session(ctx, projectID, t)
	if err != nil {
		return nil, err
	}
	view := ctrl.View()
	return &view, nil
}

// Edit replaces the working payload of the key
func (s *Service) Edit(ctx context.Context, projectID uuid.UUID, t document.DocumentType, payload document.Payload) (*SessionView, error) {
	ctrl, err := s.Session(ctx, projectID, t)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Edit(payload); err != nil {
		return nil, err
	}
	view := ctrl.View()
	return &view, nil
}

// Finalize commits version 1 of the key
func (s *Service) Finalize(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*CommitResult, error) {
	ctrl, err := s.Session(ctx, projectID, t)
	if err != nil {
		return nil, err
	}
	return ctrl.Finalize(ctx)
}

// EnterEditMode switches a finalized document into edit mode
func (s *Service) EnterEditMode(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*SessionView, error) {
	ctrl, err := s.Session(ctx, projectID, t)
	if err != nil {
		return nil, err
	}
	if err := ctrl.EnterEditMode(); err != nil {
		return nil, err
	}
	view := ctrl.View()
	return &view, nil
}

// CancelEdit discards edit-mode changes
func (s *Service) CancelEdit(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*SessionView, error) {
	ctrl, err := s.Session(ctx, projectID, t)
	if err != nil {
		return nil, err
	}
	if err := ctrl.CancelEdit(); err != nil {
		return nil, err
	}
	view := ctrl.View()
	return &view, nil
}

// SaveNewVersion commits the edited document as a new version
func (s *Service) SaveNewVersion(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*CommitResult, error) {
	ctrl, err := s.Session(ctx, projectID, t)
	if err != nil {
		return nil, err
	}
	return ctrl.SaveNewVersion(ctx)
}

// GetCurrent returns the current stored document straight from the repository
func (s *Service) GetCurrent(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.StoredDocument, error) {
	if !t.IsValid() {
		return nil, document.ErrUnknownDocumentType
	}
	return s.deps.Repository.GetCurrent(ctx, projectID, t)
}

// History returns the version history of the key
func (s *Service) History(ctx context.Context, projectID uuid.UUID, t document.DocumentType) ([]document.HistoryEntry, error) {
	if !t.IsValid() {
		return nil, document.ErrUnknownDocumentType
	}
	return loadHistory(ctx, s.deps, document.NewKey(projectID, t))
}

// Inherit returns the line items the key would inherit from the preceding stage
func (s *Service) Inherit(ctx context.Context, projectID uuid.UUID, t document.DocumentType) ([]document.LineItem, error) {
	if !t.IsValid() {
		return nil, document.ErrUnknownDocumentType
	}
	return s.deps.Inheritance.Inherit(ctx, projectID, t)
}

// ArtifactURL returns a view or download URL for a stored version (0 means current)
func (s *Service) ArtifactURL(ctx context.Context, projectID uuid.UUID, t document.DocumentType, version int, mode document.URLMode) (string, error) {
	if !t.IsValid() {
		return "", document.ErrUnknownDocumentType
	}
	return artifactURL(ctx, s.deps, document.NewKey(projectID, t), version, mode)
}

// ProjectStatus derives the project's status from the furthest current stage
func (s *Service) ProjectStatus(ctx context.Context, projectID uuid.UUID) (document.ProjectStatus, error) {
	return s.projector.Derive(ctx, projectID)
}

// CloseSession tears down the controller of the key, if any
func (s *Service) CloseSession(projectID uuid.UUID, t document.DocumentType) {
	key := document.NewKey(projectID, t)

	s.mu.Lock()
	entry, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		entry.close()
	}
}

// EvictIdle closes sessions unused for longer than maxIdle and returns how
// many were closed. Sessions holding unsaved work stay open: a revision, a
// pending or failed autosave, a commit in progress.
func (s *Service) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle).UnixNano()

	s.mu.Lock()
	var evicted []*sessionEntry
	for key, entry := range s.sessions {
		if entry.lastUsed.Load() > cutoff || !entry.opened.Load() || entry.err != nil || !entry.ctrl.quiescent() {
			continue
		}
		delete(s.sessions, key)
		evicted = append(evicted, entry)
	}
	s.mu.Unlock()

	for _, entry := range evicted {
		entry.close()
	}
	if len(evicted) > 0 {
		s.logger.Debug("Idle document sessions closed", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// RunEviction calls EvictIdle every half maxIdle until ctx ends
func (s *Service) RunEviction(ctx context.Context, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(maxIdle)
		}
	}
}

// SessionCount reports how many sessions are open
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown tears down every open controller
func (s *Service) Shutdown() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[document.Key]*sessionEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.close()
	}
	s.logger.Info("Document sessions closed", zap.Int("count", len(entries)))
}
