package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
)

// InMemoryDraftStore keeps drafts in process memory.
// Drafts do not survive a restart and are not shared between instances.
type InMemoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[document.Key]document.DraftRecord
	now    func() time.Time
}

// NewInMemoryDraftStore creates an empty in-memory draft store
func NewInMemoryDraftStore() *InMemoryDraftStore {
	return &InMemoryDraftStore{
		drafts: make(map[document.Key]document.DraftRecord),
		now:    time.Now,
	}
}

// SaveDraft replaces the draft for the key with a private copy of payload
func (s *InMemoryDraftStore) SaveDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType, payload document.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[document.NewKey(projectID, t)] = document.DraftRecord{
		ProjectID:    projectID,
		DocumentType: t,
		Payload:      payload.Clone(),
		UpdatedAt:    s.now(),
	}
	return nil
}

// LoadDraft returns a copy of the draft or shared.ErrNotFound
func (s *InMemoryDraftStore) LoadDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.DraftRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[document.NewKey(projectID, t)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	draft.Payload = draft.Payload.Clone()
	return &draft, nil
}

// DeleteDraft removes the draft
func (s *InMemoryDraftStore) DeleteDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, document.NewKey(projectID, t))
	return nil
}

// Len returns the number of stored drafts
func (s *InMemoryDraftStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drafts)
}

var _ document.DraftStore = (*InMemoryDraftStore)(nil)
