package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
)

// MemoryBlobStore keeps artifacts in process memory. It is used for local
// development and tests; nothing survives a restart.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	files   map[string]document.Artifact
	baseURL string
}

// NewMemoryBlobStore creates an empty store
func NewMemoryBlobStore(publicBaseURL string) *MemoryBlobStore {
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &MemoryBlobStore{
		files:   make(map[string]document.Artifact),
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *MemoryBlobStore) Store(ctx context.Context, artifact *document.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateArtifact(artifact); err != nil {
		return "", err
	}
	fileID := newFileID("", artifact, time.Now())
	stored := *artifact
	stored.Data = bytes.Clone(artifact.Data)

	s.mu.Lock()
	s.files[fileID] = stored
	s.mu.Unlock()
	return fileID, nil
}

func (s *MemoryBlobStore) URLFor(ctx context.Context, fileID string, mode document.URLMode) (string, error) {
	if err := validateFileID(fileID); err != nil {
		return "", err
	}
	s.mu.RLock()
	_, ok := s.files[fileID]
	s.mu.RUnlock()
	if !ok {
		return "", ErrFileNotFound
	}
	return fileURL(s.baseURL, fileID, mode), nil
}

func (s *MemoryBlobStore) Open(ctx context.Context, fileID string) (io.ReadCloser, *document.Artifact, error) {
	s.mu.RLock()
	a, ok := s.files[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrFileNotFound
	}
	meta := a
	meta.Data = nil
	return io.NopCloser(bytes.NewReader(a.Data)), &meta, nil
}

// Len returns the number of stored artifacts
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

var (
	_ document.BlobStore = (*MemoryBlobStore)(nil)
	_ ArtifactReader     = (*MemoryBlobStore)(nil)
)
