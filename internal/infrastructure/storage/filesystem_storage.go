package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
)

// DefaultPublicBaseURL is where the HTTP layer serves files from local backends
const DefaultPublicBaseURL = "/api/v1/files"

// FileSystemBlobStore keeps artifacts below a local directory.
// URLs point at the file route of this service, which streams them back via Open.
type FileSystemBlobStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewFileSystemBlobStore creates the root directory if needed
func NewFileSystemBlobStore(root, publicBaseURL string) (*FileSystemBlobStore, error) {
	if root == "" {
		return nil, errors.New("storage local_path is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &FileSystemBlobStore{
		root:    root,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}, nil
}

// Store writes the artifact to disk. Files are written to a temporary name first
// so a reader never observes a partially written artifact.
func (s *FileSystemBlobStore) Store(ctx context.Context, artifact *document.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateArtifact(artifact); err != nil {
		return "", err
	}
	fileID := newFileID("", artifact, s.now())
	target := s.pathFor(fileID)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, artifact.Data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return fileID, nil
}

// URLFor returns the service URL of the file with the disposition as a query parameter
func (s *FileSystemBlobStore) URLFor(ctx context.Context, fileID string, mode document.URLMode) (string, error) {
	if err := validateFileID(fileID); err != nil {
		return "", err
	}
	if _, err := os.Stat(s.pathFor(fileID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrFileNotFound
		}
		return "", err
	}
	return fileURL(s.baseURL, fileID, mode), nil
}

// Open streams a stored artifact
func (s *FileSystemBlobStore) Open(ctx context.Context, fileID string) (io.ReadCloser, *document.Artifact, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.pathFor(fileID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, err
	}
	return f, &document.Artifact{ContentType: contentTypeFor(fileID), FileName: filepath.Base(fileID)}, nil
}

func (s *FileSystemBlobStore) pathFor(fileID string) string {
	return filepath.Join(s.root, filepath.FromSlash(fileID))
}

func fileURL(baseURL, fileID string, mode document.URLMode) string {
	if !mode.IsValid() {
		mode = document.URLModeView
	}
	return baseURL + "/" + fileID + "?mode=" + url.QueryEscape(string(mode))
}

func contentTypeFor(fileID string) string {
	ext := strings.ToLower(filepath.Ext(fileID))
	if ext == ".pdf" {
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var (
	_ document.BlobStore = (*FileSystemBlobStore)(nil)
	_ ArtifactReader     = (*FileSystemBlobStore)(nil)
)
