// Package storage keeps rendered document artifacts in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrFileNotFound is returned when a file id does not resolve to a stored artifact
var ErrFileNotFound = errors.New("artifact not found")

// ArtifactReader is implemented by stores that can stream an artifact back,
// which the HTTP layer uses to serve files for backends without presigned URLs.
type ArtifactReader interface {
	Open(ctx context.Context, fileID string) (io.ReadCloser, *document.Artifact, error)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFileName reduces a file name to characters that are safe in keys, paths and headers
func SafeFileName(name string) string {
	name = unsafeFileChars.ReplaceAllString(path.Base(strings.TrimSpace(name)), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document.pdf"
	}
	return name
}

// newFileID builds "<prefix>documents/<yyyy>/<uuid>/<file name>".
// The file name travels in the id so URLs can be produced without a metadata lookup.
func newFileID(prefix string, artifact *document.Artifact, now time.Time) string {
	name := artifact.FileName
	if name == "" {
		name = "document" + extensionFor(artifact.ContentType)
	}
	return fmt.Sprintf("%sdocuments/%04d/%s/%s", prefix, now.Year(), uuid.NewString(), SafeFileName(name))
}

func extensionFor(contentType string) string {
	if contentType == "application/pdf" {
		return ".pdf"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// ContentDisposition returns the header value for a URL mode
func ContentDisposition(fileID string, mode document.URLMode) string {
	kind := "inline"
	if mode == document.URLModeDownload {
		kind = "attachment"
	}
	return mime.FormatMediaType(kind, map[string]string{"filename": path.Base(fileID)})
}

func validateFileID(fileID string) error {
	if fileID == "" {
		return errors.New("file id is required")
	}
	if strings.Contains(fileID, "..") || strings.HasPrefix(fileID, "/") {
		return fmt.Errorf("invalid file id %q", fileID)
	}
	return nil
}

func validateArtifact(artifact *document.Artifact) error {
	if artifact == nil || len(artifact.Data) == 0 {
		return errors.New("artifact is empty")
	}
	return nil
}

// NewBlobStore creates the blob store for the configured backend
func NewBlobStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (document.BlobStore, error) {
	switch cfg.Backend {
	case config.StorageBackendS3:
		s, err := NewS3BlobStore(ctx, cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageBackendFilesystem, "":
		return NewFileSystemBlobStore(cfg.LocalPath, cfg.PublicBaseURL)
	case config.StorageBackendMemory:
		return NewMemoryBlobStore(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
