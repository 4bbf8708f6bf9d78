package document

import "context"

// Artifact is the rendered, opaque representation of a document
type Artifact struct {
	Data        []byte
	ContentType string
	FileName    string
	PageCount   int
}

// Size returns the artifact size in bytes
func (a *Artifact) Size() int {
	return len(a.Data)
}

// Renderer turns a document's data into an artifact
type Renderer interface {
	Render(ctx context.Context, t DocumentType, payload Payload) (*Artifact, error)
}

// URLMode selects how a stored artifact is served
type URLMode string

const (
	URLModeView     URLMode = "view"
	URLModeDownload URLMode = "download"
)

// IsValid checks if the mode is known
func (m URLMode) IsValid() bool {
	return m == URLModeView || m == URLModeDownload
}

// BlobStore persists artifacts and serves them by file id
type BlobStore interface {
	Store(ctx context.Context, artifact *Artifact) (string, error)
	URLFor(ctx context.Context, fileID string, mode URLMode) (string, error)
}

// SequenceGenerator issues strictly increasing numbers per document type
type SequenceGenerator interface {
	Next(ctx context.Context, t DocumentType) (string, error)
}
