package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	spanService       = "document_lifecycle"
	draftWriteTimeout = 10 * time.Second
	maxDraftRetries   = 3
)

// ErrSessionClosed is returned by a controller after Close
var ErrSessionClosed = shared.ErrInvalidState.WithMessage("document session is closed")

// DraftState is the soft autosave indicator shown to the user
type DraftState string

const (
	DraftStateIdle    DraftState = "idle"
	DraftStatePending DraftState = "pending"
	DraftStateSaving  DraftState = "saving"
	DraftStateSaved   DraftState = "saved"
	DraftStateFailed  DraftState = "failed"
	DraftStateRetired DraftState = "retired"
)

// DraftStatus reports the autosave outcome; failures never block the user
type DraftStatus struct {
	State     DraftState `json:"state"`
	SavedAt   time.Time  `json:"saved_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Notice is a non-blocking message surfaced next to a successful action
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionView is a snapshot of a controller for presentation
type SessionView struct {
	Key         document.Key
	State       document.LifecycleState
	Payload     document.Payload
	Totals      *document.Totals
	Current     *document.StoredDocument
	DraftStatus DraftStatus
	Actions     []document.Action
	Saving      bool
}

// CommitResult is returned by Finalize and SaveNewVersion
type CommitResult struct {
	Document *document.StoredDocument
	State    document.LifecycleState
	Notices  []Notice
}

// Dependencies are the collaborators shared by all controllers
type Dependencies struct {
	Repository    document.DocumentRepository
	Drafts        document.DraftStore
	Renderer      document.Renderer
	Blobs         document.BlobStore
	Sequence      *SequenceAdapter
	Inheritance   *InheritanceResolver
	Projects      document.ProjectRepository
	Publisher     shared.EventPublisher
	Scheduler     Scheduler
	AutosaveDelay time.Duration
	VATRate       decimal.Decimal
	Now           func() time.Time
	Logger        *zap.Logger
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Controller is the single entry point for one (project, document type) lifecycle.
// Finalize and SaveNewVersion are serialized per controller; a second call while
// one is in flight is rejected with ErrFinalizeInProgress.
type Controller struct {
	key       document.Key
	deps      *Dependencies
	debouncer *Debouncer
	logger    *zap.Logger

	// draftMu orders draft writes against the first commit
	draftMu sync.Mutex
	saving  atomic.Bool

	mu           sync.Mutex
	state        document.LifecycleState
	form         document.Payload
	current      *document.StoredDocument
	draftStatus  DraftStatus
	draftRetries int
	closed       bool
}

// NewController creates a controller for key. Call Open before use.
func NewController(key document.Key, deps *Dependencies) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	logger := deps.Logger
	return &Controller{
		key:         key,
		deps:        deps,
		debouncer:   NewDebouncer(deps.Scheduler, deps.AutosaveDelay),
		logger:      logger.With(zap.String("project_id", key.ProjectID.String()), zap.String("document_type", key.DocumentType.String())),
		state:       document.StateEmpty,
		draftStatus: DraftStatus{State: DraftStateIdle},
	}
}

// Key returns the lifecycle key
func (c *Controller) Key() document.Key {
	return c.key
}

// Open loads the persisted state. A committed document wins over any draft;
// without either, the form is seeded from the preceding stage.
func (c *Controller) Open(ctx context.Context) error {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "open", telemetry.ForDocument(c.key.ProjectID, c.key.DocumentType))
	defer span.End()

	current, err := c.deps.Repository.GetCurrent(ctx, c.key.ProjectID, c.key.DocumentType)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load current document: %w", err)
	}
	if current != nil {
		c.mu.Lock()
		c.current = current
		c.form = current.Snapshot.Clone()
		c.state = document.DeriveState(current, false)
		c.draftStatus = DraftStatus{State: DraftStateRetired}
		c.mu.Unlock()
		return nil
	}

	if draft, err := c.deps.Drafts.LoadDraft(ctx, c.key.ProjectID, c.key.DocumentType); err == nil {
		c.mu.Lock()
		c.form = c.normalized(draft.Payload)
		c.state = document.StateDrafting
		c.draftStatus = DraftStatus{State: DraftStateSaved, SavedAt: draft.UpdatedAt}
		c.mu.Unlock()
		return nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		c.logger.Warn("Failed to load draft, starting from inherited items", zap.Error(err))
	}

	form, err := c.initialPayload(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	c.mu.Lock()
	c.form = form
	c.state = document.StateEmpty
	c.mu.Unlock()
	return nil
}

func (c *Controller) initialPayload(ctx context.Context) (document.Payload, error) {
	var (
		customer document.Customer
		project  *document.Project
	)
	if c.deps.Projects != nil {
		p, err := c.deps.Projects.FindByID(ctx, c.key.ProjectID)
		switch {
		case err == nil:
			project = p
			customer = p.Customer()
		case errors.Is(err, shared.ErrNotFound):
		default:
			return document.Payload{}, fmt.Errorf("failed to load project: %w", err)
		}
	}

	var (
		items []document.LineItem
		err   error
	)
	switch {
	case c.deps.Inheritance == nil:
		items = []document.LineItem{}
	case project != nil:
		items, err = c.deps.Inheritance.InitialItems(ctx, project, c.key.DocumentType)
	default:
		items, err = c.deps.Inheritance.Inherit(ctx, c.key.ProjectID, c.key.DocumentType)
	}
	if err != nil {
		return document.Payload{}, err
	}

	return c.normalized(document.NewPayload(customer, items)), nil
}

// normalized copies p into the shape of the controller's document type:
// line totals recomputed on priced documents, prices stripped on unpriced ones.
func (c *Controller) normalized(p document.Payload) document.Payload {
	out := p.Clone()
	c.applyVAT(&out)
	out.Normalize(c.key.DocumentType)
	return out
}

// applyVAT enforces the configured rate on priced documents
func (c *Controller) applyVAT(p *document.Payload) {
	if c.key.DocumentType.IsPriced() && !c.deps.VATRate.IsZero() {
		p.VATRate = c.deps.VATRate
	}
}

// Edit replaces the working payload. Before the first commit the payload is
// autosaved through the debouncer; in edit mode it stays in memory until saved.
func (c *Controller) Edit(payload document.Payload) error {
	if c.saving.Load() {
		return document.ErrFinalizeInProgress
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	switch c.state {
	case document.StateEmpty, document.StateDrafting:
		c.form = c.normalized(payload)
		c.state = document.StateDrafting
		c.draftRetries = 0
		c.scheduleDraftLocked()
		return nil
	case document.StateRevising:
		c.form = c.normalized(payload)
		return nil
	case document.StateSealed:
		return document.ErrSealedDocument
	default:
		return shared.ErrInvalidState.WithMessage("enter edit mode before changing a finalized document")
	}
}

func (c *Controller) scheduleDraftLocked() {
	snapshot := c.form.Clone()
	c.draftStatus.State = DraftStatePending
	c.debouncer.Trigger(func() { c.writeDraft(snapshot) })
}

// writeDraft runs on the debounce timer. Failures are absorbed and retried.
func (c *Controller) writeDraft(payload document.Payload) {
	c.draftMu.Lock()
	defer c.draftMu.Unlock()

	c.mu.Lock()
	if c.closed || !c.state.AcceptsDrafts() {
		c.mu.Unlock()
		return
	}
	c.draftStatus.State = DraftStateSaving
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), draftWriteTimeout)
	defer cancel()
	err := c.deps.Drafts.SaveDraft(ctx, c.key.ProjectID, c.key.DocumentType, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.draftRetries = 0
		if c.draftStatus.State == DraftStateSaving {
			c.draftStatus = DraftStatus{State: DraftStateSaved, SavedAt: c.deps.now()}
		}
		return
	}

	werr := document.ErrDraftWriteFailed.WithCause(err)
	c.logger.Warn("Autosave failed", zap.Error(werr), zap.Int("attempt", c.draftRetries+1))
	c.draftStatus = DraftStatus{State: DraftStateFailed, LastError: werr.Error()}
	if c.draftRetries < maxDraftRetries && !c.debouncer.Pending() && !c.closed && c.state.AcceptsDrafts() {
		c.draftRetries++
		c.debouncer.Trigger(func() { c.writeDraft(payload) })
	}
}

// Finalize renders, stores and commits version 1. On success the draft is retired.
// Any failure leaves the lifecycle in its previous state so the user can retry.
func (c *Controller) Finalize(ctx context.Context) (*CommitResult, error) {
	if !c.saving.CompareAndSwap(false, true) {
		return nil, document.ErrFinalizeInProgress
	}
	defer c.saving.Store(false)

	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "finalize", telemetry.ForDocument(c.key.ProjectID, c.key.DocumentType))
	defer span.End()

	// no draft write may start or be in flight while the first version is committed
	c.draftMu.Lock()
	defer c.draftMu.Unlock()

	c.mu.Lock()
	if err := c.checkFinalizableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	payload := c.form.Clone()
	hadPending := c.debouncer.Cancel()
	c.mu.Unlock()

	doc, notices, err := c.commitFirst(ctx, payload)
	if err != nil {
		telemetry.RecordError(span, err)
		c.afterFailedFinalize(ctx, hadPending, err)
		return nil, err
	}

	c.mu.Lock()
	c.current = doc
	c.form = doc.Snapshot.Clone()
	c.state = document.FinalizedStateFor(doc.DocumentType, doc.Version)
	c.draftStatus = DraftStatus{State: DraftStateRetired}
	state := c.state
	c.mu.Unlock()

	telemetry.SetAttribute(span, telemetry.SpanAttrNumber, doc.Number)
	for _, n := range notices {
		telemetry.AddEvent(span, "notice", "code", n.Code)
	}
	c.retireDraft(ctx)
	c.publish(ctx, document.NewDocumentFinalizedEvent(doc))

	c.logger.Info("Document finalized",
		zap.String("number", doc.Number),
		zap.String("number_source", string(doc.NumberSource)),
		zap.String("state", state.String()),
	)
	return &CommitResult{Document: doc, State: state, Notices: notices}, nil
}

func (c *Controller) checkFinalizableLocked() error {
	if c.closed {
		return ErrSessionClosed
	}
	switch c.state {
	case document.StateEmpty, document.StateDrafting:
		return nil
	case document.StateSealed:
		return document.ErrSealedDocument
	default:
		return document.ErrAlreadyFinalized
	}
}

func (c *Controller) commitFirst(ctx context.Context, payload document.Payload) (*document.StoredDocument, []Notice, error) {
	t := c.key.DocumentType
	c.applyVAT(&payload)
	payload.Normalize(t)
	if err := payload.Validate(t); err != nil {
		return nil, nil, err
	}

	var notices []Notice
	number, notice := c.deps.Sequence.NextNumber(ctx, t)
	if notice != nil {
		notices = append(notices, noticeFrom(notice))
	}
	payload.Number = number.Value
	if payload.IssuedOn.IsZero() {
		payload.IssuedOn = c.deps.now()
	}

	fileID, err := c.renderAndStore(ctx, payload)
	if err != nil {
		return nil, nil, err
	}

	doc, err := c.deps.Repository.CommitFirstVersion(ctx, document.FirstVersion{
		ProjectID:      c.key.ProjectID,
		DocumentType:   t,
		Payload:        payload,
		ArtifactFileID: fileID,
		Number:         number,
		GrossAmount:    payload.GrossAmount(t),
	})
	if err != nil {
		return nil, nil, c.commitError(err, fileID)
	}
	return doc, notices, nil
}

func (c *Controller) afterFailedFinalize(ctx context.Context, hadPending bool, err error) {
	c.logger.Warn("Finalize failed", zap.Error(err))

	if errors.Is(err, document.ErrAlreadyFinalized) || errors.Is(err, document.ErrSealedDocument) {
		// another writer committed first; adopt its version and stop autosaving
		c.resync(ctx)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hadPending && c.state.AcceptsDrafts() && !c.closed {
		c.scheduleDraftLocked()
	}
}

func (c *Controller) resync(ctx context.Context) {
	current, err := c.deps.Repository.GetCurrent(ctx, c.key.ProjectID, c.key.DocumentType)
	if err != nil {
		c.logger.Warn("Failed to reload current document", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = current
	c.form = current.Snapshot.Clone()
	c.state = document.DeriveState(current, false)
	c.draftStatus = DraftStatus{State: DraftStateRetired}
}

// EnterEditMode starts revising a finalized document. Sealed documents offer no edit mode.
func (c *Controller) EnterEditMode() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	switch c.state {
	case document.StateFinalizedV1, document.StateFinalizedVN:
		c.form = c.current.Snapshot.Clone()
		c.state = document.StateRevising
		return nil
	case document.StateRevising:
		return nil
	case document.StateSealed:
		return document.ErrSealedDocument
	default:
		return document.ErrNotFinalized
	}
}

// CancelEdit leaves edit mode and resets the form to the last committed snapshot
func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != document.StateRevising {
		return shared.ErrInvalidState.WithMessage("document is not in edit mode")
	}
	c.form = c.current.Snapshot.Clone()
	c.state = document.FinalizedStateFor(c.current.DocumentType, c.current.Version)
	return nil
}

// SaveNewVersion commits the edited form as version N+1 with the same number
func (c *Controller) SaveNewVersion(ctx context.Context) (*CommitResult, error) {
	if !c.saving.CompareAndSwap(false, true) {
		return nil, document.ErrFinalizeInProgress
	}
	defer c.saving.Store(false)

	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "save_new_version", telemetry.ForDocument(c.key.ProjectID, c.key.DocumentType))
	defer span.End()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, ErrSessionClosed
	case c.state == document.StateSealed:
		c.mu.Unlock()
		return nil, document.ErrSealedDocument
	case c.state != document.StateRevising:
		c.mu.Unlock()
		return nil, shared.ErrInvalidState.WithMessage("enter edit mode before saving a new version")
	}
	payload := c.form.Clone()
	previous := c.current
	c.mu.Unlock()

	doc, err := c.commitNext(ctx, payload, previous)
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Warn("Saving new version failed", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.current = doc
	c.form = doc.Snapshot.Clone()
	c.state = document.FinalizedStateFor(doc.DocumentType, doc.Version)
	state := c.state
	c.mu.Unlock()

	telemetry.SetAttribute(span, telemetry.SpanAttrVersion, doc.Version)
	c.publish(ctx, document.NewDocumentVersionedEvent(doc))

	c.logger.Info("Document version saved",
		zap.String("number", doc.Number),
		zap.Int("version", doc.Version),
	)
	return &CommitResult{Document: doc, State: state}, nil
}

func (c *Controller) commitNext(ctx context.Context, payload document.Payload, previous *document.StoredDocument) (*document.StoredDocument, error) {
	t := c.key.DocumentType
	if t.IsSealable() {
		return nil, document.ErrSealedDocument
	}
	c.applyVAT(&payload)
	payload.Normalize(t)
	if err := payload.Validate(t); err != nil {
		return nil, err
	}
	payload.Number = previous.Number
	payload.IssuedOn = c.deps.now()

	fileID, err := c.renderAndStore(ctx, payload)
	if err != nil {
		return nil, err
	}

	doc, err := c.deps.Repository.CommitNextVersion(ctx, document.NextVersion{
		ProjectID:      c.key.ProjectID,
		DocumentType:   t,
		Payload:        payload,
		ArtifactFileID: fileID,
		GrossAmount:    payload.GrossAmount(t),
	})
	if err != nil {
		return nil, c.commitError(err, fileID)
	}
	return doc, nil
}

func (c *Controller) renderAndStore(ctx context.Context, payload document.Payload) (string, error) {
	var (
		artifact *document.Artifact
		err      error
	)
	telemetry.WithProfilingLabels(ctx, map[string]string{
		telemetry.ProfilingLabelOperation:    "render",
		telemetry.ProfilingLabelDocumentType: c.key.DocumentType.String(),
	}, func(ctx context.Context) {
		artifact, err = c.deps.Renderer.Render(ctx, c.key.DocumentType, payload)
	})
	if err != nil {
		return "", document.ErrArtifactRenderFailed.WithCause(err)
	}
	fileID, err := c.deps.Blobs.Store(ctx, artifact)
	if err != nil {
		return "", document.ErrBlobStoreFailed.WithCause(err)
	}
	return fileID, nil
}

// commitError keeps invariant violations as they are and marks everything else
// as a commit failure. The stored blob is left orphaned.
func (c *Controller) commitError(err error, fileID string) error {
	if errors.Is(err, document.ErrAlreadyFinalized) || errors.Is(err, document.ErrSealedDocument) ||
		errors.Is(err, document.ErrStructuralInconsistency) {
		return err
	}
	c.logger.Error("Repository commit failed after artifact was stored",
		zap.String("orphaned_file_id", fileID),
		zap.Error(err),
	)
	if errors.Is(err, document.ErrRepositoryCommitFailed) {
		return err
	}
	return document.ErrRepositoryCommitFailed.WithCause(err)
}

func (c *Controller) retireDraft(ctx context.Context) {
	if err := c.deps.Drafts.DeleteDraft(ctx, c.key.ProjectID, c.key.DocumentType); err != nil {
		c.logger.Warn("Failed to delete retired draft", zap.Error(err))
	}
}

func (c *Controller) publish(ctx context.Context, events ...shared.DomainEvent) {
	if c.deps.Publisher == nil {
		return
	}
	if err := c.deps.Publisher.Publish(ctx, events...); err != nil {
		c.logger.Warn("Failed to publish document events", zap.Error(err))
	}
}

// View returns a snapshot of the controller state
func (c *Controller) View() SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := SessionView{
		Key:         c.key,
		State:       c.state,
		Payload:     c.form.Clone(),
		DraftStatus: c.draftStatus,
		Actions:     c.state.AvailableActions(),
		Saving:      c.saving.Load(),
	}
	if c.key.DocumentType.IsPriced() {
		totals := c.form.Totals()
		view.Totals = &totals
	}
	if c.current != nil {
		cur := *c.current
		cur.Snapshot = c.current.Snapshot.Clone()
		view.Current = &cur
	}
	return view
}

// State returns the current lifecycle state
func (c *Controller) State() document.LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the projected version history
func (c *Controller) History(ctx context.Context) ([]document.HistoryEntry, error) {
	return loadHistory(ctx, c.deps, c.key)
}

// ArtifactURL returns a URL for the artifact of version (0 means current)
func (c *Controller) ArtifactURL(ctx context.Context, version int, mode document.URLMode) (string, error) {
	return artifactURL(ctx, c.deps, c.key, version, mode)
}

func loadHistory(ctx context.Context, deps *Dependencies, key document.Key) ([]document.HistoryEntry, error) {
	docs, err := deps.Repository.ListHistory(ctx, key.ProjectID, key.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("failed to list document history: %w", err)
	}
	entries, err := document.ProjectHistory(docs)
	if err != nil {
		deps.Logger.Error("Inconsistent document history",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return entries, nil
}

func artifactURL(ctx context.Context, deps *Dependencies, key document.Key, version int, mode document.URLMode) (string, error) {
	if !mode.IsValid() {
		return "", shared.ErrInvalidInput.WithMessage("mode must be view or download")
	}
	var (
		doc *document.StoredDocument
		err error
	)
	if version <= 0 {
		doc, err = deps.Repository.GetCurrent(ctx, key.ProjectID, key.DocumentType)
	} else {
		doc, err = deps.Repository.GetVersion(ctx, key.ProjectID, key.DocumentType, version)
	}
	if err != nil {
		return "", err
	}
	url, err := deps.Blobs.URLFor(ctx, doc.ArtifactFileID, mode)
	if err != nil {
		return "", document.ErrBlobStoreFailed.WithCause(err)
	}
	return url, nil
}

// quiescent reports whether closing the controller loses nothing: no
// revision in memory, no autosave pending or failed, no commit running.
func (c *Controller) quiescent() bool {
	if c.saving.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == document.StateRevising {
		return false
	}
	switch c.draftStatus.State {
	case DraftStatePending, DraftStateSaving, DraftStateFailed:
		return false
	}
	return true
}

// Close disarms the autosave timer. Unsaved edits in the debounce window are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.debouncer.Cancel()
}

func noticeFrom(err error) Notice {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return Notice{Code: de.Code, Message: de.Message}
	}
	return Notice{Code: document.CodeNumberGenerationFailed, Message: err.Error()}
}
