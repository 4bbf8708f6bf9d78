package document

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================
// Virtual scheduler
// ============================================

type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward and runs every timer that became due
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Armed returns the number of timers waiting to fire
func (s *manualScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// ============================================
// In-memory document repository
// ============================================

type memRepository struct {
	mu        sync.Mutex
	docs      map[document.Key][]document.StoredDocument
	commitErr error
	getErr    error
	commits   int
}

func newMemRepository() *memRepository {
	return &memRepository{docs: make(map[document.Key][]document.StoredDocument)}
}

func (r *memRepository) CommitFirstVersion(ctx context.Context, in document.FirstVersion) (*document.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return nil, r.commitErr
	}
	key := document.NewKey(in.ProjectID, in.DocumentType)
	if len(r.docs[key]) > 0 {
		return nil, document.ErrAlreadyFinalized
	}
	doc := document.StoredDocument{
		ID:             uuid.New(),
		ProjectID:      in.ProjectID,
		DocumentType:   in.DocumentType,
		Number:         in.Number.Value,
		NumberSource:   in.Number.Source,
		Version:        1,
		Snapshot:       in.Payload.Clone(),
		ArtifactFileID: in.ArtifactFileID,
		GrossAmount:    in.GrossAmount,
		CreatedAt:      time.Now(),
		IsCurrent:      true,
	}
	r.docs[key] = append(r.docs[key], doc)
	r.commits++
	return &doc, nil
}

func (r *memRepository) CommitNextVersion(ctx context.Context, in document.NextVersion) (*document.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in.DocumentType.IsSealable() {
		return nil, document.ErrSealedDocument
	}
	if r.commitErr != nil {
		return nil, r.commitErr
	}
	key := document.NewKey(in.ProjectID, in.DocumentType)
	versions := r.docs[key]
	if len(versions) == 0 {
		return nil, document.ErrNotFinalized
	}
	last := versions[len(versions)-1]
	for i := range versions {
		versions[i].IsCurrent = false
	}
	doc := document.StoredDocument{
		ID:             uuid.New(),
		ProjectID:      in.ProjectID,
		DocumentType:   in.DocumentType,
		Number:         last.Number,
		NumberSource:   last.NumberSource,
		Version:        last.Version + 1,
		Snapshot:       in.Payload.Clone(),
		ArtifactFileID: in.ArtifactFileID,
		GrossAmount:    in.GrossAmount,
		CreatedAt:      time.Now(),
		IsCurrent:      true,
	}
	r.docs[key] = append(versions, doc)
	r.commits++
	return &doc, nil
}

func (r *memRepository) GetCurrent(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, d := range r.docs[document.NewKey(projectID, t)] {
		if d.IsCurrent {
			doc := d
			doc.Snapshot = d.Snapshot.Clone()
			return &doc, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRepository) GetVersion(ctx context.Context, projectID uuid.UUID, t document.DocumentType, version int) (*document.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs[document.NewKey(projectID, t)] {
		if d.Version == version {
			doc := d
			return &doc, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRepository) ListHistory(ctx context.Context, projectID uuid.UUID, t document.DocumentType) ([]document.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.docs[document.NewKey(projectID, t)]
	out := make([]document.StoredDocument, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
	}
	return out, nil
}

func (r *memRepository) ListCurrentByProject(ctx context.Context, projectID uuid.UUID) ([]document.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []document.StoredDocument
	for key, versions := range r.docs {
		if key.ProjectID != projectID {
			continue
		}
		for _, d := range versions {
			if d.IsCurrent {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (r *memRepository) count(key document.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs[key])
}

// ============================================
// In-memory draft store
// ============================================

type memDrafts struct {
	mu      sync.Mutex
	drafts  map[document.Key]document.DraftRecord
	saveErr error
	saves   int
	deletes int
}

func newMemDrafts() *memDrafts {
	return &memDrafts{drafts: make(map[document.Key]document.DraftRecord)}
}

func (s *memDrafts) SaveDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType, payload document.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.drafts[document.NewKey(projectID, t)] = document.DraftRecord{
		ProjectID:    projectID,
		DocumentType: t,
		Payload:      payload.Clone(),
		UpdatedAt:    time.Now(),
	}
	return nil
}

func (s *memDrafts) LoadDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) (*document.DraftRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[document.NewKey(projectID, t)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}

func (s *memDrafts) DeleteDraft(ctx context.Context, projectID uuid.UUID, t document.DocumentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.drafts, document.NewKey(projectID, t))
	return nil
}

func (s *memDrafts) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memDrafts) setSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// ============================================
// Collaborators
// ============================================

type fakeRenderer struct {
	mu      sync.Mutex
	err     error
	calls   int
	block   chan struct{}
	entered chan struct{}
	last    document.Payload
}

func (r *fakeRenderer) Render(ctx context.Context, t document.DocumentType, payload document.Payload) (*document.Artifact, error) {
	r.mu.Lock()
	r.calls++
	r.last = payload.Clone()
	block, entered, err := r.block, r.entered, r.err
	r.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &document.Artifact{
		Data:        []byte("%PDF-1.7 " + payload.Number),
		ContentType: "application/pdf",
		FileName:    payload.Number + ".pdf",
		PageCount:   1,
	}, nil
}

func (r *fakeRenderer) lastPayload() document.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

type fakeBlobs struct {
	mu    sync.Mutex
	err   error
	files map[string][]byte
	seq   int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{files: make(map[string][]byte)}
}

func (b *fakeBlobs) Store(ctx context.Context, artifact *document.Artifact) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.seq++
	id := fmt.Sprintf("blob-%d", b.seq)
	b.files[id] = artifact.Data
	return id, nil
}

func (b *fakeBlobs) URLFor(ctx context.Context, fileID string, mode document.URLMode) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[fileID]; !ok {
		return "", fmt.Errorf("unknown file %s", fileID)
	}
	return "https://blobs.test/" + fileID + "?mode=" + string(mode), nil
}

func (b *fakeBlobs) stored() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

type fakeGenerator struct {
	mu   sync.Mutex
	err  error
	next map[document.DocumentType]int
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{next: make(map[document.DocumentType]int)}
}

func (g *fakeGenerator) Next(ctx context.Context, t document.DocumentType) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.next[t]++
	return fmt.Sprintf("%s-2026-%05d", t.Prefix(), g.next[t]), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// ============================================
// Fixture
// ============================================

type fixture struct {
	repo      *memRepository
	drafts    *memDrafts
	renderer  *fakeRenderer
	blobs     *fakeBlobs
	generator *fakeGenerator
	publisher *recordingPublisher
	scheduler *manualScheduler
	deps      *Dependencies
	projectID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMemRepository(),
		drafts:    newMemDrafts(),
		renderer:  &fakeRenderer{},
		blobs:     newFakeBlobs(),
		generator: newFakeGenerator(),
		publisher: &recordingPublisher{},
		scheduler: newManualScheduler(),
		projectID: uuid.New(),
	}
	logger := zap.NewNop()
	f.deps = &Dependencies{
		Repository:    f.repo,
		Drafts:        f.drafts,
		Renderer:      f.renderer,
		Blobs:         f.blobs,
		Sequence:      NewSequenceAdapter(f.generator, logger),
		Inheritance:   NewInheritanceResolver(f.repo),
		Publisher:     f.publisher,
		Scheduler:     f.scheduler,
		AutosaveDelay: DefaultAutosaveDelay,
		VATRate:       document.DefaultVATRate,
		Logger:        logger,
	}
	return f
}

func (f *fixture) controller(t document.DocumentType) *Controller {
	c := NewController(document.NewKey(f.projectID, t), f.deps)
	if err := c.Open(context.Background()); err != nil {
		panic(err)
	}
	return c
}

func pricedPayload(qty, price int64) document.Payload {
	item, err := document.NewPricedLineItem("TM-ZM", "Transportbeton", "t", decimal.NewFromInt(qty), decimal.NewFromInt(price))
	if err != nil {
		panic(err)
	}
	return document.NewPayload(document.Customer{CustomerNumber: "K-1001", Name: "Bau GmbH"}, []document.LineItem{*item})
}
