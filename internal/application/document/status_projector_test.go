package document

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProjectRepository is a mock implementation of document.ProjectRepository
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Project), args.Error(1)
}

func (m *MockProjectRepository) Save(ctx context.Context, project *document.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) RecordStage(ctx context.Context, id uuid.UUID, t document.DocumentType, ref document.StageRef, status document.ProjectStatus) error {
	args := m.Called(ctx, id, t, ref, status)
	return args.Error(0)
}

func TestStatusProjector_Derive(t *testing.T) {
	repo := newMemRepository()
	projectID := uuid.New()
	projector := NewStatusProjector(repo, nil, zap.NewNop())

	status, err := projector.Derive(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, document.ProjectStatusOpen, status)

	seedDocument(t, repo, projectID, document.TypeQuote, pricedPayload(5, 80))
	status, err = projector.Derive(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, document.ProjectStatusQuoted, status)

	// the furthest stage wins even if an earlier one is missing
	seedDocument(t, repo, projectID, document.TypeDeliveryNote, pricedPayload(5, 80))
	status, err = projector.Derive(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, document.ProjectStatusDelivered, status)

	// credit notes are outside the chain and never move the status
	seedDocument(t, repo, projectID, document.TypeCreditNote, pricedPayload(1, 80))
	status, err = projector.Derive(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, document.ProjectStatusDelivered, status)
}

func TestStatusProjector_DeriveRepositoryError(t *testing.T) {
	repo := newMemRepository()
	repo.getErr = errors.New("timeout")

	_, err := NewStatusProjector(repo, nil, zap.NewNop()).Derive(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestStatusProjector_Handle(t *testing.T) {
	repo := newMemRepository()
	projectID := uuid.New()
	doc := seedDocument(t, repo, projectID, document.TypeOrderConfirmation, pricedPayload(5, 80))

	projects := new(MockProjectRepository)
	projects.On("RecordStage", mock.Anything, projectID, document.TypeOrderConfirmation,
		mock.MatchedBy(func(ref document.StageRef) bool { return ref.Number == doc.Number }),
		document.ProjectStatusConfirmed,
	).Return(nil)

	projector := NewStatusProjector(repo, projects, zap.NewNop())
	assert.ElementsMatch(t, []string{document.EventTypeDocumentFinalized, document.EventTypeDocumentVersioned}, projector.EventTypes())

	err := projector.Handle(context.Background(), document.NewDocumentFinalizedEvent(doc))
	require.NoError(t, err)
	projects.AssertExpectations(t)
}

func TestStatusProjector_HandleUnknownProject(t *testing.T) {
	repo := newMemRepository()
	doc := seedDocument(t, repo, uuid.New(), document.TypeQuote, pricedPayload(5, 80))

	projects := new(MockProjectRepository)
	projects.On("RecordStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(shared.ErrNotFound)

	err := NewStatusProjector(repo, projects, zap.NewNop()).Handle(context.Background(), document.NewDocumentFinalizedEvent(doc))
	assert.NoError(t, err)
}

func TestStatusProjector_HandleIgnoresOtherEvents(t *testing.T) {
	projects := new(MockProjectRepository)
	projector := NewStatusProjector(newMemRepository(), projects, zap.NewNop())

	base := shared.NewEventMeta("SomethingElse", "Other", uuid.New())
	err := projector.Handle(context.Background(), &base)
	assert.NoError(t, err)
	projects.AssertNotCalled(t, "RecordStage")
}
