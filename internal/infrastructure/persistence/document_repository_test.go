package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testPayload(t *testing.T, qty, price int64) document.Payload {
	t.Helper()
	item, err := document.NewPricedLineItem("TM-ZM", "Transportmischer", "t",
		decimal.NewFromInt(qty), decimal.NewFromInt(price))
	require.NoError(t, err)
	return document.NewPayload(document.Customer{CustomerNumber: "K-1001", Name: "Bau GmbH"}, []document.LineItem{*item})
}

func firstVersion(t *testing.T, projectID uuid.UUID, dt document.DocumentType, number string) document.FirstVersion {
	payload := testPayload(t, 5, 80)
	payload.Number = number
	return document.FirstVersion{
		ProjectID:      projectID,
		DocumentType:   dt,
		Payload:        payload,
		ArtifactFileID: "file-" + number,
		Number:         document.DocumentNumber{Value: number, Source: document.NumberSourceGenerator},
		GrossAmount:    payload.GrossAmount(dt),
	}
}

func nextVersion(t *testing.T, projectID uuid.UUID, dt document.DocumentType, qty int64) document.NextVersion {
	payload := testPayload(t, qty, 80)
	return document.NextVersion{
		ProjectID:      projectID,
		DocumentType:   dt,
		Payload:        payload,
		ArtifactFileID: uuid.NewString(),
		GrossAmount:    payload.GrossAmount(dt),
	}
}

func TestGormDocumentRepository_CommitFirstVersion(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormDocumentRepository(db.DB)
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("stores version 1 as current", func(t *testing.T) {
		doc, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeQuote, "AN-2026-00001"))
		require.NoError(t, err)
		assert.Equal(t, 1, doc.Version)
		assert.True(t, doc.IsCurrent)

		current, err := repo.GetCurrent(ctx, projectID, document.TypeQuote)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, current.ID)
		assert.Equal(t, "AN-2026-00001", current.Number)
		assert.Equal(t, document.NumberSourceGenerator, current.NumberSource)
		assert.Equal(t, "file-AN-2026-00001", current.ArtifactFileID)
		require.NotNil(t, current.GrossAmount)
		assert.True(t, current.GrossAmount.Equal(decimal.NewFromInt(476)))
		require.Len(t, current.Snapshot.Items, 1)
		assert.True(t, current.Snapshot.Items[0].Total.Equal(decimal.NewFromInt(400)))
	})

	t.Run("rejects a second version 1", func(t *testing.T) {
		_, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeQuote, "AN-2026-00002"))
		assert.ErrorIs(t, err, document.ErrAlreadyFinalized)

		history, err := repo.ListHistory(ctx, projectID, document.TypeQuote)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("validates input", func(t *testing.T) {
		in := firstVersion(t, projectID, document.TypeInvoice, "RE-2026-00001")
		in.ArtifactFileID = ""
		_, err := repo.CommitFirstVersion(ctx, in)
		assert.ErrorIs(t, err, document.ErrInvalidCommit)
	})

	t.Run("delivery notes carry no gross amount", func(t *testing.T) {
		in := firstVersion(t, projectID, document.TypeDeliveryNote, "LS-2026-00001")
		in.GrossAmount = nil
		_, err := repo.CommitFirstVersion(ctx, in)
		require.NoError(t, err)

		current, err := repo.GetCurrent(ctx, projectID, document.TypeDeliveryNote)
		require.NoError(t, err)
		assert.Nil(t, current.GrossAmount)
	})
}

func TestGormDocumentRepository_CommitNextVersion(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormDocumentRepository(db.DB)
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("requires a finalized version", func(t *testing.T) {
		_, err := repo.CommitNextVersion(ctx, nextVersion(t, projectID, document.TypeQuote, 10))
		assert.ErrorIs(t, err, document.ErrNotFinalized)
	})

	_, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeQuote, "AN-2026-00001"))
	require.NoError(t, err)

	t.Run("moves the current flag", func(t *testing.T) {
		v2, err := repo.CommitNextVersion(ctx, nextVersion(t, projectID, document.TypeQuote, 10))
		require.NoError(t, err)
		assert.Equal(t, 2, v2.Version)
		assert.Equal(t, "AN-2026-00001", v2.Number)

		history, err := repo.ListHistory(ctx, projectID, document.TypeQuote)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 2, history[0].Version)
		assert.True(t, history[0].IsCurrent)
		assert.False(t, history[1].IsCurrent)
		assert.True(t, history[1].GrossAmount.Equal(decimal.NewFromInt(476)))
		assert.True(t, history[0].GrossAmount.Equal(decimal.NewFromInt(952)))
	})

	t.Run("keeps old versions readable", func(t *testing.T) {
		v1, err := repo.GetVersion(ctx, projectID, document.TypeQuote, 1)
		require.NoError(t, err)
		assert.True(t, v1.Snapshot.Items[0].Quantity.Equal(decimal.NewFromInt(5)))

		_, err = repo.GetVersion(ctx, projectID, document.TypeQuote, 9)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("sealed types never get a second version", func(t *testing.T) {
		for _, dt := range []document.DocumentType{document.TypeInvoice, document.TypeCreditNote} {
			_, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, dt, dt.Prefix()+"-2026-00001"))
			require.NoError(t, err)

			_, err = repo.CommitNextVersion(ctx, nextVersion(t, projectID, dt, 1))
			assert.ErrorIs(t, err, document.ErrSealedDocument)

			history, err := repo.ListHistory(ctx, projectID, dt)
			require.NoError(t, err)
			assert.Len(t, history, 1)
		}
	})
}

func TestGormDocumentRepository_ConcurrentVersions(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormDocumentRepository(db.DB)
	ctx := context.Background()
	projectID := uuid.New()

	_, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeOrderConfirmation, "AB-2026-00001"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CommitNextVersion(ctx, nextVersion(t, projectID, document.TypeOrderConfirmation, 2))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := repo.ListHistory(ctx, projectID, document.TypeOrderConfirmation)
	require.NoError(t, err)
	require.Len(t, history, 6)

	current := 0
	for i, d := range history {
		assert.Equal(t, 6-i, d.Version)
		if d.IsCurrent {
			current++
		}
	}
	assert.Equal(t, 1, current)
}

func TestGormDocumentRepository_GetCurrent(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormDocumentRepository(db.DB)
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetCurrent(ctx, projectID, document.TypeQuote)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("two current rows are inconsistent", func(t *testing.T) {
		_, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeQuote, "AN-2026-00001"))
		require.NoError(t, err)
		_, err = repo.CommitNextVersion(ctx, nextVersion(t, projectID, document.TypeQuote, 3))
		require.NoError(t, err)

		require.NoError(t, db.DB.Model(&models.StoredDocumentModel{}).
			Where("project_id = ?", projectID).
			Update("is_current", true).Error)

		_, err = repo.GetCurrent(ctx, projectID, document.TypeQuote)
		assert.ErrorIs(t, err, document.ErrStructuralInconsistency)
	})
}

func TestGormDocumentRepository_ListCurrentByProject(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormDocumentRepository(db.DB)
	ctx := context.Background()
	projectID := uuid.New()

	_, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeQuote, "AN-2026-00001"))
	require.NoError(t, err)
	_, err = repo.CommitNextVersion(ctx, nextVersion(t, projectID, document.TypeQuote, 7))
	require.NoError(t, err)
	_, err = repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeOrderConfirmation, "AB-2026-00001"))
	require.NoError(t, err)
	_, err = repo.CommitFirstVersion(ctx, firstVersion(t, uuid.New(), document.TypeQuote, "AN-2026-00002"))
	require.NoError(t, err)

	docs, err := repo.ListCurrentByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.True(t, d.IsCurrent)
		assert.Equal(t, projectID, d.ProjectID)
		if d.DocumentType == document.TypeQuote {
			assert.Equal(t, 2, d.Version)
		}
	}
}

type recordingOutbox struct {
	err    error
	events []shared.DomainEvent
}

func (o *recordingOutbox) SaveEvents(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, events...)
	return nil
}

func TestGormDocumentRepository_WithEventOutbox(t *testing.T) {
	ctx := context.Background()

	t.Run("records one event per committed version", func(t *testing.T) {
		db := newTestDatabase(t)
		outbox := &recordingOutbox{}
		repo := NewGormDocumentRepository(db.DB, WithEventOutbox(outbox))
		projectID := uuid.New()

		first, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeQuote, "AN-2026-00001"))
		require.NoError(t, err)
		second, err := repo.CommitNextVersion(ctx, nextVersion(t, projectID, document.TypeQuote, 6))
		require.NoError(t, err)

		require.Len(t, outbox.events, 2)
		finalized, ok := outbox.events[0].(*document.DocumentFinalizedEvent)
		require.True(t, ok)
		assert.Equal(t, first.ID, finalized.AggregateID())
		assert.Equal(t, 1, finalized.Version)

		versioned, ok := outbox.events[1].(*document.DocumentVersionedEvent)
		require.True(t, ok)
		assert.Equal(t, second.ID, versioned.AggregateID())
		assert.Equal(t, "AN-2026-00001", versioned.Number)
		assert.Equal(t, 1, versioned.PreviousVersion)
	})

	t.Run("outbox failure rolls back the version", func(t *testing.T) {
		db := newTestDatabase(t)
		boom := errors.New("outbox unavailable")
		repo := NewGormDocumentRepository(db.DB, WithEventOutbox(&recordingOutbox{err: boom}))
		projectID := uuid.New()

		_, err := repo.CommitFirstVersion(ctx, firstVersion(t, projectID, document.TypeQuote, "AN-2026-00001"))
		assert.ErrorIs(t, err, boom)

		var count int64
		require.NoError(t, db.DB.Model(&models.StoredDocumentModel{}).Count(&count).Error)
		assert.Zero(t, count)

		_, err = repo.GetCurrent(ctx, projectID, document.TypeQuote)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormDocumentRepository_ListHistoryOrdering(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormDocumentRepository(db.DB)
	projectID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "stored_documents" WHERE project_id = \$1 AND document_type = \$2 ORDER BY version DESC, created_at DESC`).
		WithArgs(projectID, string(document.TypeQuote)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	history, err := repo.ListHistory(context.Background(), projectID, document.TypeQuote)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.NoError(t, mock.ExpectationsWereMet())
}
