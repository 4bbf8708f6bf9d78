package persistence

import (
	"context"
	"testing"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDraftStore(t *testing.T) {
	db := newTestDatabase(t)
	store := NewGormDraftStore(db.DB)
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("missing draft", func(t *testing.T) {
		_, err := store.LoadDraft(ctx, projectID, document.TypeQuote)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("save overwrites the whole payload", func(t *testing.T) {
		first := testPayload(t, 5, 80)
		first.Notes = "first"
		require.NoError(t, store.SaveDraft(ctx, projectID, document.TypeQuote, first))

		second := testPayload(t, 7, 90)
		require.NoError(t, store.SaveDraft(ctx, projectID, document.TypeQuote, second))

		draft, err := store.LoadDraft(ctx, projectID, document.TypeQuote)
		require.NoError(t, err)
		assert.Equal(t, projectID, draft.ProjectID)
		assert.Equal(t, document.TypeQuote, draft.DocumentType)
		assert.Empty(t, draft.Payload.Notes)
		require.Len(t, draft.Payload.Items, 1)
		assert.True(t, draft.Payload.Items[0].Quantity.Equal(decimal.NewFromInt(7)))

		var rows int64
		require.NoError(t, db.DB.Table("document_drafts").Count(&rows).Error)
		assert.Equal(t, int64(1), rows)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, store.SaveDraft(ctx, projectID, document.TypeOrderConfirmation, testPayload(t, 1, 1)))
		_, err := store.LoadDraft(ctx, uuid.New(), document.TypeOrderConfirmation)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.DeleteDraft(ctx, projectID, document.TypeQuote))
		require.NoError(t, store.DeleteDraft(ctx, projectID, document.TypeQuote))

		_, err := store.LoadDraft(ctx, projectID, document.TypeQuote)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = store.LoadDraft(ctx, projectID, document.TypeOrderConfirmation)
		assert.NoError(t, err)
	})
}
