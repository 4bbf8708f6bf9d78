package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(f *fixture) *Service {
	return NewService(f.deps, NewStatusProjector(f.repo, nil, zap.NewNop()))
}

func TestService_FullChain(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()
	p := f.projectID

	// quote v1: 5 t @ 80 = 400 net
	_, err := svc.Edit(ctx, p, document.TypeQuote, pricedPayload(5, 80))
	require.NoError(t, err)
	quote, err := svc.Finalize(ctx, p, document.TypeQuote)
	require.NoError(t, err)
	quoteItem := quote.Document.Snapshot.Items[0]
	assert.True(t, quote.Document.Snapshot.Totals().Net.Equal(decimal.NewFromInt(400)))

	// order confirmation starts with the quote's items
	ocView, err := svc.View(ctx, p, document.TypeOrderConfirmation)
	require.NoError(t, err)
	require.Len(t, ocView.Payload.Items, 1)
	ocItem := ocView.Payload.Items[0]
	assert.Equal(t, quoteItem.Number, ocItem.Number)
	assert.True(t, ocItem.Quantity.Equal(quoteItem.Quantity))
	assert.True(t, ocItem.UnitPrice.Equal(*quoteItem.UnitPrice))
	assert.True(t, ocItem.Total.Equal(*quoteItem.Total))
	assert.NotEqual(t, quoteItem.ID, ocItem.ID)

	oc, err := svc.Finalize(ctx, p, document.TypeOrderConfirmation)
	require.NoError(t, err)

	// delivery note: same article, quantity and unit, no prices
	dnView, err := svc.View(ctx, p, document.TypeDeliveryNote)
	require.NoError(t, err)
	require.Len(t, dnView.Payload.Items, 1)
	dnItem := dnView.Payload.Items[0]
	assert.Equal(t, quoteItem.Number, dnItem.Number)
	assert.Equal(t, quoteItem.Unit, dnItem.Unit)
	assert.True(t, dnItem.Quantity.Equal(quoteItem.Quantity))
	assert.False(t, dnItem.HasPriceFields())

	dn, err := svc.Finalize(ctx, p, document.TypeDeliveryNote)
	require.NoError(t, err)
	assert.Nil(t, dn.Document.GrossAmount)

	// invoice: priced items equal the order confirmation's
	invView, err := svc.View(ctx, p, document.TypeInvoice)
	require.NoError(t, err)
	require.Len(t, invView.Payload.Items, 1)
	invItem := invView.Payload.Items[0]
	ocStored := oc.Document.Snapshot.Items[0]
	assert.Equal(t, ocStored.Number, invItem.Number)
	assert.True(t, invItem.Quantity.Equal(ocStored.Quantity))
	require.True(t, invItem.IsPriced())
	assert.True(t, invItem.UnitPrice.Equal(*ocStored.UnitPrice))
	assert.True(t, invItem.Total.Equal(*ocStored.Total))

	inv, err := svc.Finalize(ctx, p, document.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, document.StateSealed, inv.State)
	assert.Equal(t, "RE-2026-00001", inv.Document.Number)

	_, err = svc.Finalize(ctx, p, document.TypeInvoice)
	assert.ErrorIs(t, err, document.ErrSealedDocument)

	status, err := svc.ProjectStatus(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, document.ProjectStatusInvoiced, status)
}

func TestService_VersionedEdit(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()
	p := f.projectID

	_, err := svc.Edit(ctx, p, document.TypeQuote, pricedPayload(5, 80))
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, p, document.TypeQuote)
	require.NoError(t, err)

	view, err := svc.EnterEditMode(ctx, p, document.TypeQuote)
	require.NoError(t, err)
	payload := view.Payload
	require.NoError(t, payload.Items[0].UpdateQuantity(decimal.NewFromInt(10)))
	view, err = svc.Edit(ctx, p, document.TypeQuote, payload)
	require.NoError(t, err)
	assert.True(t, view.Totals.Net.Equal(decimal.NewFromInt(800)))

	v2, err := svc.SaveNewVersion(ctx, p, document.TypeQuote)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Document.Version)
	assert.True(t, v2.Document.IsCurrent)

	history, err := svc.History(ctx, p, document.TypeQuote)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[1].Version)
	assert.False(t, history[1].IsCurrent)
	assert.True(t, history[1].GrossAmount.Equal(decimal.NewFromInt(476)), "gross of 400 net")

	current, err := svc.GetCurrent(ctx, p, document.TypeQuote)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
}

func TestService_SessionsAreReusedPerKey(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()

	var wg sync.WaitGroup
	ctrls := make([]*Controller, 8)
	for i := range ctrls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := svc.Session(ctx, f.projectID, document.TypeQuote)
			assert.NoError(t, err)
			ctrls[i] = c
		}(i)
	}
	wg.Wait()
	for _, c := range ctrls[1:] {
		assert.Same(t, ctrls[0], c)
	}

	other, err := svc.Session(ctx, f.projectID, document.TypeDeliveryNote)
	require.NoError(t, err)
	assert.NotSame(t, ctrls[0], other)

	svc.CloseSession(f.projectID, document.TypeQuote)
	again, err := svc.Session(ctx, f.projectID, document.TypeQuote)
	require.NoError(t, err)
	assert.NotSame(t, ctrls[0], again)
}

func TestService_FailedOpenIsNotCached(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	f.repo.getErr = errors.New("database is down")

	_, err := svc.Session(context.Background(), f.projectID, document.TypeQuote)
	require.Error(t, err)

	f.repo.getErr = nil
	_, err = svc.Session(context.Background(), f.projectID, document.TypeQuote)
	assert.NoError(t, err)
}

func TestService_UnknownDocumentType(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()
	bogus := document.DocumentType("receipt")

	_, err := svc.View(ctx, f.projectID, bogus)
	assert.ErrorIs(t, err, document.ErrUnknownDocumentType)
	_, err = svc.History(ctx, f.projectID, bogus)
	assert.ErrorIs(t, err, document.ErrUnknownDocumentType)
	_, err = svc.Inherit(ctx, f.projectID, bogus)
	assert.ErrorIs(t, err, document.ErrUnknownDocumentType)
	_, err = svc.ArtifactURL(ctx, f.projectID, bogus, 0, document.URLModeView)
	assert.ErrorIs(t, err, document.ErrUnknownDocumentType)
}

func TestService_ShutdownDropsPendingDrafts(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()

	for _, dt := range []document.DocumentType{document.TypeQuote, document.TypeOrderConfirmation} {
		_, err := svc.Edit(ctx, f.projectID, dt, pricedPayload(1, 10))
		require.NoError(t, err)
	}
	svc.Shutdown()
	f.scheduler.Advance(DefaultAutosaveDelay)

	assert.Equal(t, 0, f.drafts.saveCount())
}

func TestService_KeysAreIndependent(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()
	other := uuid.New()

	_, err := svc.Edit(ctx, f.projectID, document.TypeQuote, pricedPayload(5, 80))
	require.NoError(t, err)
	_, err = svc.Edit(ctx, other, document.TypeQuote, pricedPayload(1, 80))
	require.NoError(t, err)

	a, err := svc.Finalize(ctx, f.projectID, document.TypeQuote)
	require.NoError(t, err)
	b, err := svc.Finalize(ctx, other, document.TypeQuote)
	require.NoError(t, err)

	assert.Equal(t, "AN-2026-00001", a.Document.Number)
	assert.Equal(t, "AN-2026-00002", b.Document.Number)
}

// ==================== Session teardown ====================

func TestService_CloseSessionDisarmsAutosave(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()

	_, err := svc.Edit(ctx, f.projectID, document.TypeQuote, pricedPayload(2, 50))
	require.NoError(t, err)
	require.Equal(t, 1, f.scheduler.Armed())

	svc.CloseSession(f.projectID, document.TypeQuote)
	assert.Equal(t, 0, svc.SessionCount())
	assert.Equal(t, 0, f.scheduler.Armed())

	svc.CloseSession(f.projectID, document.TypeQuote)
	assert.Equal(t, 0, svc.SessionCount(), "closing an absent session is a no-op")
}

func TestService_EvictIdle(t *testing.T) {
	f := newFixture()
	svc := newTestService(f)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// quote: opened and left alone
	_, err := svc.View(ctx, f.projectID, document.TypeQuote)
	require.NoError(t, err)

	// order confirmation: edited, autosave still pending
	_, err = svc.Edit(ctx, f.projectID, document.TypeOrderConfirmation, pricedPayload(1, 10))
	require.NoError(t, err)

	// invoice: sealed
	_, err = svc.Edit(ctx, f.projectID, document.TypeInvoice, pricedPayload(5, 80))
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, f.projectID, document.TypeInvoice)
	require.NoError(t, err)
	_, err = svc.EnterEditMode(ctx, f.projectID, document.TypeInvoice)
	require.ErrorIs(t, err, document.ErrSealedDocument)

	// delivery note: finalized and being revised
	_, err = svc.Edit(ctx, f.projectID, document.TypeDeliveryNote, pricedPayload(5, 0))
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, f.projectID, document.TypeDeliveryNote)
	require.NoError(t, err)
	_, err = svc.EnterEditMode(ctx, f.projectID, document.TypeDeliveryNote)
	require.NoError(t, err)

	assert.Equal(t, 0, svc.EvictIdle(time.Hour), "nothing is idle yet")

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 2, svc.EvictIdle(time.Hour), "the quote and the sealed invoice go")
	assert.Equal(t, 2, svc.SessionCount())

	f.scheduler.Advance(DefaultAutosaveDelay)
	assert.Equal(t, 1, svc.EvictIdle(time.Hour), "the saved draft goes, the revision stays")
	assert.Equal(t, 1, svc.SessionCount())

	view, err := svc.View(ctx, f.projectID, document.TypeDeliveryNote)
	require.NoError(t, err)
	assert.Equal(t, document.StateRevising, view.State)
}
