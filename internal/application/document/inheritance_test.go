package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocument(t *testing.T, repo *memRepository, projectID uuid.UUID, dt document.DocumentType, payload document.Payload) *document.StoredDocument {
	t.Helper()
	payload.Normalize(dt)
	doc, err := repo.CommitFirstVersion(context.Background(), document.FirstVersion{
		ProjectID:      projectID,
		DocumentType:   dt,
		Payload:        payload,
		ArtifactFileID: "seed-" + dt.String(),
		Number:         document.DocumentNumber{Value: dt.Prefix() + "-2026-00001", Source: document.NumberSourceGenerator},
		GrossAmount:    payload.GrossAmount(dt),
	})
	require.NoError(t, err)
	return doc
}

func TestInheritanceResolver_NoPredecessor(t *testing.T) {
	resolver := NewInheritanceResolver(newMemRepository())

	items, err := resolver.Inherit(context.Background(), uuid.New(), document.TypeQuote)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	items, err = resolver.Inherit(context.Background(), uuid.New(), document.TypeCreditNote)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestInheritanceResolver_MissingPrecedingDocument(t *testing.T) {
	resolver := NewInheritanceResolver(newMemRepository())

	items, err := resolver.Inherit(context.Background(), uuid.New(), document.TypeOrderConfirmation)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestInheritanceResolver_PricedTarget(t *testing.T) {
	repo := newMemRepository()
	projectID := uuid.New()
	quote := seedDocument(t, repo, projectID, document.TypeQuote, pricedPayload(5, 80))

	items, err := NewInheritanceResolver(repo).Inherit(context.Background(), projectID, document.TypeOrderConfirmation)
	require.NoError(t, err)
	require.Len(t, items, 1)

	src := quote.Snapshot.Items[0]
	got := items[0]
	assert.NotEqual(t, src.ID, got.ID, "identifiers are local to one document")
	assert.Equal(t, src.Number, got.Number)
	assert.True(t, got.Quantity.Equal(src.Quantity))
	assert.True(t, got.UnitPrice.Equal(*src.UnitPrice))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(400)))
}

func TestInheritanceResolver_UnpricedTargetDropsPrices(t *testing.T) {
	repo := newMemRepository()
	projectID := uuid.New()

	payload := pricedPayload(5, 80)
	payload.Items[0].SetReferencePrice(decimal.NewFromInt(90), "STAFFEL")
	seedDocument(t, repo, projectID, document.TypeOrderConfirmation, payload)

	items, err := NewInheritanceResolver(repo).Inherit(context.Background(), projectID, document.TypeDeliveryNote)
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, "TM-ZM", got.Number)
	assert.Equal(t, "t", got.Unit)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(5)))
	assert.False(t, got.HasPriceFields())

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "unit_price")
	assert.NotContains(t, string(raw), "total")
	assert.NotContains(t, string(raw), "reference_price")
}

func TestInheritanceResolver_DoesNotMutateSource(t *testing.T) {
	repo := newMemRepository()
	projectID := uuid.New()
	seedDocument(t, repo, projectID, document.TypeOrderConfirmation, pricedPayload(5, 80))

	items, err := NewInheritanceResolver(repo).Inherit(context.Background(), projectID, document.TypeDeliveryNote)
	require.NoError(t, err)
	require.Len(t, items, 1)

	current, err := repo.GetCurrent(context.Background(), projectID, document.TypeOrderConfirmation)
	require.NoError(t, err)
	require.True(t, current.Snapshot.Items[0].IsPriced())
	assert.True(t, current.Snapshot.Items[0].Total.Equal(decimal.NewFromInt(400)))
}

func TestInheritanceResolver_InvoiceTakesOrderConfirmationPrices(t *testing.T) {
	repo := newMemRepository()
	projectID := uuid.New()
	oc := seedDocument(t, repo, projectID, document.TypeOrderConfirmation, pricedPayload(5, 80))

	delivered := pricedPayload(5, 80)
	delivered.Items = []document.LineItem{oc.Snapshot.Items[0].CloneForTarget(document.TypeDeliveryNote)}
	seedDocument(t, repo, projectID, document.TypeDeliveryNote, delivered)

	items, err := NewInheritanceResolver(repo).Inherit(context.Background(), projectID, document.TypeInvoice)
	require.NoError(t, err)
	require.Len(t, items, 1)

	src := oc.Snapshot.Items[0]
	assert.Equal(t, src.Number, items[0].Number)
	assert.True(t, items[0].Quantity.Equal(src.Quantity))
	require.True(t, items[0].IsPriced())
	assert.True(t, items[0].UnitPrice.Equal(*src.UnitPrice))
	assert.True(t, items[0].Total.Equal(*src.Total))
}

func TestInheritanceResolver_InvoiceWithoutPriceStage(t *testing.T) {
	repo := newMemRepository()
	projectID := uuid.New()

	item, err := document.NewUnpricedLineItem("KIES-16", "Kies 8/16", "t", decimal.NewFromInt(12))
	require.NoError(t, err)
	seedDocument(t, repo, projectID, document.TypeDeliveryNote, document.NewPayload(document.Customer{}, []document.LineItem{*item}))

	items, err := NewInheritanceResolver(repo).Inherit(context.Background(), projectID, document.TypeInvoice)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].IsPriced(), "unmatched items are left for the user to price")
}

func TestInheritanceResolver_RepositoryError(t *testing.T) {
	repo := newMemRepository()
	repo.getErr = errors.New("database is down")

	_, err := NewInheritanceResolver(repo).Inherit(context.Background(), uuid.New(), document.TypeOrderConfirmation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is down")
}

func TestInheritanceResolver_InitialItemsFallsBackToProject(t *testing.T) {
	resolver := NewInheritanceResolver(newMemRepository())
	project := &document.Project{
		ArticleNumber:      "SAND-02",
		ArticleDescription: "Sand 0/2",
		Unit:               "t",
		Quantity:           decimal.NewFromInt(7),
		UnitPrice:          decimal.NewFromInt(20),
	}
	project.ID = uuid.New()

	items, err := resolver.InitialItems(context.Background(), project, document.TypeQuote)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "SAND-02", items[0].Number)
	assert.True(t, items[0].Total.Equal(decimal.NewFromInt(140)))

	items, err = resolver.InitialItems(context.Background(), project, document.TypeDeliveryNote)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].HasPriceFields())

	empty := &document.Project{}
	empty.ID = uuid.New()
	items, err = resolver.InitialItems(context.Background(), empty, document.TypeQuote)
	require.NoError(t, err)
	assert.Empty(t, items)
}
