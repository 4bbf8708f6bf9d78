package document

import (
	"testing"
	"time"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProject() *Project {
	return &Project{
		Entity:         shared.NewEntity(),
		CustomerNumber: "K-1001",
		CustomerName:   "Bau GmbH",
		ArticleNumber:  "TM-ZM",
		Unit:           "t",
		Quantity:       decimal.NewFromInt(5),
		UnitPrice:      decimal.NewFromInt(80),
		Status:         ProjectStatusOpen,
	}
}

func TestProject_DefaultLineItem(t *testing.T) {
	p := newTestProject()

	priced, ok := p.DefaultLineItem(TypeQuote)
	require.True(t, ok)
	assert.Equal(t, "400", priced.Total.String())

	unpriced, ok := p.DefaultLineItem(TypeDeliveryNote)
	require.True(t, ok)
	assert.False(t, unpriced.HasPriceFields())

	p.ArticleNumber = ""
	_, ok = p.DefaultLineItem(TypeQuote)
	assert.False(t, ok)
}

func TestProject_RecordStage(t *testing.T) {
	p := newTestProject()
	issued := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	p.RecordStage(TypeOrderConfirmation, StageRef{Number: "AB-2026-00003", IssuedOn: issued})
	assert.Equal(t, ProjectStatusConfirmed, p.Status)
	assert.Equal(t, "AB-2026-00003", p.StageRefs[TypeOrderConfirmation].Number)

	// an earlier stage being re-versioned does not move the status backwards
	p.RecordStage(TypeQuote, StageRef{Number: "AN-2026-00007", IssuedOn: issued})
	assert.Equal(t, ProjectStatusConfirmed, p.Status)

	// credit notes are outside the chain
	p.RecordStage(TypeCreditNote, StageRef{Number: "GS-2026-00001", IssuedOn: issued})
	assert.Equal(t, ProjectStatusConfirmed, p.Status)
}

func TestStatusForStage(t *testing.T) {
	assert.Equal(t, ProjectStatusInvoiced, StatusForStage(TypeInvoice))
	assert.Equal(t, ProjectStatusOpen, StatusForStage(TypeCreditNote))
	assert.True(t, ProjectStatusDelivered.IsValid())
	assert.False(t, ProjectStatus("archived").IsValid())
}
