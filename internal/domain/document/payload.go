package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayloadSchemaVersion is the current version of the stored snapshot schema
const PayloadSchemaVersion = 1

// DefaultVATRate is the single VAT rate applied to priced documents
var DefaultVATRate = decimal.RequireFromString("0.19")

// Customer is the addressee block printed on a document
type Customer struct {
	CustomerNumber string `json:"customer_number"`
	Name           string `json:"name"`
	Street         string `json:"street,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	City           string `json:"city,omitempty"`
}

// Payload is the full structured content of a document.
// It is the source of truth; number and gross amount on StoredDocument are derived from it.
type Payload struct {
	SchemaVersion int             `json:"schema_version"`
	Number        string          `json:"number,omitempty"`
	IssuedOn      time.Time       `json:"issued_on"`
	Customer      Customer        `json:"customer"`
	Items         []LineItem      `json:"items"`
	Notes         string          `json:"notes,omitempty"`
	VATRate       decimal.Decimal `json:"vat_rate"`
}

// Totals holds the derived monetary sums of a priced payload
type Totals struct {
	Net   decimal.Decimal `json:"net"`
	VAT   decimal.Decimal `json:"vat"`
	Gross decimal.Decimal `json:"gross"`
}

// NewPayload creates an empty payload for a customer
func NewPayload(customer Customer, items []LineItem) Payload {
	if items == nil {
		items = []LineItem{}
	}
	return Payload{
		SchemaVersion: PayloadSchemaVersion,
		Customer:      customer,
		Items:         items,
		VATRate:       DefaultVATRate,
	}
}

// Clone returns a deep copy so callers can never alias a committed snapshot
func (p Payload) Clone() Payload {
	out := p
	out.Items = make([]LineItem, len(p.Items))
	for i, item := range p.Items {
		c := item
		c.UnitPrice = copyDecimal(item.UnitPrice)
		c.Total = copyDecimal(item.Total)
		c.ReferencePrice = copyDecimal(item.ReferencePrice)
		out.Items[i] = c
	}
	return out
}

// Normalize brings the payload into the canonical shape for t:
// priced line totals are recomputed, unpriced types lose every price field.
func (p *Payload) Normalize(t DocumentType) {
	if p.SchemaVersion == 0 {
		p.SchemaVersion = PayloadSchemaVersion
	}
	if p.Items == nil {
		p.Items = []LineItem{}
	}
	if t.IsPriced() && p.VATRate.IsZero() {
		p.VATRate = DefaultVATRate
	}
	if !t.IsPriced() {
		p.VATRate = decimal.Zero
	}
	for i := range p.Items {
		if t.IsPriced() {
			p.Items[i].Recalculate()
		} else {
			p.Items[i].StripPrices()
		}
	}
}

// Validate checks that the line items match the shape required by t
func (p Payload) Validate(t DocumentType) error {
	if !t.IsValid() {
		return ErrUnknownDocumentType
	}
	for i, item := range p.Items {
		if err := item.validateBase(); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		if t.IsPriced() && !item.IsPriced() {
			return ErrInvalidLineItem.WithMessage(fmt.Sprintf("item %d (%s) has no unit price", i+1, item.Number))
		}
		if !t.IsPriced() && item.HasPriceFields() {
			return ErrInvalidLineItem.WithMessage(fmt.Sprintf("item %d (%s) must not carry prices on a %s", i+1, item.Number, t))
		}
	}
	return nil
}

// Totals computes net, VAT and gross over all priced items
func (p Payload) Totals() Totals {
	net := decimal.Zero
	for _, item := range p.Items {
		if item.Total != nil {
			net = net.Add(*item.Total)
		}
	}
	net = net.Round(MoneyPlaces)
	vat := net.Mul(p.VATRate).Round(MoneyPlaces)
	return Totals{
		Net:   net,
		VAT:   vat,
		Gross: net.Add(vat),
	}
}

// GrossAmount returns the gross total for priced payloads and nil for unpriced ones
func (p Payload) GrossAmount(t DocumentType) *decimal.Decimal {
	if !t.IsPriced() {
		return nil
	}
	gross := p.Totals().Gross
	return &gross
}

// Marshal encodes the payload as a JSON snapshot
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPayload decodes a JSON snapshot
func UnmarshalPayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode document payload: %w", err)
	}
	if p.Items == nil {
		p.Items = []LineItem{}
	}
	return p, nil
}
