package document

import "slices"

// DocumentType identifies a kind of sales document
type DocumentType string

const (
	TypeQuote             DocumentType = "quote"
	TypeOrderConfirmation DocumentType = "order_confirmation"
	TypeDeliveryNote      DocumentType = "delivery_note"
	TypeInvoice           DocumentType = "invoice"
	TypeCreditNote        DocumentType = "credit_note"
)

// typePolicy holds the static per-type rules
type typePolicy struct {
	prefix   string
	priced   bool
	sealable bool
	label    string
}

var policies = map[DocumentType]typePolicy{
	TypeQuote:             {prefix: "AN", priced: true, label: "Angebot"},
	TypeOrderConfirmation: {prefix: "AB", priced: true, label: "Auftragsbestätigung"},
	TypeDeliveryNote:      {prefix: "LS", priced: false, label: "Lieferschein"},
	TypeInvoice:           {prefix: "RE", priced: true, sealable: true, label: "Rechnung"},
	TypeCreditNote:        {prefix: "GS", priced: true, sealable: true, label: "Gutschrift"},
}

// stageChain is the fixed order documents progress through.
// Adding or removing a stage only touches this table.
var stageChain = []DocumentType{
	TypeQuote,
	TypeOrderConfirmation,
	TypeDeliveryNote,
	TypeInvoice,
}

// IsValid checks if the document type is known
func (t DocumentType) IsValid() bool {
	_, ok := policies[t]
	return ok
}

// String returns the string representation
func (t DocumentType) String() string {
	return string(t)
}

// Prefix returns the number prefix used for this type
func (t DocumentType) Prefix() string {
	if p, ok := policies[t]; ok {
		return p.prefix
	}
	return "DOC"
}

// Label returns the printed title of the document type
func (t DocumentType) Label() string {
	return policies[t].label
}

// IsPriced reports whether line items of this type carry prices
func (t DocumentType) IsPriced() bool {
	return policies[t].priced
}

// IsSealable reports whether the type accepts exactly one version.
// Invoices and credit notes are legally binding once issued.
func (t DocumentType) IsSealable() bool {
	return policies[t].sealable
}

// Stages returns a copy of the stage chain
func Stages() []DocumentType {
	return slices.Clone(stageChain)
}

// StageIndex returns the position of t in the chain, or -1 if t is not a stage
func StageIndex(t DocumentType) int {
	return slices.Index(stageChain, t)
}

// PrecedingStage returns the stage immediately before t in the chain
func PrecedingStage(t DocumentType) (DocumentType, bool) {
	idx := StageIndex(t)
	if idx <= 0 {
		return "", false
	}
	return stageChain[idx-1], true
}

// PriceSourceStage returns the nearest priced stage before t when t is priced but
// its immediate predecessor is not. Invoices take their prices from the order
// confirmation because the delivery note in between carries none.
func PriceSourceStage(t DocumentType) (DocumentType, bool) {
	prev, ok := PrecedingStage(t)
	if !ok || !t.IsPriced() || prev.IsPriced() {
		return "", false
	}
	for idx := StageIndex(prev) - 1; idx >= 0; idx-- {
		if stageChain[idx].IsPriced() {
			return stageChain[idx], true
		}
	}
	return "", false
}

// ParseDocumentType converts a raw string into a DocumentType
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.IsValid() {
		return "", ErrUnknownDocumentType.WithMessage("unknown document type: " + s)
	}
	return t, nil
}
