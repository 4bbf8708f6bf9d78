package document

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fraction digits kept for monetary values
const MoneyPlaces int32 = 2

// LineItem is one position of a sales document.
// Price fields are nil on unpriced items (delivery notes); they are never zeroed.
type LineItem struct {
	ID             uuid.UUID        `json:"id"`
	Number         string           `json:"number"`
	Description    string           `json:"description,omitempty"`
	Unit           string           `json:"unit"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price,omitempty"`
	Total          *decimal.Decimal `json:"total,omitempty"`
	ReferencePrice *decimal.Decimal `json:"reference_price,omitempty"`
	ReasonCode     string           `json:"reason_code,omitempty"`
}

// NewPricedLineItem creates a line item with a unit price and computed total
func NewPricedLineItem(number, description, unit string, quantity, unitPrice decimal.Decimal) (*LineItem, error) {
	item := &LineItem{
		ID:          uuid.New(),
		Number:      strings.TrimSpace(number),
		Description: description,
		Unit:        unit,
		Quantity:    quantity,
	}
	if err := item.validateBase(); err != nil {
		return nil, err
	}
	if unitPrice.IsNegative() {
		return nil, ErrInvalidLineItem.WithMessage("unit price cannot be negative")
	}
	price := unitPrice
	item.UnitPrice = &price
	item.Recalculate()
	return item, nil
}

// NewUnpricedLineItem creates a line item without any price fields
func NewUnpricedLineItem(number, description, unit string, quantity decimal.Decimal) (*LineItem, error) {
	item := &LineItem{
		ID:          uuid.New(),
		Number:      strings.TrimSpace(number),
		Description: description,
		Unit:        unit,
		Quantity:    quantity,
	}
	if err := item.validateBase(); err != nil {
		return nil, err
	}
	return item, nil
}

func (li *LineItem) validateBase() error {
	if li.Number == "" {
		return ErrInvalidLineItem.WithMessage("article number cannot be empty")
	}
	if li.Quantity.IsNegative() {
		return ErrInvalidLineItem.WithMessage("quantity cannot be negative")
	}
	return nil
}

// IsPriced reports whether the item carries a unit price
func (li *LineItem) IsPriced() bool {
	return li.UnitPrice != nil
}

// HasPriceFields reports whether any monetary field is present
func (li *LineItem) HasPriceFields() bool {
	return li.UnitPrice != nil || li.Total != nil || li.ReferencePrice != nil || li.ReasonCode != ""
}

// UpdateQuantity sets the quantity and recomputes the total
func (li *LineItem) UpdateQuantity(quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return ErrInvalidLineItem.WithMessage("quantity cannot be negative")
	}
	li.Quantity = quantity
	li.Recalculate()
	return nil
}

// UpdateUnitPrice sets the unit price and recomputes the total
func (li *LineItem) UpdateUnitPrice(unitPrice decimal.Decimal) error {
	if unitPrice.IsNegative() {
		return ErrInvalidLineItem.WithMessage("unit price cannot be negative")
	}
	price := unitPrice
	li.UnitPrice = &price
	li.Recalculate()
	return nil
}

// SetReferencePrice records a strikethrough price with the reason it was changed
func (li *LineItem) SetReferencePrice(price decimal.Decimal, reasonCode string) {
	p := price
	li.ReferencePrice = &p
	li.ReasonCode = reasonCode
}

// Recalculate recomputes Total = Quantity * UnitPrice on priced items
func (li *LineItem) Recalculate() {
	if li.UnitPrice == nil {
		li.Total = nil
		return
	}
	total := li.Quantity.Mul(*li.UnitPrice).Round(MoneyPlaces)
	li.Total = &total
}

// StripPrices removes every monetary field
func (li *LineItem) StripPrices() {
	li.UnitPrice = nil
	li.Total = nil
	li.ReferencePrice = nil
	li.ReasonCode = ""
}

// CloneForTarget projects the item into the shape of target with a fresh identifier.
// The receiver is not modified.
func (li LineItem) CloneForTarget(target DocumentType) LineItem {
	if !target.IsPriced() {
		return LineItem{
			ID:          uuid.New(),
			Number:      li.Number,
			Description: li.Description,
			Unit:        li.Unit,
			Quantity:    li.Quantity,
		}
	}
	clone := LineItem{
		ID:          uuid.New(),
		Number:      li.Number,
		Description: li.Description,
		Unit:        li.Unit,
		Quantity:    li.Quantity,
		ReasonCode:  li.ReasonCode,
	}
	clone.UnitPrice = copyDecimal(li.UnitPrice)
	clone.Total = copyDecimal(li.Total)
	clone.ReferencePrice = copyDecimal(li.ReferencePrice)
	return clone
}

// AdoptPrices copies the price fields of src and recomputes the total for the
// receiver's own quantity
func (li *LineItem) AdoptPrices(src LineItem) {
	li.UnitPrice = copyDecimal(src.UnitPrice)
	li.ReferencePrice = copyDecimal(src.ReferencePrice)
	li.ReasonCode = src.ReasonCode
	li.Recalculate()
}

// String returns a short human readable form
func (li LineItem) String() string {
	if li.UnitPrice == nil {
		return fmt.Sprintf("%s %s %s", li.Number, li.Quantity.String(), li.Unit)
	}
	return fmt.Sprintf("%s %s %s @ %s", li.Number, li.Quantity.String(), li.Unit, li.UnitPrice.StringFixed(MoneyPlaces))
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
