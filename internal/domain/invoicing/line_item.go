package invoicing

import (
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is applied to flat-amount schedules that carry no tax rate
var DefaultTaxRate = decimal.NewFromInt(19)

// allowedTaxRates are the VAT percentages the accounting platform accepts
var allowedTaxRates = []decimal.Decimal{
	decimal.NewFromInt(0),
	decimal.NewFromInt(7),
	decimal.NewFromInt(19),
}

// IsAllowedTaxRate reports whether rate is one of 0, 7 or 19 percent
func IsAllowedTaxRate(rate decimal.Decimal) bool {
	for _, allowed := range allowedTaxRates {
		if rate.Equal(allowed) {
			return true
		}
	}
	return false
}

// LineItem is a single billable position on an invoice, quotation or schedule
type LineItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// Validate checks quantity and tax rate
func (l LineItem) Validate() error {
	if !l.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if !IsAllowedTaxRate(l.TaxRate) {
		return ErrInvalidTaxRate
	}
	return nil
}

// Net returns quantity × unit price, unrounded
func (l LineItem) Net() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Tax returns Net × rate / 100, unrounded
func (l LineItem) Tax() decimal.Decimal {
	return l.Net().Mul(l.TaxRate).Shift(-2)
}

// Totals holds the aggregated amounts of a voucher
type Totals struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// CalculateTotals sums line nets and taxes and rounds each sum to 2 places.
// Intermediate per-line values are never rounded.
func CalculateTotals(items []LineItem) Totals {
	net := decimal.Zero
	tax := decimal.Zero
	for _, item := range items {
		net = net.Add(item.Net())
		tax = tax.Add(item.Tax())
	}
	net = net.Round(2)
	tax = tax.Round(2)
	return Totals{
		Net:   net,
		Tax:   tax,
		Total: net.Add(tax),
	}
}

// validateLineItems requires at least one item and validates each
func validateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrNoLineItems
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func cloneLineItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
