// Package gst prices invoice lines under Indian GST. Intrastate supplies
// split the levy into equal CGST and SGST halves; interstate supplies charge
// IGST alone. All rupee amounts round to two decimal places with banker's
// rounding.
package gst

import "github.com/shopspring/decimal"

type SupplyType string

const (
	Intrastate SupplyType = "INTRASTATE"
	Interstate SupplyType = "INTERSTATE"
)

var (
	hundred    = decimal.NewFromInt(100)
	twoHundred = decimal.NewFromInt(200)
)

// Line is one taxable invoice line: a pre-tax amount and the product's rates.
type Line struct {
	Subtotal decimal.Decimal // quantity × unit price, pre-tax
	Rate     decimal.Decimal // GST percentage, e.g. 5 or 18
	CessRate decimal.Decimal // compensation cess percentage
	Exempt   bool
}

// Tax holds the levy components for a line or an aggregate.
type Tax struct {
	CGST decimal.Decimal
	SGST decimal.Decimal
	IGST decimal.Decimal
	Cess decimal.Decimal
}

// Total is the sum of all components, rounded.
func (t Tax) Total() decimal.Decimal {
	return Round2(t.CGST.Add(t.SGST).Add(t.IGST).Add(t.Cess))
}

// Round2 applies two-decimal banker's rounding, the convention for every
// rupee amount in the engine.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Calculate prices a single line. Exempt and zero-rated lines carry zero tax
// regardless of the other rates on record.
func Calculate(line Line, supply SupplyType) Tax {
	var t Tax
	if line.Exempt || line.Rate.IsZero() {
		return t
	}
	if supply == Interstate {
		t.IGST = Round2(line.Subtotal.Mul(line.Rate).Div(hundred))
	} else {
		half := Round2(line.Subtotal.Mul(line.Rate).Div(twoHundred))
		t.CGST = half
		t.SGST = half
	}
	if !line.CessRate.IsZero() {
		t.Cess = Round2(line.Subtotal.Mul(line.CessRate).Div(hundred))
	}
	return t
}

// Aggregate sums per-line taxes into invoice totals, rounding each component
// after summation.
func Aggregate(taxes []Tax) Tax {
	var sum Tax
	for _, t := range taxes {
		sum.CGST = sum.CGST.Add(t.CGST)
		sum.SGST = sum.SGST.Add(t.SGST)
		sum.IGST = sum.IGST.Add(t.IGST)
		sum.Cess = sum.Cess.Add(t.Cess)
	}
	sum.CGST = Round2(sum.CGST)
	sum.SGST = Round2(sum.SGST)
	sum.IGST = Round2(sum.IGST)
	sum.Cess = Round2(sum.Cess)
	return sum
}
