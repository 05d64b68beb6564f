package core

import (
	"fmt"
	"time"
)

// FinancialYearAt returns the Indian financial year label for a moment in
// time, e.g. "2025-26" for any date from 1 April 2025 through 31 March 2026.
// The location matters near midnight: invoice numbering follows shop time,
// not server time.
func FinancialYearAt(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	year := t.Year()
	if t.Month() < time.April {
		year--
	}
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

// FormatInvoiceNo renders the sequential invoice number within a financial
// year: "2025-26/INV/0042".
func FormatInvoiceNo(financialYear string, seq int) string {
	return fmt.Sprintf("%s/INV/%04d", financialYear, seq)
}
