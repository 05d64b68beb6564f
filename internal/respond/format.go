package respond

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// rupees renders an amount for speech: Indian digit grouping, paise only
// when non-zero. 123456.50 → "₹1,23,456.50".
func rupees(d decimal.Decimal) string {
	neg := d.Sign() < 0
	if neg {
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, paise, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteRune('₹')
	b.WriteString(groupIndian(whole))
	if paise != "00" {
		b.WriteByte('.')
		b.WriteString(paise)
	}
	return b.String()
}

// groupIndian inserts lakh/crore separators: the last three digits form one
// group, everything before it pairs up. "1234567" → "12,34,567".
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}

// spokenDigits spaces out a phone number so TTS reads it digit by digit.
func spokenDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r < '0' || r > '9' {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// spokenTime renders a reminder time relative to today in shop-local time:
// "aaj 5 baje shaam", "kal 11 baje subah", else "2 January ko 5 baje shaam".
func (t *Templater) spokenTime(at time.Time) string {
	at = at.In(t.loc)
	now := time.Now().In(t.loc)

	day := ""
	switch at.YearDay() - now.YearDay() {
	case 0:
		if at.Year() == now.Year() {
			day = "aaj"
		}
	case 1:
		if at.Year() == now.Year() {
			day = "kal"
		}
	}
	if day == "" {
		day = at.Format("2 January") + " ko"
	}

	hour := at.Hour()
	part := "subah"
	switch {
	case hour >= 17:
		part = "shaam"
	case hour >= 12:
		part = "dopahar"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	if at.Minute() == 0 {
		return fmt.Sprintf("%s %d baje %s", day, h12, part)
	}
	return fmt.Sprintf("%s %d baj kar %d minute %s", day, h12, at.Minute(), part)
}
