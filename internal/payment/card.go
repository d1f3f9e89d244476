package payment

import (
	"strings"
	"time"
	"unicode"
)

// Card is raw card input. It is handed to a Tokenizer and never sent to the portal backend.
type Card struct {
	Number     string
	ExpMonth   int
	ExpYear    int
	CVC        string
	PostalCode string
}

// digits strips spaces and dashes from the card number.
func (c Card) digits() string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, c.Number)
}

// Last4 is safe to log.
func (c Card) Last4() string {
	d := c.digits()
	if len(d) < 4 {
		return ""
	}
	return d[len(d)-4:]
}

// Check runs the processor's client-side checks. Failures are reported the
// way the processor reports them, as *TokenizationError.
func (c Card) Check(now time.Time) error {
	num := c.digits()
	switch {
	case len(num) < 12:
		return &TokenizationError{Code: "incomplete_number", Message: "Your card number is incomplete."}
	case len(num) > 19 || !allDigits(num) || !luhn(num):
		return &TokenizationError{Code: "invalid_number", Message: "Your card number is invalid."}
	}

	if c.ExpMonth < 1 || c.ExpMonth > 12 || c.ExpYear == 0 {
		return &TokenizationError{Code: "incomplete_expiry", Message: "Your card's expiration date is incomplete."}
	}
	year := c.ExpYear
	if year < 100 {
		year += 2000
	}
	// Valid through the last day of the expiry month.
	firstOfNext := time.Date(year, time.Month(c.ExpMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(firstOfNext) {
		return &TokenizationError{Code: "invalid_expiry_year_past", Message: "Your card's expiration year is in the past."}
	}

	cvc := strings.TrimSpace(c.CVC)
	if len(cvc) < 3 || len(cvc) > 4 || !allDigits(cvc) {
		return &TokenizationError{Code: "incomplete_cvc", Message: "Your card's security code is incomplete."}
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func luhn(num string) bool {
	sum := 0
	double := false
	for i := len(num) - 1; i >= 0; i-- {
		d := int(num[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
