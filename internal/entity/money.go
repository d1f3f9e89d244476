package entity

import (
	"github.com/shopspring/decimal"
)

// Money is a decimal amount that travels as a bare JSON number, the way the
// backend emits prices and amounts. Quoted numbers are accepted on input.
type Money struct {
	decimal.Decimal
}

func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}

// Display renders the amount with two decimals and a dollar sign.
func (m Money) Display() string {
	return "$" + m.StringFixed(2)
}
