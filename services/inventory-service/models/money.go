package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in a single ISO-4217 currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney validates amount and currency. The currency is upper-cased.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: amount %s is negative", ErrInvalidPrice, amount.String())
	}
	if len(currency) != 3 {
		return Money{}, fmt.Errorf("%w: currency %q is not a 3-letter code", ErrInvalidPrice, currency)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return Money{}, fmt.Errorf("%w: currency %q is not a 3-letter code", ErrInvalidPrice, currency)
		}
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Equal compares amount numerically, so 10 and 10.00 are equal.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
