package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when a price is submitted without a currency.
const DefaultCurrency = "USD"

// Money is an immutable amount in a single ISO-4217 currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney validates the currency code and rejects negative amounts.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, fmt.Errorf("%w: currency %q is not a 3-letter code", ErrInvalidInput, currency)
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: amount %s is negative", ErrInvalidInput, amount)
	}
	return Money{amount: amount, currency: currency}, nil
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{amount: decimal.Zero, currency: strings.ToUpper(currency)}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: cannot add %s to %s", ErrInvalidInput, other.currency, m.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Times multiplies the amount by a whole quantity.
func (m Money) Times(n int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(n))), currency: m.currency}
}

// Equal compares amount numerically, so 20 and 20.00 are equal.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}
