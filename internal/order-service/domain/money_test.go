package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(decimal.RequireFromString("12.5"), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, m.Currency())
	assert.Equal(t, "12.50 USD", m.String())

	_, err = NewMoney(decimal.NewFromInt(-1), "USD")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewMoney(decimal.NewFromInt(1), "DOLLARS")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMoney_AddRejectsCurrencyMismatch(t *testing.T) {
	a, _ := NewMoney(decimal.NewFromInt(1), "USD")
	b, _ := NewMoney(decimal.NewFromInt(1), "eur")

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrInvalidInput)

	sum, err := a.Add(a)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.NewFromInt(2)))
}

func TestMoney_Times(t *testing.T) {
	m, _ := NewMoney(decimal.RequireFromString("10.00"), "USD")
	assert.Equal(t, "20.00 USD", m.Times(2).String())
}
