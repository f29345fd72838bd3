package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/currency"
)

// Money package errors
var (
	ErrCurrencyMismatch = errors.New("currencies must match")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrInvalidAmount    = errors.New("invalid amount for currency")
	ErrInvalidFormat    = errors.New("invalid money string format")
)

// Money is an exact decimal amount bound to a currency code. Values are
// immutable; every operation returns a new value.
type Money struct {
	amount   decimal.Decimal
	currency currency.Code
}

// New returns a money value in the supplied currency
func New(amount decimal.Decimal, code currency.Code) Money {
	return Money{amount: amount, currency: code}
}

// NewFromString parses a decimal amount string into a money value
func NewFromString(amount string, code currency.Code) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return New(d, code), nil
}

// NewFromFloat returns a money value from a float amount
func NewFromFloat(amount float64, code currency.Code) Money {
	return New(decimal.NewFromFloat(amount), code)
}

// Zero returns a zero valued money in the supplied currency
func Zero(code currency.Code) Money {
	return New(decimal.Zero, code)
}

// Parse parses the canonical "CUR 123.45" representation produced by String.
// The input must split into exactly two whitespace delimited tokens.
func Parse(s string) (Money, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return NewFromString(fields[1], currency.NewCode(fields[0]))
}

// Amount returns the numeric amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() currency.Code {
	return m.currency
}

// String renders the canonical representation, e.g. "BTC 1.5"
func (m Money) String() string {
	return m.currency.String() + " " + m.amount.String()
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s and %s",
			ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

// Add sums two money values of the same currency
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.amount.Add(other.amount), m.currency), nil
}

// AddScalar adds a dimensionless amount, preserving currency
func (m Money) AddScalar(d decimal.Decimal) Money {
	return New(m.amount.Add(d), m.currency)
}

// Sub subtracts a money value of the same currency
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.amount.Sub(other.amount), m.currency), nil
}

// SubScalar subtracts a dimensionless amount, preserving currency
func (m Money) SubScalar(d decimal.Decimal) Money {
	return New(m.amount.Sub(d), m.currency)
}

// Mul multiplies by a dimensionless scalar, preserving currency
func (m Money) Mul(d decimal.Decimal) Money {
	return New(m.amount.Mul(d), m.currency)
}

// Div divides by a dimensionless scalar, preserving currency
func (m Money) Div(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	return New(m.amount.Div(d), m.currency), nil
}

// Rate divides by another money value of the same currency, yielding a
// dimensionless rate
func (m Money) Rate(other Money) (decimal.Decimal, error) {
	if err := m.sameCurrency(other); err != nil {
		return decimal.Zero, err
	}
	if other.amount.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return m.amount.Div(other.amount), nil
}

// FloorDiv divides by a dimensionless scalar rounding towards negative
// infinity
func (m Money) FloorDiv(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	return New(m.amount.Div(d).Floor(), m.currency), nil
}

// Mod returns the remainder of division by a dimensionless scalar
func (m Money) Mod(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	return New(m.amount.Mod(d), m.currency), nil
}

// DivMod returns the integer quotient and remainder of division by a
// dimensionless scalar
func (m Money) DivMod(d decimal.Decimal) (Money, Money, error) {
	if d.IsZero() {
		return Money{}, Money{}, ErrDivisionByZero
	}
	q, r := m.amount.QuoRem(d, 0)
	return New(q, m.currency), New(r, m.currency), nil
}

// Pow raises the amount to a dimensionless exponent, preserving currency
func (m Money) Pow(d decimal.Decimal) Money {
	return New(m.amount.Pow(d), m.currency)
}

// Neg negates the amount
func (m Money) Neg() Money {
	return New(m.amount.Neg(), m.currency)
}

// Abs returns the absolute amount
func (m Money) Abs() Money {
	return New(m.amount.Abs(), m.currency)
}

// Round rounds the amount to the supplied decimal places
func (m Money) Round(places int32) Money {
	return New(m.amount.Round(places), m.currency)
}

// Truncate truncates the amount to the supplied decimal places
func (m Money) Truncate(places int32) Money {
	return New(m.amount.Truncate(places), m.currency)
}

// TruncateToCurrency truncates the amount to the currency precision
func (m Money) TruncateToCurrency() Money {
	return New(m.currency.Truncate(m.amount), m.currency)
}

// Cmp compares two money values of the same currency, returning -1, 0 or 1
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports whether both values share currency and amount
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// LessThan reports whether m is less than other, failing on currency mismatch
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

// GreaterThan reports whether m is greater than other, failing on currency
// mismatch
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

// IsSet reports whether the value carries a currency. The zero value does
// not and stands for an unknown or absent amount.
func (m Money) IsSet() bool {
	return !m.currency.IsEmpty()
}

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive reports whether the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative reports whether the amount is less than zero. Negative amounts
// are valid, representing fees or deltas.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}
