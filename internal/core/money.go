// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Conversions to and from the decimal
// strings typed into forms, and the JSON numbers stored in documents, go
// through shopspring/decimal so that no float rounding leaks into cents.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents is the largest amount accepted, 2^53 cents. Documents store amounts
// as JSON numbers, and float64 holds every integer up to 2^53 exactly.
const MaxCents int64 = 1 << 53

var maxCents = decimal.NewFromInt(MaxCents)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative or zero amounts, and amounts
// above MaxCents.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseOptionalDecimalToCents is ParseDecimalToCents for fields that may be
// blank or zero, such as the advance paid. Blank input yields 0.
func ParseOptionalDecimalToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseCents(s)
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// decimal accepts exponents; form input never should
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, ErrAmountTooLarge
	}
	return cents.IntPart(), nil
}

// MoneyFromNumber converts a stored document number (major units) to Money.
// Amounts beyond MaxCents in either direction are rejected.
func MoneyFromNumber(v float64) (Money, error) {
	return moneyFromDecimal(decimal.NewFromFloat(v))
}

// MoneyFromString converts a stored numeric string (major units) to Money.
func MoneyFromString(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return moneyFromDecimal(d)
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Number returns the amount in major units, the shape documents store.
func (m Money) Number() float64 {
	return decimal.New(m.Cents, -2).InexactFloat64()
}

// String renders the amount with two fixed decimals, e.g. "1000.00".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// Add sums two amounts, saturating at the int64 bounds instead of wrapping.
func (m Money) Add(o Money) Money {
	s := m.Cents + o.Cents
	switch {
	case o.Cents > 0 && s < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && s > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: s}
}

// Sub saturates like Add.
func (m Money) Sub(o Money) Money {
	d := m.Cents - o.Cents
	switch {
	case o.Cents < 0 && d < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents > 0 && d > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: d}
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Cents < 0
}
