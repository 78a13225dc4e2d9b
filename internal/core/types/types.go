// Package types provides common numeric types for the ledger.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Quantity is a whole number of stock units.
//
// Variants are counted in indivisible pieces (one garment in one size),
// so no fractional scale is needed. Stored as BIGINT.
type Quantity int64

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }
func (q Quantity) IsNegative() bool { return q < 0 }
func (q Quantity) Neg() Quantity    { return -q }

func (q Quantity) Int64() int64 { return int64(q) }

// MinorUnits represents a monetary value in minor currency units (cents).
// Storage: int64 - sufficient for ±92 quadrillion cents.
// Example: 123.45 → 12345
type MinorUnits int64

const minorUnitsPerMajor = 100

// NewMinorUnitsFromString parses a decimal money string ("12.34") into
// minor units, rejecting values with sub-cent precision.
func NewMinorUnitsFromString(s string) (MinorUnits, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	scaled := d.Mul(decimal.NewFromInt(minorUnitsPerMajor))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", s)
	}
	return MinorUnits(scaled.IntPart()), nil
}

// ToMoney converts minor units to a decimal major-unit amount for display.
func (m MinorUnits) ToMoney() Money {
	return decimal.New(int64(m), -2)
}

// String renders the amount in major units ("12.34").
func (m MinorUnits) String() string {
	return m.ToMoney().StringFixed(2)
}

func (m MinorUnits) IsZero() bool     { return m == 0 }
func (m MinorUnits) IsPositive() bool { return m > 0 }
func (m MinorUnits) IsNegative() bool { return m < 0 }
func (m MinorUnits) Neg() MinorUnits  { return -m }

// MulQuantity returns the line total for a unit price and quantity.
func (m MinorUnits) MulQuantity(q Quantity) MinorUnits {
	return m * MinorUnits(q)
}
