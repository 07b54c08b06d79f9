// Package units provides canonical unit types, conversions and money rounding.
package units

import (
	"math"

	"github.com/shopspring/decimal"
)

// Unit represents a billing unit attached to a fee row.
type Unit string

const (
	UnitPerCall   Unit = "per_call"
	UnitPerVoyage Unit = "per_voyage"
	UnitPerTon    Unit = "per_net_ton"
	UnitPerDay    Unit = "per_day"
	UnitPerFoot   Unit = "per_foot"
	UnitPerHour   Unit = "per_hour"
	UnitFlat      Unit = "flat"
)

// FeetPerMeter is the conversion factor used for LOA and draft.
var FeetPerMeter = decimal.RequireFromString("3.28084")

var hundred = decimal.NewFromInt(100)

// MetersToFeet converts a length in meters to feet without rounding.
func MetersToFeet(m decimal.Decimal) decimal.Decimal {
	return m.Mul(FeetPerMeter)
}

// Money rounds half-up to cents.
//
// decimal.Round rounds half away from zero, which equals half-up for the
// non-negative amounts every fee produces.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MoneyString renders an amount as a fixed-point string with two fraction digits.
func MoneyString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// RateString renders a multiplier exactly, padded to at least two fraction digits.
func RateString(d decimal.Decimal) string {
	if d.Exponent() < -2 {
		return d.String()
	}
	return d.StringFixed(2)
}

// Dollars builds a money value from a literal like "587.03".
func Dollars(s string) decimal.Decimal {
	return Money(decimal.RequireFromString(s))
}

// Percent renders a 0..1 fraction as a percentage with one decimal place.
func Percent(fraction decimal.Decimal) string {
	return fraction.Mul(hundred).StringFixed(1)
}

// CeilDays returns the billable number of 24-hour periods, never less than one.
func CeilDays(days float64) int64 {
	if days <= 1 {
		return 1
	}
	return int64(math.Ceil(days))
}

// MaxDecimal returns the larger of two values.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThanOrEqual(b) {
		return a
	}
	return b
}

// MinDecimal returns the smaller of two values.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThanOrEqual(b) {
		return a
	}
	return b
}
