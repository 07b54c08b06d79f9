// Package confidence provides confidence score math utilities.
package confidence

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultConfidence values
var (
	Certain          = decimal.NewFromInt(1)
	HighConfidence   = decimal.RequireFromString("0.95")
	MediumConfidence = decimal.RequireFromString("0.80")
	LowConfidence    = decimal.RequireFromString("0.60")
	MinConfidence    = decimal.RequireFromString("0.50")

	// EmptyEstimate is reported when there is nothing mandatory to average.
	EmptyEstimate = decimal.RequireFromString("0.85")
)

// Mean returns the arithmetic mean of scores, or fallback when scores is empty.
func Mean(scores []decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if len(scores) == 0 {
		return fallback
	}
	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(s)
	}
	return sum.Div(decimal.NewFromInt(int64(len(scores))))
}

// Clamp ensures confidence is in valid range [0, 1].
func Clamp(score decimal.Decimal) decimal.Decimal {
	if score.IsNegative() {
		return decimal.Zero
	}
	if score.GreaterThan(Certain) {
		return Certain
	}
	return score
}

// AboveThreshold checks if confidence meets minimum requirement.
func AboveThreshold(score, threshold decimal.Decimal) bool {
	return score.GreaterThanOrEqual(threshold)
}

// AccuracyStatement renders the ± band implied by an overall confidence.
func AccuracyStatement(score decimal.Decimal) string {
	band := Certain.Sub(Clamp(score)).Mul(decimal.NewFromInt(100))
	return fmt.Sprintf("Estimate accuracy: ±%s%%", band.StringFixed(1))
}
