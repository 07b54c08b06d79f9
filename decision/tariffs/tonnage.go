package tariffs

import (
	"github.com/shopspring/decimal"

	"portcall-cost/pkg/units"
)

// Lower regular tonnage tax schedule: 2 cents per net ton per entry,
// at most 10 cents per net ton in any one year.
var (
	LowerRatePerTon       = decimal.RequireFromString("0.02")
	LowerCapPerTonPerYear = decimal.RequireFromString("0.10")
)

// LowerEntryFee is the per-entry charge for a net tonnage; zero for non-positive tonnage.
func LowerEntryFee(netTonnage decimal.Decimal) decimal.Decimal {
	if !netTonnage.IsPositive() {
		return units.Money(decimal.Zero)
	}
	return units.Money(netTonnage.Mul(LowerRatePerTon))
}

// LowerAnnualCap is the yearly ceiling for a net tonnage; zero for non-positive tonnage.
func LowerAnnualCap(netTonnage decimal.Decimal) decimal.Decimal {
	if !netTonnage.IsPositive() {
		return units.Money(decimal.Zero)
	}
	return units.Money(netTonnage.Mul(LowerCapPerTonPerYear))
}

// CappedCharge returns max(0, min(charge, cap - alreadyPaid)).
func CappedCharge(charge, cap, alreadyPaid decimal.Decimal) decimal.Decimal {
	remaining := cap.Sub(alreadyPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	out := units.MinDecimal(charge, remaining)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
