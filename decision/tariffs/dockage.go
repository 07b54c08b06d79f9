// Package tariffs provides the length-based dockage tables and the statutory
// tonnage tax schedule used as fallbacks by the fee engine.
package tariffs

import (
	"strings"

	"github.com/shopspring/decimal"

	"portcall-cost/pkg/units"
)

// Breakpoint is one (LOA meters, daily rate USD) point of a dockage table.
type Breakpoint struct {
	LOAMeters decimal.Decimal
	DailyRate decimal.Decimal
}

// DockageTable is an approximate published tariff expressed as daily charges by LOA.
type DockageTable struct {
	Key       string
	TariffRef string
	Points    []Breakpoint
}

// DockageQuote is the result of a dockage lookup.
type DockageQuote struct {
	DailyRate       decimal.Decimal
	BillablePeriods int64
	Total           decimal.Decimal
	TariffRef       string
	TableKey        string
}

func table(key, ref string, pairs ...int64) DockageTable {
	t := DockageTable{Key: key, TariffRef: ref}
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Points = append(t.Points, Breakpoint{
			LOAMeters: decimal.NewFromInt(pairs[i]),
			DailyRate: decimal.NewFromInt(pairs[i+1]),
		})
	}
	return t
}

// Tables keyed by port grouping.
var (
	POLATable = table("POLA", "Port of LA/LB Tariff No. 4 (approx.)",
		100, 500, 150, 1500, 200, 3500, 250, 7500, 300, 14000, 350, 21000, 400, 35000)
	OAKTable = table("OAK", "Port of Oakland Tariff 2-A (approx.)",
		100, 450, 150, 1200, 200, 3000, 250, 6800, 300, 12500, 350, 19000, 400, 31000)
	NWSATable = table("NWSA", "NWSA Tariff No. 300 (approx.)",
		100, 600, 150, 1800, 200, 4200, 250, 9000, 300, 15500, 350, 23000, 400, 38000)
	GenericTable = DockageTable{Key: "GENERIC", TariffRef: "Generic West Coast Dockage (approx.)", Points: POLATable.Points}
)

// TableForPort maps a port or zone code onto its dockage table.
func TableForPort(code string) DockageTable {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "LALB", "USLAX", "USLGB":
		return POLATable
	case "OAK", "USOAK", "SFBAY":
		return OAKTable
	case "USSEA", "USTAC", "PUGET", "NWSA":
		return NWSATable
	default:
		return GenericTable
	}
}

// DailyRate interpolates linearly between LOA tiers and extrapolates beyond the last tier.
// Lengths at or below the first tier pay the first tier's rate.
func (t DockageTable) DailyRate(loaMeters decimal.Decimal) decimal.Decimal {
	pts := t.Points
	if len(pts) == 0 {
		return decimal.Zero
	}
	if loaMeters.LessThanOrEqual(pts[0].LOAMeters) || len(pts) == 1 {
		return pts[0].DailyRate
	}

	last := pts[len(pts)-1]
	if loaMeters.GreaterThanOrEqual(last.LOAMeters) {
		prev := pts[len(pts)-2]
		slope := last.DailyRate.Sub(prev.DailyRate).Div(last.LOAMeters.Sub(prev.LOAMeters))
		return last.DailyRate.Add(slope.Mul(loaMeters.Sub(last.LOAMeters)))
	}

	for i := 0; i+1 < len(pts); i++ {
		lo, hi := pts[i], pts[i+1]
		if loaMeters.GreaterThanOrEqual(lo.LOAMeters) && loaMeters.LessThanOrEqual(hi.LOAMeters) {
			fraction := loaMeters.Sub(lo.LOAMeters).Div(hi.LOAMeters.Sub(lo.LOAMeters))
			return lo.DailyRate.Add(fraction.Mul(hi.DailyRate.Sub(lo.DailyRate)))
		}
	}
	return last.DailyRate
}

// QuoteDockage prices berth hire for a port, LOA and days alongside.
func QuoteDockage(portCode string, loaMeters decimal.Decimal, daysAlongside float64) DockageQuote {
	t := TableForPort(portCode)
	daily := units.Money(t.DailyRate(loaMeters))
	periods := units.CeilDays(daysAlongside)
	return DockageQuote{
		DailyRate:       daily,
		BillablePeriods: periods,
		Total:           units.Money(daily.Mul(decimal.NewFromInt(periods))),
		TariffRef:       t.TariffRef,
		TableKey:        t.Key,
	}
}
