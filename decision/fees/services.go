package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/db/feestore"
	"portcall-cost/decision/tariffs"
	"portcall-cost/pkg/confidence"
	"portcall-cost/pkg/units"
)

// ===== DOCKAGE =====

func (e *Engine) dockage(ctx context.Context, port *feestore.Port, vessel VesselSpecs, voyage VoyageContext, on time.Time) (FeeCalculation, error) {
	days := voyage.Days()
	return e.resolve(ctx, CodeDockageDB, on, port,
		func(f *feestore.Fee) FeeCalculation {
			periods := units.CeilDays(float64(days))
			rate := units.Money(f.Rate)
			total := units.Money(rate.Mul(decimal.NewFromInt(periods)))
			return FeeCalculation{
				Code:        f.Code,
				Name:        f.Name,
				BaseAmount:  total,
				FinalAmount: total,
				Confidence:  confidence.HighConfidence,
				Details:     fmt.Sprintf("DB rate $%s/day × %d day(s)", rate.StringFixed(2), periods),
				Facts:       map[string]any{"daily_rate": rate.StringFixed(2), "days": periods},
			}
		},
		func() FeeCalculation {
			q := tariffs.QuoteDockage(port.Code, vessel.LOAMeters, float64(days))
			return FeeCalculation{
				Code:        CodeDockage,
				Name:        "Dockage",
				BaseAmount:  q.Total,
				FinalAmount: q.Total,
				Confidence:  confidence.MediumConfidence,
				Details: fmt.Sprintf("%s: LOA %sm at $%s/day × %d day(s)",
					q.TariffRef, vessel.LOAMeters.String(), q.DailyRate.StringFixed(2), q.BillablePeriods),
				Facts: map[string]any{
					"table":      q.TableKey,
					"tariff_ref": q.TariffRef,
					"daily_rate": q.DailyRate.StringFixed(2),
					"days":       q.BillablePeriods,
				},
			}
		})
}

// ===== TUGBOATS =====

var (
	tugMoves         = decimal.NewFromInt(2)
	tugHoursPerJob   = decimal.RequireFromString("2.5")
	tugFuelSurcharge = decimal.RequireFromString("1.18")
	tugRangeLow      = decimal.RequireFromString("0.85")
	tugRangeHigh     = decimal.RequireFromString("1.25")
	tugConfidence    = decimal.RequireFromString("0.65")
	manualConfidence = decimal.RequireFromString("0.40")
	gtBucketSmall    = decimal.NewFromInt(5000)
	gtBucketMedium   = decimal.NewFromInt(30000)
	gtBucketLarge    = decimal.NewFromInt(80000)
	tugHourlySmall   = units.Dollars("1200")
	tugHourlyMedium  = units.Dollars("1800")
	tugHourlyLarge   = units.Dollars("2400")
	tugHourlyXLarge  = units.Dollars("3000")
)

// TugsForGT is the heuristic tug count when no vessel-type config exists.
func TugsForGT(gt decimal.Decimal) int {
	switch {
	case gt.LessThan(gtBucketSmall):
		return 1
	case gt.LessThan(gtBucketMedium):
		return 2
	case gt.LessThan(gtBucketLarge):
		return 3
	default:
		return 4
	}
}

// TugHourlyRate scales the hourly tug rate with the GT bucket.
func TugHourlyRate(gt decimal.Decimal) decimal.Decimal {
	switch {
	case gt.LessThan(gtBucketSmall):
		return tugHourlySmall
	case gt.LessThan(gtBucketMedium):
		return tugHourlyMedium
	case gt.LessThan(gtBucketLarge):
		return tugHourlyLarge
	default:
		return tugHourlyXLarge
	}
}

func (e *Engine) tugboats(ctx context.Context, vessel VesselSpecs) (FeeCalculation, error) {
	gt := vessel.GrossTonnage
	if !gt.IsPositive() {
		return FeeCalculation{
			Code:        CodeTugboat,
			Name:        "Tugboat Assist Services",
			BaseAmount:  decimal.Zero,
			FinalAmount: decimal.Zero,
			Confidence:  manualConfidence,
			Details:     "Gross tonnage missing; obtain a manual tug quote",
			IsOptional:  true,
			ManualEntry: true,
			Source:      SourceFormula,
			Facts:       map[string]any{"manual_entry": true},
		}, nil
	}

	cfg, err := e.vesselTypeConfig(ctx, vessel.Type)
	if err != nil {
		return FeeCalculation{}, err
	}
	tugs := TugsForGT(gt)
	basis := "GRT heuristic"
	if cfg != nil {
		tugs = cfg.TugsFor(gt)
		basis = "vessel type " + cfg.VesselType
	}
	hourly := TugHourlyRate(gt)

	base := units.Money(tugMoves.Mul(decimal.NewFromInt(int64(tugs))).Mul(tugHoursPerJob).Mul(hourly))
	final := units.Money(base.Mul(tugFuelSurcharge))
	return FeeCalculation{
		Code:        CodeTugboat,
		Name:        "Tugboat Assist Services",
		BaseAmount:  base,
		Multipliers: map[string]decimal.Decimal{"fuel_surcharge": tugFuelSurcharge},
		FinalAmount: final,
		Confidence:  tugConfidence,
		Details: fmt.Sprintf("%d tug(s) per move (%s) × 2 moves × 2.5 h × $%s/h + 18%% fuel",
			tugs, basis, hourly.StringFixed(2)),
		IsOptional: true,
		EstimatedRange: &Range{
			Low:  units.Money(final.Mul(tugRangeLow)),
			High: units.Money(final.Mul(tugRangeHigh)),
		},
		Source: SourceFormula,
		Facts:  map[string]any{"tugs": tugs, "hourly_rate": hourly.StringFixed(2)},
	}, nil
}

// ===== OPTIONAL SERVICES =====

type optionalService struct {
	code  string
	name  string
	point decimal.Decimal
	low   decimal.Decimal
	high  decimal.Decimal
	conf  decimal.Decimal
}

var (
	lineHandling = optionalService{CodeLineHandling, "Line Handling", units.Dollars("1500"), units.Dollars("1000"), units.Dollars("2500"), confidence.MediumConfidence}

	legacyServices = []optionalService{
		{CodeLaunch, "Launch Service", units.Dollars("800"), units.Dollars("500"), units.Dollars("1500"), decimal.RequireFromString("0.75")},
		{CodeGarbage, "Garbage Disposal", units.Dollars("600"), units.Dollars("400"), units.Dollars("1000"), decimal.RequireFromString("0.90")},
	}

	freshWaterPerDay = units.Dollars("200")
	freshWaterSpread = decimal.RequireFromString("0.20")
	freshWaterConf   = decimal.RequireFromString("0.85")
)

func (s optionalService) calc() FeeCalculation {
	return FeeCalculation{
		Code:           s.code,
		Name:           s.name,
		BaseAmount:     s.point,
		FinalAmount:    s.point,
		Confidence:     s.conf,
		Details:        fmt.Sprintf("Typical $%s (range $%s-$%s)", s.point.StringFixed(2), s.low.StringFixed(2), s.high.StringFixed(2)),
		IsOptional:     true,
		EstimatedRange: &Range{Low: s.low, High: s.high},
		Source:         SourceFormula,
		Facts:          map[string]any{},
	}
}

func (e *Engine) optionalServices(voyage VoyageContext) []FeeCalculation {
	out := []FeeCalculation{lineHandling.calc()}
	if !e.showLegacyOptional {
		return out
	}
	for _, s := range legacyServices {
		out = append(out, s.calc())
	}
	if days := voyage.Days(); days > 1 {
		point := units.Money(freshWaterPerDay.Mul(decimal.NewFromInt(int64(days))))
		spread := units.Money(point.Mul(freshWaterSpread))
		out = append(out, FeeCalculation{
			Code:           CodeFreshWater,
			Name:           "Fresh Water Supply",
			BaseAmount:     point,
			FinalAmount:    point,
			Confidence:     freshWaterConf,
			Details:        fmt.Sprintf("$%s/day × %d days", freshWaterPerDay.StringFixed(2), days),
			IsOptional:     true,
			EstimatedRange: &Range{Low: point.Sub(spread), High: point.Add(spread)},
			Source:         SourceFormula,
			Facts:          map[string]any{"days": days},
		})
	}
	return out
}
