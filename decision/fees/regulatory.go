package fees

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/db/feestore"
	"portcall-cost/decision/tariffs"
	"portcall-cost/pkg/confidence"
	"portcall-cost/pkg/units"
)

// Fee codes. DB codes are looked up first; fallback codes label formula results.
const (
	CodeCBPDB        = "CBP_COMMERCIAL_VESSEL_ARRIVAL_FEE"
	CodeCBP          = "CBP_USER_FEE"
	CodeAPHISDB      = "APHIS_COMMERCIAL_VESSEL"
	CodeAPHIS        = "APHIS_AQI"
	CodeTonnageDB    = "TONNAGE_TAX_PER_TON"
	CodeTonnage      = "TONNAGE_TAX"
	CodeMISPDB       = "CA_MISP_PER_VOYAGE"
	CodeMISP         = "CA_MISP"
	CodeMXDB         = "MX_VTS_PER_CALL"
	CodeMX           = "MARINE_EXCHANGE"
	CodePilotage     = "PILOTAGE"
	CodeDockageDB    = "DOCKAGE_PER_DAY"
	CodeDockage      = "DOCKAGE"
	CodeTugboat      = "TUGBOAT"
	CodeLineHandling = "LINE_HANDLING"
	CodeLaunch       = "LAUNCH_SERVICE"
	CodeGarbage      = "GARBAGE"
	CodeFreshWater   = "FRESH_WATER"
)

// CBP fiscal-year boundary and schedule.
var (
	cbpFY26Start = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	cbpFY26Rate  = units.Dollars("587.03")
	cbpFY26Cap   = units.Dollars("7999.40")
	cbpFY25Rate  = units.Dollars("571.81")
	cbpFY25Cap   = units.Dollars("7792.05")
)

// APHIS risk buckets.
const (
	RiskDomestic = "domestic"
	RiskCascadia = "cascadia"
	RiskHigh     = "high_risk"
	RiskMedium   = "medium_risk"
)

// APHISRiskRates are the fallback flat rates per bucket.
var APHISRiskRates = map[string]decimal.Decimal{
	RiskHigh:     units.Dollars("2903.73"),
	RiskMedium:   units.Dollars("2000.00"),
	RiskCascadia: units.Dollars("837.51"),
	RiskDomestic: units.Dollars("500.00"),
}

// HighRiskCountries are previous-port country prefixes in the high-risk bucket.
var HighRiskCountries = map[string]bool{
	"CN": true, "VN": true, "TH": true, "ID": true,
	"MY": true, "PH": true, "IN": true, "KR": true,
}

// MISPFallback is the California per-voyage fee.
var MISPFallback = units.Dollars("1000")

// MXFallback is the marine exchange fee per port; unlisted ports pay MXDefault.
var (
	MXFallback = map[string]decimal.Decimal{
		"LALB":   units.Dollars("350"),
		"USOAK":  units.Dollars("325"),
		"USSFO":  units.Dollars("375"),
		"USSEA":  units.Dollars("300"),
		"USPDX":  units.Dollars("275"),
		"SFBAY":  units.Dollars("325"),
		"PUGET":  units.Dollars("300"),
		"COLRIV": units.Dollars("275"),
		"STKN":   units.Dollars("275"),
	}
	MXDefault = units.Dollars("250")
)

var tonnageConfidence = decimal.RequireFromString("0.98")

// callContext carries the per-call inputs shared by the regulatory components.
type callContext struct {
	on          time.Time
	port        *feestore.Port
	arrival     ArrivalType
	previous    string
	netTonnage  decimal.Decimal
	ytdCBPPaid  decimal.Decimal
	tonnagePaid decimal.Decimal
	ballasted   *bool
	live        liveData
}

// CBPScheduleFor returns the statutory rate and annual cap in force on a date.
func CBPScheduleFor(on time.Time) (rate, cap decimal.Decimal) {
	if !on.Before(cbpFY26Start) {
		return cbpFY26Rate, cbpFY26Cap
	}
	return cbpFY25Rate, cbpFY25Cap
}

func (e *Engine) cbp(ctx context.Context, cc callContext) (FeeCalculation, error) {
	ytd := units.Money(cc.ytdCBPPaid)
	return e.resolve(ctx, CodeCBPDB, cc.on, cc.port,
		func(f *feestore.Fee) FeeCalculation {
			base := units.Money(f.Rate)
			cap := decimal.Zero
			if f.HasCap() {
				cap = units.Money(f.CapAmount.Decimal)
			}
			final := base
			if f.CapPeriod == feestore.CapCalendarYear && cap.IsPositive() {
				final = units.Money(tariffs.CappedCharge(base, cap, ytd))
			}
			return FeeCalculation{
				Code:        f.Code,
				Name:        f.Name,
				BaseAmount:  base,
				FinalAmount: final,
				Confidence:  confidence.Certain,
				Details:     fmt.Sprintf("DB rate $%s, cap $%s, YTD $%s", base.StringFixed(2), cap.StringFixed(2), ytd.StringFixed(2)),
				Facts:       map[string]any{"rate": base.StringFixed(2), "cap": cap.StringFixed(2), "cap_period": string(f.CapPeriod)},
			}
		},
		func() FeeCalculation {
			base, cap := CBPScheduleFor(cc.on)
			return FeeCalculation{
				Code:        CodeCBP,
				Name:        "CBP Commercial Vessel Arrival Fee",
				BaseAmount:  base,
				FinalAmount: units.Money(tariffs.CappedCharge(base, cap, ytd)),
				Confidence:  confidence.Certain,
				Details:     fmt.Sprintf("Schedule rate $%s, cap $%s, YTD $%s", base.StringFixed(2), cap.StringFixed(2), ytd.StringFixed(2)),
				Facts:       map[string]any{"rate": base.StringFixed(2), "cap": cap.StringFixed(2), "cap_period": string(feestore.CapCalendarYear)},
			}
		})
}

// APHISRiskBucket selects the fallback bucket for an arrival.
func APHISRiskBucket(arrival ArrivalType, previousPortCode string, port *feestore.Port) string {
	prev := strings.ToUpper(strings.TrimSpace(previousPortCode))
	cc := ""
	if len(prev) >= 2 {
		cc = prev[:2]
	}
	switch {
	case arrival == ArrivalCoastwise || cc == "US":
		return RiskDomestic
	case port != nil && port.IsCascadia:
		return RiskCascadia
	case HighRiskCountries[cc]:
		return RiskHigh
	default:
		return RiskMedium
	}
}

func (e *Engine) aphis(ctx context.Context, cc callContext) (FeeCalculation, error) {
	calc, err := e.resolve(ctx, CodeAPHISDB, cc.on, cc.port,
		func(f *feestore.Fee) FeeCalculation {
			base := units.Money(f.Rate)
			bits := []string{"DB configured APHIS rate"}
			if f.AppliesCascadia != nil {
				bits = append(bits, fmt.Sprintf("applies_cascadia=%t", *f.AppliesCascadia))
			}
			if f.AppliesState != "" {
				bits = append(bits, "state="+f.AppliesState)
			}
			if f.AppliesPortCode != "" {
				bits = append(bits, "port="+f.AppliesPortCode)
			}
			return FeeCalculation{
				Code:        f.Code,
				Name:        f.Name,
				BaseAmount:  base,
				FinalAmount: base,
				Confidence:  confidence.HighConfidence,
				Details:     strings.Join(bits, "; "),
				Facts:       map[string]any{"unit": f.Unit},
			}
		},
		func() FeeCalculation {
			risk := APHISRiskBucket(cc.arrival, cc.previous, cc.port)
			rate := APHISRiskRates[risk]
			details := fmt.Sprintf("Fallback risk='%s' from prev='%s' (port.is_cascadia=%t)",
				risk, strings.ToUpper(strings.TrimSpace(cc.previous)), cc.port.IsCascadia)

			switch {
			case risk == RiskHigh && cc.live.aphis.StandardFee.Valid:
				rate = units.Money(cc.live.aphis.StandardFee.Decimal)
				details += "; live APHIS schedule"
			case risk == RiskCascadia && cc.live.aphis.CascadiaFee.Valid:
				rate = units.Money(cc.live.aphis.CascadiaFee.Decimal)
				details += "; live APHIS schedule"
			}
			return FeeCalculation{
				Code:        CodeAPHIS,
				Name:        "APHIS Agricultural Quarantine Inspection",
				BaseAmount:  rate,
				FinalAmount: rate,
				Confidence:  confidence.HighConfidence,
				Details:     details,
				Facts:       map[string]any{"risk": risk},
			}
		})
	if err != nil {
		return calc, err
	}
	if cc.ballasted != nil {
		calc.Facts["is_ballasted"] = *cc.ballasted
	}
	return calc, nil
}

func (e *Engine) tonnageTax(ctx context.Context, cc callContext) (FeeCalculation, error) {
	net := cc.netTonnage
	paid := units.Money(cc.tonnagePaid)
	return e.resolve(ctx, CodeTonnageDB, cc.on, cc.port,
		func(f *feestore.Fee) FeeCalculation {
			rate := f.Rate
			base := units.Money(net.Mul(rate))
			final := base
			details := fmt.Sprintf("Net %s × $%s/NT (no cap)", net.String(), rate.String())
			if f.HasCap() && f.CapPeriod != feestore.CapNone {
				cap := units.Money(f.CapAmount.Decimal)
				final = units.Money(tariffs.CappedCharge(base, cap, paid))
				details = fmt.Sprintf("Net %s × $%s/NT, cap $%s, TY paid $%s", net.String(), rate.String(), cap.StringFixed(2), paid.StringFixed(2))
			}
			if !net.IsPositive() {
				details = "No net tonnage supplied; tonnage tax not assessed"
			}
			return FeeCalculation{
				Code:        f.Code,
				Name:        f.Name,
				BaseAmount:  base,
				FinalAmount: final,
				Confidence:  tonnageConfidence,
				Details:     details,
				Facts:       map[string]any{"rate_per_ton": rate.String(), "net_tonnage": net.String(), "cap_period": string(f.CapPeriod)},
			}
		},
		func() FeeCalculation {
			entry := tariffs.LowerEntryFee(net)
			cap := tariffs.LowerAnnualCap(net)
			details := fmt.Sprintf("Net %s × $%s/NT per entry, annual cap $%s (%s/NT), TY paid $%s",
				net.String(), tariffs.LowerRatePerTon.StringFixed(2), cap.StringFixed(2),
				tariffs.LowerCapPerTonPerYear.StringFixed(2), paid.StringFixed(2))
			if !net.IsPositive() {
				details = "No net tonnage supplied; tonnage tax not assessed"
			}
			return FeeCalculation{
				Code:        CodeTonnage,
				Name:        "Tonnage Tax",
				BaseAmount:  entry,
				FinalAmount: units.Money(tariffs.CappedCharge(entry, cap, paid)),
				Confidence:  tonnageConfidence,
				Details:     details,
				Facts: map[string]any{
					"rate_per_ton": tariffs.LowerRatePerTon.StringFixed(2),
					"net_tonnage":  net.String(),
					"annual_cap":   cap.StringFixed(2),
					"cap_period":   string(feestore.CapTonnageYear),
				},
			}
		})
}

func (e *Engine) mispFee(ctx context.Context, cc callContext) (FeeCalculation, error) {
	return e.resolve(ctx, CodeMISPDB, cc.on, cc.port,
		func(f *feestore.Fee) FeeCalculation {
			base := units.Money(f.Rate)
			return FeeCalculation{
				Code:        f.Code,
				Name:        f.Name,
				BaseAmount:  base,
				FinalAmount: base,
				Confidence:  confidence.Certain,
				Details:     "DB configured MISP per voyage",
				Facts:       map[string]any{"unit": f.Unit},
			}
		},
		func() FeeCalculation {
			base := MISPFallback
			details := "Fallback fixed per voyage"
			facts := map[string]any{"note": "fallback fixed per voyage"}
			if snap := cc.live.misp; snap.CurrentFee.Valid {
				base = units.Money(snap.CurrentFee.Decimal)
				details = fmt.Sprintf("Live program page: $%s per voyage", base.StringFixed(2))
				facts["possible_amounts_seen"] = snap.PossibleAmountsSeen
			}
			return FeeCalculation{
				Code:        CodeMISP,
				Name:        "California Marine Invasive Species Program",
				BaseAmount:  base,
				FinalAmount: base,
				Confidence:  confidence.Certain,
				Details:     details,
				Facts:       facts,
			}
		})
}

func (e *Engine) marineExchange(ctx context.Context, cc callContext) (FeeCalculation, error) {
	calc, err := e.resolve(ctx, CodeMXDB, cc.on, cc.port,
		func(f *feestore.Fee) FeeCalculation {
			base := units.Money(f.Rate)
			return FeeCalculation{
				Code:        f.Code,
				Name:        f.Name,
				BaseAmount:  base,
				FinalAmount: base,
				Confidence:  confidence.HighConfidence,
				Details:     "DB configured MX/VTS fee",
				Facts:       map[string]any{"unit": f.Unit},
			}
		},
		func() FeeCalculation {
			base, ok := MXFallback[cc.port.Code]
			if !ok {
				base = MXDefault
			}
			return FeeCalculation{
				Code:        CodeMX,
				Name:        "Marine Exchange/VTS Services",
				BaseAmount:  base,
				FinalAmount: base,
				Confidence:  confidence.HighConfidence,
				Details:     "Fallback fixed port fee",
				Facts:       map[string]any{"note": "fallback fixed port fee"},
			}
		})
	if err != nil {
		return calc, err
	}
	if p := cc.live.mx.Primary; p != nil && p.Name != "" {
		calc.Details += fmt.Sprintf("; verify with %s (%s)", p.Name, p.URL)
		calc.Facts["provider"] = p.Name
		calc.Facts["provider_url"] = p.URL
	}
	return calc, nil
}
