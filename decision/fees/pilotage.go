package fees

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/db/feestore"
	"portcall-cost/decision/pilotage"
	"portcall-cost/pkg/units"
)

// PilotageTriple is the base / per-foot / draft-multiplier set of the fallback formula.
type PilotageTriple struct {
	Base      decimal.Decimal
	PerFoot   decimal.Decimal
	DraftMult decimal.Decimal
}

func triple(base, perFoot, draftMult string) PilotageTriple {
	return PilotageTriple{
		Base:      decimal.RequireFromString(base),
		PerFoot:   decimal.RequireFromString(perFoot),
		DraftMult: decimal.RequireFromString(draftMult),
	}
}

// Regional pilotage baselines used when the registry has no usable entry.
var (
	PilotageFallback = map[string]PilotageTriple{
		"LALB":   triple("3500", "8.50", "1.15"),
		"USOAK":  triple("3200", "7.75", "1.12"),
		"USSFO":  triple("4200", "9.50", "1.16"),
		"USSEA":  triple("4000", "9.25", "1.18"),
		"USPDX":  triple("3800", "8.00", "1.20"),
		"SFBAY":  triple("3500", "8.75", "1.14"),
		"PUGET":  triple("4000", "9.25", "1.18"),
		"COLRIV": triple("3800", "8.00", "1.20"),
	}
	PilotageFallbackDefault = triple("3500", "8.00", "1.15")

	PilotageMinCharge = units.Dollars("5000")
	PilotageMaxCharge = units.Dollars("30000")

	weekendMultiplier = decimal.RequireFromString("1.5")
	holidayMultiplier = decimal.RequireFromString("2.0")

	registryConfidence = decimal.RequireFromString("0.95")
	fallbackConfidence = decimal.RequireFromString("0.75")
)

// Per-port DB overrides of the fallback formula.
const (
	CodePilotageBase      = "PILOTAGE_BASE"
	CodePilotagePerFoot   = "PILOTAGE_PER_FOOT"
	CodePilotageDraftMult = "PILOTAGE_DRAFT_MULT"
	CodePilotageMin       = "PILOTAGE_MIN_CHARGE"
	CodePilotageMax       = "PILOTAGE_MAX_CHARGE"
)

// PilotageZone resolves the registry zone for a port.
func PilotageZone(port *feestore.Port) string {
	for _, z := range []string{port.ZoneCode, port.Region, port.Code} {
		if z = strings.ToUpper(strings.TrimSpace(z)); z != "" {
			return z
		}
	}
	return ""
}

// PilotageBreakdown prices a pilotage job for the voyage's arrival port.
// Empty legs use the zone's default movement sequence.
func (e *Engine) PilotageBreakdown(ctx context.Context, vessel VesselSpecs, voyage VoyageContext, legs []pilotage.MovementLeg) (*pilotage.Breakdown, error) {
	port, err := e.getPort(ctx, voyage.ArrivalPortCode)
	if err != nil {
		return nil, err
	}
	on := voyage.ArrivalDate()
	holiday := e.isHoliday(on, port.State)
	return e.pilotageBreakdown(ctx, port, vessel, voyage, on, holiday, legs)
}

func (e *Engine) pilotageBreakdown(ctx context.Context, port *feestore.Port, vessel VesselSpecs, voyage VoyageContext,
	on time.Time, holiday bool, legs []pilotage.MovementLeg) (*pilotage.Breakdown, error) {
	zone := PilotageZone(port)
	loaFt := vessel.LOAFeet()
	draftFt := vessel.DraftFeet()
	weekend := voyage.IsWeekendArrival()

	rates, err := e.pilotageRates(ctx, zone, on)
	if err != nil {
		if !errors.Is(err, pilotage.ErrRateConfig) {
			return nil, err
		}
		e.logger.Warn().Err(err).Str("zone", zone).Msg("Pilotage registry unavailable, using fallback formula")
		return e.pilotageFallback(ctx, port, zone, loaFt, draftFt, on, weekend, holiday, err.Error())
	}

	b := pilotage.BuildBreakdown(pilotage.Job{
		Zone:         zone,
		Rates:        rates,
		LOAFeet:      loaFt,
		DraftFeet:    draftFt,
		GrossTonnage: vessel.GrossTonnage,
		ETA:          voyage.ETA,
		Weekend:      weekend,
		Holiday:      holiday,
		Legs:         legs,
	})
	b.Audit.Confidence = registryConfidence
	return b, nil
}

// pilotageFallback applies base + LOA × per-foot × draft multiplier, the
// larger of the weekend/holiday multipliers, then the min/max clamp.
func (e *Engine) pilotageFallback(ctx context.Context, port *feestore.Port, zone string, loaFt, draftFt decimal.Decimal,
	on time.Time, weekend, holiday bool, reason string) (*pilotage.Breakdown, error) {
	t, ok := PilotageFallback[port.Code]
	if !ok {
		t = PilotageFallbackDefault
	}
	overrides := []struct {
		code string
		dst  *decimal.Decimal
	}{
		{CodePilotageBase, &t.Base},
		{CodePilotagePerFoot, &t.PerFoot},
		{CodePilotageDraftMult, &t.DraftMult},
	}
	for _, o := range overrides {
		v, err := e.activeRate(ctx, o.code, on, port)
		if err != nil {
			return nil, err
		}
		if v.Valid {
			*o.dst = v.Decimal
		}
	}
	minCharge, maxCharge := PilotageMinCharge, PilotageMaxCharge
	if v, err := e.activeRate(ctx, CodePilotageMin, on, port); err != nil {
		return nil, err
	} else if v.Valid {
		minCharge = units.Money(v.Decimal)
	}
	if v, err := e.activeRate(ctx, CodePilotageMax, on, port); err != nil {
		return nil, err
	} else if v.Valid {
		maxCharge = units.Money(v.Decimal)
	}

	loaCharge := units.Money(loaFt.Mul(t.PerFoot))
	base := units.Money(t.Base.Add(loaCharge.Mul(t.DraftMult)))

	mult := decimal.NewFromInt(1)
	code := ""
	if weekend && weekendMultiplier.GreaterThan(mult) {
		mult, code = weekendMultiplier, "weekend"
	}
	if holiday && holidayMultiplier.GreaterThan(mult) {
		mult, code = holidayMultiplier, "holiday"
	}
	final := units.Money(base.Mul(mult))
	final = units.MaxDecimal(minCharge, units.MinDecimal(maxCharge, final))

	details := fmt.Sprintf("Fallback: base $%s + LOA %s ft × $%s/ft × draft mult %s",
		t.Base.StringFixed(2), units.MoneyString(loaFt), t.PerFoot.StringFixed(2), t.DraftMult.String())
	if code != "" {
		details += fmt.Sprintf(" × %s %s", code, mult.StringFixed(1))
	}
	details += fmt.Sprintf("; clamped to $%s-$%s", minCharge.StringFixed(2), maxCharge.StringFixed(2))

	b := pilotage.FallbackBreakdown(zone, base, final, fallbackConfidence, details, reason, loaFt, draftFt)
	b.Audit.AppliedMultiplier = mult
	b.Audit.AppliedMultiplierCode = code
	return b, nil
}

// pilotageCalc folds a breakdown into one calculation.
func pilotageCalc(b *pilotage.Breakdown) FeeCalculation {
	mult := map[string]decimal.Decimal{}
	if b.Audit.AppliedMultiplier.GreaterThan(decimal.NewFromInt(1)) {
		mult[b.Audit.AppliedMultiplierCode] = b.Audit.AppliedMultiplier
	}

	parts := make([]string, 0, len(b.Legs))
	for _, l := range b.Legs {
		label := string(l.Classification)
		if label == "" {
			label = l.LegType
		}
		parts = append(parts, fmt.Sprintf("Leg %d %s: $%s", l.Sequence, label, l.Total.StringFixed(2)))
	}
	details := strings.Join(parts, "; ")
	if b.Audit.Fallback {
		if d, ok := b.Legs[0].Metadata["details"].(string); ok {
			details = d
		}
	}

	conf := b.Audit.Confidence
	if conf.IsZero() {
		conf = registryConfidence
	}
	source := SourceRegistry
	if b.Audit.Fallback {
		source = SourceFormula
	}
	facts := map[string]any{"zone": b.PortZone, "legs": len(b.Legs)}
	if b.EffectiveDate != nil {
		facts["effective_date"] = b.EffectiveDate.Format("2006-01-02")
	}
	if b.Audit.Reason != "" {
		facts["fallback_reason"] = b.Audit.Reason
	}
	return FeeCalculation{
		Code:        CodePilotage,
		Name:        "Harbor Pilotage",
		BaseAmount:  b.BaseTotal(),
		Multipliers: mult,
		FinalAmount: b.JobTotal,
		Confidence:  conf,
		Details:     details,
		Source:      source,
		Facts:       facts,
	}
}
