package pilotage

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/pkg/units"
)

// MovementLeg is one pilot movement within a job.
type MovementLeg struct {
	Sequence     int              `json:"sequence"`
	LegType      string           `json:"leg_type"`
	StartTime    *time.Time       `json:"start_time,omitempty"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	FromLocation string           `json:"from_location,omitempty"`
	ToLocation   string           `json:"to_location,omitempty"`
	DraftFeet    *decimal.Decimal `json:"draft_feet,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

func (l MovementLeg) metadata() map[string]any {
	out := map[string]any{}
	if l.FromLocation != "" {
		out["from_location"] = l.FromLocation
	}
	if l.ToLocation != "" {
		out["to_location"] = l.ToLocation
	}
	if l.StartTime != nil {
		out["start_time"] = l.StartTime.Format(time.RFC3339)
	}
	if l.EndTime != nil {
		out["end_time"] = l.EndTime.Format(time.RFC3339)
	}
	if l.DraftFeet != nil {
		out["draft_feet"] = units.MoneyString(*l.DraftFeet)
	}
	if l.Notes != "" {
		out["notes"] = l.Notes
	}
	for k, v := range l.Metadata {
		out[k] = v
	}
	return out
}

// SurchargeEntry is a multiplier surcharge attributed to a leg.
type SurchargeEntry struct {
	Code       string
	Multiplier decimal.Decimal
	Amount     decimal.Decimal
}

// ExtraEntry is a flat add-on attributed to a leg.
type ExtraEntry struct {
	Code   string
	Amount decimal.Decimal
}

// LegCharge is the priced result for one leg.
type LegCharge struct {
	Sequence       int
	LegType        string
	Classification Component
	BaseCharge     decimal.Decimal
	Surcharges     []SurchargeEntry
	Extras         []ExtraEntry
	Total          decimal.Decimal
	Metadata       map[string]any
}

// Audit records the inputs that decided a job total.
type Audit struct {
	LOAFeet               decimal.Decimal
	DraftFeet             decimal.Decimal
	AppliedMultiplier     decimal.Decimal
	AppliedMultiplierCode string
	ExtrasApplied         []string
	MinimumApplied        bool
	Fallback              bool
	Reason                string
	Confidence            decimal.Decimal
}

// Breakdown is the full per-leg pilotage result for one job.
type Breakdown struct {
	PortZone      string
	EffectiveDate *time.Time
	Legs          []LegCharge
	JobTotal      decimal.Decimal
	Audit         Audit
}

// Job is everything needed to price a pilotage job from a registry entry.
type Job struct {
	Zone         string
	Rates        *RateEntry
	LOAFeet      decimal.Decimal
	DraftFeet    decimal.Decimal
	GrossTonnage decimal.Decimal
	ETA          time.Time
	Weekend      bool
	Holiday      bool
	Legs         []MovementLeg
}

var one = decimal.NewFromInt(1)

// BuildBreakdown prices a job. Mill-rate zones ignore the supplied legs.
func BuildBreakdown(job Job) *Breakdown {
	if ProfileFor(job.Zone).Model == ModelMillRate && job.Rates.MillRate != nil {
		return buildMillRate(job)
	}
	return buildLegTable(job)
}

// ComponentAmounts computes the bar, bay and river charges for a vessel length.
func ComponentAmounts(rates *RateEntry, loaFeet decimal.Decimal) map[Component]decimal.Decimal {
	bar := rates.Bar.BaseFee.Add(loaFeet.Mul(rates.Bar.PerFootRate)).Mul(rates.Bar.DraftMultiplier)
	bay := units.MaxDecimal(rates.Bay.Minimum, loaFeet.Mul(rates.Bay.PerFootRate))
	river := units.MaxDecimal(rates.River.Minimum, loaFeet.Mul(rates.River.PerFootRate))
	return map[Component]decimal.Decimal{
		ComponentBar:   units.Money(bar),
		ComponentBay:   units.Money(bay),
		ComponentRiver: units.Money(river),
	}
}

// IsNight reports whether an ETA falls before 06:00 or at/after 18:00.
func IsNight(eta time.Time) bool {
	return eta.Hour() < 6 || eta.Hour() >= 18
}

func buildLegTable(job Job) *Breakdown {
	rates := job.Rates
	legs := append([]MovementLeg(nil), job.Legs...)
	if len(legs) == 0 {
		legs = DefaultLegs(job.Zone)
	}
	sort.SliceStable(legs, func(i, j int) bool { return legs[i].Sequence < legs[j].Sequence })

	components := ComponentAmounts(rates, job.LOAFeet)

	applied := one
	appliedCode := ""
	if job.Weekend && rates.Surcharges.WeekendMultiplier.GreaterThan(applied) {
		applied = rates.Surcharges.WeekendMultiplier
		appliedCode = "weekend"
	}
	if job.Holiday && rates.Surcharges.HolidayMultiplier.GreaterThan(applied) {
		applied = rates.Surcharges.HolidayMultiplier
		appliedCode = "holiday"
	}
	surchargePending := applied.GreaterThan(one)

	night := decimal.Zero
	if rates.Surcharges.NightFlat.IsPositive() && IsNight(job.ETA) {
		night = units.Money(rates.Surcharges.NightFlat)
	}

	extrasPool := rates.Extras
	extrasApplied := []string{}

	b := &Breakdown{PortZone: job.Zone}
	eff := rates.Effective
	b.EffectiveDate = &eff
	total := decimal.Zero

	for _, leg := range legs {
		class, _ := Classify(job.Zone, leg.LegType)
		base := decimal.Zero
		if class != "" {
			base = components[class]
		}
		legTotal := base
		charge := LegCharge{
			Sequence:       leg.Sequence,
			LegType:        leg.LegType,
			Classification: class,
			BaseCharge:     units.Money(base),
			Surcharges:     []SurchargeEntry{},
			Extras:         []ExtraEntry{},
			Metadata:       leg.metadata(),
		}

		if base.IsPositive() {
			if surchargePending {
				amt := units.Money(base.Mul(applied.Sub(one)))
				legTotal = legTotal.Add(amt)
				charge.Surcharges = append(charge.Surcharges, SurchargeEntry{Code: appliedCode, Multiplier: applied, Amount: amt})
				surchargePending = false
			}
			for _, ex := range extrasPool {
				amt := units.Money(ex.Amount)
				legTotal = legTotal.Add(amt)
				charge.Extras = append(charge.Extras, ExtraEntry{Code: ex.Code, Amount: amt})
				extrasApplied = append(extrasApplied, ex.Code)
			}
			extrasPool = nil
			if night.IsPositive() {
				legTotal = legTotal.Add(night)
				charge.Extras = append(charge.Extras, ExtraEntry{Code: "night", Amount: night})
				night = decimal.Zero
			}
		}

		charge.Total = units.Money(legTotal)
		total = total.Add(charge.Total)
		b.Legs = append(b.Legs, charge)
	}

	b.JobTotal = units.Money(total)
	b.Audit = Audit{
		LOAFeet:               units.Money(job.LOAFeet),
		DraftFeet:             units.Money(job.DraftFeet),
		AppliedMultiplier:     applied,
		AppliedMultiplierCode: appliedCode,
		ExtrasApplied:         extrasApplied,
	}
	return b
}

func buildMillRate(job Job) *Breakdown {
	mr := job.Rates.MillRate

	mills := mr.MillRate.Add(mr.PensionMillRate).Add(mr.PilotBoatSurcharge)
	tonnageCharge := job.GrossTonnage.Mul(mills)
	draftCharge := job.DraftFeet.Mul(job.Rates.Bar.PerFootRate)
	subtotal := tonnageCharge.Add(draftCharge)

	barLine := units.Money(subtotal)
	boardOps := units.Money(subtotal.Mul(mr.BoardOpsPercent))
	ce := units.Money(mr.ContinuingEducation)
	trainee := units.Money(mr.Trainee)
	flat := ce.Add(trainee)

	bar := LegCharge{
		Sequence:       1,
		LegType:        "bar_pilotage",
		Classification: ComponentBar,
		BaseCharge:     barLine,
		Surcharges:     []SurchargeEntry{},
		Extras:         []ExtraEntry{},
		Total:          barLine,
		Metadata: map[string]any{
			"tonnage_charge": units.MoneyString(tonnageCharge),
			"draft_charge":   units.MoneyString(draftCharge),
			"mill_rate":      mills.String(),
		},
	}

	sum := barLine.Add(boardOps).Add(flat)
	minimumApplied := false
	if minimum := units.Money(mr.Minimum); sum.LessThan(minimum) {
		topUp := minimum.Sub(sum)
		bar.Surcharges = append(bar.Surcharges, SurchargeEntry{Code: "statutory_minimum", Multiplier: one, Amount: topUp})
		bar.Total = bar.Total.Add(topUp)
		sum = minimum
		minimumApplied = true
	}

	legs := []LegCharge{
		bar,
		{
			Sequence:   2,
			LegType:    "board_ops_surcharge",
			BaseCharge: boardOps,
			Surcharges: []SurchargeEntry{},
			Extras:     []ExtraEntry{},
			Total:      boardOps,
			Metadata:   map[string]any{"percent": mr.BoardOpsPercent.String()},
		},
		{
			Sequence:   3,
			LegType:    "flat_surcharges",
			BaseCharge: decimal.Zero,
			Surcharges: []SurchargeEntry{},
			Extras: []ExtraEntry{
				{Code: "continuing_education", Amount: ce},
				{Code: "trainee", Amount: trainee},
			},
			Total:    flat,
			Metadata: map[string]any{},
		},
	}

	eff := job.Rates.Effective
	return &Breakdown{
		PortZone:      job.Zone,
		EffectiveDate: &eff,
		Legs:          legs,
		JobTotal:      units.Money(sum),
		Audit: Audit{
			LOAFeet:           units.Money(job.LOAFeet),
			DraftFeet:         units.Money(job.DraftFeet),
			AppliedMultiplier: one,
			ExtrasApplied:     []string{"continuing_education", "trainee"},
			MinimumApplied:    minimumApplied,
		},
	}
}

// FallbackBreakdown reports a formula estimate as a single "fallback" leg.
func FallbackBreakdown(zone string, base, total, confidence decimal.Decimal, details, reason string, loaFeet, draftFeet decimal.Decimal) *Breakdown {
	return &Breakdown{
		PortZone: zone,
		Legs: []LegCharge{{
			Sequence:   1,
			LegType:    "fallback",
			BaseCharge: units.Money(base),
			Surcharges: []SurchargeEntry{},
			Extras:     []ExtraEntry{},
			Total:      units.Money(total),
			Metadata:   map[string]any{"details": details},
		}},
		JobTotal: units.Money(total),
		Audit: Audit{
			LOAFeet:           units.Money(loaFeet),
			DraftFeet:         units.Money(draftFeet),
			AppliedMultiplier: one,
			ExtrasApplied:     []string{},
			Fallback:          true,
			Reason:            reason,
			Confidence:        confidence,
		},
	}
}

// BaseTotal sums every leg's base charge.
func (b *Breakdown) BaseTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range b.Legs {
		sum = sum.Add(l.BaseCharge)
	}
	return units.Money(sum)
}

// ===== JSON =====

type surchargeJSON struct {
	Code       string `json:"code"`
	Multiplier string `json:"multiplier"`
	Amount     string `json:"amount"`
}

type extraJSON struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

type legJSON struct {
	Sequence       int             `json:"sequence"`
	LegType        string          `json:"leg_type"`
	Classification *string         `json:"classification"`
	BaseCharge     string          `json:"base_charge"`
	Surcharges     []surchargeJSON `json:"surcharges"`
	Extras         []extraJSON     `json:"extras"`
	Total          string          `json:"total"`
	Metadata       map[string]any  `json:"metadata"`
}

type auditJSON struct {
	LOAFeet               string   `json:"loa_feet"`
	DraftFeet             string   `json:"draft_feet"`
	AppliedMultiplier     string   `json:"applied_multiplier"`
	AppliedMultiplierCode *string  `json:"applied_multiplier_code"`
	ExtrasApplied         []string `json:"extras_applied"`
	MinimumApplied        bool     `json:"minimum_applied,omitempty"`
	Fallback              bool     `json:"fallback,omitempty"`
	Reason                string   `json:"reason,omitempty"`
	Confidence            string   `json:"confidence,omitempty"`
}

type breakdownJSON struct {
	PortZone      string    `json:"port_zone"`
	EffectiveDate *string   `json:"effective_date"`
	Legs          []legJSON `json:"legs"`
	JobTotal      string    `json:"job_total"`
	Audit         auditJSON `json:"audit"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarshalJSON renders amounts as fixed two-decimal strings.
func (b *Breakdown) MarshalJSON() ([]byte, error) {
	out := breakdownJSON{
		PortZone: b.PortZone,
		JobTotal: units.MoneyString(b.JobTotal),
		Legs:     make([]legJSON, 0, len(b.Legs)),
		Audit: auditJSON{
			LOAFeet:               units.MoneyString(b.Audit.LOAFeet),
			DraftFeet:             units.MoneyString(b.Audit.DraftFeet),
			AppliedMultiplier:     units.RateString(b.Audit.AppliedMultiplier),
			AppliedMultiplierCode: optional(b.Audit.AppliedMultiplierCode),
			ExtrasApplied:         b.Audit.ExtrasApplied,
			MinimumApplied:        b.Audit.MinimumApplied,
			Fallback:              b.Audit.Fallback,
			Reason:                b.Audit.Reason,
		},
	}
	if b.Audit.Fallback {
		out.Audit.Confidence = b.Audit.Confidence.String()
	}
	if b.EffectiveDate != nil {
		out.EffectiveDate = optional(b.EffectiveDate.Format(dateLayout))
	}
	for _, l := range b.Legs {
		lj := legJSON{
			Sequence:       l.Sequence,
			LegType:        l.LegType,
			Classification: optional(string(l.Classification)),
			BaseCharge:     units.MoneyString(l.BaseCharge),
			Surcharges:     make([]surchargeJSON, 0, len(l.Surcharges)),
			Extras:         make([]extraJSON, 0, len(l.Extras)),
			Total:          units.MoneyString(l.Total),
			Metadata:       l.Metadata,
		}
		for _, s := range l.Surcharges {
			lj.Surcharges = append(lj.Surcharges, surchargeJSON{Code: s.Code, Multiplier: units.RateString(s.Multiplier), Amount: units.MoneyString(s.Amount)})
		}
		for _, e := range l.Extras {
			lj.Extras = append(lj.Extras, extraJSON{Code: e.Code, Amount: units.MoneyString(e.Amount)})
		}
		out.Legs = append(out.Legs, lj)
	}
	return json.Marshal(out)
}
