package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portcall-cost/decision/pilotage"
	"portcall-cost/pkg/confidence"
	perrors "portcall-cost/pkg/errors"
	"portcall-cost/pkg/units"
)

// Disclaimer accompanies every comprehensive estimate.
const Disclaimer = "Estimate based on standard rates/tariffs. Actual fees may vary due to negotiations, special circumstances, or regulatory changes."

// Totals are the aggregated amounts of an estimate.
type Totals struct {
	Mandatory    decimal.Decimal
	OptionalLow  decimal.Decimal
	OptionalHigh decimal.Decimal
	TotalLow     decimal.Decimal
	TotalHigh    decimal.Decimal
}

// VoyageSummary echoes the derived voyage facts of an estimate.
type VoyageSummary struct {
	PreviousPort  string
	ArrivalPort   string
	NextPort      string
	ArrivalType   ArrivalType
	ETA           time.Time
	ETD           *time.Time
	DaysAlongside int
	IsWeekend     bool
	IsHoliday     bool
}

// Report is the full result of CalculateComprehensive.
type Report struct {
	EstimateID        uuid.UUID
	GeneratedAt       time.Time
	Vessel            VesselSpecs
	Voyage            VoyageSummary
	PortZone          string
	ContractProfile   string
	Calculations      []FeeCalculation
	Totals            Totals
	Confidence        decimal.Decimal
	AccuracyStatement string
	Disclaimer        string
	Warnings          []string

	// Pilotage is the per-leg pilotage result behind the PILOTAGE line.
	Pilotage *pilotage.Breakdown
}

// Aggregate splits calculations into mandatory and optional and sums them.
// Manual-entry items never reach the optional bounds. Confidence is the mean
// over mandatory items only.
func Aggregate(calcs []FeeCalculation) (Totals, decimal.Decimal) {
	t := Totals{
		Mandatory:    decimal.Zero,
		OptionalLow:  decimal.Zero,
		OptionalHigh: decimal.Zero,
	}
	scores := make([]decimal.Decimal, 0, len(calcs))
	for _, c := range calcs {
		if !c.IsOptional {
			t.Mandatory = t.Mandatory.Add(c.FinalAmount)
			scores = append(scores, c.Confidence)
			continue
		}
		if c.ManualEntry {
			continue
		}
		low, high := c.FinalAmount, c.FinalAmount
		if c.EstimatedRange != nil {
			low, high = c.EstimatedRange.Low, c.EstimatedRange.High
		}
		t.OptionalLow = t.OptionalLow.Add(low)
		t.OptionalHigh = t.OptionalHigh.Add(high)
	}
	t.Mandatory = units.Money(t.Mandatory)
	t.OptionalLow = units.Money(t.OptionalLow)
	t.OptionalHigh = units.Money(t.OptionalHigh)
	t.TotalLow = t.Mandatory.Add(t.OptionalLow)
	t.TotalHigh = t.Mandatory.Add(t.OptionalHigh)
	return t, confidence.Mean(scores, confidence.EmptyEstimate)
}

// CalculateComprehensive prices every applicable charge for one port call.
func (e *Engine) CalculateComprehensive(ctx context.Context, vessel VesselSpecs, voyage VoyageContext) (*Report, error) {
	if voyage.ArrivalPortCode == "" {
		return nil, perrors.NewInvalidInputError("arrival_port_code", "arrival port is required")
	}
	if voyage.ETA.IsZero() {
		return nil, perrors.NewInvalidInputError("eta", "ETA is required")
	}
	port, err := e.getPort(ctx, voyage.ArrivalPortCode)
	if err != nil {
		return nil, err
	}

	on := voyage.ArrivalDate()
	arrival := voyage.ArrivalType()
	holiday := e.isHoliday(on, port.State)
	advice := e.prefetchLive(ctx, port)

	cc := callContext{
		on:          on,
		port:        port,
		arrival:     arrival,
		previous:    voyage.PreviousPortCode,
		netTonnage:  vessel.NetTonnage,
		ytdCBPPaid:  e.ytdCBPPaid,
		tonnagePaid: e.tonnageYearPaid,
		live:        advice,
	}

	logger := e.logger.With().
		Str("port", port.Code).
		Str("vessel", vessel.Name).
		Str("arrival_type", string(arrival)).
		Logger()

	var calcs []FeeCalculation
	add := func(c FeeCalculation, err error) error {
		if err != nil {
			return err
		}
		calcs = append(calcs, c)
		return nil
	}

	if err := add(e.cbp(ctx, cc)); err != nil {
		return nil, err
	}
	if err := add(e.aphis(ctx, cc)); err != nil {
		return nil, err
	}
	if port.IsCalifornia {
		if err := add(e.mispFee(ctx, cc)); err != nil {
			return nil, err
		}
	}
	if err := add(e.tonnageTax(ctx, cc)); err != nil {
		return nil, err
	}

	breakdown, err := e.pilotageBreakdown(ctx, port, vessel, voyage, on, holiday, nil)
	if err != nil {
		return nil, err
	}
	calcs = append(calcs, pilotageCalc(breakdown))

	if err := add(e.dockage(ctx, port, vessel, voyage, on)); err != nil {
		return nil, err
	}
	if err := add(e.tugboats(ctx, vessel)); err != nil {
		return nil, err
	}
	if err := add(e.marineExchange(ctx, cc)); err != nil {
		return nil, err
	}
	calcs = append(calcs, e.optionalServices(voyage)...)

	if err := e.applyContract(ctx, calcs, on, port.Code); err != nil {
		return nil, err
	}

	totals, conf := Aggregate(calcs)

	var warnings []string
	for _, c := range calcs {
		if c.ManualEntry {
			warnings = append(warnings, fmt.Sprintf("%s requires a manual quote", c.Name))
		}
	}
	if breakdown.Audit.Fallback {
		warnings = append(warnings, "Pilotage priced from the fallback formula: "+breakdown.Audit.Reason)
	}

	logger.Info().
		Int("calculations", len(calcs)).
		Str("mandatory", totals.Mandatory.StringFixed(2)).
		Str("confidence", conf.StringFixed(4)).
		Msg("Estimate computed")

	return &Report{
		EstimateID:  uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Vessel:      vessel,
		Voyage: VoyageSummary{
			PreviousPort:  voyage.PreviousPortCode,
			ArrivalPort:   port.Code,
			NextPort:      voyage.NextPortCode,
			ArrivalType:   arrival,
			ETA:           voyage.ETA,
			ETD:           voyage.ETD,
			DaysAlongside: voyage.Days(),
			IsWeekend:     voyage.IsWeekendArrival(),
			IsHoliday:     holiday,
		},
		PortZone:          breakdown.PortZone,
		ContractProfile:   e.contractProfile,
		Calculations:      calcs,
		Totals:            totals,
		Confidence:        conf,
		AccuracyStatement: confidence.AccuracyStatement(conf),
		Disclaimer:        Disclaimer,
		Warnings:          warnings,
		Pilotage:          breakdown,
	}, nil
}

// Calculation returns the calculation with code, if present.
func (r *Report) Calculation(code string) (FeeCalculation, bool) {
	for _, c := range r.Calculations {
		if c.Code == code {
			return c, true
		}
	}
	return FeeCalculation{}, false
}
