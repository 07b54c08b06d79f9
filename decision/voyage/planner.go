// Package voyage plans multi-port voyages by pricing each leg with its own
// fee engine and summarising the result.
package voyage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portcall-cost/db/feestore"
	"portcall-cost/decision/advisory"
	"portcall-cost/decision/fees"
	perrors "portcall-cost/pkg/errors"
	"portcall-cost/pkg/units"
)

// PortSequence is the ordered port rotation of a voyage.
type PortSequence struct {
	Ports      []string  `json:"ports"`
	StartDate  time.Time `json:"start_date"`
	DaysInPort int       `json:"days_in_port"`
}

// LegFees are the aggregated amounts of one leg.
type LegFees struct {
	Mandatory    decimal.Decimal
	OptionalLow  decimal.Decimal
	OptionalHigh decimal.Decimal
}

// Leg is one priced port call of the voyage.
type Leg struct {
	Leg            int
	From           string
	To             string
	Zone           string
	ETA            time.Time
	ETD            time.Time
	Fees           LegFees
	ArrivalType    fees.ArrivalType
	WeekendArrival bool
	HolidayArrival bool
	Confidence     decimal.Decimal

	// Report is the full estimate for the leg.
	Report *fees.Report
}

// Totals are the voyage-wide amounts.
type Totals struct {
	Mandatory    decimal.Decimal
	WithOptional decimal.Decimal
	Currency     string
}

// Summary describes the voyage shape.
type Summary struct {
	TotalPorts      int
	TotalLegs       int
	TotalDaysInPort int
	StartDate       time.Time
	EndDate         time.Time
}

// Plan is the result of Planner.Plan.
type Plan struct {
	Legs        []Leg
	Totals      Totals
	Summary     Summary
	Suggestions []string
	Advisories  *advisory.Result
}

// Planner prices voyages.
type Planner struct {
	store    feestore.Store
	opts     []fees.Option
	advisory *advisory.Engine
	logger   zerolog.Logger
}

// NewPlanner creates a planner. opts are applied to every per-leg engine.
func NewPlanner(store feestore.Store, logger zerolog.Logger, opts ...fees.Option) *Planner {
	return &Planner{
		store:    store,
		opts:     opts,
		advisory: advisory.NewEngine(),
		logger:   logger.With().Str("component", "voyage_planner").Logger(),
	}
}

// WithAdvisory replaces the advisory rule engine.
func (p *Planner) WithAdvisory(e *advisory.Engine) *Planner {
	p.advisory = e
	return p
}

// Plan prices every consecutive pair of ports. Each leg uses a fresh engine.
func (p *Planner) Plan(ctx context.Context, vessel fees.VesselSpecs, seq PortSequence) (*Plan, error) {
	ports := make([]string, 0, len(seq.Ports))
	for _, code := range seq.Ports {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			ports = append(ports, code)
		}
	}
	if len(ports) < 2 {
		return nil, perrors.NewInvalidInputError("ports", "at least two ports are required")
	}
	if seq.StartDate.IsZero() {
		return nil, perrors.NewInvalidInputError("start_date", "start date is required")
	}
	days := seq.DaysInPort
	if days < 1 {
		days = 1
	}
	start := time.Date(seq.StartDate.Year(), seq.StartDate.Month(), seq.StartDate.Day(), 0, 0, 0, 0, time.UTC)

	plan := &Plan{Totals: Totals{Mandatory: decimal.Zero, WithOptional: decimal.Zero, Currency: "USD"}}
	optionalHigh := decimal.Zero
	facts := make([]advisory.Leg, 0, len(ports)-1)

	for i := 0; i+1 < len(ports); i++ {
		eta := start.AddDate(0, 0, i*days)
		etd := eta.AddDate(0, 0, days)
		voyage := fees.VoyageContext{
			PreviousPortCode: ports[i],
			ArrivalPortCode:  ports[i+1],
			ETA:              eta,
			ETD:              &etd,
			DaysAlongside:    days,
		}
		if i+2 < len(ports) {
			voyage.NextPortCode = ports[i+2]
		}

		engine := fees.NewEngine(p.store, append([]fees.Option{fees.WithLogger(p.logger)}, p.opts...)...)
		report, err := engine.CalculateComprehensive(ctx, vessel, voyage)
		if err != nil {
			return nil, fmt.Errorf("failed to price leg %d (%s -> %s): %w", i+1, ports[i], ports[i+1], err)
		}

		leg := Leg{
			Leg:  i + 1,
			From: ports[i],
			To:   ports[i+1],
			Zone: report.PortZone,
			ETA:  eta,
			ETD:  etd,
			Fees: LegFees{
				Mandatory:    report.Totals.Mandatory,
				OptionalLow:  report.Totals.OptionalLow,
				OptionalHigh: report.Totals.OptionalHigh,
			},
			ArrivalType:    report.Voyage.ArrivalType,
			WeekendArrival: report.Voyage.IsWeekend,
			HolidayArrival: report.Voyage.IsHoliday,
			Confidence:     report.Confidence,
			Report:         report,
		}
		plan.Legs = append(plan.Legs, leg)
		plan.Totals.Mandatory = plan.Totals.Mandatory.Add(leg.Fees.Mandatory)
		optionalHigh = optionalHigh.Add(leg.Fees.OptionalHigh)

		facts = append(facts, advisory.Leg{
			Leg:         leg.Leg,
			From:        leg.From,
			To:          leg.To,
			ETA:         eta,
			Mandatory:   leg.Fees.Mandatory,
			Confidence:  leg.Confidence,
			ArrivalType: string(leg.ArrivalType),
			Weekend:     leg.WeekendArrival,
			Holiday:     leg.HolidayArrival,
		})
	}

	plan.Totals.Mandatory = units.Money(plan.Totals.Mandatory)
	plan.Totals.WithOptional = units.Money(plan.Totals.Mandatory.Add(optionalHigh))
	plan.Summary = Summary{
		TotalPorts:      len(ports),
		TotalLegs:       len(plan.Legs),
		TotalDaysInPort: days * len(plan.Legs),
		StartDate:       start,
		EndDate:         plan.Legs[len(plan.Legs)-1].ETD,
	}
	plan.Advisories = p.advisory.Evaluate(facts)
	plan.Suggestions = plan.Advisories.Suggestions()

	p.logger.Info().
		Int("legs", len(plan.Legs)).
		Str("mandatory", plan.Totals.Mandatory.StringFixed(2)).
		Int("suggestions", len(plan.Suggestions)).
		Msg("Voyage planned")
	return plan, nil
}

// ===== JSON =====

type legJSON struct {
	Leg            int               `json:"leg"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	Zone           string            `json:"zone"`
	ETA            string            `json:"eta"`
	ETD            string            `json:"etd"`
	Fees           map[string]string `json:"fees"`
	ArrivalType    string            `json:"arrival_type"`
	WeekendArrival bool              `json:"weekend_arrival"`
	HolidayArrival bool              `json:"holiday_arrival"`
}

// MarshalJSON implements json.Marshaler.
func (p *Plan) MarshalJSON() ([]byte, error) {
	legs := make([]legJSON, len(p.Legs))
	for i, l := range p.Legs {
		legs[i] = legJSON{
			Leg:  l.Leg,
			From: l.From,
			To:   l.To,
			Zone: l.Zone,
			ETA:  l.ETA.Format("2006-01-02"),
			ETD:  l.ETD.Format("2006-01-02"),
			Fees: map[string]string{
				"mandatory":     units.MoneyString(l.Fees.Mandatory),
				"optional_low":  units.MoneyString(l.Fees.OptionalLow),
				"optional_high": units.MoneyString(l.Fees.OptionalHigh),
			},
			ArrivalType:    string(l.ArrivalType),
			WeekendArrival: l.WeekendArrival,
			HolidayArrival: l.HolidayArrival,
		}
	}
	return json.Marshal(map[string]any{
		"legs": legs,
		"totals": map[string]string{
			"mandatory":     units.MoneyString(p.Totals.Mandatory),
			"with_optional": units.MoneyString(p.Totals.WithOptional),
			"currency":      p.Totals.Currency,
		},
		"voyage_summary": map[string]any{
			"total_ports":        p.Summary.TotalPorts,
			"total_legs":         p.Summary.TotalLegs,
			"total_days_in_port": p.Summary.TotalDaysInPort,
			"start_date":         p.Summary.StartDate.Format("2006-01-02"),
			"end_date":           p.Summary.EndDate.Format("2006-01-02"),
		},
		"optimization_suggestions": p.Suggestions,
	})
}
