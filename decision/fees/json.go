package fees

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/pkg/units"
)

// ===== JSON =====
//
// Money renders as a fixed-point string with two fraction digits.

type rangeJSON struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

type calculationJSON struct {
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	BaseAmount     string            `json:"base_amount"`
	Multipliers    map[string]string `json:"multipliers"`
	FinalAmount    string            `json:"final_amount"`
	Confidence     string            `json:"confidence"`
	Details        string            `json:"calculation_details"`
	IsOptional     bool              `json:"is_optional"`
	EstimatedRange *rangeJSON        `json:"estimated_range"`
	ManualEntry    bool              `json:"manual_entry"`
	Source         string            `json:"source,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c FeeCalculation) MarshalJSON() ([]byte, error) {
	out := calculationJSON{
		Code:        c.Code,
		Name:        c.Name,
		BaseAmount:  units.MoneyString(c.BaseAmount),
		Multipliers: make(map[string]string, len(c.Multipliers)),
		FinalAmount: units.MoneyString(c.FinalAmount),
		Confidence:  c.Confidence.StringFixed(2),
		Details:     c.Details,
		IsOptional:  c.IsOptional,
		ManualEntry: c.ManualEntry,
		Source:      c.Source,
	}
	for k, v := range c.Multipliers {
		out.Multipliers[k] = v.String()
	}
	if c.EstimatedRange != nil {
		out.EstimatedRange = &rangeJSON{
			Low:  units.MoneyString(c.EstimatedRange.Low),
			High: units.MoneyString(c.EstimatedRange.High),
		}
	}
	return json.Marshal(out)
}

// MarshalJSON implements json.Marshaler.
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"mandatory":     units.MoneyString(t.Mandatory),
		"optional_low":  units.MoneyString(t.OptionalLow),
		"optional_high": units.MoneyString(t.OptionalHigh),
		"total_low":     units.MoneyString(t.TotalLow),
		"total_high":    units.MoneyString(t.TotalHigh),
	})
}

// MarshalJSON implements json.Marshaler.
func (l LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    string         `json:"code"`
		Name    string         `json:"name"`
		Amount  string         `json:"amount"`
		Details map[string]any `json:"details"`
	}{l.Code, l.Name, units.MoneyString(l.Amount), l.Details})
}

type vesselJSON struct {
	Name         string `json:"name"`
	IMONumber    string `json:"imo_number,omitempty"`
	Type         string `json:"type"`
	GrossTonnage string `json:"gross_tonnage"`
	NetTonnage   string `json:"net_tonnage"`
	LOAMeters    string `json:"loa_meters"`
	BeamMeters   string `json:"beam_meters"`
	DraftMeters  string `json:"draft_meters"`
}

type voyageJSON struct {
	PreviousPort  string  `json:"previous_port"`
	ArrivalPort   string  `json:"arrival_port"`
	NextPort      string  `json:"next_port"`
	ArrivalType   string  `json:"arrival_type"`
	ETA           string  `json:"eta"`
	ETD           *string `json:"etd"`
	DaysAlongside int     `json:"days_alongside"`
	IsWeekend     bool    `json:"is_weekend"`
	IsHoliday     bool    `json:"is_holiday"`
}

type reportJSON struct {
	EstimateID        string           `json:"estimate_id"`
	GeneratedAt       string           `json:"generated_at"`
	Vessel            vesselJSON       `json:"vessel"`
	Voyage            voyageJSON       `json:"voyage"`
	PortZone          string           `json:"port_zone"`
	ContractProfile   string           `json:"contract_profile,omitempty"`
	Calculations      []FeeCalculation `json:"calculations"`
	Totals            Totals           `json:"totals"`
	Confidence        string           `json:"confidence"`
	AccuracyStatement string           `json:"accuracy_statement"`
	Disclaimer        string           `json:"disclaimer"`
	Warnings          []string         `json:"warnings,omitempty"`
	Pilotage          json.Marshaler   `json:"pilotage_breakdown,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Report) MarshalJSON() ([]byte, error) {
	var etd *string
	if r.Voyage.ETD != nil {
		s := r.Voyage.ETD.Format(time.RFC3339)
		etd = &s
	}
	out := reportJSON{
		EstimateID:  r.EstimateID.String(),
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
		Vessel: vesselJSON{
			Name:         r.Vessel.Name,
			IMONumber:    r.Vessel.IMONumber,
			Type:         string(r.Vessel.Type),
			GrossTonnage: r.Vessel.GrossTonnage.String(),
			NetTonnage:   r.Vessel.NetTonnage.String(),
			LOAMeters:    r.Vessel.LOAMeters.String(),
			BeamMeters:   r.Vessel.BeamMeters.String(),
			DraftMeters:  r.Vessel.DraftMeters.String(),
		},
		Voyage: voyageJSON{
			PreviousPort:  r.Voyage.PreviousPort,
			ArrivalPort:   r.Voyage.ArrivalPort,
			NextPort:      r.Voyage.NextPort,
			ArrivalType:   string(r.Voyage.ArrivalType),
			ETA:           r.Voyage.ETA.Format(time.RFC3339),
			ETD:           etd,
			DaysAlongside: r.Voyage.DaysAlongside,
			IsWeekend:     r.Voyage.IsWeekend,
			IsHoliday:     r.Voyage.IsHoliday,
		},
		PortZone:          r.PortZone,
		ContractProfile:   r.ContractProfile,
		Calculations:      r.Calculations,
		Totals:            r.Totals,
		Confidence:        r.Confidence.StringFixed(4),
		AccuracyStatement: r.AccuracyStatement,
		Disclaimer:        r.Disclaimer,
		Warnings:          r.Warnings,
	}
	if r.Pilotage != nil {
		out.Pilotage = r.Pilotage
	}
	return json.Marshal(out)
}

// MultiplierKeys returns the multiplier keys of a calculation in sorted order.
func (c FeeCalculation) MultiplierKeys() []string {
	keys := make([]string, 0, len(c.Multipliers))
	for k := range c.Multipliers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Amount is a convenience for rendering a decimal as money.
func Amount(d decimal.Decimal) string { return units.MoneyString(d) }
