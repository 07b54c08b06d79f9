package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/decision/fees"
	"portcall-cost/decision/pilotage"
	perrors "portcall-cost/pkg/errors"
)

// =============================================================================
// TIMESTAMPS
// =============================================================================

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339, a naive ISO date-time (read as UTC) or a bare date.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Timestamp decodes any of the layouts ParseTimestamp accepts.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// =============================================================================
// REQUESTS
// =============================================================================

// VesselInput is the vessel block of estimate and voyage requests.
type VesselInput struct {
	Name         string          `json:"name"`
	IMONumber    string          `json:"imo_number,omitempty"`
	VesselType   string          `json:"vessel_type"`
	GrossTonnage decimal.Decimal `json:"gross_tonnage"`
	NetTonnage   decimal.Decimal `json:"net_tonnage"`
	LOAMeters    decimal.Decimal `json:"loa_meters"`
	BeamMeters   decimal.Decimal `json:"beam_meters"`
	DraftMeters  decimal.Decimal `json:"draft_meters"`
}

// Specs converts the input; unknown vessel types become general cargo.
func (v VesselInput) Specs() (fees.VesselSpecs, error) {
	if strings.TrimSpace(v.Name) == "" {
		return fees.VesselSpecs{}, perrors.NewInvalidInputError("vessel.name", "vessel name is required")
	}
	checks := []struct {
		field string
		value decimal.Decimal
	}{
		{"vessel.gross_tonnage", v.GrossTonnage},
		{"vessel.net_tonnage", v.NetTonnage},
		{"vessel.loa_meters", v.LOAMeters},
		{"vessel.beam_meters", v.BeamMeters},
		{"vessel.draft_meters", v.DraftMeters},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return fees.VesselSpecs{}, perrors.NewInvalidInputError(c.field, "must not be negative")
		}
	}
	return fees.VesselSpecs{
		Name:         strings.TrimSpace(v.Name),
		IMONumber:    v.IMONumber,
		Type:         fees.ParseVesselType(v.VesselType),
		GrossTonnage: v.GrossTonnage,
		NetTonnage:   v.NetTonnage,
		LOAMeters:    v.LOAMeters,
		BeamMeters:   v.BeamMeters,
		DraftMeters:  v.DraftMeters,
	}, nil
}

// VoyageInput is the voyage block of a comprehensive estimate request.
type VoyageInput struct {
	PreviousPortCode string     `json:"previous_port_code"`
	ArrivalPortCode  string     `json:"arrival_port_code"`
	NextPortCode     string     `json:"next_port_code,omitempty"`
	ETA              Timestamp  `json:"eta"`
	ETD              *Timestamp `json:"etd,omitempty"`
	DaysAlongside    int        `json:"days_alongside"`
	ArrivalType      string     `json:"arrival_type,omitempty"`
}

// Context converts the input. Port codes are upper-cased and days alongside
// defaults to one.
func (v VoyageInput) Context() (fees.VoyageContext, error) {
	ctx := fees.VoyageContext{
		PreviousPortCode: normalizeCode(v.PreviousPortCode),
		ArrivalPortCode:  normalizeCode(v.ArrivalPortCode),
		NextPortCode:     normalizeCode(v.NextPortCode),
		ETA:              v.ETA.Time,
		DaysAlongside:    v.DaysAlongside,
		ArrivalOverride:  fees.ArrivalType(strings.ToUpper(strings.TrimSpace(v.ArrivalType))),
	}
	if ctx.ArrivalPortCode == "" {
		return ctx, perrors.NewInvalidInputError("voyage.arrival_port_code", "arrival port is required")
	}
	if ctx.ETA.IsZero() {
		return ctx, perrors.NewInvalidInputError("voyage.eta", "eta is required")
	}
	if v.ETD != nil && !v.ETD.IsZero() {
		etd := v.ETD.Time
		if etd.Before(ctx.ETA) {
			return ctx, perrors.NewInvalidInputError("voyage.etd", "etd must not precede eta")
		}
		ctx.ETD = &etd
	}
	if ctx.DaysAlongside < 1 {
		ctx.DaysAlongside = 1
	}
	return ctx, nil
}

// ComprehensiveRequest is the body of POST /api/v1/estimate/comprehensive.
type ComprehensiveRequest struct {
	Vessel          VesselInput     `json:"vessel"`
	Voyage          VoyageInput     `json:"voyage"`
	YTDCBPPaid      decimal.Decimal `json:"ytd_cbp_paid"`
	TonnageYearPaid decimal.Decimal `json:"tonnage_year_paid"`
	IncludeOptional *bool           `json:"include_optional_services,omitempty"`
	ContractProfile string          `json:"contract_profile,omitempty"`
}

// includeOptional defaults to true when the field is absent.
func (r ComprehensiveRequest) includeOptional() bool {
	return r.IncludeOptional == nil || *r.IncludeOptional
}

// EstimateRequest is the body of POST /api/v1/estimate.
type EstimateRequest struct {
	PortCode         string          `json:"port_code"`
	ETA              Timestamp       `json:"eta"`
	ArrivalType      string          `json:"arrival_type,omitempty"`
	PreviousPortCode string          `json:"previous_port_code,omitempty"`
	NetTonnage       decimal.Decimal `json:"net_tonnage"`
	YTDCBPPaid       decimal.Decimal `json:"ytd_cbp_paid"`
	TonnageYearPaid  decimal.Decimal `json:"tonnage_year_paid"`
	IsBallasted      bool            `json:"is_ballasted"`
	ContractProfile  string          `json:"contract_profile,omitempty"`
}

// Context converts the request to the Compute input.
func (r EstimateRequest) Context() (fees.EstimateContext, error) {
	arrival := fees.ArrivalType(strings.ToUpper(strings.TrimSpace(r.ArrivalType)))
	switch arrival {
	case "":
		arrival = fees.ArrivalForeign
	case fees.ArrivalForeign, fees.ArrivalCoastwise:
	default:
		return fees.EstimateContext{}, perrors.NewInvalidInputError("arrival_type", "must be FOREIGN or COASTWISE")
	}
	return fees.EstimateContext{
		PortCode:         normalizeCode(r.PortCode),
		ArrivalDate:      r.ETA.Time,
		ArrivalType:      arrival,
		PreviousPortCode: normalizeCode(r.PreviousPortCode),
		NetTonnage:       r.NetTonnage,
		YTDCBPPaid:       r.YTDCBPPaid,
		TonnageYearPaid:  r.TonnageYearPaid,
		IsBallasted:      r.IsBallasted,
	}, nil
}

// PilotageRequest is the body of POST /api/v1/pilotage/breakdown.
type PilotageRequest struct {
	Vessel VesselInput            `json:"vessel"`
	Voyage VoyageInput            `json:"voyage"`
	Legs   []pilotage.MovementLeg `json:"legs,omitempty"`
}

// VoyageRequest is the body of POST /api/v1/voyage/multi-port.
type VoyageRequest struct {
	Request struct {
		VesselName string    `json:"vessel_name"`
		Ports      []string  `json:"ports"`
		StartDate  Timestamp `json:"start_date"`
		DaysInPort int       `json:"days_in_port"`
	} `json:"request"`
	Vessel VesselInput `json:"vessel"`
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
