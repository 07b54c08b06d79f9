package fees

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/pkg/units"
)

// VesselType drives per-type nuance such as tug configuration.
type VesselType string

const (
	VesselContainer      VesselType = "container"
	VesselTanker         VesselType = "tanker"
	VesselBulkCarrier    VesselType = "bulk_carrier"
	VesselCruise         VesselType = "cruise"
	VesselRoRo           VesselType = "roro"
	VesselGeneralCargo   VesselType = "general_cargo"
	VesselLNG            VesselType = "lng"
	VesselVehicleCarrier VesselType = "vehicle_carrier"
)

var vesselTypes = map[string]VesselType{
	"container":       VesselContainer,
	"tanker":          VesselTanker,
	"bulk_carrier":    VesselBulkCarrier,
	"cruise":          VesselCruise,
	"roro":            VesselRoRo,
	"general_cargo":   VesselGeneralCargo,
	"lng":             VesselLNG,
	"vehicle_carrier": VesselVehicleCarrier,
}

// ParseVesselType maps free text to a VesselType. Unknown values degrade to general cargo.
func ParseVesselType(s string) VesselType {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if t, ok := vesselTypes[key]; ok {
		return t
	}
	return VesselGeneralCargo
}

// VesselSpecs is the immutable vessel input of one estimate.
type VesselSpecs struct {
	Name         string          `json:"name"`
	IMONumber    string          `json:"imo_number,omitempty"`
	Type         VesselType      `json:"vessel_type"`
	GrossTonnage decimal.Decimal `json:"gross_tonnage"`
	NetTonnage   decimal.Decimal `json:"net_tonnage"`
	LOAMeters    decimal.Decimal `json:"loa_meters"`
	BeamMeters   decimal.Decimal `json:"beam_meters"`
	DraftMeters  decimal.Decimal `json:"draft_meters"`
}

// LOAFeet is the length overall in feet.
func (v VesselSpecs) LOAFeet() decimal.Decimal { return units.MetersToFeet(v.LOAMeters) }

// DraftFeet is the draft in feet.
func (v VesselSpecs) DraftFeet() decimal.Decimal { return units.MetersToFeet(v.DraftMeters) }

// ArrivalType is COASTWISE or FOREIGN.
type ArrivalType string

const (
	ArrivalCoastwise ArrivalType = "COASTWISE"
	ArrivalForeign   ArrivalType = "FOREIGN"
)

// InferArrivalType classifies from the previous port code's two-letter
// country prefix. A caller-supplied type is used only when no previous port
// is known; "DOMESTIC" counts as coastwise and anything else as foreign.
func InferArrivalType(previousPortCode string, fallback ArrivalType) ArrivalType {
	prev := strings.ToUpper(strings.TrimSpace(previousPortCode))
	if strings.HasPrefix(prev, "US") {
		return ArrivalCoastwise
	}
	if prev != "" {
		return ArrivalForeign
	}
	switch ArrivalType(strings.ToUpper(strings.TrimSpace(string(fallback)))) {
	case ArrivalCoastwise, "DOMESTIC":
		return ArrivalCoastwise
	default:
		return ArrivalForeign
	}
}

// VoyageContext is the immutable voyage input of one estimate.
type VoyageContext struct {
	PreviousPortCode string      `json:"previous_port_code"`
	ArrivalPortCode  string      `json:"arrival_port_code"`
	NextPortCode     string      `json:"next_port_code,omitempty"`
	ETA              time.Time   `json:"eta"`
	ETD              *time.Time  `json:"etd,omitempty"`
	DaysAlongside    int         `json:"days_alongside"`
	ArrivalOverride  ArrivalType `json:"arrival_type,omitempty"`
}

// ArrivalType derives COASTWISE/FOREIGN for the voyage.
func (v VoyageContext) ArrivalType() ArrivalType {
	return InferArrivalType(v.PreviousPortCode, v.ArrivalOverride)
}

// IsWeekendArrival reports a Saturday or Sunday ETA.
func (v VoyageContext) IsWeekendArrival() bool {
	wd := v.ETA.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ArrivalDate is the ETA's calendar date.
func (v VoyageContext) ArrivalDate() time.Time {
	return time.Date(v.ETA.Year(), v.ETA.Month(), v.ETA.Day(), 0, 0, 0, 0, time.UTC)
}

// Days is days alongside, never less than one.
func (v VoyageContext) Days() int {
	if v.DaysAlongside < 1 {
		return 1
	}
	return v.DaysAlongside
}

// EstimateContext is the input of the simple Compute surface.
// A zero NetTonnage means tonnage was not supplied.
type EstimateContext struct {
	PortCode         string          `json:"port_code"`
	ArrivalDate      time.Time       `json:"arrival_date"`
	ArrivalType      ArrivalType     `json:"arrival_type,omitempty"`
	PreviousPortCode string          `json:"previous_port_code,omitempty"`
	NetTonnage       decimal.Decimal `json:"net_tonnage"`
	YTDCBPPaid       decimal.Decimal `json:"ytd_cbp_paid"`
	TonnageYearPaid  decimal.Decimal `json:"tonnage_year_paid"`
	IsBallasted      bool            `json:"is_ballasted"`
}

// ResolvedArrivalType is the arrival type Compute prices with.
func (c EstimateContext) ResolvedArrivalType() ArrivalType {
	return InferArrivalType(c.PreviousPortCode, c.ArrivalType)
}

// Range is an estimated (low, high) band.
type Range struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// FeeCalculation is one itemized charge. FinalAmount already reflects every
// multiplier and cap and is the figure summed into totals.
type FeeCalculation struct {
	Code           string
	Name           string
	BaseAmount     decimal.Decimal
	Multipliers    map[string]decimal.Decimal
	FinalAmount    decimal.Decimal
	Confidence     decimal.Decimal
	Details        string
	IsOptional     bool
	EstimatedRange *Range
	ManualEntry    bool

	// Source is "database", "fallback", "registry" or "formula".
	Source string
	// Facts are the structured inputs behind Details, used by Compute line items.
	Facts map[string]any
}

// LineItem is one entry of the simple Compute surface.
type LineItem struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Details map[string]any  `json:"details"`
}

// Calculation sources.
const (
	SourceDatabase = "database"
	SourceFallback = "fallback"
	SourceRegistry = "registry"
	SourceFormula  = "formula"
)
