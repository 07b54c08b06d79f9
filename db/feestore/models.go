package feestore

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// CapPeriod is the accumulation window of a fee cap.
type CapPeriod string

const (
	CapCalendarYear CapPeriod = "calendar_year"
	CapTonnageYear  CapPeriod = "tonnage_year"
	CapNone         CapPeriod = "none"
)

// ParseCapPeriod maps free-text cap periods onto the closed set; unknown values are CapNone.
func ParseCapPeriod(s string) CapPeriod {
	switch CapPeriod(strings.ToLower(strings.TrimSpace(s))) {
	case CapCalendarYear:
		return CapCalendarYear
	case CapTonnageYear:
		return CapTonnageYear
	default:
		return CapNone
	}
}

// Zone is a pilotage/port zone grouping ports.
type Zone struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Region       string `json:"region,omitempty"`
	PrimaryState string `json:"primary_state,omitempty"`
	Country      string `json:"country"`
}

// Port is read-only reference data keyed by code.
type Port struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country"`
	Region       string `json:"region,omitempty"`
	ZoneCode     string `json:"zone_code,omitempty"`
	IsCalifornia bool   `json:"is_california"`
	IsCascadia   bool   `json:"is_cascadia"`
}

// Fee is one versioned, optionally scoped fee row. Codes are not unique.
type Fee struct {
	ID              string              `json:"id"`
	Code            string              `json:"code"`
	Name            string              `json:"name"`
	Scope           string              `json:"scope"`
	Unit            string              `json:"unit"`
	Rate            decimal.Decimal     `json:"rate"`
	Currency        string              `json:"currency"`
	CapAmount       decimal.NullDecimal `json:"cap_amount"`
	CapPeriod       CapPeriod           `json:"cap_period"`
	AppliesState    string              `json:"applies_state,omitempty"`
	AppliesPortCode string              `json:"applies_port_code,omitempty"`
	AppliesCascadia *bool               `json:"applies_cascadia,omitempty"`
	EffectiveStart  time.Time           `json:"effective_start"`
	EffectiveEnd    *time.Time          `json:"effective_end,omitempty"`
	SourceURL       string              `json:"source_url,omitempty"`
}

// ActiveOn reports whether the effective window covers day.
func (f *Fee) ActiveOn(day time.Time) bool {
	day = Day(day)
	if f.EffectiveStart.After(day) {
		return false
	}
	return f.EffectiveEnd == nil || !f.EffectiveEnd.Before(day)
}

// MatchesPort applies the optional port/state/cascadia scoping. A nil port matches every row.
func (f *Fee) MatchesPort(p *Port) bool {
	if p == nil {
		return true
	}
	if f.AppliesPortCode != "" && f.AppliesPortCode != p.Code {
		return false
	}
	if f.AppliesState != "" && f.AppliesState != p.State {
		return false
	}
	if f.AppliesCascadia != nil && *f.AppliesCascadia != p.IsCascadia {
		return false
	}
	return true
}

// HasCap reports whether the row carries a cap amount.
func (f *Fee) HasCap() bool { return f.CapAmount.Valid }

// ContractAdjustment is a per-profile multiplier/offset on one fee code.
type ContractAdjustment struct {
	ID             string              `json:"id"`
	Profile        string              `json:"profile"`
	FeeCode        string              `json:"fee_code"`
	PortCode       string              `json:"port_code,omitempty"`
	Multiplier     decimal.Decimal     `json:"multiplier"`
	FixedOffset    decimal.NullDecimal `json:"fixed_offset"`
	EffectiveStart time.Time           `json:"effective_start"`
	EffectiveEnd   *time.Time          `json:"effective_end,omitempty"`
	Notes          string              `json:"notes,omitempty"`
}

// ActiveOn reports whether the adjustment window covers day.
func (c *ContractAdjustment) ActiveOn(day time.Time) bool {
	day = Day(day)
	if c.EffectiveStart.After(day) {
		return false
	}
	return c.EffectiveEnd == nil || !c.EffectiveEnd.Before(day)
}

// VesselTypeConfig drives the tug count for a vessel type:
// min(MaxTugs, BaseTugs + floor(GT / TugGRTStep)).
type VesselTypeConfig struct {
	VesselType string          `json:"vessel_type"`
	BaseTugs   int             `json:"base_tugs"`
	TugGRTStep decimal.Decimal `json:"tug_grt_step"`
	MaxTugs    int             `json:"max_tugs"`
}

// TugsFor applies the config to a gross tonnage.
func (v *VesselTypeConfig) TugsFor(grossTonnage decimal.Decimal) int {
	tugs := v.BaseTugs
	if v.TugGRTStep.IsPositive() {
		tugs += int(grossTonnage.Div(v.TugGRTStep).Floor().IntPart())
	}
	if v.MaxTugs > 0 && tugs > v.MaxTugs {
		tugs = v.MaxTugs
	}
	if tugs < 1 {
		tugs = 1
	}
	return tugs
}

// Terminal is a berth operator within a port.
type Terminal struct {
	Code         string `json:"code"`
	PortCode     string `json:"port_code"`
	Name         string `json:"name"`
	OperatorName string `json:"operator_name,omitempty"`
	IsPublic     bool   `json:"is_public"`
	Notes        string `json:"notes,omitempty"`
}

// AllUSDocuments is the PortDocument scope that applies at every US port.
const AllUSDocuments = "ALL_US"

// PortDocument is a pre-arrival filing required at a port, a zone or every
// US port. An empty VesselTypes applies to every vessel type.
type PortDocument struct {
	ID               string   `json:"id"`
	PortCode         string   `json:"port_code"`
	DocumentName     string   `json:"document_name"`
	DocumentCode     string   `json:"document_code,omitempty"`
	IsMandatory      bool     `json:"is_mandatory"`
	LeadTimeHours    int      `json:"lead_time_hours"`
	Authority        string   `json:"authority,omitempty"`
	Description      string   `json:"description,omitempty"`
	VesselTypes      []string `json:"applies_to_vessel_types,omitempty"`
	AppliesIfForeign bool     `json:"applies_if_foreign"`
}

// AppliesTo reports whether the document covers vesselType. A blank vessel
// type only matches unrestricted documents.
func (d *PortDocument) AppliesTo(vesselType string) bool {
	if len(d.VesselTypes) == 0 {
		return true
	}
	vt := strings.ToLower(strings.TrimSpace(vesselType))
	for _, t := range d.VesselTypes {
		if vt != "" && strings.ToLower(t) == vt {
			return true
		}
	}
	return false
}

// splitVesselTypes parses the comma-separated vessel type column.
func splitVesselTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(s))
}

// dateValue scans DATE columns from either driver: lib/pq yields time.Time,
// SQLite may yield text.
type dateValue struct {
	Time  time.Time
	Valid bool
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = Day(v), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
}

func (d *dateValue) parse(s string) error {
	s = strings.TrimSpace(s)
	if len(s) >= len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time, d.Valid = t, true
	return nil
}

func (d dateValue) ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// dateParam renders a date for either driver.
func dateParam(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}
