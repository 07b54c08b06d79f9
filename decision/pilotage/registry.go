// Package pilotage resolves versioned per-zone pilotage rates and prices
// pilot movement legs against them.
package pilotage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// BarRates prices the bar crossing component.
type BarRates struct {
	BaseFee         decimal.Decimal `json:"base_fee"`
	PerFootRate     decimal.Decimal `json:"per_foot_rate"`
	DraftMultiplier decimal.Decimal `json:"draft_multiplier"`
	MinTotal        decimal.Decimal `json:"min_total"`
	MaxTotal        decimal.Decimal `json:"max_total"`
}

// ComponentRates prices the bay and river components.
type ComponentRates struct {
	PerFootRate decimal.Decimal `json:"per_foot_rate"`
	Minimum     decimal.Decimal `json:"minimum"`
}

// Surcharges are applied at most once per job.
type Surcharges struct {
	WeekendMultiplier decimal.Decimal `json:"weekend_multiplier"`
	HolidayMultiplier decimal.Decimal `json:"holiday_multiplier"`
	NightFlat         decimal.Decimal `json:"night_flat"`
}

// Extra is a named flat add-on fee such as transportation.
type Extra struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// MillRateTable carries the tonnage-based tariff for mill-rate zones.
type MillRateTable struct {
	MillRate            decimal.Decimal `json:"mill_rate"`
	PensionMillRate     decimal.Decimal `json:"pension_mill_rate"`
	PilotBoatSurcharge  decimal.Decimal `json:"pilot_boat_surcharge"`
	BoardOpsPercent     decimal.Decimal `json:"board_ops_percent"`
	ContinuingEducation decimal.Decimal `json:"continuing_education"`
	Trainee             decimal.Decimal `json:"trainee"`
	Minimum             decimal.Decimal `json:"minimum"`
}

// RateEntry is one normalized registry version for a zone.
type RateEntry struct {
	Zone       string         `json:"zone"`
	Effective  time.Time      `json:"effective"`
	Bar        BarRates       `json:"bar"`
	Bay        ComponentRates `json:"bay"`
	River      ComponentRates `json:"river"`
	Surcharges Surcharges     `json:"surcharges"`
	Extras     []Extra        `json:"extras"`
	MillRate   *MillRateTable `json:"mill_rate,omitempty"`
}

// Registry is a parsed rates document: zone code to raw versions. Versions
// are validated and normalized on every lookup so a broken version is
// reported even when a newer one exists.
type Registry struct {
	source string
	zones  map[string][]map[string]any
}

// ParseRegistry decodes a registry document. Zone keys are upper-cased.
func ParseRegistry(data []byte, source string) (*Registry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string][]map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("rates registry %s must be a mapping of port zone to versions: %w", source, err)
	}

	zones := make(map[string][]map[string]any, len(raw))
	for zone, versions := range raw {
		key := strings.ToUpper(strings.TrimSpace(zone))
		zones[key] = append(zones[key], versions...)
	}
	return &Registry{source: source, zones: zones}, nil
}

// Source is where the registry was loaded from.
func (r *Registry) Source() string { return r.source }

// Zones lists configured zone codes in sorted order.
func (r *Registry) Zones() []string {
	out := make([]string, 0, len(r.zones))
	for z := range r.zones {
		out = append(out, z)
	}
	sort.Strings(out)
	return out
}

// LoadRates returns the version of zone with the latest effective date on or before asOf.
func (r *Registry) LoadRates(zone string, asOf time.Time) (*RateEntry, error) {
	zone = strings.ToUpper(strings.TrimSpace(zone))
	if zone == "" {
		return nil, &UnknownZoneError{}
	}

	versions := r.zones[zone]
	if len(versions) == 0 {
		return nil, &UnknownZoneError{Zone: zone}
	}

	day := truncateDay(asOf)
	var selected *RateEntry
	for _, raw := range versions {
		entry, err := normalizeVersion(zone, raw)
		if err != nil {
			return nil, err
		}
		if entry.Effective.After(day) {
			continue
		}
		if selected == nil || entry.Effective.After(selected.Effective) {
			selected = entry
		}
	}

	if selected == nil {
		return nil, &NoEffectiveVersionError{Zone: zone, AsOf: day}
	}
	return selected, nil
}

var (
	versionKeys   = []string{"effective", "bar", "bay", "river", "surcharges", "extras"}
	barKeys       = []string{"base_fee", "per_foot_rate", "draft_multiplier", "min_total", "max_total"}
	componentKeys = []string{"per_foot_rate", "minimum"}
	surchargeKeys = []string{"weekend_multiplier", "holiday_multiplier", "night_flat"}
	millRateKeys  = []string{"mill_rate", "pension_mill_rate", "pilot_boat_surcharge", "board_ops_percent", "continuing_education", "trainee", "minimum"}
)

func normalizeVersion(zone string, raw map[string]any) (*RateEntry, error) {
	for _, k := range versionKeys {
		if _, ok := raw[k]; !ok {
			return nil, &MissingRateFieldError{Path: zone + "." + k}
		}
	}

	bar, err := section(zone, raw, "bar", barKeys)
	if err != nil {
		return nil, err
	}
	bay, err := section(zone, raw, "bay", componentKeys)
	if err != nil {
		return nil, err
	}
	river, err := section(zone, raw, "river", componentKeys)
	if err != nil {
		return nil, err
	}
	sur, err := section(zone, raw, "surcharges", surchargeKeys)
	if err != nil {
		return nil, err
	}

	extrasRaw, ok := raw["extras"].(map[string]any)
	if !ok {
		return nil, &MissingRateFieldError{Path: zone + ".extras"}
	}
	extras := make([]Extra, 0, len(extrasRaw))
	for code, v := range extrasRaw {
		amt, err := toDecimal(v)
		if err != nil {
			return nil, &InvalidRateFieldError{Path: zone + ".extras." + code, Err: err}
		}
		extras = append(extras, Extra{Code: code, Amount: amt})
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i].Code < extras[j].Code })

	effective, err := parseEffective(raw["effective"])
	if err != nil {
		return nil, &InvalidRateFieldError{Path: zone + ".effective", Err: err}
	}

	entry := &RateEntry{
		Zone:      zone,
		Effective: effective,
		Bar: BarRates{
			BaseFee:         bar["base_fee"],
			PerFootRate:     bar["per_foot_rate"],
			DraftMultiplier: bar["draft_multiplier"],
			MinTotal:        bar["min_total"],
			MaxTotal:        bar["max_total"],
		},
		Bay:   ComponentRates{PerFootRate: bay["per_foot_rate"], Minimum: bay["minimum"]},
		River: ComponentRates{PerFootRate: river["per_foot_rate"], Minimum: river["minimum"]},
		Surcharges: Surcharges{
			WeekendMultiplier: sur["weekend_multiplier"],
			HolidayMultiplier: sur["holiday_multiplier"],
			NightFlat:         sur["night_flat"],
		},
		Extras: extras,
	}

	if ProfileFor(zone).Model == ModelMillRate {
		if _, ok := raw["mill_rate"]; !ok {
			return nil, &MissingRateFieldError{Path: zone + ".mill_rate"}
		}
		mr, err := section(zone, raw, "mill_rate", millRateKeys)
		if err != nil {
			return nil, err
		}
		entry.MillRate = &MillRateTable{
			MillRate:            mr["mill_rate"],
			PensionMillRate:     mr["pension_mill_rate"],
			PilotBoatSurcharge:  mr["pilot_boat_surcharge"],
			BoardOpsPercent:     mr["board_ops_percent"],
			ContinuingEducation: mr["continuing_education"],
			Trainee:             mr["trainee"],
			Minimum:             mr["minimum"],
		}
	}

	return entry, nil
}

func section(zone string, raw map[string]any, name string, keys []string) (map[string]decimal.Decimal, error) {
	m, ok := raw[name].(map[string]any)
	if !ok {
		return nil, &MissingRateFieldError{Path: zone + "." + name}
	}
	out := make(map[string]decimal.Decimal, len(keys))
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			return nil, &MissingRateFieldError{Path: zone + "." + name + "." + k}
		}
		d, err := toDecimal(v)
		if err != nil {
			return nil, &InvalidRateFieldError{Path: zone + "." + name + "." + k, Err: err}
		}
		out[k] = d
	}
	return out, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported value %v", v)
	}
}

func parseEffective(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("effective must be a YYYY-MM-DD string")
	}
	return time.Parse(dateLayout, strings.TrimSpace(s))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
