package pilotage

import (
	"strings"
)

// Component is the tariff component a leg is priced against.
type Component string

const (
	ComponentBar   Component = "bar"
	ComponentBay   Component = "bay"
	ComponentRiver Component = "river"
)

// PricingModel selects how a zone's job is priced.
type PricingModel int

const (
	// ModelLegTable prices each leg from the bar/bay/river components.
	ModelLegTable PricingModel = iota
	// ModelMillRate prices the whole job from gross tonnage and draft.
	ModelMillRate
)

// ZoneProfile is the per-zone classification vocabulary and default job shape.
type ZoneProfile struct {
	Name        string
	Keywords    map[string]Component
	DefaultLegs []string
	Model       PricingModel
}

var bayAreaKeywords = map[string]Component{
	"bar":           ComponentBar,
	"bar_crossing":  ComponentBar,
	"bar_transit":   ComponentBar,
	"sea_buoy":      ComponentBar,
	"golden_gate":   ComponentBar,
	"bay":           ComponentBay,
	"bay_transit":   ComponentBay,
	"harbor":        ComponentBay,
	"river":         ComponentRiver,
	"river_transit": ComponentRiver,
	"delta":         ComponentRiver,
}

var (
	bayAreaProfile = ZoneProfile{
		Name:        "bay_area",
		Keywords:    bayAreaKeywords,
		DefaultLegs: []string{"bar", "bay", "river"},
		Model:       ModelLegTable,
	}
	barPilotsProfile = ZoneProfile{
		Name:        "bar_pilots",
		Keywords:    bayAreaKeywords,
		DefaultLegs: []string{"bar", "bay"},
		Model:       ModelMillRate,
	}
	soundProfile = ZoneProfile{
		Name: "sound",
		Keywords: map[string]Component{
			"harbor":                ComponentBar,
			"harbor_move":           ComponentBar,
			"harbor_shift":          ComponentBar,
			"inter_harbor":          ComponentBay,
			"interharbor":           ComponentBay,
			"inter_harbor_transfer": ComponentBay,
			"canal":                 ComponentRiver,
			"river":                 ComponentRiver,
			"river_transit":         ComponentRiver,
		},
		DefaultLegs: []string{"harbor", "inter_harbor"},
		Model:       ModelLegTable,
	}
	riverProfile = ZoneProfile{
		Name: "river",
		Keywords: map[string]Component{
			"bar":           ComponentBar,
			"bar_crossing":  ComponentBar,
			"bar_transit":   ComponentBar,
			"river":         ComponentRiver,
			"river_transit": ComponentRiver,
			"willamette":    ComponentRiver,
			"columbia":      ComponentRiver,
		},
		DefaultLegs: []string{"bar", "river"},
		Model:       ModelLegTable,
	}
	defaultProfile = ZoneProfile{
		Name: "default",
		Keywords: map[string]Component{
			"bar":   ComponentBar,
			"bay":   ComponentBay,
			"river": ComponentRiver,
		},
		DefaultLegs: []string{"bar", "bay", "river"},
		Model:       ModelLegTable,
	}
)

var zoneProfiles = map[string]ZoneProfile{
	"NORCAL":   bayAreaProfile,
	"SFBAY":    bayAreaProfile,
	"SFBAR":    barPilotsProfile,
	"PUGET":    soundProfile,
	"COLUMBIA": riverProfile,
	"OREGON":   riverProfile,
}

// ProfileFor returns the profile for a zone code, or the default profile.
func ProfileFor(zone string) ZoneProfile {
	if p, ok := zoneProfiles[strings.ToUpper(strings.TrimSpace(zone))]; ok {
		return p
	}
	return defaultProfile
}

// NormalizeLegType lower-cases a leg label and joins its words with underscores,
// treating "-" and "/" as word breaks.
func NormalizeLegType(legType string) string {
	txt := strings.ToLower(strings.TrimSpace(legType))
	txt = strings.NewReplacer("-", " ", "/", " ").Replace(txt)
	return strings.Join(strings.Fields(txt), "_")
}

// Classify maps a leg label to a component for zone. It returns an empty
// component when nothing matches, along with the normalized label.
func Classify(zone, legType string) (Component, string) {
	key := NormalizeLegType(legType)
	if c, ok := ProfileFor(zone).Keywords[key]; ok {
		return c, key
	}
	switch {
	case strings.Contains(key, "bar"):
		return ComponentBar, key
	case strings.Contains(key, "bay"), strings.Contains(key, "harbor"):
		return ComponentBay, key
	case strings.Contains(key, "river"), strings.Contains(key, "delta"), strings.Contains(key, "canal"):
		return ComponentRiver, key
	}
	return "", key
}

// DefaultLegs builds the zone's default movement sequence, numbered from 1.
func DefaultLegs(zone string) []MovementLeg {
	names := ProfileFor(zone).DefaultLegs
	legs := make([]MovementLeg, len(names))
	for i, name := range names {
		legs[i] = MovementLeg{Sequence: i + 1, LegType: name}
	}
	return legs
}
