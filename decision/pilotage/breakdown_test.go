package pilotage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testRates() *RateEntry {
	return &RateEntry{
		Zone:      "NORCAL",
		Effective: date(2024, 1, 1),
		Bar: BarRates{
			BaseFee: d("1000"), PerFootRate: d("5"), DraftMultiplier: d("1.1"),
			MinTotal: d("3000"), MaxTotal: d("15000"),
		},
		Bay:   ComponentRates{PerFootRate: d("2"), Minimum: d("500")},
		River: ComponentRates{PerFootRate: d("1"), Minimum: d("300")},
		Surcharges: Surcharges{
			WeekendMultiplier: d("1.5"), HolidayMultiplier: d("2.0"), NightFlat: d("400"),
		},
		Extras: []Extra{{Code: "transportation", Amount: d("200")}},
	}
}

// Saturday 2025-03-15 10:00
var saturdayMorning = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func sumLegs(b *Breakdown) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range b.Legs {
		sum = sum.Add(l.Total)
	}
	return sum
}

func TestComponentAmounts(t *testing.T) {
	c := ComponentAmounts(testRates(), d("500"))
	assert.Equal(t, "3850.00", c[ComponentBar].StringFixed(2))
	assert.Equal(t, "1000.00", c[ComponentBay].StringFixed(2))
	assert.Equal(t, "500.00", c[ComponentRiver].StringFixed(2))

	c = ComponentAmounts(testRates(), d("100"))
	assert.Equal(t, "500.00", c[ComponentBay].StringFixed(2), "bay minimum")
	assert.Equal(t, "300.00", c[ComponentRiver].StringFixed(2), "river minimum")
}

func TestSurchargeAndExtrasAppliedOnce(t *testing.T) {
	b := BuildBreakdown(Job{
		Zone:    "NORCAL",
		Rates:   testRates(),
		LOAFeet: d("500"),
		ETA:     saturdayMorning,
		Weekend: true,
		Legs: []MovementLeg{
			{Sequence: 2, LegType: "Bay Transit"},
			{Sequence: 1, LegType: "bar-crossing"},
			{Sequence: 3, LegType: "bar transit"},
			{Sequence: 4, LegType: "anchorage"},
		},
	})

	require.Len(t, b.Legs, 4)
	first := b.Legs[0]
	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, ComponentBar, first.Classification)
	require.Len(t, first.Surcharges, 1)
	assert.Equal(t, "weekend", first.Surcharges[0].Code)
	assert.Equal(t, "1925.00", first.Surcharges[0].Amount.StringFixed(2))
	require.Len(t, first.Extras, 1)
	assert.Equal(t, "transportation", first.Extras[0].Code)
	assert.Equal(t, "5975.00", first.Total.StringFixed(2))

	assert.Equal(t, ComponentBay, b.Legs[1].Classification)
	assert.Equal(t, "1000.00", b.Legs[1].Total.StringFixed(2))

	third := b.Legs[2]
	assert.Equal(t, ComponentBar, third.Classification)
	assert.Empty(t, third.Surcharges)
	assert.Empty(t, third.Extras)
	assert.Equal(t, "3850.00", third.Total.StringFixed(2))

	assert.Equal(t, Component(""), b.Legs[3].Classification)
	assert.True(t, b.Legs[3].Total.IsZero())

	assert.Equal(t, "10825.00", b.JobTotal.StringFixed(2))
	assert.True(t, b.JobTotal.Equal(sumLegs(b)))
	assert.Equal(t, "1.50", b.Audit.AppliedMultiplier.StringFixed(2))
	assert.Equal(t, "weekend", b.Audit.AppliedMultiplierCode)
	assert.Equal(t, []string{"transportation"}, b.Audit.ExtrasApplied)
}

func TestLargerMultiplierWinsWithoutStacking(t *testing.T) {
	job := Job{
		Zone:    "NORCAL",
		Rates:   testRates(),
		LOAFeet: d("500"),
		ETA:     saturdayMorning,
		Weekend: true,
		Holiday: true,
		Legs:    []MovementLeg{{Sequence: 1, LegType: "bar"}},
	}
	b := BuildBreakdown(job)
	assert.Equal(t, "holiday", b.Audit.AppliedMultiplierCode)
	assert.Equal(t, "2.00", b.Audit.AppliedMultiplier.StringFixed(2))
	// 3850 + 3850 surcharge + 200 transportation
	assert.Equal(t, "7900.00", b.JobTotal.StringFixed(2))

	rates := testRates()
	rates.Surcharges.WeekendMultiplier = d("2.5")
	job.Rates = rates
	b = BuildBreakdown(job)
	assert.Equal(t, "weekend", b.Audit.AppliedMultiplierCode)
	assert.Equal(t, "2.50", b.Audit.AppliedMultiplier.StringFixed(2))
	assert.Equal(t, "9825.00", b.JobTotal.StringFixed(2))
}

func TestFractionalMultiplierStaysExact(t *testing.T) {
	rates := testRates()
	rates.Surcharges.WeekendMultiplier = d("1.125")
	b := BuildBreakdown(Job{
		Zone:    "NORCAL",
		Rates:   rates,
		LOAFeet: d("500"),
		ETA:     saturdayMorning,
		Weekend: true,
		Legs:    []MovementLeg{{Sequence: 1, LegType: "bar"}},
	})
	assert.Equal(t, "1.125", b.Audit.AppliedMultiplier.String())
	require.Len(t, b.Legs[0].Surcharges, 1)
	assert.Equal(t, "1.125", b.Legs[0].Surcharges[0].Multiplier.String())
	// 3850 × 0.125
	assert.Equal(t, "481.25", b.Legs[0].Surcharges[0].Amount.StringFixed(2))

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "1.125", out["audit"].(map[string]any)["applied_multiplier"])
	leg := out["legs"].([]any)[0].(map[string]any)
	assert.Equal(t, "1.125", leg["surcharges"].([]any)[0].(map[string]any)["multiplier"])
}

func TestNightFlatOnFirstPricedLeg(t *testing.T) {
	// Tuesday 19:30
	eta := time.Date(2025, 3, 18, 19, 30, 0, 0, time.UTC)
	b := BuildBreakdown(Job{
		Zone:    "NORCAL",
		Rates:   testRates(),
		LOAFeet: d("500"),
		ETA:     eta,
		Legs: []MovementLeg{
			{Sequence: 1, LegType: "anchorage"},
			{Sequence: 2, LegType: "bar"},
			{Sequence: 3, LegType: "bay"},
		},
	})

	assert.Empty(t, b.Legs[0].Extras)
	require.Len(t, b.Legs[1].Extras, 2)
	assert.Equal(t, "night", b.Legs[1].Extras[1].Code)
	assert.Equal(t, "4450.00", b.Legs[1].Total.StringFixed(2))
	assert.Empty(t, b.Legs[2].Extras)
	assert.Equal(t, "5450.00", b.JobTotal.StringFixed(2))
	assert.Equal(t, "", b.Audit.AppliedMultiplierCode)
}

func TestDefaultLegsWhenNoneSupplied(t *testing.T) {
	b := BuildBreakdown(Job{Zone: "NORCAL", Rates: testRates(), LOAFeet: d("500"), ETA: time.Date(2025, 3, 18, 12, 0, 0, 0, time.UTC)})
	require.Len(t, b.Legs, 3)
	assert.Equal(t, "bar", b.Legs[0].LegType)
	assert.Equal(t, "river", b.Legs[2].LegType)
	assert.Equal(t, "5550.00", b.JobTotal.StringFixed(2))

	assert.Len(t, DefaultLegs("PUGET"), 2)
	assert.Equal(t, "inter_harbor", DefaultLegs("puget")[1].LegType)
	assert.Len(t, DefaultLegs("OREGON"), 2)
	assert.Len(t, DefaultLegs("SOCAL"), 3)
}

func TestClassifyIsZoneSpecific(t *testing.T) {
	tests := []struct {
		zone, leg string
		want      Component
	}{
		{"NORCAL", "Harbor", ComponentBay},
		{"PUGET", "Harbor", ComponentBar},
		{"PUGET", "inter-harbor transfer", ComponentBay},
		{"PUGET", "Canal", ComponentRiver},
		{"COLUMBIA", "Willamette", ComponentRiver},
		{"SFBAY", "Golden Gate", ComponentBar},
		{"SOCAL", "sea buoy", ""},
		{"SOCAL", "outer bar approach", ComponentBar},
		{"SOCAL", "harbor/shift", ComponentBay},
		{"SOCAL", "Delta run", ComponentRiver},
	}
	for _, tt := range tests {
		got, _ := Classify(tt.zone, tt.leg)
		assert.Equal(t, tt.want, got, "%s %s", tt.zone, tt.leg)
	}
}

func TestNormalizeLegType(t *testing.T) {
	assert.Equal(t, "inter_harbor_transfer", NormalizeLegType("  Inter-Harbor / Transfer "))
	assert.Equal(t, "", NormalizeLegType("   "))
}

func millRates() *RateEntry {
	r := testRates()
	r.Zone = "SFBAR"
	r.Bar.PerFootRate = d("14.90")
	r.MillRate = &MillRateTable{
		MillRate:            d("0.0752"),
		PensionMillRate:     d("0.0121"),
		PilotBoatSurcharge:  d("0.0064"),
		BoardOpsPercent:     d("0.035"),
		ContinuingEducation: d("200"),
		Trainee:             d("150"),
		Minimum:             d("3000"),
	}
	return r
}

func TestMillRateZone(t *testing.T) {
	b := BuildBreakdown(Job{
		Zone:         "SFBAR",
		Rates:        millRates(),
		GrossTonnage: d("50000"),
		DraftFeet:    d("39.37"),
		ETA:          saturdayMorning,
		Weekend:      true,
		Legs:         []MovementLeg{{Sequence: 1, LegType: "river"}},
	})

	require.Len(t, b.Legs, 3)
	assert.Equal(t, "bar_pilotage", b.Legs[0].LegType)
	assert.Equal(t, "5271.61", b.Legs[0].Total.StringFixed(2))
	assert.Equal(t, "board_ops_surcharge", b.Legs[1].LegType)
	assert.Equal(t, "184.51", b.Legs[1].Total.StringFixed(2))
	assert.Equal(t, "flat_surcharges", b.Legs[2].LegType)
	assert.Equal(t, "350.00", b.Legs[2].Total.StringFixed(2))
	assert.Equal(t, "5806.12", b.JobTotal.StringFixed(2))
	assert.Equal(t, "1.00", b.Audit.AppliedMultiplier.StringFixed(2))
	assert.False(t, b.Audit.MinimumApplied)
}

func TestMillRateMinimum(t *testing.T) {
	b := BuildBreakdown(Job{
		Zone:         "SFBAR",
		Rates:        millRates(),
		GrossTonnage: d("10000"),
		DraftFeet:    d("10"),
	})

	assert.True(t, b.Audit.MinimumApplied)
	assert.Equal(t, "3000.00", b.JobTotal.StringFixed(2))
	require.Len(t, b.Legs[0].Surcharges, 1)
	assert.Equal(t, "statutory_minimum", b.Legs[0].Surcharges[0].Code)
	assert.Equal(t, "1525.99", b.Legs[0].Surcharges[0].Amount.StringFixed(2))
	assert.True(t, b.JobTotal.Equal(sumLegs(b)))
}

func TestBreakdownIsDeterministic(t *testing.T) {
	job := Job{Zone: "NORCAL", Rates: testRates(), LOAFeet: d("612.3359"), ETA: saturdayMorning, Weekend: true}
	first, err := json.Marshal(BuildBreakdown(job))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(BuildBreakdown(job))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestBreakdownJSON(t *testing.T) {
	b := BuildBreakdown(Job{
		Zone:    "NORCAL",
		Rates:   testRates(),
		LOAFeet: d("500"),
		ETA:     saturdayMorning,
		Weekend: true,
		Legs: []MovementLeg{
			{Sequence: 1, LegType: "bar", FromLocation: "Sea Buoy"},
			{Sequence: 2, LegType: "anchorage"},
		},
	})
	data, err := json.Marshal(b)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "5975.00", out["job_total"])
	assert.Equal(t, "2024-01-01", out["effective_date"])

	legs := out["legs"].([]any)
	first := legs[0].(map[string]any)
	assert.Equal(t, "3850.00", first["base_charge"])
	assert.Equal(t, "Sea Buoy", first["metadata"].(map[string]any)["from_location"])
	assert.Nil(t, legs[1].(map[string]any)["classification"])

	audit := out["audit"].(map[string]any)
	assert.Equal(t, "1.50", audit["applied_multiplier"])
	assert.Equal(t, "weekend", audit["applied_multiplier_code"])
}

func TestFallbackBreakdown(t *testing.T) {
	b := FallbackBreakdown("GULF", d("8100"), d("12150"), d("0.75"), "formula", "no pilotage rates configured for zone GULF", d("590.55"), d("39.37"))
	require.Len(t, b.Legs, 1)
	assert.Equal(t, "fallback", b.Legs[0].LegType)
	assert.True(t, b.Audit.Fallback)
	assert.Nil(t, b.EffectiveDate)
	assert.Equal(t, "12150.00", b.JobTotal.StringFixed(2))
	assert.Equal(t, "8100.00", b.BaseTotal().StringFixed(2))
}
