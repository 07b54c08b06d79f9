package advisory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legs() []Leg {
	return []Leg{
		{Leg: 1, Mandatory: decimal.NewFromInt(12000), Confidence: decimal.RequireFromString("0.9"), ArrivalType: "FOREIGN", Weekend: true},
		{Leg: 2, Mandatory: decimal.NewFromInt(18000), Confidence: decimal.RequireFromString("0.9"), ArrivalType: "FOREIGN"},
		{Leg: 3, Mandatory: decimal.NewFromInt(15000), Confidence: decimal.RequireFromString("0.6"), ArrivalType: "COASTWISE", Weekend: true, Holiday: true},
	}
}

func TestDefaultPoliciesInOrder(t *testing.T) {
	r := NewEngine().Evaluate(legs())

	assert.Equal(t, DecisionWarn, r.Decision)
	assert.Equal(t, 5, r.PoliciesRan)
	require.Equal(t, []string{
		"Avoid 2 weekend arrivals to reduce pilotage/port overtime charges.",
		"Consider alternatives or scheduling changes for 1 high-fee legs.",
		"Consider inserting a qualifying U.S. stop to utilize coastwise rates.",
		"1 arrivals fall on holidays; expect holiday pilotage multipliers.",
		"1 legs were priced with confidence below 70%; verify with local agents.",
	}, r.Suggestions())

	assert.Equal(t, []int{1, 3}, r.Advisories[0].Legs)
	assert.Equal(t, []int{2}, r.Advisories[1].Legs, "threshold is exclusive")
}

func TestQuietVoyagePasses(t *testing.T) {
	r := NewEngine().Evaluate([]Leg{
		{Leg: 1, Mandatory: decimal.NewFromInt(9000), ArrivalType: "FOREIGN", ETA: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)},
		{Leg: 2, Mandatory: decimal.NewFromInt(9000), ArrivalType: "COASTWISE"},
	})
	assert.Equal(t, DecisionPass, r.Decision)
	assert.Empty(t, r.Suggestions())
}

func TestInfoOnlyDoesNotWarn(t *testing.T) {
	r := NewEngine().Evaluate([]Leg{
		{Leg: 1, Mandatory: decimal.NewFromInt(100), ArrivalType: "FOREIGN"},
		{Leg: 2, Mandatory: decimal.NewFromInt(100), ArrivalType: "FOREIGN"},
	})
	assert.Equal(t, DecisionPass, r.Decision)
	require.Len(t, r.Advisories, 1)
	assert.Equal(t, SeverityInfo, r.Advisories[0].Severity)
}

func TestConfigurablePolicies(t *testing.T) {
	policies := DefaultPolicies()
	policies[0].Enabled = false
	policies[1].Threshold = decimal.NewFromInt(10000)

	e := NewEngineWithPolicies(policies)
	r := e.Evaluate(legs())
	assert.Equal(t, 4, r.PoliciesRan)
	assert.Equal(t, "Consider alternatives or scheduling changes for 3 high-fee legs.", r.Suggestions()[0])
	assert.Len(t, e.Policies(), 5)
}
