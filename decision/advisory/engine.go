// Package advisory provides the voyage optimisation rule engine.
// It evaluates scheduling policies against the priced legs of a voyage.
package advisory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PolicyType defines the rule a policy runs
type PolicyType string

const (
	PolicyTypeWeekendArrivals PolicyType = "weekend_arrivals"
	PolicyTypeHighFeeLegs     PolicyType = "high_fee_legs"
	PolicyTypeForeignLegs     PolicyType = "foreign_legs"
	PolicyTypeHolidayArrivals PolicyType = "holiday_arrivals"
	PolicyTypeLowConfidence   PolicyType = "low_confidence"
)

// Severity defines advisory severity
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Decision is the evaluation outcome
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
)

// Policy defines one optimisation rule
type Policy struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        PolicyType      `json:"type"`
	Severity    Severity        `json:"severity"`
	Threshold   decimal.Decimal `json:"threshold"`
	Enabled     bool            `json:"enabled"`
}

// Leg is the priced summary of one voyage leg.
type Leg struct {
	Leg         int
	From        string
	To          string
	ETA         time.Time
	Mandatory   decimal.Decimal
	Confidence  decimal.Decimal
	ArrivalType string
	Weekend     bool
	Holiday     bool
}

// Advisory is one triggered rule
type Advisory struct {
	PolicyID string   `json:"policy_id"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
	Legs     []int    `json:"legs"`
}

// Result contains the evaluation outcome
type Result struct {
	Decision    Decision   `json:"decision"`
	Advisories  []Advisory `json:"advisories"`
	PoliciesRan int        `json:"policies_ran"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}

// Suggestions returns the advisory messages in rule order.
func (r *Result) Suggestions() []string {
	out := make([]string, 0, len(r.Advisories))
	for _, a := range r.Advisories {
		out = append(out, a.Message)
	}
	return out
}

// Engine evaluates policies against voyage legs
type Engine struct {
	policies []Policy
}

// NewEngine creates an engine with the default policies
func NewEngine() *Engine {
	return &Engine{policies: DefaultPolicies()}
}

// NewEngineWithPolicies creates an engine with an explicit policy list.
func NewEngineWithPolicies(policies []Policy) *Engine {
	return &Engine{policies: policies}
}

// AddPolicy appends a policy; it runs after the existing ones.
func (e *Engine) AddPolicy(p Policy) {
	e.policies = append(e.policies, p)
}

// Policies returns the configured policies in evaluation order.
func (e *Engine) Policies() []Policy {
	return append([]Policy(nil), e.policies...)
}

// Evaluate runs every enabled policy in order.
func (e *Engine) Evaluate(legs []Leg) *Result {
	result := &Result{
		Decision:    DecisionPass,
		Advisories:  make([]Advisory, 0),
		EvaluatedAt: time.Now().UTC(),
	}

	for _, p := range e.policies {
		if !p.Enabled {
			continue
		}
		result.PoliciesRan++

		adv := evaluatePolicy(p, legs)
		if adv == nil {
			continue
		}
		result.Advisories = append(result.Advisories, *adv)
		if adv.Severity == SeverityWarning {
			result.Decision = DecisionWarn
		}
	}
	return result
}

func matching(legs []Leg, pred func(Leg) bool) []int {
	var out []int
	for _, l := range legs {
		if pred(l) {
			out = append(out, l.Leg)
		}
	}
	return out
}

func evaluatePolicy(p Policy, legs []Leg) *Advisory {
	var hits []int
	var msg string

	switch p.Type {
	case PolicyTypeWeekendArrivals:
		hits = matching(legs, func(l Leg) bool { return l.Weekend })
		msg = fmt.Sprintf("Avoid %d weekend arrivals to reduce pilotage/port overtime charges.", len(hits))

	case PolicyTypeHighFeeLegs:
		hits = matching(legs, func(l Leg) bool { return l.Mandatory.GreaterThan(p.Threshold) })
		msg = fmt.Sprintf("Consider alternatives or scheduling changes for %d high-fee legs.", len(hits))

	case PolicyTypeForeignLegs:
		hits = matching(legs, func(l Leg) bool { return l.ArrivalType == "FOREIGN" })
		if decimal.NewFromInt(int64(len(hits))).LessThanOrEqual(p.Threshold) {
			return nil
		}
		msg = "Consider inserting a qualifying U.S. stop to utilize coastwise rates."

	case PolicyTypeHolidayArrivals:
		hits = matching(legs, func(l Leg) bool { return l.Holiday })
		msg = fmt.Sprintf("%d arrivals fall on holidays; expect holiday pilotage multipliers.", len(hits))

	case PolicyTypeLowConfidence:
		hits = matching(legs, func(l Leg) bool { return !l.Confidence.IsZero() && l.Confidence.LessThan(p.Threshold) })
		msg = fmt.Sprintf("%d legs were priced with confidence below %s%%; verify with local agents.",
			len(hits), p.Threshold.Mul(decimal.NewFromInt(100)).StringFixed(0))
	}

	if len(hits) == 0 {
		return nil
	}
	return &Advisory{
		PolicyID: p.ID,
		Message:  msg,
		Severity: p.Severity,
		Count:    len(hits),
		Legs:     hits,
	}
}

// DefaultPolicies are the built-in rules in their fixed order.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			ID:          "weekend-arrivals",
			Name:        "Weekend Arrivals",
			Description: "Flag arrivals on Saturday or Sunday",
			Type:        PolicyTypeWeekendArrivals,
			Severity:    SeverityWarning,
			Enabled:     true,
		},
		{
			ID:          "high-fee-legs",
			Name:        "High Fee Legs",
			Description: "Flag legs whose mandatory fees exceed $15,000",
			Type:        PolicyTypeHighFeeLegs,
			Severity:    SeverityWarning,
			Threshold:   decimal.NewFromInt(15000),
			Enabled:     true,
		},
		{
			ID:          "foreign-legs",
			Name:        "Foreign Legs",
			Description: "Suggest a coastwise stop when more than one leg arrives from abroad",
			Type:        PolicyTypeForeignLegs,
			Severity:    SeverityInfo,
			Threshold:   decimal.NewFromInt(1),
			Enabled:     true,
		},
		{
			ID:          "holiday-arrivals",
			Name:        "Holiday Arrivals",
			Description: "Flag arrivals on federal, state or fixed holidays",
			Type:        PolicyTypeHolidayArrivals,
			Severity:    SeverityWarning,
			Enabled:     true,
		},
		{
			ID:          "low-confidence",
			Name:        "Minimum Confidence",
			Description: "Warn when a leg is priced below 70% confidence",
			Type:        PolicyTypeLowConfidence,
			Severity:    SeverityInfo,
			Threshold:   decimal.RequireFromString("0.70"),
			Enabled:     true,
		},
	}
}
