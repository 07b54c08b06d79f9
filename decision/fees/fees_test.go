package fees

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portcall-cost/db/feestore"
	"portcall-cost/decision/calendar"
	"portcall-cost/decision/live"
	"portcall-cost/decision/pilotage"
	perrors "portcall-cost/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func boolPtr(b bool) *bool { return &b }

// Wednesday, no holiday.
var midweek = time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)

// Saturday and Independence Day.
var weekendHoliday = time.Date(2026, 7, 4, 8, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *feestore.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := feestore.NewMemoryStore()
	for _, p := range []*feestore.Port{
		{Code: "TSTPT", Name: "Test Harbor", State: "TX", ZoneCode: "TESTZONE"},
		{Code: "TSTCA", Name: "Test California", State: "CA", ZoneCode: "SOCAL", IsCalifornia: true},
		{Code: "TSTWA", Name: "Test Cascadia", State: "WA", ZoneCode: "TESTZONE", IsCascadia: true},
	} {
		require.NoError(t, s.SavePort(ctx, p))
	}
	return s
}

func testEngine(t *testing.T, store feestore.Store, opts ...Option) *Engine {
	t.Helper()
	reg, err := pilotage.OpenRegistry(context.Background(), "")
	require.NoError(t, err)
	base := []Option{
		WithRegistry(reg),
		WithHolidayChecker(calendar.NewChecker(nil, zerolog.Nop())),
	}
	return NewEngine(store, append(base, opts...)...)
}

func testVessel() VesselSpecs {
	return VesselSpecs{
		Name:         "MV Test",
		Type:         VesselContainer,
		GrossTonnage: d("50000"),
		NetTonnage:   d("1000"),
		LOAMeters:    d("200"),
		BeamMeters:   d("32"),
		DraftMeters:  d("12"),
	}
}

func testVoyage(port string, eta time.Time) VoyageContext {
	return VoyageContext{
		PreviousPortCode: "JPTYO",
		ArrivalPortCode:  port,
		ETA:              eta,
		DaysAlongside:    2,
	}
}

func mustCalc(t *testing.T, r *Report, code string) FeeCalculation {
	t.Helper()
	c, ok := r.Calculation(code)
	require.True(t, ok, "missing calculation %s", code)
	return c
}

func TestScenarioForeignArrivalFallbacks(t *testing.T) {
	e := testEngine(t, testStore(t))
	r, err := e.CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTPT", midweek))
	require.NoError(t, err)

	assert.Equal(t, ArrivalForeign, r.Voyage.ArrivalType)

	cbp := mustCalc(t, r, CodeCBP)
	assert.Equal(t, "571.81", cbp.FinalAmount.StringFixed(2))
	assert.Equal(t, SourceFallback, cbp.Source)

	aphis := mustCalc(t, r, CodeAPHIS)
	assert.Equal(t, "2000.00", aphis.FinalAmount.StringFixed(2))
	assert.Equal(t, RiskMedium, aphis.Facts["risk"])

	tonnage := mustCalc(t, r, CodeTonnage)
	assert.Equal(t, "20.00", tonnage.FinalAmount.StringFixed(2))
	assert.Equal(t, "100.00", tonnage.Facts["annual_cap"])

	_, ok := r.Calculation(CodeMISP)
	assert.False(t, ok)

	pilot := mustCalc(t, r, CodePilotage)
	assert.Equal(t, SourceFormula, pilot.Source)
	assert.Equal(t, "9536.74", pilot.FinalAmount.StringFixed(2))
	assert.Equal(t, "0.75", pilot.Confidence.StringFixed(2))
	assert.Empty(t, pilot.Multipliers)

	dock := mustCalc(t, r, CodeDockage)
	assert.Equal(t, "7000.00", dock.FinalAmount.StringFixed(2))

	tug := mustCalc(t, r, CodeTugboat)
	assert.True(t, tug.IsOptional)
	assert.Equal(t, "42480.00", tug.FinalAmount.StringFixed(2))
	assert.Equal(t, "36108.00", tug.EstimatedRange.Low.StringFixed(2))
	assert.Equal(t, "53100.00", tug.EstimatedRange.High.StringFixed(2))

	mx := mustCalc(t, r, CodeMX)
	assert.Equal(t, "250.00", mx.FinalAmount.StringFixed(2))

	assert.Equal(t, "19378.55", r.Totals.Mandatory.StringFixed(2))
	assert.Equal(t, "37108.00", r.Totals.OptionalLow.StringFixed(2))
	assert.Equal(t, "55600.00", r.Totals.OptionalHigh.StringFixed(2))
	assert.Equal(t, "56486.55", r.Totals.TotalLow.StringFixed(2))
	assert.Equal(t, "74978.55", r.Totals.TotalHigh.StringFixed(2))
	assert.Equal(t, "0.905", r.Confidence.String())
	assert.Equal(t, "Estimate accuracy: ±9.5%", r.AccuracyStatement)
	assert.Equal(t, Disclaimer, r.Disclaimer)
	assert.NotEmpty(t, r.Warnings, "fallback pilotage is reported")
}

func TestScenarioCBPCapReached(t *testing.T) {
	e := testEngine(t, testStore(t), WithYTDCBPPaid(d("7792.05")))
	r, err := e.CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTPT", midweek))
	require.NoError(t, err)
	assert.True(t, mustCalc(t, r, CodeCBP).FinalAmount.IsZero())

	e = testEngine(t, testStore(t), WithYTDCBPPaid(d("9000")))
	r, err = e.CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTPT", midweek))
	require.NoError(t, err)
	assert.Equal(t, "0.00", mustCalc(t, r, CodeCBP).FinalAmount.StringFixed(2), "never negative")
}

func TestScenarioCaliforniaAndCascadia(t *testing.T) {
	store := testStore(t)

	r, err := testEngine(t, store).CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTCA", midweek))
	require.NoError(t, err)
	misp := mustCalc(t, r, CodeMISP)
	assert.Equal(t, "1000.00", misp.FinalAmount.StringFixed(2))
	assert.Equal(t, "1", misp.Confidence.String())

	pilot := mustCalc(t, r, CodePilotage)
	assert.Equal(t, SourceRegistry, pilot.Source)
	assert.Equal(t, "0.95", pilot.Confidence.StringFixed(2))
	assert.Equal(t, "SOCAL", r.PortZone)

	r, err = testEngine(t, store).CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTWA", midweek))
	require.NoError(t, err)
	aphis := mustCalc(t, r, CodeAPHIS)
	assert.Equal(t, RiskCascadia, aphis.Facts["risk"])
	assert.Equal(t, "837.51", aphis.FinalAmount.StringFixed(2))
	_, ok := r.Calculation(CodeMISP)
	assert.False(t, ok)
}

func TestScenarioWeekendHolidayUsesLargerMultiplier(t *testing.T) {
	store := testStore(t)
	e := testEngine(t, store)

	r, err := e.CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTPT", weekendHoliday))
	require.NoError(t, err)
	assert.True(t, r.Voyage.IsWeekend)
	assert.True(t, r.Voyage.IsHoliday)

	pilot := mustCalc(t, r, CodePilotage)
	assert.Equal(t, []string{"holiday"}, pilot.MultiplierKeys())
	assert.Equal(t, "2", pilot.Multipliers["holiday"].String())
	assert.Equal(t, "19073.48", pilot.FinalAmount.StringFixed(2), "2.0 only, not 1.5 × 2.0")

	r, err = testEngine(t, store).CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTCA", weekendHoliday))
	require.NoError(t, err)
	pilot = mustCalc(t, r, CodePilotage)
	assert.Equal(t, []string{"holiday"}, pilot.MultiplierKeys())
	assert.Equal(t, "1.5", pilot.Multipliers["holiday"].String())
}

func TestScenarioTugboatManualEntry(t *testing.T) {
	v := testVessel()
	v.GrossTonnage = decimal.Zero
	r, err := testEngine(t, testStore(t)).CalculateComprehensive(context.Background(), v, testVoyage("TSTPT", midweek))
	require.NoError(t, err)

	tug := mustCalc(t, r, CodeTugboat)
	assert.True(t, tug.FinalAmount.IsZero())
	assert.True(t, tug.ManualEntry)
	assert.True(t, tug.Confidence.LessThanOrEqual(d("0.5")))

	assert.Equal(t, "1000.00", r.Totals.OptionalLow.StringFixed(2), "line handling only")
	assert.Equal(t, "2500.00", r.Totals.OptionalHigh.StringFixed(2))
	assert.Contains(t, r.Warnings, "Tugboat Assist Services requires a manual quote")
}

func TestAggregateExcludesManualEntries(t *testing.T) {
	calcs := []FeeCalculation{
		{Code: "A", FinalAmount: d("100"), Confidence: d("1")},
		{Code: "B", FinalAmount: d("50.505"), Confidence: d("0.8")},
		{Code: "OPT", FinalAmount: d("10"), IsOptional: true, Confidence: d("0.1")},
		{Code: "RANGE", FinalAmount: d("20"), IsOptional: true, EstimatedRange: &Range{Low: d("15"), High: d("30")}},
		{Code: "MANUAL", FinalAmount: d("999"), IsOptional: true, ManualEntry: true},
	}
	totals, conf := Aggregate(calcs)
	assert.Equal(t, "150.51", totals.Mandatory.StringFixed(2))
	assert.Equal(t, "25.00", totals.OptionalLow.StringFixed(2))
	assert.Equal(t, "40.00", totals.OptionalHigh.StringFixed(2))
	assert.Equal(t, "0.9", conf.String(), "optional items are not averaged")

	_, conf = Aggregate(nil)
	assert.Equal(t, "0.85", conf.String())
}

func TestContractOverlayAppliedOnce(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	require.NoError(t, store.SaveContractAdjustment(ctx, &feestore.ContractAdjustment{
		Profile:        "acme",
		FeeCode:        CodeCBP,
		Multiplier:     d("0.9"),
		FixedOffset:    decimal.NewNullDecimal(d("-10")),
		EffectiveStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveContractAdjustment(ctx, &feestore.ContractAdjustment{
		Profile:        "acme",
		FeeCode:        CodeLineHandling,
		Multiplier:     d("2"),
		EffectiveStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveContractAdjustment(ctx, &feestore.ContractAdjustment{
		Profile:        "acme",
		FeeCode:        CodeTugboat,
		Multiplier:     d("3"),
		EffectiveStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	e := testEngine(t, store, WithContractProfile("acme"))
	v := testVessel()
	v.GrossTonnage = decimal.Zero
	r, err := e.CalculateComprehensive(ctx, v, testVoyage("TSTPT", midweek))
	require.NoError(t, err)

	cbp := mustCalc(t, r, CodeCBP)
	assert.Equal(t, "504.63", cbp.FinalAmount.StringFixed(2))
	assert.Equal(t, "0.9", cbp.Multipliers[ContractKey].String())
	assert.Contains(t, cbp.Details, "contract acme")

	lines := mustCalc(t, r, CodeLineHandling)
	assert.Equal(t, "3000.00", lines.FinalAmount.StringFixed(2))
	assert.Equal(t, "5000.00", lines.EstimatedRange.High.StringFixed(2))

	tug := mustCalc(t, r, CodeTugboat)
	assert.NotContains(t, tug.Multipliers, ContractKey, "manual entries are not adjusted")

	// A second pass over the same calculations changes nothing.
	require.NoError(t, e.applyContract(ctx, r.Calculations, midweek, "TSTPT"))
	assert.Equal(t, "504.63", mustCalc(t, r, CodeCBP).FinalAmount.StringFixed(2))
	assert.Equal(t, "3000.00", mustCalc(t, r, CodeLineHandling).FinalAmount.StringFixed(2))

	// Without a profile nothing is adjusted.
	r, err = testEngine(t, store).CalculateComprehensive(ctx, v, testVoyage("TSTPT", midweek))
	require.NoError(t, err)
	assert.Equal(t, "571.81", mustCalc(t, r, CodeCBP).FinalAmount.StringFixed(2))
}

func TestDatabaseOverridesWin(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fees := []*feestore.Fee{
		{Code: CodeCBPDB, Name: "CBP Arrival (DB)", Rate: d("600"), CapAmount: decimal.NewNullDecimal(d("8000")),
			CapPeriod: feestore.CapCalendarYear, EffectiveStart: start},
		{Code: CodeAPHISDB, Name: "APHIS (DB)", Rate: d("3100"), EffectiveStart: start},
		{Code: CodeAPHISDB, Name: "APHIS Cascadia (DB)", Rate: d("900"), AppliesCascadia: boolPtr(true),
			EffectiveStart: start.AddDate(0, 6, 0)},
		{Code: CodeTonnageDB, Name: "Tonnage (DB)", Rate: d("0.06"), CapAmount: decimal.NewNullDecimal(d("100")),
			CapPeriod: feestore.CapTonnageYear, EffectiveStart: start},
		{Code: CodeDockageDB, Name: "Dockage (DB)", Rate: d("1250"), AppliesPortCode: "TSTPT", EffectiveStart: start},
		{Code: CodeMXDB, Name: "MX (DB)", Rate: d("410"), EffectiveStart: start},
		{Code: CodePilotageBase, Name: "Pilot base", Rate: d("4000"), AppliesPortCode: "TSTPT", EffectiveStart: start},
	}
	for _, f := range fees {
		require.NoError(t, store.SaveFee(ctx, f))
	}

	e := testEngine(t, store, WithYTDCBPPaid(d("7700")), WithTonnageYearPaid(d("50")))
	r, err := e.CalculateComprehensive(ctx, testVessel(), testVoyage("TSTPT", midweek))
	require.NoError(t, err)

	cbp := mustCalc(t, r, CodeCBPDB)
	assert.Equal(t, SourceDatabase, cbp.Source)
	assert.Equal(t, "300.00", cbp.FinalAmount.StringFixed(2))

	aphis := mustCalc(t, r, CodeAPHISDB)
	assert.Equal(t, "3100.00", aphis.FinalAmount.StringFixed(2), "cascadia-only row does not match")

	tonnage := mustCalc(t, r, CodeTonnageDB)
	assert.Equal(t, "60.00", tonnage.BaseAmount.StringFixed(2))
	assert.Equal(t, "50.00", tonnage.FinalAmount.StringFixed(2))

	dock := mustCalc(t, r, CodeDockageDB)
	assert.Equal(t, "2500.00", dock.FinalAmount.StringFixed(2))

	assert.Equal(t, "410.00", mustCalc(t, r, CodeMXDB).FinalAmount.StringFixed(2))

	// 4000 + 5249.34 × 1.15
	assert.Equal(t, "10036.74", mustCalc(t, r, CodePilotage).FinalAmount.StringFixed(2))

	r, err = testEngine(t, store).CalculateComprehensive(ctx, testVessel(), testVoyage("TSTWA", midweek))
	require.NoError(t, err)
	assert.Equal(t, "900.00", mustCalc(t, r, CodeAPHISDB).FinalAmount.StringFixed(2))
}

func TestPilotageClampedToMinimum(t *testing.T) {
	v := testVessel()
	v.LOAMeters = d("10")
	r, err := testEngine(t, testStore(t)).CalculateComprehensive(context.Background(), v, testVoyage("TSTPT", midweek))
	require.NoError(t, err)
	assert.Equal(t, "5000.00", mustCalc(t, r, CodePilotage).FinalAmount.StringFixed(2))
}

func TestVesselTypeConfigDrivesTugCount(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	require.NoError(t, store.SaveVesselTypeConfig(ctx, &feestore.VesselTypeConfig{
		VesselType: "container", BaseTugs: 2, TugGRTStep: d("20000"), MaxTugs: 4,
	}))
	r, err := testEngine(t, store).CalculateComprehensive(ctx, testVessel(), testVoyage("TSTPT", midweek))
	require.NoError(t, err)
	tug := mustCalc(t, r, CodeTugboat)
	assert.Equal(t, 4, tug.Facts["tugs"])
	assert.Equal(t, "56640.00", tug.FinalAmount.StringFixed(2))
}

func TestLegacyOptionalServices(t *testing.T) {
	e := testEngine(t, testStore(t), WithLegacyOptionalServices(true))
	voyage := testVoyage("TSTPT", midweek)
	voyage.DaysAlongside = 3
	r, err := e.CalculateComprehensive(context.Background(), testVessel(), voyage)
	require.NoError(t, err)

	for _, code := range []string{CodeLineHandling, CodeLaunch, CodeGarbage, CodeFreshWater} {
		c := mustCalc(t, r, code)
		assert.True(t, c.IsOptional, code)
	}
	water := mustCalc(t, r, CodeFreshWater)
	assert.Equal(t, "600.00", water.FinalAmount.StringFixed(2))
	assert.Equal(t, "480.00", water.EstimatedRange.Low.StringFixed(2))
	assert.Equal(t, "720.00", water.EstimatedRange.High.StringFixed(2))

	voyage.DaysAlongside = 1
	r, err = testEngine(t, testStore(t), WithLegacyOptionalServices(true)).CalculateComprehensive(context.Background(), testVessel(), voyage)
	require.NoError(t, err)
	_, ok := r.Calculation(CodeFreshWater)
	assert.False(t, ok)
}

func TestUnknownPortIsFatal(t *testing.T) {
	_, err := testEngine(t, testStore(t)).CalculateComprehensive(context.Background(), testVessel(), testVoyage("NOPE", midweek))
	require.Error(t, err)
	assert.Equal(t, perrors.ErrCodeUnknownPort, perrors.CodeOf(err))

	_, err = testEngine(t, testStore(t)).Compute(context.Background(), EstimateContext{PortCode: "NOPE", ArrivalDate: midweek})
	assert.Equal(t, perrors.ErrCodeUnknownPort, perrors.CodeOf(err))

	_, err = testEngine(t, testStore(t)).Compute(context.Background(), EstimateContext{ArrivalDate: midweek})
	assert.Equal(t, perrors.ErrCodeInvalidInput, perrors.CodeOf(err))
}

func TestEstimatesAreDeterministic(t *testing.T) {
	store := testStore(t)
	first, err := testEngine(t, store).CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTCA", weekendHoliday))
	require.NoError(t, err)
	second, err := testEngine(t, store).CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTCA", weekendHoliday))
	require.NoError(t, err)

	require.Len(t, second.Calculations, len(first.Calculations))
	for i := range first.Calculations {
		assert.True(t, first.Calculations[i].FinalAmount.Equal(second.Calculations[i].FinalAmount), first.Calculations[i].Code)
	}
	assert.True(t, first.Totals.Mandatory.Equal(second.Totals.Mandatory))
}

func TestComputeOrdering(t *testing.T) {
	e := testEngine(t, testStore(t))
	items, err := e.Compute(context.Background(), EstimateContext{
		PortCode:         "TSTCA",
		ArrivalDate:      midweek,
		PreviousPortCode: "CNSHA",
		NetTonnage:       d("1000"),
		IsBallasted:      true,
	})
	require.NoError(t, err)

	codes := make([]string, len(items))
	for i, it := range items {
		codes[i] = it.Code
	}
	assert.Equal(t, []string{CodeCBP, CodeAPHIS, CodeMISP, CodeTonnage, CodeMX}, codes)
	assert.Equal(t, "2903.73", items[1].Amount.StringFixed(2), "high risk bucket")
	assert.Equal(t, true, items[1].Details["is_ballasted"])

	raw, err := json.Marshal(items[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":"571.81"`)

	items, err = e.Compute(context.Background(), EstimateContext{
		PortCode:    "TSTPT",
		ArrivalDate: midweek,
		ArrivalType: "DOMESTIC",
	})
	require.NoError(t, err)
	codes = codes[:0]
	for _, it := range items {
		codes = append(codes, it.Code)
	}
	assert.Equal(t, []string{CodeCBP, CodeAPHIS, CodeMX}, codes)
	assert.Equal(t, "500.00", items[1].Amount.StringFixed(2), "domestic bucket")
}

func TestComputeUsesRequestAccumulators(t *testing.T) {
	items, err := testEngine(t, testStore(t)).Compute(context.Background(), EstimateContext{
		PortCode:        "TSTPT",
		ArrivalDate:     time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		NetTonnage:      d("1000"),
		YTDCBPPaid:      d("7500"),
		TonnageYearPaid: d("90"),
	})
	require.NoError(t, err)
	assert.Equal(t, "499.40", items[0].Amount.StringFixed(2), "FY26 cap 7999.40 less 7500")
	assert.Equal(t, "10.00", items[2].Amount.StringFixed(2))
}

type fakeAdvisor struct{}

func (fakeAdvisor) FetchAPHISVesselFees(context.Context) live.APHISFees {
	return live.APHISFees{
		StandardFee: decimal.NewNullDecimal(d("3012.50")),
		CascadiaFee: decimal.NewNullDecimal(d("901.25")),
	}
}

func (fakeAdvisor) FetchMISPSnapshot(context.Context) live.MISPSnapshot {
	return live.MISPSnapshot{CurrentFee: decimal.NewNullDecimal(d("1050")), PossibleAmountsSeen: []string{"$1,050"}}
}

func (fakeAdvisor) MXSnapshotForRegion(_ context.Context, region string) live.MXSnapshot {
	return live.MXSnapshot{Primary: &live.ProviderSnapshot{Provider: live.Provider{Key: region, Name: "Test Exchange", URL: "https://mx.test"}}}
}

func TestLiveDataRefinesFallbacks(t *testing.T) {
	e := testEngine(t, testStore(t), WithAdvisor(fakeAdvisor{}))
	voyage := testVoyage("TSTCA", midweek)
	voyage.PreviousPortCode = "CNSHA"
	r, err := e.CalculateComprehensive(context.Background(), testVessel(), voyage)
	require.NoError(t, err)

	assert.Equal(t, "3012.50", mustCalc(t, r, CodeAPHIS).FinalAmount.StringFixed(2))
	assert.Equal(t, "1050.00", mustCalc(t, r, CodeMISP).FinalAmount.StringFixed(2))
	mx := mustCalc(t, r, CodeMX)
	assert.Equal(t, "250.00", mx.FinalAmount.StringFixed(2))
	assert.Contains(t, mx.Details, "Test Exchange")

	r, err = testEngine(t, testStore(t), WithAdvisor(fakeAdvisor{})).CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTWA", midweek))
	require.NoError(t, err)
	assert.Equal(t, "901.25", mustCalc(t, r, CodeAPHIS).FinalAmount.StringFixed(2))
}

func TestPilotageBreakdownWithLegs(t *testing.T) {
	e := testEngine(t, testStore(t))
	b, err := e.PilotageBreakdown(context.Background(), testVessel(), testVoyage("TSTCA", midweek), []pilotage.MovementLeg{
		{Sequence: 2, LegType: "bay transit"},
		{Sequence: 1, LegType: "Bar Crossing"},
	})
	require.NoError(t, err)
	require.Len(t, b.Legs, 2)
	assert.Equal(t, 1, b.Legs[0].Sequence)
	assert.Equal(t, pilotage.ComponentBar, b.Legs[0].Classification)
	assert.False(t, b.Audit.Fallback)

	b, err = e.PilotageBreakdown(context.Background(), testVessel(), testVoyage("TSTPT", midweek), nil)
	require.NoError(t, err)
	assert.True(t, b.Audit.Fallback)
	assert.Contains(t, b.Audit.Reason, "TESTZONE")
}

func TestReportJSON(t *testing.T) {
	r, err := testEngine(t, testStore(t)).CalculateComprehensive(context.Background(), testVessel(), testVoyage("TSTPT", midweek))
	require.NoError(t, err)

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	totals := out["totals"].(map[string]any)
	assert.Equal(t, "19378.55", totals["mandatory"])
	assert.Equal(t, "0.9050", out["confidence"])
	assert.Equal(t, Disclaimer, out["disclaimer"])

	voyage := out["voyage"].(map[string]any)
	assert.Equal(t, "FOREIGN", voyage["arrival_type"])
	assert.Equal(t, "TSTPT", voyage["arrival_port"])

	calcs := out["calculations"].([]any)
	first := calcs[0].(map[string]any)
	assert.Equal(t, CodeCBP, first["code"])
	assert.Equal(t, "571.81", first["final_amount"])
	assert.Contains(t, out, "pilotage_breakdown")
}
