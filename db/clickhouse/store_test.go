package clickhouse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portcall-cost/decision/fees"
)

func testReport() *fees.Report {
	return &fees.Report{
		EstimateID:  uuid.New(),
		GeneratedAt: time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
		Vessel:      fees.VesselSpecs{Name: "MV Ledger", Type: fees.VesselTanker},
		Voyage: fees.VoyageSummary{
			ArrivalPort: "USLAX",
			ETA:         time.Date(2025, 3, 15, 6, 0, 0, 0, time.UTC),
			IsWeekend:   true,
		},
		PortZone: "SOCAL",
		Calculations: []fees.FeeCalculation{
			{Code: "CBP_USER_FEE", FinalAmount: decimal.RequireFromString("571.81")},
			{Code: "APHIS_AQI", FinalAmount: decimal.RequireFromString("2903.73")},
		},
		Totals: fees.Totals{
			Mandatory:    decimal.RequireFromString("3475.54"),
			OptionalLow:  decimal.Zero,
			OptionalHigh: decimal.Zero,
		},
		Confidence: decimal.RequireFromString("0.97500001"),
	}
}

func TestRecordFromReport(t *testing.T) {
	r := testReport()
	rec, err := RecordFromReport(r)
	require.NoError(t, err)

	assert.Equal(t, r.EstimateID, rec.EstimateID)
	assert.Equal(t, "USLAX", rec.ArrivalPort)
	assert.Equal(t, "tanker", rec.VesselType)
	assert.Equal(t, []string{"CBP_USER_FEE", "APHIS_AQI"}, rec.FeeCodes)
	assert.Equal(t, 0.975, rec.Confidence)
	assert.True(t, rec.IsWeekend)
	assert.Equal(t, "3475.54", rec.MandatoryTotal.StringFixed(2))

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.Payload), &payload))
	assert.Equal(t, r.EstimateID.String(), payload["estimate_id"])
}

func TestHashAmountsIgnoresOrder(t *testing.T) {
	r := testReport()
	a := hashAmounts(r.Calculations)
	b := hashAmounts([]fees.FeeCalculation{r.Calculations[1], r.Calculations[0]})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	r.Calculations[0].FinalAmount = decimal.Zero
	assert.NotEqual(t, a, hashAmounts(r.Calculations))
}

func TestRecordValuesOrder(t *testing.T) {
	rec := &EstimateRecord{IsWeekend: true}
	vals := rec.values()
	require.Len(t, vals, 17)
	assert.Equal(t, uint8(1), vals[13])
	assert.Equal(t, uint8(0), vals[14])
}
