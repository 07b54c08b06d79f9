package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portcall-cost/db/clickhouse"
	"portcall-cost/db/feestore"
	"portcall-cost/decision/calendar"
	"portcall-cost/decision/pilotage"
)

type fakeLedger struct {
	recorded []*clickhouse.EstimateRecord
	err      error
}

func (f *fakeLedger) RecordEstimate(ctx context.Context, rec *clickhouse.EstimateRecord) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, rec)
	return nil
}

func (f *fakeLedger) ListEstimates(ctx context.Context, port string, limit int) ([]*clickhouse.EstimateRecord, error) {
	var out []*clickhouse.EstimateRecord
	for _, r := range f.recorded {
		if port == "" || r.ArrivalPort == port {
			out = append(out, r)
		}
	}
	return out, nil
}

type unreachableStore struct {
	*feestore.MemoryStore
}

func (unreachableStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func testStore(t *testing.T) *feestore.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := feestore.NewMemoryStore()
	for _, p := range []*feestore.Port{
		{Code: "TSTPT", Name: "Test Harbor", State: "TX", ZoneCode: "TESTZONE"},
		{Code: "TSTCA", Name: "Test California", State: "CA", ZoneCode: "SOCAL", IsCalifornia: true},
	} {
		require.NoError(t, s.SavePort(ctx, p))
	}
	return s
}

func testServer(t *testing.T, store feestore.Store, cfg *Config, opts ...Option) *Server {
	t.Helper()
	reg, err := pilotage.OpenRegistry(context.Background(), "")
	require.NoError(t, err)
	base := []Option{
		WithRegistry(reg),
		WithHolidayChecker(calendar.NewChecker(nil, zerolog.Nop())),
		WithClock(func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }),
	}
	return NewServer(store, cfg, append(base, opts...)...)
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

var vesselBody = map[string]any{
	"name":          "MV Test",
	"vessel_type":   "container",
	"gross_tonnage": 50000,
	"net_tonnage":   1000,
	"loa_meters":    200,
	"beam_meters":   32,
	"draft_meters":  12,
}

func comprehensiveBody(port string) map[string]any {
	return map[string]any{
		"vessel": vesselBody,
		"voyage": map[string]any{
			"previous_port_code": "JPTYO",
			"arrival_port_code":  port,
			"eta":                "2025-03-12T08:00:00",
			"days_alongside":     2,
		},
	}
}

func TestHealthAndReady(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, body = do(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	down := testServer(t, unreachableStore{testStore(t)}, nil)
	rec, body = do(t, down, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestEstimateLineItems(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodPost, "/api/v1/estimate", map[string]any{
		"port_code":          "tstpt",
		"eta":                "2025-03-12",
		"previous_port_code": "JPTYO",
		"net_tonnage":        "1000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "TSTPT", body["port_code"])
	assert.Equal(t, "2025-03-12", body["eta"])
	assert.Equal(t, "FOREIGN", body["arrival_type"])
	assert.Equal(t, "2841.81", body["total"])
	assert.Equal(t, SimpleDisclaimer, body["disclaimer"])

	items := body["line_items"].([]any)
	codes := make([]string, len(items))
	for i, it := range items {
		codes[i] = it.(map[string]any)["code"].(string)
	}
	assert.Equal(t, []string{"CBP_USER_FEE", "APHIS_AQI", "TONNAGE_TAX", "MARINE_EXCHANGE"}, codes)
	assert.Equal(t, "571.81", items[0].(map[string]any)["amount"])
}

func TestEstimateReportsInferredArrivalType(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodPost, "/api/v1/estimate", map[string]any{
		"port_code":          "TSTPT",
		"eta":                "2025-03-12",
		"previous_port_code": "USOAK",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "COASTWISE", body["arrival_type"])

	items := body["line_items"].([]any)
	aphis := items[1].(map[string]any)
	assert.Equal(t, "APHIS_AQI", aphis["code"])
	assert.Equal(t, "500.00", aphis["amount"])
}

func TestEstimateErrors(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodPost, "/api/v1/estimate", map[string]any{"port_code": "NOPE", "eta": "2025-03-12"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_PORT", body["code"])

	rec, _ = do(t, s, http.MethodPost, "/api/v1/estimate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, s, http.MethodPost, "/api/v1/estimate", map[string]any{"port_code": "TSTPT", "eta": "2025-03-12", "arrival_type": "SIDEWAYS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	rec, body = do(t, s, http.MethodPost, "/api/v1/estimate", map[string]any{"port_code": "TSTPT"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestComprehensiveEstimateRecordsToLedger(t *testing.T) {
	ledger := &fakeLedger{}
	s := testServer(t, testStore(t), nil, WithLedger(ledger))

	rec, body := do(t, s, http.MethodPost, "/api/v1/estimate/comprehensive", comprehensiveBody("TSTPT"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	totals := body["totals"].(map[string]any)
	assert.Equal(t, "19378.55", totals["mandatory"])
	assert.Equal(t, "55600.00", totals["optional_high"])
	assert.Equal(t, "Estimate accuracy: ±9.5%", body["accuracy_statement"])
	assert.NotEmpty(t, body["estimate_id"])

	require.Len(t, ledger.recorded, 1)
	assert.Equal(t, "TSTPT", ledger.recorded[0].ArrivalPort)
	assert.Equal(t, body["estimate_id"], ledger.recorded[0].EstimateID.String())

	rec, body = do(t, s, http.MethodGet, "/api/v1/estimates?port=TSTPT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
}

func TestComprehensiveLedgerFailureIsNotFatal(t *testing.T) {
	s := testServer(t, testStore(t), nil, WithLedger(&fakeLedger{err: errors.New("clickhouse down")}))
	rec, _ := do(t, s, http.MethodPost, "/api/v1/estimate/comprehensive", comprehensiveBody("TSTPT"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestComprehensiveWithoutOptionalServices(t *testing.T) {
	s := testServer(t, testStore(t), nil)
	req := comprehensiveBody("TSTPT")
	req["include_optional_services"] = false

	rec, body := do(t, s, http.MethodPost, "/api/v1/estimate/comprehensive", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	totals := body["totals"].(map[string]any)
	assert.Equal(t, "19378.55", totals["mandatory"])
	assert.Equal(t, "0.00", totals["optional_low"])
	assert.Equal(t, "19378.55", totals["total_high"])
	for _, c := range body["calculations"].([]any) {
		assert.Equal(t, false, c.(map[string]any)["is_optional"])
	}
}

func TestComprehensiveValidation(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	req := comprehensiveBody("TSTPT")
	delete(req["voyage"].(map[string]any), "eta")
	rec, body := do(t, s, http.MethodPost, "/api/v1/estimate/comprehensive", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	rec, body = do(t, s, http.MethodPost, "/api/v1/estimate/comprehensive", comprehensiveBody("NOPE"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_PORT", body["code"])

	_, err := ParseTimestamp("12/03/2025")
	assert.Error(t, err)
}

func TestEstimatesWithoutLedger(t *testing.T) {
	s := testServer(t, testStore(t), nil)
	rec, _ := do(t, s, http.MethodGet, "/api/v1/estimates", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPilotageEndpoints(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodPost, "/api/v1/pilotage/breakdown", map[string]any{
		"vessel": vesselBody,
		"voyage": comprehensiveBody("TSTCA")["voyage"],
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SOCAL", body["port_zone"])
	assert.NotEmpty(t, body["legs"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/pilotage/rates/socal?date=2025-03-12", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, pilotage.BundledSource, body["source"])
	assert.Equal(t, "SOCAL", body["rates"].(map[string]any)["zone"])

	rec, _ = do(t, s, http.MethodGet, "/api/v1/pilotage/rates/NOWHERE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVoyageEndpoint(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodPost, "/api/v1/voyage/multi-port", map[string]any{
		"request": map[string]any{
			"vessel_name":  "MV Rotation",
			"ports":        []string{"JPTYO", "TSTPT", "TSTCA"},
			"start_date":   "2025-03-12",
			"days_in_port": 2,
		},
		"vessel": map[string]any{"gross_tonnage": 50000, "net_tonnage": 1000, "loa_meters": 200, "draft_meters": 12},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["legs"], 2)
	assert.Equal(t, "USD", body["totals"].(map[string]any)["currency"])

	rec, body = do(t, s, http.MethodPost, "/api/v1/voyage/multi-port", map[string]any{
		"request": map[string]any{"vessel_name": "MV Rotation", "ports": []string{"TSTPT"}, "start_date": "2025-03-12"},
		"vessel":  vesselBody,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestReferenceEndpoints(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodGet, "/api/v1/holidays/socal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOCAL", body["zone"])
	holidays := body["holidays"].([]any)
	require.Len(t, holidays, calendar.DefaultUpcomingLimit)
	first := holidays[0].(map[string]any)
	assert.Equal(t, "Independence Day", first["name"])
	assert.Equal(t, "2025-07-04", first["date"])

	rec, _ = do(t, s, http.MethodGet, "/api/v1/holidays/socal?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, s, http.MethodGet, "/api/v1/ports/tstca", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOCAL", body["pilotage_zone"])
	assert.Equal(t, "TSTCA", body["port"].(map[string]any)["code"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/ports/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_PORT", body["code"])
}

func TestPortSearchAndResolve(t *testing.T) {
	s := testServer(t, testStore(t), nil)

	rec, body := do(t, s, http.MethodGet, "/api/v1/ports/search?q=test", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, body["count"])
	ports := body["ports"].([]any)
	assert.Equal(t, "TSTCA", ports[0].(map[string]any)["locode"])
	assert.Equal(t, "Test Harbor", ports[1].(map[string]any)["port_name"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/ports/search?q=harbor&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/ports/search?q=t", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	rec, _ = do(t, s, http.MethodGet, "/api/v1/ports/search?q=test&limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, s, http.MethodGet, "/api/v1/ports/resolve/Test%20Harbor", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "TSTPT", body["port_code"])
	assert.Equal(t, "TESTZONE", body["zone_code"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/ports/resolve/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_PORT", body["code"])
}

func TestDocumentRequirementsEndpoint(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.SavePortDocument(context.Background(), &feestore.PortDocument{
		PortCode: feestore.AllUSDocuments, DocumentName: "Notice of Arrival/Departure", DocumentCode: "USCG-NOAD",
		IsMandatory: true, LeadTimeHours: 96, Authority: "USCG",
	}))
	s := testServer(t, store, nil)

	rec, body := do(t, s, http.MethodGet, "/api/v1/documents/requirements?port_code=tstpt&vessel_type=container&previous_port=JPTYO", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "TSTPT", body["port_code"])
	docs := body["documents"].([]any)
	require.Len(t, docs, 2)
	assert.Equal(t, "USCG-NOAD", docs[0].(map[string]any)["document_code"])
	assert.EqualValues(t, 96, docs[0].(map[string]any)["lead_time_hours"])
	assert.Equal(t, "CBP-1300", docs[1].(map[string]any)["document_code"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/documents/requirements?port_code=TSTPT&previous_port=USOAK", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/documents/requirements", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestCatalogRoutesNeedCatalogStore(t *testing.T) {
	s := testServer(t, struct{ feestore.Store }{testStore(t)}, nil)
	rec, _ := do(t, s, http.MethodGet, "/api/v1/ports/search?q=test", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/v1/documents/requirements?port_code=TSTPT", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAPIKeyGuardsVersionedRoutes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	s := testServer(t, testStore(t), cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ports/TSTCA", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ports/TSTCA", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
