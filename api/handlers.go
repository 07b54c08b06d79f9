package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"portcall-cost/db/clickhouse"
	"portcall-cost/db/feestore"
	"portcall-cost/decision/calendar"
	"portcall-cost/decision/fees"
	"portcall-cost/decision/pilotage"
	"portcall-cost/decision/portinfo"
	"portcall-cost/decision/voyage"
	perrors "portcall-cost/pkg/errors"
	"portcall-cost/pkg/units"
)

// SimpleDisclaimer accompanies line-item estimates.
const SimpleDisclaimer = "Estimate only. Verify against official tariffs/guidance and your negotiated contracts."

const ledgerTimeout = 3 * time.Second

// =============================================================================
// ESTIMATE ENDPOINTS
// =============================================================================

// EstimateResponse is the line-item estimate of POST /api/v1/estimate.
type EstimateResponse struct {
	PortCode    string          `json:"port_code"`
	ETA         string          `json:"eta"`
	ArrivalType string          `json:"arrival_type"`
	LineItems   []fees.LineItem `json:"line_items"`
	Total       string          `json:"total"`
	Disclaimer  string          `json:"disclaimer"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}
	ectx, err := req.Context()
	if err != nil {
		s.writeError(w, err)
		return
	}

	engine := fees.NewEngine(s.store, s.engineOptions(req.ContractProfile)...)
	items, err := engine.Compute(r.Context(), ectx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	s.jsonResponse(w, http.StatusOK, EstimateResponse{
		PortCode:    ectx.PortCode,
		ETA:         ectx.ArrivalDate.Format("2006-01-02"),
		ArrivalType: string(ectx.ResolvedArrivalType()),
		LineItems:   items,
		Total:       units.MoneyString(units.Money(total)),
		Disclaimer:  SimpleDisclaimer,
	})
}

func (s *Server) handleComprehensive(w http.ResponseWriter, r *http.Request) {
	var req ComprehensiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	vessel, err := req.Vessel.Specs()
	if err != nil {
		s.writeError(w, err)
		return
	}
	voy, err := req.Voyage.Context()
	if err != nil {
		s.writeError(w, err)
		return
	}

	opts := append(s.engineOptions(req.ContractProfile),
		fees.WithYTDCBPPaid(req.YTDCBPPaid),
		fees.WithTonnageYearPaid(req.TonnageYearPaid),
	)
	report, err := fees.NewEngine(s.store, opts...).CalculateComprehensive(r.Context(), vessel, voy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !req.includeOptional() {
		dropOptional(report)
	}

	s.record(r.Context(), report)
	s.jsonResponse(w, http.StatusOK, report)
}

// dropOptional strips optional services and recomputes totals. Confidence
// only ever reflects mandatory items so it is left as is.
func dropOptional(report *fees.Report) {
	kept := make([]fees.FeeCalculation, 0, len(report.Calculations))
	for _, c := range report.Calculations {
		if !c.IsOptional {
			kept = append(kept, c)
		}
	}
	report.Calculations = kept
	report.Totals, _ = fees.Aggregate(kept)
}

// record appends the estimate to the ledger. Failures are logged only.
func (s *Server) record(ctx context.Context, report *fees.Report) {
	if s.ledger == nil {
		return
	}
	rec, err := clickhouse.RecordFromReport(report)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to build ledger record")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := s.ledger.RecordEstimate(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("estimate_id", rec.EstimateID.String()).Msg("failed to record estimate")
	}
}

// =============================================================================
// PILOTAGE ENDPOINTS
// =============================================================================

func (s *Server) handlePilotageBreakdown(w http.ResponseWriter, r *http.Request) {
	var req PilotageRequest
	if !s.decode(w, r, &req) {
		return
	}
	vessel, err := req.Vessel.Specs()
	if err != nil {
		s.writeError(w, err)
		return
	}
	voy, err := req.Voyage.Context()
	if err != nil {
		s.writeError(w, err)
		return
	}

	engine := fees.NewEngine(s.store, s.engineOptions("")...)
	breakdown, err := engine.PilotageBreakdown(r.Context(), vessel, voy, req.Legs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, breakdown)
}

func (s *Server) handlePilotageRates(w http.ResponseWriter, r *http.Request) {
	zone := normalizeCode(chi.URLParam(r, "zone"))
	asOf := s.now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		t, err := ParseTimestamp(raw)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		asOf = t
	}

	registry := s.registry
	if registry == nil {
		var err error
		if registry, err = pilotage.DefaultRegistry(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
	}
	entry, err := registry.LoadRates(zone, asOf)
	if err != nil {
		var unknown *pilotage.UnknownZoneError
		var noVersion *pilotage.NoEffectiveVersionError
		if errors.As(err, &unknown) || errors.As(err, &noVersion) {
			s.jsonError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"source": registry.Source(),
		"rates":  entry,
	})
}

// =============================================================================
// VOYAGE ENDPOINTS
// =============================================================================

func (s *Server) handleVoyage(w http.ResponseWriter, r *http.Request) {
	var req VoyageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Vessel.Name) == "" {
		req.Vessel.Name = req.Request.VesselName
	}
	vessel, err := req.Vessel.Specs()
	if err != nil {
		s.writeError(w, err)
		return
	}

	planner := voyage.NewPlanner(s.store, s.logger, s.engineOptions("")...)
	plan, err := planner.Plan(r.Context(), vessel, voyage.PortSequence{
		Ports:      req.Request.Ports,
		StartDate:  req.Request.StartDate.Time,
		DaysInPort: req.Request.DaysInPort,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, plan)
}

// =============================================================================
// REFERENCE DATA ENDPOINTS
// =============================================================================

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	zone := normalizeCode(chi.URLParam(r, "zone"))
	limit := calendar.DefaultUpcomingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"zone":     zone,
		"holidays": calendar.Upcoming(zone, s.now().UTC(), limit),
	})
}

func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	code := normalizeCode(chi.URLParam(r, "code"))
	port, err := s.store.GetPort(r.Context(), code)
	if errors.Is(err, feestore.ErrPortNotFound) {
		s.writeError(w, perrors.NewUnknownPortError(code, err))
		return
	}
	if err != nil {
		s.writeError(w, perrors.NewStoreError("get port", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"port":          port,
		"pilotage_zone": fees.PilotageZone(port),
	})
}

// catalogDirectory reports 501 when the store has no port catalog.
func (s *Server) catalogDirectory(w http.ResponseWriter) (*portinfo.Directory, bool) {
	if s.directory == nil {
		s.jsonError(w, http.StatusNotImplemented, "port catalog not available")
		return nil, false
	}
	return s.directory, true
}

func (s *Server) handlePortSearch(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.catalogDirectory(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	hits, err := dir.Search(r.Context(), q.Get("q"), q.Get("country"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"ports": hits,
		"count": len(hits),
	})
}

func (s *Server) handlePortResolve(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.catalogDirectory(w)
	if !ok {
		return
	}
	resolved, err := dir.Resolve(r.Context(), chi.URLParam(r, "query"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resolved)
}

func (s *Server) handleDocumentRequirements(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.catalogDirectory(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	docs, err := dir.DocumentRequirements(r.Context(), q.Get("port_code"), q.Get("vessel_type"), q.Get("previous_port"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"port_code": normalizeCode(q.Get("port_code")),
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleListEstimates(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "estimate ledger not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.ledger.ListEstimates(r.Context(), r.URL.Query().Get("port"), limit)
	if err != nil {
		s.writeError(w, perrors.NewStoreError("list estimates", err))
		return
	}
	if recs == nil {
		recs = []*clickhouse.EstimateRecord{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"estimates": recs,
		"count":     len(recs),
	})
}
