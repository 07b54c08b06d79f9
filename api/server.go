// Package api provides the HTTP API server for the port-call cost estimator.
// Every request builds its own fee engine; the server only holds shared,
// read-only collaborators.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"portcall-cost/db/clickhouse"
	"portcall-cost/db/feestore"
	"portcall-cost/decision/calendar"
	"portcall-cost/decision/fees"
	"portcall-cost/decision/pilotage"
	"portcall-cost/decision/portinfo"
	perrors "portcall-cost/pkg/errors"
	"portcall-cost/pkg/platform"
)

const version = "1.0.0"

// Ledger persists comprehensive estimates.
type Ledger interface {
	RecordEstimate(ctx context.Context, rec *clickhouse.EstimateRecord) error
	ListEstimates(ctx context.Context, port string, limit int) ([]*clickhouse.EstimateRecord, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	router     chi.Router
	store      feestore.Store
	ledger     Ledger
	registry   *pilotage.Registry
	holidays   *calendar.Checker
	advisor    fees.Advisor
	directory  *portinfo.Directory
	config     *Config
	logger     zerolog.Logger
	now        func() time.Time
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
	APIKey         string

	// Engine defaults applied to every request.
	ContractProfile    string
	ShowLegacyOptional bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 60 * time.Second,
		MaxRequestSize: 1 << 20, // 1MB
		CORSOrigins:    []string{"*"},
	}
}

// ConfigFromPlatform maps process configuration onto server configuration.
func ConfigFromPlatform(cfg platform.Config) *Config {
	c := DefaultConfig()
	c.Port = cfg.Port
	c.CORSOrigins = cfg.CORSAllowedOrigins
	c.APIKey = cfg.APIKey
	c.ContractProfile = cfg.ContractProfile
	c.ShowLegacyOptional = cfg.ShowLegacyOptional
	return c
}

// Option configures a Server.
type Option func(*Server)

// WithLedger enables estimate recording and the listing endpoint.
func WithLedger(l Ledger) Option {
	return func(s *Server) { s.ledger = l }
}

// WithRegistry sets the pilotage registry handed to every engine.
func WithRegistry(r *pilotage.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithHolidayChecker sets the holiday checker handed to every engine.
func WithHolidayChecker(c *calendar.Checker) Option {
	return func(s *Server) { s.holidays = c }
}

// WithAdvisor enables live-data enrichment.
func WithAdvisor(a fees.Advisor) Option {
	return func(s *Server) { s.advisor = a }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock overrides the time source used for holiday listings.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new API server
func NewServer(store feestore.Store, config *Config, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		store:  store,
		config: config,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "api").Logger()
	if catalog, ok := store.(feestore.Catalog); ok {
		s.directory = portinfo.NewDirectory(catalog, s.logger)
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(platform.APIKeyMiddleware(s.config.APIKey))

		r.Post("/estimate", s.handleEstimate)
		r.Post("/estimate/comprehensive", s.handleComprehensive)
		r.Post("/pilotage/breakdown", s.handlePilotageBreakdown)
		r.Get("/pilotage/rates/{zone}", s.handlePilotageRates)
		r.Post("/voyage/multi-port", s.handleVoyage)
		r.Get("/holidays/{zone}", s.handleHolidays)
		r.Get("/ports/search", s.handlePortSearch)
		r.Get("/ports/resolve/{query}", s.handlePortResolve)
		r.Get("/ports/{code}", s.handlePort)
		r.Get("/documents/requirements", s.handleDocumentRequirements)
		r.Get("/estimates", s.handleListEstimates)
	})
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info().Int("port", s.config.Port).Str("version", version).Msg("API server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.logger.Info().Msg("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Fee store not ready")
			s.jsonError(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// engineOptions builds the per-request engine configuration. A non-empty
// profile overrides the configured contract profile.
func (s *Server) engineOptions(profile string) []fees.Option {
	if profile == "" {
		profile = s.config.ContractProfile
	}
	opts := []fees.Option{
		fees.WithLogger(s.logger),
		fees.WithLegacyOptionalServices(s.config.ShowLegacyOptional),
		fees.WithContractProfile(profile),
	}
	if s.registry != nil {
		opts = append(opts, fees.WithRegistry(s.registry))
	}
	if s.holidays != nil {
		opts = append(opts, fees.WithHolidayChecker(s.holidays))
	}
	if s.advisor != nil {
		opts = append(opts, fees.WithAdvisor(s.advisor))
	}
	return opts
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeError maps engine errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := perrors.CodeOf(err)
	switch {
	case code == perrors.ErrCodeUnknownPort:
		status = http.StatusNotFound
	case code == perrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case code == perrors.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	case code == perrors.ErrCodeRateConfig, errors.Is(err, pilotage.ErrRateConfig):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}

	body := map[string]any{
		"success": false,
		"error":   err.Error(),
	}
	if code != "" {
		body["code"] = code
	}
	s.jsonResponse(w, status, body)
}
