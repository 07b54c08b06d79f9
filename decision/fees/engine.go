// Package fees is the port-call fee calculation engine. It resolves every
// applicable charge for one call, preferring database-configured rates and
// falling back to documented formulas, then aggregates the result.
package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"portcall-cost/db/feestore"
	"portcall-cost/decision/calendar"
	"portcall-cost/decision/live"
	"portcall-cost/decision/pilotage"
	perrors "portcall-cost/pkg/errors"
)

// Advisor supplies best-effort live data. Implementations must return
// empty values rather than fail.
type Advisor interface {
	FetchAPHISVesselFees(ctx context.Context) live.APHISFees
	FetchMISPSnapshot(ctx context.Context) live.MISPSnapshot
	MXSnapshotForRegion(ctx context.Context, region string) live.MXSnapshot
}

// Engine computes estimates for one port call. It holds per-instance caches
// and is not safe for concurrent use; build one engine per estimate.
type Engine struct {
	store    feestore.Store
	registry *pilotage.Registry
	holidays *calendar.Checker
	advisor  Advisor
	logger   zerolog.Logger

	contractProfile    string
	showLegacyOptional bool
	ytdCBPPaid         decimal.Decimal
	tonnageYearPaid    decimal.Decimal

	vesselTypes map[string]*feestore.VesselTypeConfig
	rates       map[rateKey]rateResult
	adjustments map[adjustmentKey]*feestore.ContractAdjustment
}

type rateKey struct {
	zone string
	on   time.Time
}

type rateResult struct {
	entry *pilotage.RateEntry
	err   error
}

type adjustmentKey struct {
	feeCode  string
	on       time.Time
	portCode string
}

// Option configures an Engine.
type Option func(*Engine)

// WithContractProfile enables the contract adjustment overlay for profile.
func WithContractProfile(profile string) Option {
	return func(e *Engine) { e.contractProfile = profile }
}

// WithLegacyOptionalServices includes launch, garbage and fresh water.
func WithLegacyOptionalServices(show bool) Option {
	return func(e *Engine) { e.showLegacyOptional = show }
}

// WithRegistry sets the pilotage rate registry; the default is the process-wide registry.
func WithRegistry(r *pilotage.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithHolidayChecker replaces the federal+state holiday checker.
func WithHolidayChecker(c *calendar.Checker) Option {
	return func(e *Engine) { e.holidays = c }
}

// WithAdvisor enables live-data enrichment.
func WithAdvisor(a Advisor) Option {
	return func(e *Engine) { e.advisor = a }
}

// WithYTDCBPPaid sets the CBP fees already paid this calendar year.
func WithYTDCBPPaid(paid decimal.Decimal) Option {
	return func(e *Engine) { e.ytdCBPPaid = paid }
}

// WithTonnageYearPaid sets the tonnage tax already paid this tonnage year.
func WithTonnageYearPaid(paid decimal.Decimal) Option {
	return func(e *Engine) { e.tonnageYearPaid = paid }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine over store.
func NewEngine(store feestore.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		logger:          zerolog.Nop(),
		ytdCBPPaid:      decimal.Zero,
		tonnageYearPaid: decimal.Zero,
		vesselTypes:     make(map[string]*feestore.VesselTypeConfig),
		rates:           make(map[rateKey]rateResult),
		adjustments:     make(map[adjustmentKey]*feestore.ContractAdjustment),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "fee_engine").Logger()
	if e.holidays == nil {
		e.holidays = calendar.DefaultChecker(e.logger)
	}
	return e
}

// ContractProfile returns the configured profile, if any.
func (e *Engine) ContractProfile() string { return e.contractProfile }

// ===== LOOKUPS =====

func (e *Engine) getPort(ctx context.Context, code string) (*feestore.Port, error) {
	port, err := e.store.GetPort(ctx, code)
	if errors.Is(err, feestore.ErrPortNotFound) {
		return nil, perrors.NewUnknownPortError(code, err)
	}
	if err != nil {
		return nil, perrors.NewStoreError("load port "+code, err)
	}
	return port, nil
}

// resolve looks up the active fee row for code and hands it to fromDB, or
// calls fallback when no row matches.
func (e *Engine) resolve(ctx context.Context, code string, on time.Time, port *feestore.Port,
	fromDB func(*feestore.Fee) FeeCalculation, fallback func() FeeCalculation) (FeeCalculation, error) {
	fee, err := e.store.FindActiveFee(ctx, code, on, port)
	if err != nil {
		return FeeCalculation{}, perrors.NewStoreError("resolve fee "+code, err)
	}
	if fee != nil {
		calc := fromDB(fee)
		calc.Source = SourceDatabase
		return calc, nil
	}
	calc := fallback()
	if calc.Source == "" {
		calc.Source = SourceFallback
	}
	return calc, nil
}

// activeRate returns the rate of an optional per-port override row.
func (e *Engine) activeRate(ctx context.Context, code string, on time.Time, port *feestore.Port) (decimal.NullDecimal, error) {
	fee, err := e.store.FindActiveFee(ctx, code, on, port)
	if err != nil {
		return decimal.NullDecimal{}, perrors.NewStoreError("resolve fee "+code, err)
	}
	if fee == nil {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(fee.Rate), nil
}

func (e *Engine) vesselTypeConfig(ctx context.Context, vt VesselType) (*feestore.VesselTypeConfig, error) {
	key := string(vt)
	if cfg, ok := e.vesselTypes[key]; ok {
		return cfg, nil
	}
	cfg, err := e.store.GetVesselTypeConfig(ctx, key)
	if err != nil {
		return nil, perrors.NewStoreError("load vessel type "+key, err)
	}
	e.vesselTypes[key] = cfg
	return cfg, nil
}

func (e *Engine) pilotageRates(ctx context.Context, zone string, on time.Time) (*pilotage.RateEntry, error) {
	key := rateKey{zone: zone, on: on}
	if r, ok := e.rates[key]; ok {
		return r.entry, r.err
	}
	reg := e.registry
	if reg == nil {
		var err error
		if reg, err = pilotage.DefaultRegistry(ctx); err != nil {
			return nil, fmt.Errorf("failed to open pilotage registry: %w", err)
		}
	}
	entry, err := reg.LoadRates(zone, on)
	e.rates[key] = rateResult{entry: entry, err: err}
	return entry, err
}

func (e *Engine) contractAdjustment(ctx context.Context, feeCode string, on time.Time, portCode string) (*feestore.ContractAdjustment, error) {
	key := adjustmentKey{feeCode: feeCode, on: on, portCode: portCode}
	if adj, ok := e.adjustments[key]; ok {
		return adj, nil
	}
	adj, err := e.store.FindContractAdjustment(ctx, e.contractProfile, feeCode, on, portCode)
	if err != nil {
		return nil, perrors.NewStoreError("load contract adjustment "+feeCode, err)
	}
	e.adjustments[key] = adj
	return adj, nil
}

func (e *Engine) isHoliday(on time.Time, state string) bool {
	return e.holidays.IsHoliday(on, state)
}

// ===== LIVE DATA =====

type liveData struct {
	aphis  live.APHISFees
	misp   live.MISPSnapshot
	mx     live.MXSnapshot
	region string
}

// prefetchLive runs the advisory fetches concurrently. It never fails.
func (e *Engine) prefetchLive(ctx context.Context, port *feestore.Port) liveData {
	var d liveData
	if e.advisor == nil {
		return d
	}
	d.region = live.ChooseRegion(port.Code, port.Name, port.State, port.IsCascadia)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.aphis = e.advisor.FetchAPHISVesselFees(gctx)
		return nil
	})
	if port.IsCalifornia {
		g.Go(func() error {
			d.misp = e.advisor.FetchMISPSnapshot(gctx)
			return nil
		})
	}
	g.Go(func() error {
		d.mx = e.advisor.MXSnapshotForRegion(gctx, d.region)
		return nil
	})
	_ = g.Wait()

	e.logger.Debug().
		Str("region", d.region).
		Bool("aphis", d.aphis.StandardFee.Valid || d.aphis.CascadiaFee.Valid).
		Bool("misp", d.misp.CurrentFee.Valid).
		Bool("mx", d.mx.Primary != nil).
		Msg("Live data prefetched")
	return d
}
