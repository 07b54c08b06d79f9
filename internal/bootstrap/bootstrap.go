// Package bootstrap wires process configuration into the stores, registry,
// live-data client and ledger shared by the CLI and the server binary.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"portcall-cost/api"
	"portcall-cost/db/clickhouse"
	"portcall-cost/db/feestore"
	"portcall-cost/decision/calendar"
	"portcall-cost/decision/fees"
	"portcall-cost/decision/live"
	"portcall-cost/decision/pilotage"
	"portcall-cost/internal/scheduler"
	"portcall-cost/pkg/platform"
)

// App holds the long-lived collaborators of one process.
type App struct {
	Config   platform.Config
	Store    *feestore.SQLStore
	Registry *pilotage.Registry
	Holidays *calendar.Checker
	Live     *live.Client
	Ledger   *clickhouse.Store
	Logger   zerolog.Logger
}

// Options control optional parts of the bootstrap.
type Options struct {
	// Migrate applies the embedded migrations after connecting.
	Migrate bool
	// Ledger connects the ClickHouse ledger when an address is configured.
	Ledger bool
}

// Open connects everything cfg enables. Callers must Close the result.
func Open(ctx context.Context, cfg platform.Config, opts Options, logger zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	store, err := feestore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	app.Store = store
	if opts.Migrate {
		if err := store.Migrate(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Registry, err = pilotage.OpenRegistry(ctx, cfg.PilotageRatesPath, pilotage.WithAWSRegion(cfg.AWSRegion))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to load pilotage registry: %w", err)
	}
	app.Holidays = calendar.DefaultChecker(logger)

	if cfg.LiveDataEnabled {
		app.Live = live.NewClient(live.Config{Timeout: cfg.LiveDataTimeout, TTL: cfg.LiveDataTTL}, logger)
	}

	if opts.Ledger && strings.TrimSpace(cfg.ClickHouseAddr) != "" {
		ledger, err := clickhouse.NewStore(&clickhouse.Config{
			Addr:     platform.SplitList(cfg.ClickHouseAddr),
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err == nil {
			if err = ledger.EnsureSchema(ctx); err != nil {
				ledger.Close()
			}
		}
		if err != nil {
			// the ledger is optional; run without it
			logger.Warn().Err(err).Msg("Estimate ledger unavailable")
		} else {
			app.Ledger = ledger
		}
	}

	logger.Info().
		Str("driver", cfg.DatabaseDriver).
		Str("registry", app.Registry.Source()).
		Bool("live_data", app.Live != nil).
		Bool("ledger", app.Ledger != nil).
		Msg("Application initialized")
	return app, nil
}

// Close releases every connection.
func (a *App) Close() {
	if a.Ledger != nil {
		a.Ledger.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// EngineOptions are the fee engine options implied by the configuration.
func (a *App) EngineOptions() []fees.Option {
	opts := []fees.Option{
		fees.WithLogger(a.Logger),
		fees.WithRegistry(a.Registry),
		fees.WithHolidayChecker(a.Holidays),
		fees.WithContractProfile(a.Config.ContractProfile),
		fees.WithLegacyOptionalServices(a.Config.ShowLegacyOptional),
	}
	if a.Live != nil {
		opts = append(opts, fees.WithAdvisor(a.Live))
	}
	return opts
}

// Server builds the HTTP server over the app.
func (a *App) Server(cfg *api.Config) *api.Server {
	opts := []api.Option{
		api.WithLogger(a.Logger),
		api.WithRegistry(a.Registry),
		api.WithHolidayChecker(a.Holidays),
	}
	if a.Live != nil {
		opts = append(opts, api.WithAdvisor(a.Live))
	}
	if a.Ledger != nil {
		opts = append(opts, api.WithLedger(a.Ledger))
	}
	return api.NewServer(a.Store, cfg, opts...)
}

// StartLiveRefresh schedules live cache refreshes. It returns nil when live
// data is disabled.
func (a *App) StartLiveRefresh() (*scheduler.Scheduler, error) {
	if a.Live == nil {
		return nil, nil
	}
	s := scheduler.New(a.Config.LiveDataTimeout*4, a.Logger)
	if err := s.AddJob(a.Config.LiveRefreshSchedule, scheduler.RefreshJob{JobName: "live_refresh", Target: a.Live}); err != nil {
		return nil, fmt.Errorf("failed to schedule live refresh: %w", err)
	}
	s.Start()
	return s, nil
}
