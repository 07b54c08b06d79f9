// portcost - port-call fee estimator
//
// Usage:
//
//	portcost estimate --port USOAK --eta 2025-09-15 --prev CNSHA --gt 50000 ...
//	portcost voyage --ports CNSHA,USOAK,USSEA --start 2025-09-01 ...
//	portcost rates --zone SOCAL --date 2025-09-15
//	portcost serve --port 8080
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"portcall-cost/db/feestore"
	"portcall-cost/internal/bootstrap"
	"portcall-cost/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "portcost",
		Usage:   "Estimate U.S. port-call fees for a vessel and voyage",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-pretty",
				Usage:   "Human-readable console logs",
				EnvVars: []string{"LOG_PRETTY"},
			},
			&cli.StringFlag{
				Name:    "db-driver",
				Usage:   "Database driver (sqlite, postgres)",
				EnvVars: []string{"DATABASE_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "Database DSN",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "rates",
				Usage:   "Pilotage rates registry (local path or s3://bucket/key)",
				EnvVars: []string{"PILOTAGE_RATES_PATH"},
			},
			&cli.StringFlag{
				Name:    "contract",
				Usage:   "Contract profile applied to every fee",
				EnvVars: []string{"CONTRACT_PROFILE"},
			},
		},

		Commands: []*cli.Command{
			estimateCommand(),
			voyageCommand(),
			pilotageCommand(),
			ratesCommand(),
			holidaysCommand(),
			portsCommand(),
			migrateCommand(),
			serveCommand(),
		},
	}
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(c *cli.Context) platform.Config {
	cfg := platform.LoadConfig()
	if v := c.String("db-driver"); v != "" {
		cfg.DatabaseDriver = v
	}
	if v := c.String("db-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := c.String("rates"); v != "" {
		cfg.PilotageRatesPath = v
	}
	if v := c.String("contract"); v != "" {
		cfg.ContractProfile = v
	}
	cfg.LogLevel = c.String("log-level")
	cfg.LogPretty = c.Bool("log-pretty")
	return cfg
}

func newLogger(cfg platform.Config) zerolog.Logger {
	return platform.NewLogger(platform.LoggerConfig{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
}

// openApp connects the configured store. Local SQLite databases are migrated
// on open so a fresh checkout works without a separate migrate step.
func openApp(c *cli.Context, ledger bool) (*bootstrap.App, error) {
	cfg := loadConfig(c)
	return bootstrap.Open(context.Background(), cfg, bootstrap.Options{
		Migrate: cfg.DatabaseDriver == feestore.DriverSQLite,
		Ledger:  ledger,
	}, newLogger(cfg))
}
