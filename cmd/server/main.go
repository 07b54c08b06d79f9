// Package main provides the port-call cost API server.
// It migrates the fee database, loads the pilotage registry and serves the
// estimation endpoints until SIGINT/SIGTERM.
package main

import (
	"context"
	"os"

	"portcall-cost/api"
	"portcall-cost/internal/bootstrap"
	"portcall-cost/pkg/platform"
)

func main() {
	cfg := platform.LoadConfig()
	logger := platform.NewLogger(platform.LoggerConfig{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	app, err := bootstrap.Open(context.Background(), cfg, bootstrap.Options{
		Migrate: true,
		Ledger:  true,
	}, logger)
	if err != nil {
		platform.LogFatal(logger, "Startup failed", err)
	}
	defer app.Close()

	sched, err := app.StartLiveRefresh()
	if err != nil {
		platform.LogFatal(logger, "Failed to schedule live data refresh", err)
	}
	if sched != nil {
		defer sched.Stop()
	}

	if err := app.Server(api.ConfigFromPlatform(cfg)).StartWithGracefulShutdown(); err != nil {
		logger.Error().Err(err).Msg("Server failed")
	}
}
