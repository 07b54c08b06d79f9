package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"portcall-cost/api"
	"portcall-cost/db/feestore"
	"portcall-cost/internal/bootstrap"
)

// =============================================================================
// MIGRATE COMMAND
// =============================================================================

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the fee database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply pending migrations",
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, store *feestore.SQLStore) error {
						if err := store.Migrate(ctx); err != nil {
							return err
						}
						return printVersion(ctx, c, store)
					})
				},
			},
			{
				Name:  "status",
				Usage: "Print the applied schema version",
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, store *feestore.SQLStore) error {
						return printVersion(ctx, c, store)
					})
				},
			},
		},
	}
}

func withStore(c *cli.Context, fn func(context.Context, *feestore.SQLStore) error) error {
	ctx := context.Background()
	cfg := loadConfig(c)
	store, err := feestore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, newLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func printVersion(ctx context.Context, c *cli.Context, store *feestore.SQLStore) error {
	version, err := store.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "schema version %d\n", version)
	return nil
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"PORT"},
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Value: true,
				Usage: "Apply migrations on startup",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg := loadConfig(c)
	logger := newLogger(cfg)

	app, err := bootstrap.Open(context.Background(), cfg, bootstrap.Options{
		Migrate: c.Bool("migrate"),
		Ledger:  true,
	}, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	sched, err := app.StartLiveRefresh()
	if err != nil {
		return err
	}
	if sched != nil {
		defer sched.Stop()
	}

	serverCfg := api.ConfigFromPlatform(cfg)
	serverCfg.Port = c.Int("port")
	return app.Server(serverCfg).StartWithGracefulShutdown()
}
