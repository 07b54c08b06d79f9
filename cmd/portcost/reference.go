package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"portcall-cost/api"
	"portcall-cost/decision/calendar"
	"portcall-cost/decision/fees"
	"portcall-cost/decision/pilotage"
	"portcall-cost/decision/portinfo"
)

// =============================================================================
// PILOTAGE COMMANDS
// =============================================================================

func pilotageCommand() *cli.Command {
	flags := append(vesselFlags(), voyageFlags()...)
	flags = append(flags,
		&cli.StringSliceFlag{Name: "legs", Usage: "Movement leg types, in order; defaults to the zone's sequence"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "table", Usage: "Output format (table, json)"},
	)
	return &cli.Command{
		Name:   "pilotage",
		Usage:  "Price a pilotage job leg by leg",
		Flags:  flags,
		Action: runPilotage,
	}
}

func runPilotage(c *cli.Context) error {
	vessel, err := vesselFromFlags(c)
	if err != nil {
		return err
	}
	voy, err := voyageFromFlags(c)
	if err != nil {
		return err
	}
	var legs []pilotage.MovementLeg
	for i, legType := range c.StringSlice("legs") {
		legs = append(legs, pilotage.MovementLeg{Sequence: i + 1, LegType: strings.TrimSpace(legType)})
	}

	app, err := openApp(c, false)
	if err != nil {
		return err
	}
	defer app.Close()

	b, err := fees.NewEngine(app.Store, app.EngineOptions()...).PilotageBreakdown(context.Background(), vessel, voy, legs)
	if err != nil {
		return err
	}
	if c.String("output") == "json" {
		return writeJSON(c.App.Writer, b)
	}
	return writeBreakdownTable(c.App.Writer, b)
}

func ratesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rates",
		Usage: "Print the pilotage registry version in effect for a zone",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "zone", Aliases: []string{"z"}, Usage: "Pilotage zone code"},
			&cli.StringFlag{Name: "date", Usage: "As-of date (YYYY-MM-DD); defaults to today"},
			&cli.BoolFlag{Name: "list", Usage: "List configured zones"},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			cfg := loadConfig(c)
			reg, err := pilotage.OpenRegistry(ctx, cfg.PilotageRatesPath, pilotage.WithAWSRegion(cfg.AWSRegion))
			if err != nil {
				return err
			}
			if c.Bool("list") || c.String("zone") == "" {
				for _, z := range reg.Zones() {
					fmt.Fprintln(c.App.Writer, z)
				}
				return nil
			}

			asOf := time.Now().UTC()
			if raw := c.String("date"); raw != "" {
				if asOf, err = api.ParseTimestamp(raw); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			entry, err := reg.LoadRates(c.String("zone"), asOf)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, map[string]any{
				"source": reg.Source(),
				"rates":  entry,
			})
		},
	}
}

// =============================================================================
// HOLIDAYS COMMAND
// =============================================================================

func holidaysCommand() *cli.Command {
	return &cli.Command{
		Name:  "holidays",
		Usage: "List upcoming labour holidays for a West Coast zone",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "zone", Aliases: []string{"z"}, Value: "SOCAL", Usage: "Zone (SOCAL, NORCAL, PUGET, COLUMBIA, INLAND)"},
			&cli.StringFlag{Name: "from", Usage: "Start date (YYYY-MM-DD); defaults to today"},
			&cli.IntFlag{Name: "limit", Value: calendar.DefaultUpcomingLimit, Usage: "Number of holidays"},
		},
		Action: func(c *cli.Context) error {
			from := time.Now().UTC()
			if raw := c.String("from"); raw != "" {
				t, err := api.ParseTimestamp(raw)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				from = t
			}
			for _, h := range calendar.Upcoming(c.String("zone"), from, c.Int("limit")) {
				fmt.Fprintf(c.App.Writer, "%s  %-24s %s\n", h.Date, h.Name, h.Note)
			}
			return nil
		},
	}
}

// =============================================================================
// PORTS COMMAND
// =============================================================================

func portsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "Search the port catalog and list pre-arrival documents",
		Subcommands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Find ports by name or code",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "country", Usage: "Country code filter"},
					&cli.IntFlag{Name: "limit", Value: portinfo.DefaultSearchLimit, Usage: "Maximum results"},
				},
				Action: func(c *cli.Context) error {
					return withDirectory(c, func(ctx context.Context, dir *portinfo.Directory) error {
						hits, err := dir.Search(ctx, strings.Join(c.Args().Slice(), " "), c.String("country"), c.Int("limit"))
						if err != nil {
							return err
						}
						for _, h := range hits {
							fmt.Fprintf(c.App.Writer, "%-8s %-28s %-3s %s\n", h.Locode, h.PortName, h.CountryCode, h.ZoneCode)
						}
						return nil
					})
				},
			},
			{
				Name:      "resolve",
				Usage:     "Resolve a zone, port, UN/LOCODE or terminal to a port",
				ArgsUsage: "IDENTIFIER",
				Action: func(c *cli.Context) error {
					return withDirectory(c, func(ctx context.Context, dir *portinfo.Directory) error {
						resolved, err := dir.Resolve(ctx, strings.Join(c.Args().Slice(), " "))
						if err != nil {
							return err
						}
						return writeJSON(c.App.Writer, resolved)
					})
				},
			},
			{
				Name:  "documents",
				Usage: "List the documents required before arrival",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Required: true, Usage: "Arrival port code"},
					&cli.StringFlag{Name: "type", Usage: "Vessel type"},
					&cli.StringFlag{Name: "prev", Usage: "Previous port code; blank counts as foreign"},
				},
				Action: func(c *cli.Context) error {
					return withDirectory(c, func(ctx context.Context, dir *portinfo.Directory) error {
						docs, err := dir.DocumentRequirements(ctx, c.String("port"), c.String("type"), c.String("prev"))
						if err != nil {
							return err
						}
						for _, d := range docs {
							req := "optional"
							if d.IsMandatory {
								req = "mandatory"
							}
							fmt.Fprintf(c.App.Writer, "%-12s %-56s %-10s %4dh  %s\n", d.DocumentCode, d.DocumentName, d.Authority, d.LeadTimeHours, req)
						}
						return nil
					})
				},
			},
		},
	}
}

func withDirectory(c *cli.Context, fn func(context.Context, *portinfo.Directory) error) error {
	app, err := openApp(c, false)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(context.Background(), portinfo.NewDirectory(app.Store, app.Logger))
}
