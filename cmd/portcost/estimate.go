package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"portcall-cost/api"
	"portcall-cost/db/clickhouse"
	"portcall-cost/decision/fees"
)

// =============================================================================
// VESSEL & VOYAGE FLAGS
// =============================================================================

func vesselFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "vessel", Value: "UNNAMED", Usage: "Vessel name"},
		&cli.StringFlag{Name: "imo", Usage: "IMO number"},
		&cli.StringFlag{Name: "type", Value: "general_cargo", Usage: "Vessel type (container, tanker, bulk_carrier, ...)"},
		&cli.StringFlag{Name: "gt", Value: "0", Usage: "Gross tonnage"},
		&cli.StringFlag{Name: "nt", Value: "0", Usage: "Net tonnage"},
		&cli.StringFlag{Name: "loa", Value: "0", Usage: "Length overall in meters"},
		&cli.StringFlag{Name: "beam", Value: "0", Usage: "Beam in meters"},
		&cli.StringFlag{Name: "draft", Value: "0", Usage: "Draft in meters"},
	}
}

func voyageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Arrival port code", Required: true},
		&cli.StringFlag{Name: "eta", Usage: "Estimated arrival (YYYY-MM-DD or ISO date-time)", Required: true},
		&cli.StringFlag{Name: "etd", Usage: "Estimated departure"},
		&cli.StringFlag{Name: "prev", Usage: "Previous port code"},
		&cli.StringFlag{Name: "next", Usage: "Next port code"},
		&cli.IntFlag{Name: "days", Value: 1, Usage: "Days alongside"},
		&cli.StringFlag{Name: "arrival-type", Usage: "FOREIGN or COASTWISE when no previous port is known"},
	}
}

func decimalFlag(c *cli.Context, name string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.String(name))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return d, nil
}

// vesselFromFlags reuses the API input validation.
func vesselFromFlags(c *cli.Context) (fees.VesselSpecs, error) {
	in := api.VesselInput{
		Name:       c.String("vessel"),
		IMONumber:  c.String("imo"),
		VesselType: c.String("type"),
	}
	targets := []struct {
		flag string
		dst  *decimal.Decimal
	}{
		{"gt", &in.GrossTonnage},
		{"nt", &in.NetTonnage},
		{"loa", &in.LOAMeters},
		{"beam", &in.BeamMeters},
		{"draft", &in.DraftMeters},
	}
	for _, t := range targets {
		d, err := decimalFlag(c, t.flag)
		if err != nil {
			return fees.VesselSpecs{}, err
		}
		*t.dst = d
	}
	return in.Specs()
}

func voyageFromFlags(c *cli.Context) (fees.VoyageContext, error) {
	in := api.VoyageInput{
		PreviousPortCode: c.String("prev"),
		ArrivalPortCode:  c.String("port"),
		NextPortCode:     c.String("next"),
		DaysAlongside:    c.Int("days"),
		ArrivalType:      c.String("arrival-type"),
	}
	eta, err := api.ParseTimestamp(c.String("eta"))
	if err != nil {
		return fees.VoyageContext{}, fmt.Errorf("invalid --eta: %w", err)
	}
	in.ETA = api.Timestamp{Time: eta}
	if raw := c.String("etd"); raw != "" {
		etd, err := api.ParseTimestamp(raw)
		if err != nil {
			return fees.VoyageContext{}, fmt.Errorf("invalid --etd: %w", err)
		}
		in.ETD = &api.Timestamp{Time: etd}
	}
	return in.Context()
}

// =============================================================================
// ESTIMATE COMMAND
// =============================================================================

func estimateCommand() *cli.Command {
	flags := append(vesselFlags(), voyageFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "ytd-cbp", Value: "0", Usage: "CBP user fees already paid this calendar year"},
		&cli.StringFlag{Name: "tonnage-paid", Value: "0", Usage: "Tonnage tax already paid this tonnage year"},
		&cli.BoolFlag{Name: "legacy-optional", Usage: "Include launch, garbage and fresh water services"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "table", Usage: "Output format (table, json, markdown)"},
		&cli.BoolFlag{Name: "record", Usage: "Record the estimate in the ClickHouse ledger"},
	)
	return &cli.Command{
		Name:   "estimate",
		Usage:  "Estimate every fee for one port call",
		Flags:  flags,
		Action: runEstimate,
	}
}

func runEstimate(c *cli.Context) error {
	ctx := context.Background()

	vessel, err := vesselFromFlags(c)
	if err != nil {
		return err
	}
	voyage, err := voyageFromFlags(c)
	if err != nil {
		return err
	}
	ytd, err := decimalFlag(c, "ytd-cbp")
	if err != nil {
		return err
	}
	tonnagePaid, err := decimalFlag(c, "tonnage-paid")
	if err != nil {
		return err
	}

	app, err := openApp(c, c.Bool("record"))
	if err != nil {
		return err
	}
	defer app.Close()

	opts := append(app.EngineOptions(),
		fees.WithYTDCBPPaid(ytd),
		fees.WithTonnageYearPaid(tonnagePaid),
	)
	if c.Bool("legacy-optional") {
		opts = append(opts, fees.WithLegacyOptionalServices(true))
	}
	report, err := fees.NewEngine(app.Store, opts...).CalculateComprehensive(ctx, vessel, voyage)
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	if c.Bool("record") {
		if app.Ledger == nil {
			app.Logger.Warn().Msg("--record ignored: CLICKHOUSE_ADDR is not configured")
		} else {
			rec, err := clickhouse.RecordFromReport(report)
			if err != nil {
				return err
			}
			if err := app.Ledger.RecordEstimate(ctx, rec); err != nil {
				return err
			}
			fmt.Fprintf(c.App.ErrWriter, "Recorded estimate %s\n", rec.EstimateID)
		}
	}

	switch c.String("output") {
	case "json":
		return writeJSON(c.App.Writer, report)
	case "markdown":
		return writeReportMarkdown(c.App.Writer, report)
	default:
		return writeReportTable(c.App.Writer, report)
	}
}
