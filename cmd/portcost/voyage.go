package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"portcall-cost/api"
	"portcall-cost/decision/advisory"
	"portcall-cost/decision/voyage"
)

// =============================================================================
// VOYAGE COMMAND
// =============================================================================

func voyageCommand() *cli.Command {
	flags := append(vesselFlags(),
		&cli.StringSliceFlag{Name: "ports", Usage: "Port rotation, in order (repeat or comma-separate)", Required: true},
		&cli.StringFlag{Name: "start", Usage: "Arrival date at the second port (YYYY-MM-DD)", Required: true},
		&cli.IntFlag{Name: "days", Value: 2, Usage: "Days in each port"},
		&cli.StringFlag{Name: "high-fee", Value: "15000", Usage: "Mandatory total above which a leg counts as high-fee"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "table", Usage: "Output format (table, json)"},
	)
	return &cli.Command{
		Name:   "voyage",
		Usage:  "Price a multi-port voyage leg by leg",
		Flags:  flags,
		Action: runVoyage,
	}
}

func runVoyage(c *cli.Context) error {
	vessel, err := vesselFromFlags(c)
	if err != nil {
		return err
	}
	start, err := api.ParseTimestamp(c.String("start"))
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	highFee, err := decimalFlag(c, "high-fee")
	if err != nil {
		return err
	}

	app, err := openApp(c, false)
	if err != nil {
		return err
	}
	defer app.Close()

	planner := voyage.NewPlanner(app.Store, app.Logger, app.EngineOptions()...).
		WithAdvisory(advisory.NewEngineWithPolicies(withHighFeeThreshold(highFee)))
	plan, err := planner.Plan(context.Background(), vessel, voyage.PortSequence{
		Ports:      c.StringSlice("ports"),
		StartDate:  start,
		DaysInPort: c.Int("days"),
	})
	if err != nil {
		return err
	}

	if c.String("output") == "json" {
		return writeJSON(c.App.Writer, plan)
	}
	return writePlanTable(c.App.Writer, plan)
}

func withHighFeeThreshold(threshold decimal.Decimal) []advisory.Policy {
	policies := advisory.DefaultPolicies()
	for i := range policies {
		if policies[i].Type == advisory.PolicyTypeHighFeeLegs {
			policies[i].Threshold = threshold
		}
	}
	return policies
}
