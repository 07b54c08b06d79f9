package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"portcall-cost/decision/fees"
	"portcall-cost/decision/pilotage"
	"portcall-cost/decision/voyage"
	"portcall-cost/pkg/units"
)

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

const rule = "══════════════════════════════════════════════════════════════════"

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReportTable(w io.Writer, r *fees.Report) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  PORT CALL ESTIMATE  %s -> %s (%s)\n", orDash(r.Voyage.PreviousPort), r.Voyage.ArrivalPort, r.Voyage.ArrivalType)
	fmt.Fprintf(w, "  Vessel: %-24s  ETA: %s  Zone: %s\n", truncate(r.Vessel.Name, 24), r.Voyage.ETA.Format("2006-01-02"), r.PortZone)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %-34s %14s  %s\n", "FEE", "AMOUNT", "CONF")
	for _, c := range r.Calculations {
		name := c.Name
		if c.IsOptional {
			name += " (opt)"
		}
		amount := "$" + units.MoneyString(c.FinalAmount)
		if c.ManualEntry {
			amount = "manual"
		}
		fmt.Fprintf(w, "  %-34s %14s  %s%%\n", truncate(name, 34), amount, units.Percent(c.Confidence))
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %-34s %14s\n", "Mandatory", "$"+units.MoneyString(r.Totals.Mandatory))
	fmt.Fprintf(w, "  %-34s %14s\n", "Optional (low)", "$"+units.MoneyString(r.Totals.OptionalLow))
	fmt.Fprintf(w, "  %-34s %14s\n", "Optional (high)", "$"+units.MoneyString(r.Totals.OptionalHigh))
	fmt.Fprintf(w, "  %-34s %14s\n", "Total range", "$"+units.MoneyString(r.Totals.TotalLow)+" - $"+units.MoneyString(r.Totals.TotalHigh))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %s\n", r.AccuracyStatement)
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
	fmt.Fprintf(w, "  %s\n", r.Disclaimer)
	return nil
}

func writeReportMarkdown(w io.Writer, r *fees.Report) error {
	fmt.Fprintf(w, "## Port Call Estimate: %s\n\n", r.Voyage.ArrivalPort)
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	fmt.Fprintf(w, "| **Vessel** | %s |\n", r.Vessel.Name)
	fmt.Fprintf(w, "| **Arrival** | %s (%s) |\n", r.Voyage.ETA.Format("2006-01-02"), r.Voyage.ArrivalType)
	fmt.Fprintf(w, "| **Mandatory** | $%s |\n", units.MoneyString(r.Totals.Mandatory))
	fmt.Fprintf(w, "| **Total range** | $%s - $%s |\n", units.MoneyString(r.Totals.TotalLow), units.MoneyString(r.Totals.TotalHigh))
	fmt.Fprintf(w, "| **Confidence** | %s%% |\n", units.Percent(r.Confidence))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Fees")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Code | Fee | Amount | Details |")
	fmt.Fprintln(w, "|------|-----|--------|---------|")
	for _, c := range r.Calculations {
		amount := "$" + units.MoneyString(c.FinalAmount)
		switch {
		case c.ManualEntry:
			amount = "manual quote"
		case c.IsOptional && c.EstimatedRange != nil:
			amount = fmt.Sprintf("$%s - $%s", units.MoneyString(c.EstimatedRange.Low), units.MoneyString(c.EstimatedRange.High))
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n", c.Code, c.Name, amount, strings.ReplaceAll(c.Details, "|", "/"))
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Warnings")
		fmt.Fprintln(w)
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "_%s %s_\n", r.AccuracyStatement, r.Disclaimer)
	return nil
}

func writePlanTable(w io.Writer, p *voyage.Plan) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %-3s %-7s %-7s %-10s %-9s %12s %12s\n", "LEG", "FROM", "TO", "ETA", "TYPE", "MANDATORY", "OPT HIGH")
	for _, l := range p.Legs {
		flag := ""
		if l.WeekendArrival {
			flag += " wknd"
		}
		if l.HolidayArrival {
			flag += " hol"
		}
		fmt.Fprintf(w, "  %-3d %-7s %-7s %-10s %-9s %12s %12s%s\n",
			l.Leg, l.From, l.To, l.ETA.Format("2006-01-02"), l.ArrivalType,
			units.MoneyString(l.Fees.Mandatory), units.MoneyString(l.Fees.OptionalHigh), flag)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Mandatory: $%s   With optional: $%s %s\n",
		units.MoneyString(p.Totals.Mandatory), units.MoneyString(p.Totals.WithOptional), p.Totals.Currency)
	fmt.Fprintf(w, "  %d ports, %d legs, %d days in port (%s to %s)\n",
		p.Summary.TotalPorts, p.Summary.TotalLegs, p.Summary.TotalDaysInPort,
		p.Summary.StartDate.Format("2006-01-02"), p.Summary.EndDate.Format("2006-01-02"))
	for _, s := range p.Suggestions {
		fmt.Fprintf(w, "  * %s\n", s)
	}
	return nil
}

func writeBreakdownTable(w io.Writer, b *pilotage.Breakdown) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  PILOTAGE  zone %s", b.PortZone)
	if b.EffectiveDate != nil {
		fmt.Fprintf(w, "  (rates effective %s)", b.EffectiveDate.Format("2006-01-02"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	for _, l := range b.Legs {
		class := l.Classification
		if class == "" {
			class = "-"
		}
		fmt.Fprintf(w, "  %-3d %-16s %-14s %12s\n", l.Sequence, truncate(l.LegType, 16), class, units.MoneyString(l.Total))
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Job total: $%s  (multiplier %s)\n", units.MoneyString(b.JobTotal), units.RateString(b.Audit.AppliedMultiplier))
	if b.Audit.Fallback {
		fmt.Fprintf(w, "  Fallback formula: %s\n", b.Audit.Reason)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
