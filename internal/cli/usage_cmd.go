// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// usage_cmd.go - Token usage ledger summary.
//
// Command: usage
// Short:   Show token usage and estimated cost
//
// Examples:
//   claude-chat usage                 All-time totals and recent sessions
//   claude-chat usage --since 24h     Totals for the last day
//   claude-chat usage --json          Machine-readable output
//
// Output Fields:
//   Model      Model identifier reported by the API
//   Calls      Successful API calls
//   Input      Input tokens
//   Output     Output tokens
//   Cost       Estimated cost in USD from the model price table

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/claude-chat/internal/telemetry"
	"github.com/jeranaias/claude-chat/internal/util"
)

const (
	modelColumnWidth   = 28
	sessionColumnWidth = 12
)

type usageFlags struct {
	since    time.Duration
	sessions int
	json     bool
}

// usageReport is the --json shape.
type usageReport struct {
	Since    *time.Time                 `json:"since,omitempty"`
	Models   []telemetry.ModelTotal     `json:"models"`
	Sessions []telemetry.SessionSummary `json:"sessions"`
}

func newUsageCommand(flags *rootFlags) *cobra.Command {
	uf := &usageFlags{}
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show token usage and estimated cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsage(cmd, flags, uf)
		},
	}
	cmd.Flags().DurationVar(&uf.since, "since", 0, "Only count calls within this window (e.g. 24h)")
	cmd.Flags().IntVar(&uf.sessions, "sessions", 10, "Number of recent sessions to list")
	cmd.Flags().BoolVar(&uf.json, "json", false, "Output in JSON format")
	return cmd
}

func runUsage(cmd *cobra.Command, flags *rootFlags, uf *usageFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	if cfg.Telemetry.UsageDB == "" {
		return NewCommandError("usage", "show", "usage ledger disabled (telemetry.usage_db is empty)", nil)
	}

	store, err := telemetry.OpenUsageStore(cfg.Telemetry.UsageDB)
	if err != nil {
		return NewCommandError("usage", "show", "cannot open usage ledger", err)
	}
	defer store.Close()

	report := usageReport{}
	var since time.Time
	if uf.since > 0 {
		since = time.Now().Add(-uf.since)
		report.Since = &since
	}

	ctx := cmd.Context()
	if report.Models, err = store.Totals(ctx, since); err != nil {
		return NewCommandError("usage", "show", "cannot read totals", err)
	}
	if report.Sessions, err = store.RecentSessions(ctx, uf.sessions); err != nil {
		return NewCommandError("usage", "show", "cannot read sessions", err)
	}

	out := cmd.OutOrStdout()
	if uf.json {
		if report.Models == nil {
			report.Models = []telemetry.ModelTotal{}
		}
		if report.Sessions == nil {
			report.Sessions = []telemetry.SessionSummary{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	printUsageReport(out, report)
	return nil
}

func printUsageReport(out io.Writer, report usageReport) {
	window := "all time"
	if report.Since != nil {
		window = "since " + report.Since.Format("2006-01-02 15:04")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Token Usage")+" "+DimStyle.Render("("+window+")"))
	fmt.Fprintln(out, RenderSeparator())

	if len(report.Models) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No usage recorded yet."))
		fmt.Fprintln(out)
		return
	}

	fmt.Fprintln(out, LabelStyle.Render(usageRow("MODEL", modelColumnWidth, "CALLS", "INPUT", "OUTPUT", "COST")))
	var total telemetry.ModelTotal
	for _, m := range report.Models {
		fmt.Fprintln(out, usageRow(util.TruncateWidth(m.Model, modelColumnWidth), modelColumnWidth,
			fmt.Sprint(m.Calls), fmt.Sprint(m.InputTokens), fmt.Sprint(m.OutputTokens), formatCost(m.CostUSD)))
		total.Calls += m.Calls
		total.InputTokens += m.InputTokens
		total.OutputTokens += m.OutputTokens
		total.CostUSD += m.CostUSD
	}
	fmt.Fprintln(out, SectionStyle.Render(usageRow("TOTAL", modelColumnWidth,
		fmt.Sprint(total.Calls), fmt.Sprint(total.InputTokens), fmt.Sprint(total.OutputTokens), formatCost(total.CostUSD))))

	if len(report.Sessions) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, TitleStyle.Render("Recent Sessions"))
		fmt.Fprintln(out, RenderSeparator())
		fmt.Fprintln(out, LabelStyle.Render(
			util.PadRight("SESSION", sessionColumnWidth)+util.PadRight("STARTED", 18)+
				fmt.Sprintf("%8s %10s %10s %10s", "CALLS", "INPUT", "OUTPUT", "COST")))
		for _, s := range report.Sessions {
			fmt.Fprintln(out,
				util.PadRight(util.TruncateRunes(s.SessionID, sessionColumnWidth-2), sessionColumnWidth)+
					util.PadRight(s.Start.Format("2006-01-02 15:04"), 18)+
					fmt.Sprintf("%8d %10d %10d %10s", s.Calls, s.InputTokens, s.OutputTokens, formatCost(s.CostUSD)))
		}
	}
	fmt.Fprintln(out)
}

func usageRow(name string, width int, calls, input, output, cost string) string {
	return util.PadRight(name, width) + fmt.Sprintf("%8s %10s %10s %10s", calls, input, output, cost)
}

// formatCost shows sub-cent amounts with enough precision to be non-zero.
func formatCost(usd float64) string {
	if usd > 0 && usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}
