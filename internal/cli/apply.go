package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/gate"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
	"github.com/ChrisB0-2/euicc-gate/internal/runlock"
)

func (a *app) applyCmd() *cobra.Command {
	var dryRun, jsonOut bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Evaluate the policy and set the target packages' enabled state",
		Long: `Apply reads the SKU and dependency state, decides whether the target
packages should be enabled, and writes that state to every target.

The mode comes from execution.mode in the config file; --dry-run forces a
plan-only run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := core.Mode(a.cfg.Execution.Mode)
			if dryRun {
				mode = core.ModeDryRun
			}
			return a.runGate(cmd, mode, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only, do not write package state")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the run report as JSON")

	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the decision and plan without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGate(cmd, core.ModeDryRun, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the run report as JSON")

	return cmd
}

// runGate performs one evaluate-and-apply run and prints its report.
func (a *app) runGate(cmd *cobra.Command, mode core.Mode, jsonOut bool) error {
	ctx := cmd.Context()
	if t := a.cfg.Execution.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	if mode == core.ModeExecute {
		lock, err := runlock.Acquire(a.cfg.Execution.LockFile)
		if err != nil {
			return err
		}
		if lock != nil {
			a.log.Debug("run lock acquired", logger.F("path", lock.Path()))
			a.closers = append(a.closers, lock)
		}
	}

	dev, err := a.openDevice(ctx)
	if err != nil {
		return err
	}
	aud, err := a.openAuditor()
	if err != nil {
		return err
	}

	opts := gate.Options{
		SKUProperty:  a.cfg.Device.SKUProperty,
		ReservedSKUs: a.cfg.Policy.ReservedSKUs,
		Dependencies: a.cfg.Policy.Dependencies,
		Targets:      a.cfg.Policy.Targets,
		Logger:       a.log,
		Auditor:      aud,
	}
	prom := a.openMetrics()
	if prom != nil {
		opts.Metrics = prom
	}

	rep, runErr := gate.New(dev.props, dev.reg, opts).Run(ctx, mode)

	if mode == core.ModeExecute {
		if err := dev.persist(); err != nil {
			a.log.Error("failed to save fixture", logger.F("error", err.Error()))
		}
	}
	for _, c := range a.closers {
		if ew, ok := c.(interface{ Err() error }); ok {
			if err := ew.Err(); err != nil {
				a.log.Warn("audit write error", logger.F("error", err.Error()))
			}
		}
	}
	if prom != nil {
		if err := prom.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
			a.log.Warn("failed to write metrics", logger.F("error", err.Error()))
		}
	}

	if err := printReport(cmd.OutOrStdout(), rep, jsonOut); err != nil {
		return err
	}
	return runErr
}

type reportJSON struct {
	RunID      string       `json:"run_id"`
	Mode       string       `json:"mode"`
	SKU        string       `json:"sku"`
	Disable    bool         `json:"disable"`
	Reason     string       `json:"reason,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	Targets    []targetJSON `json:"targets"`
}

type targetJSON struct {
	Package string `json:"package"`
	Desired string `json:"desired"`
	Current string `json:"current"`
	Applied bool   `json:"applied"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func printReport(w io.Writer, rep gate.Report, jsonOut bool) error {
	targets := make([]targetJSON, 0, len(rep.Plan))
	for i, it := range rep.Plan {
		t := targetJSON{
			Package: it.Package,
			Desired: it.Desired.String(),
			Current: currentState(it),
		}
		if i < len(rep.Results) {
			r := rep.Results[i]
			t.Applied = r.Applied
			t.Result = r.Reason
			if r.Err != nil {
				t.Error = r.Err.Error()
			}
		}
		targets = append(targets, t)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reportJSON{
			RunID:      rep.RunID,
			Mode:       string(rep.Mode),
			SKU:        rep.SKU,
			Disable:    rep.Decision.Disable,
			Reason:     rep.Decision.Reason,
			DurationMS: rep.Duration.Milliseconds(),
			Targets:    targets,
		})
	}

	verdict := "enable"
	if rep.Decision.Disable {
		verdict = "disable"
	}
	fmt.Fprintf(w, "run:      %s\n", rep.RunID)
	fmt.Fprintf(w, "mode:     %s\n", rep.Mode)
	fmt.Fprintf(w, "sku:      %s\n", rep.SKU)
	if rep.Decision.Reason != "" {
		fmt.Fprintf(w, "decision: %s (%s)\n", verdict, rep.Decision.Reason)
	}

	if len(targets) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tCURRENT\tDESIRED\tRESULT")
	for _, t := range targets {
		result := t.Result
		if t.Error != "" {
			result += ": " + t.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Package, t.Current, t.Desired, result)
	}
	return tw.Flush()
}

func currentState(it core.PlanItem) string {
	switch {
	case !it.CurrentKnown:
		return "unknown"
	case !it.Current.Installed:
		return "not installed"
	case it.Current.Enabled:
		return "enabled"
	default:
		return "disabled"
	}
}
