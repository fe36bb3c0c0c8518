package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/planner"
	"github.com/ChrisB0-2/euicc-gate/internal/runlock"
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the SKU and the state of dependency and target packages",
		Args:  cobra.NoArgs,
		RunE:  a.runStatus,
	}
}

func (a *app) runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if t := a.cfg.Execution.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	dev, err := a.openDevice(ctx)
	if err != nil {
		return err
	}

	prop := a.cfg.Device.SKUProperty
	sku, err := dev.props.Get(ctx, prop)
	if err != nil {
		return fmt.Errorf("reading %s: %w", prop, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %q\n", prop, sku)
	for _, r := range a.cfg.Policy.ReservedSKUs {
		if r == sku {
			fmt.Fprintln(w, "sku is reserved")
			break
		}
	}
	if path := a.cfg.Execution.LockFile; path != "" {
		fmt.Fprintf(w, "run lock: %s\n", lockState(path))
	}
	fmt.Fprintln(w)

	lookup := planner.RegistryLookup(dev.reg)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tPACKAGE\tSTATE")
	for _, name := range a.cfg.Policy.Dependencies {
		fmt.Fprintf(tw, "dependency\t%s\t%s\n", name, describe(lookup(ctx, name)))
	}
	for _, name := range a.cfg.Policy.Targets {
		fmt.Fprintf(tw, "target\t%s\t%s\n", name, describe(lookup(ctx, name)))
	}
	return tw.Flush()
}

func describe(st core.PackageStatus, err error) string {
	switch {
	case errors.Is(err, core.ErrPackageNotFound):
		return "not installed"
	case err != nil:
		return "error: " + err.Error()
	case st.Enabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// lockState reports who, if anyone, holds the run lock at path.
func lockState(path string) string {
	pid, err := runlock.ReadPID(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "free"
	case err != nil:
		return "unreadable: " + err.Error()
	case runlock.IsRunning(pid):
		return fmt.Sprintf("held by pid %d", pid)
	default:
		return fmt.Sprintf("stale (pid %d not running)", pid)
	}
}
