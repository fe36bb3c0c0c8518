package android

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// PackageManager reads and writes package enabled state with pm.
type PackageManager struct {
	runner Runner
}

func NewPackageManager(r Runner) *PackageManager {
	return &PackageManager{runner: r}
}

// GetPackageInfo reports whether name is installed for the current user and
// whether it is enabled. It returns core.ErrPackageNotFound when pm does not
// list the package at all.
func (pm *PackageManager) GetPackageInfo(ctx context.Context, name string) (core.PackageInfo, error) {
	enabled, err := pm.listed(ctx, name, "-e")
	if err != nil {
		return core.PackageInfo{}, err
	}
	if enabled {
		return core.PackageInfo{Name: name, Enabled: true}, nil
	}

	disabled, err := pm.listed(ctx, name, "-d")
	if err != nil {
		return core.PackageInfo{}, err
	}
	if disabled {
		return core.PackageInfo{Name: name, Enabled: false}, nil
	}

	return core.PackageInfo{}, fmt.Errorf("%s: %w", name, core.ErrPackageNotFound)
}

// SetApplicationEnabledSetting writes the enabled flag for name.
// The pm shell has no equivalent for PackageManager flags, so only 0 is accepted.
func (pm *PackageManager) SetApplicationEnabledSetting(ctx context.Context, name string, state core.EnabledState, flags int) error {
	if flags != 0 {
		return fmt.Errorf("pm: flags %#x not supported", flags)
	}

	var verb string
	switch state {
	case core.StateEnabled:
		verb = "enable"
	case core.StateDisabled:
		verb = "disable"
	case core.StateDefault:
		verb = "default-state"
	default:
		return fmt.Errorf("%s: %w: %d", name, core.ErrInvalidState, state)
	}

	out, err := pm.runner.Run(ctx, "pm", verb, name)
	if err != nil {
		return fmt.Errorf("pm %s %s: %w", verb, name, err)
	}

	// Older pm builds exit 0 on failure and only print "Error: ...".
	if !strings.Contains(string(out), "new state:") {
		return fmt.Errorf("pm %s %s: %w: %s", verb, name, core.ErrCommandFailed, strings.TrimSpace(string(out)))
	}
	return nil
}

// listed runs "pm list packages <filter> <name>" and reports an exact match.
// pm treats the trailing argument as a substring filter.
func (pm *PackageManager) listed(ctx context.Context, name, filter string) (bool, error) {
	out, err := pm.runner.Run(ctx, "pm", "list", "packages", filter, name)
	if err != nil {
		return false, fmt.Errorf("pm list packages %s %s: %w", filter, name, err)
	}
	for _, pkg := range parsePackageList(out) {
		if pkg == name {
			return true, nil
		}
	}
	return false, nil
}

// parsePackageList extracts names from "package:<name>" lines.
func parsePackageList(out []byte) []string {
	var pkgs []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if name, ok := strings.CutPrefix(line, "package:"); ok && name != "" {
			pkgs = append(pkgs, name)
		}
	}
	return pkgs
}

var _ core.PackageRegistry = (*PackageManager)(nil)
