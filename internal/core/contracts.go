package core

import (
	"context"
	"errors"
	"time"
)

type Mode string

const (
	ModeDryRun  Mode = "dry-run"
	ModeExecute Mode = "execute"
)

// EnabledState is the per-package enabled flag held by the platform registry.
// Values match PackageManager.COMPONENT_ENABLED_STATE_*.
type EnabledState int

const (
	StateDefault  EnabledState = 0
	StateEnabled  EnabledState = 1
	StateDisabled EnabledState = 2
)

func (s EnabledState) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// StateFor maps a disable decision to the flag written on targets.
func StateFor(disable bool) EnabledState {
	if disable {
		return StateDisabled
	}
	return StateEnabled
}

// Default property and package names for the eUICC gate.
const (
	DefaultSKUProperty    = "ro.boot.product.hardware.sku"
	BootCompletedProperty = "sys.boot_completed"
)

var (
	DefaultReservedSKUs = []string{"IN", "CN"}
	DefaultDependencies = []string{
		"com.google.android.gms",
		"com.google.android.gsf",
	}
	DefaultTargets = []string{
		"com.google.android.euicc",
	}
)

// PackageInfo is the subset of the platform's package info that the gate reads.
type PackageInfo struct {
	Name    string
	Enabled bool
}

// PackageStatus is derived per lookup and discarded after use.
type PackageStatus struct {
	Installed bool
	Enabled   bool
}

// Usable reports whether the package is installed and enabled.
func (s PackageStatus) Usable() bool {
	return s.Installed && s.Enabled
}

type Decision struct {
	Disable bool
	Reason  string
}

type PlanItem struct {
	Package      string
	Desired      EnabledState
	Current      PackageStatus
	CurrentKnown bool
}

type ActionResult struct {
	Package    string
	Desired    EnabledState
	Mode       Mode
	Applied    bool
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrInvalidState    = errors.New("invalid enabled state")
	ErrCommandFailed   = errors.New("command failed")
)

// PropertyStore reads platform system properties.
// Absent properties read as the empty string.
type PropertyStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// PackageRegistry is the platform package manager.
type PackageRegistry interface {
	// GetPackageInfo returns ErrPackageNotFound (possibly wrapped) when the
	// package is not installed.
	GetPackageInfo(ctx context.Context, name string) (PackageInfo, error)
	SetApplicationEnabledSetting(ctx context.Context, name string, state EnabledState, flags int) error
}

// LookupFunc resolves the status of one package.
type LookupFunc func(ctx context.Context, name string) (PackageStatus, error)

// Input is everything a Policy may look at.
type Input struct {
	SKU    string
	Lookup LookupFunc
}

type Policy interface {
	Evaluate(ctx context.Context, in Input) Decision
}

type Auditor interface {
	Record(ctx context.Context, evt AuditEvent)
}

type AuditEvent struct {
	Time    time.Time
	Level   string
	Action  string
	RunID   string
	Package string
	Fields  map[string]any
	Err     error
}

// Metrics defines the interface for collecting operational metrics.
type Metrics interface {
	// Evaluation metrics
	IncLookup(outcome string)
	IncDecision(reason string, disable bool)

	// Apply metrics
	IncApply(state string, result string)
	IncApplyErrors(pkg string)

	// Run metrics
	ObserveRunDuration(duration time.Duration)
	SetLastRunTimestamp(t time.Time)
}
