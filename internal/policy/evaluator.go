package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
	"github.com/ChrisB0-2/euicc-gate/internal/metrics"
)

// Decide computes whether the targets must be disabled.
//
// A reserved SKU disables immediately without calling lookup. Otherwise every
// dependency must be installed and enabled; a failing lookup counts as
// FallbackStatus.
func Decide(ctx context.Context, sku string, reserved, deps []string, lookup core.LookupFunc) core.Decision {
	pol := NewCompositePolicy(NewSKUPolicy(reserved), NewDependencyPolicy(deps))
	return pol.Evaluate(ctx, core.Input{SKU: sku, Lookup: lookup})
}

// EvaluatorConfig selects the property and package names the evaluator uses.
type EvaluatorConfig struct {
	SKUProperty  string
	ReservedSKUs []string
	Dependencies []string
}

// Evaluator binds Decide to the platform property store and package registry.
type Evaluator struct {
	props   core.PropertyStore
	reg     core.PackageRegistry
	cfg     EvaluatorConfig
	log     logger.Logger
	metrics core.Metrics
}

// NewEvaluator creates an evaluator. Nil logger and metrics fall back to no-ops.
func NewEvaluator(props core.PropertyStore, reg core.PackageRegistry, cfg EvaluatorConfig, log logger.Logger, m core.Metrics) *Evaluator {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if cfg.SKUProperty == "" {
		cfg.SKUProperty = core.DefaultSKUProperty
	}
	return &Evaluator{
		props:   props,
		reg:     reg,
		cfg:     cfg,
		log:     log,
		metrics: m,
	}
}

// Evaluate reads the SKU and returns it with the decision. An error means the
// property store itself could not be reached; an absent SKU is not an error.
func (e *Evaluator) Evaluate(ctx context.Context) (string, core.Decision, error) {
	sku, err := e.props.Get(ctx, e.cfg.SKUProperty)
	if err != nil {
		return "", core.Decision{}, fmt.Errorf("reading %s: %w", e.cfg.SKUProperty, err)
	}

	dec := Decide(ctx, sku, e.cfg.ReservedSKUs, e.cfg.Dependencies, e.Lookup)
	if core.ReasonKey(dec.Reason) == "sku_reserved" {
		e.log.Debug("disabling apps due to reserved sku", logger.F("sku", sku))
	}

	e.metrics.IncDecision(core.ReasonKey(dec.Reason), dec.Disable)
	e.log.Info("decision",
		logger.F("sku", sku),
		logger.F("disable", dec.Disable),
		logger.F("reason", dec.Reason),
	)
	return sku, dec, nil
}

// Lookup queries the registry for one package. It satisfies core.LookupFunc.
func (e *Evaluator) Lookup(ctx context.Context, name string) (core.PackageStatus, error) {
	info, err := e.reg.GetPackageInfo(ctx, name)
	if err != nil {
		outcome := "error"
		if errors.Is(err, core.ErrPackageNotFound) {
			outcome = "not_found"
		}
		e.metrics.IncLookup(outcome)
		e.log.Debug("package lookup failed",
			logger.F("package", name),
			logger.F("outcome", outcome),
			logger.F("error", err.Error()),
		)
		return FallbackStatus, err
	}

	outcome := "disabled"
	if info.Enabled {
		outcome = "enabled"
	}
	e.metrics.IncLookup(outcome)
	e.log.Debug("package installed", logger.F("package", name), logger.F("enabled", info.Enabled))
	return core.PackageStatus{Installed: true, Enabled: info.Enabled}, nil
}
