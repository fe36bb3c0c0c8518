// Package gate evaluates the eUICC policy against a device and applies the
// resulting enabled state to the target packages.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/executor"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
	"github.com/ChrisB0-2/euicc-gate/internal/metrics"
	"github.com/ChrisB0-2/euicc-gate/internal/planner"
	"github.com/ChrisB0-2/euicc-gate/internal/policy"
)

// Options configures a Gate. Zero values select the platform defaults.
type Options struct {
	SKUProperty  string
	ReservedSKUs []string
	Dependencies []string
	Targets      []string

	Logger  logger.Logger
	Metrics core.Metrics
	Auditor core.Auditor
}

// Report describes one run.
type Report struct {
	RunID    string
	Mode     core.Mode
	SKU      string
	Decision core.Decision
	Plan     []core.PlanItem
	Results  []core.ActionResult
	Duration time.Duration
}

// Gate ties the evaluator, planner, and executor to one device.
type Gate struct {
	props core.PropertyStore
	reg   core.PackageRegistry
	opts  Options
	now   func() time.Time
	newID func() string
}

// New creates a Gate over the given device backends.
func New(props core.PropertyStore, reg core.PackageRegistry, opts Options) *Gate {
	if opts.SKUProperty == "" {
		opts.SKUProperty = core.DefaultSKUProperty
	}
	if opts.ReservedSKUs == nil {
		opts.ReservedSKUs = core.DefaultReservedSKUs
	}
	if opts.Dependencies == nil {
		opts.Dependencies = core.DefaultDependencies
	}
	if opts.Targets == nil {
		opts.Targets = core.DefaultTargets
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	return &Gate{
		props: props,
		reg:   reg,
		opts:  opts,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Evaluate reads the SKU and dependency states and returns the decision
// without planning or applying anything.
func (g *Gate) Evaluate(ctx context.Context) (string, core.Decision, error) {
	return g.evaluator(g.opts.Logger).Evaluate(ctx)
}

func (g *Gate) evaluator(log logger.Logger) *policy.Evaluator {
	return policy.NewEvaluator(g.props, g.reg, policy.EvaluatorConfig{
		SKUProperty:  g.opts.SKUProperty,
		ReservedSKUs: g.opts.ReservedSKUs,
		Dependencies: g.opts.Dependencies,
	}, log, g.opts.Metrics)
}

// Run evaluates the policy and applies it to every target in mode.
//
// The returned Report is populated as far as the run got. An error from the
// property store aborts before any target is touched; apply failures are
// joined and returned after every target has been attempted.
func (g *Gate) Run(ctx context.Context, mode core.Mode) (rep Report, err error) {
	start := g.now()
	rep = Report{RunID: g.newID(), Mode: mode}
	log := g.opts.Logger.WithFields(logger.F("run_id", rep.RunID), logger.F("mode", string(mode)))

	// Named results so the duration reaches the caller's copy.
	defer func() {
		end := g.now()
		rep.Duration = end.Sub(start)
		g.opts.Metrics.ObserveRunDuration(rep.Duration)
		g.opts.Metrics.SetLastRunTimestamp(end)
	}()

	sku, dec, err := g.evaluator(log).Evaluate(ctx)
	if err != nil {
		log.Error("evaluation failed", logger.F("error", err.Error()))
		return rep, fmt.Errorf("evaluate: %w", err)
	}
	rep.SKU = sku
	rep.Decision = dec
	g.record(ctx, core.NewDecideAuditEvent(rep.RunID, sku, mode, dec))

	plan, err := planner.NewSimpleWithLogger(log).BuildPlan(ctx, g.opts.Targets, dec, planner.RegistryLookup(g.reg))
	if err != nil {
		return rep, fmt.Errorf("plan: %w", err)
	}
	rep.Plan = plan

	exec := executor.NewSimpleWithMetrics(g.reg, log, g.opts.Metrics).WithAuditor(g.opts.Auditor, rep.RunID)
	results, err := exec.ApplyAll(ctx, plan, mode)
	rep.Results = results
	if err != nil {
		log.Error("apply failed", logger.F("error", err.Error()))
		return rep, fmt.Errorf("apply: %w", err)
	}

	log.Info("run complete",
		logger.F("sku", sku),
		logger.F("disable", dec.Disable),
		logger.F("targets", len(results)),
	)
	return rep, nil
}

func (g *Gate) record(ctx context.Context, evt core.AuditEvent) {
	if g.opts.Auditor == nil {
		return
	}
	defer func() { _ = recover() }()
	g.opts.Auditor.Record(ctx, evt)
}

// EnableOrDisableEuicc disables com.google.android.euicc on reserved SKUs or
// when Google Play services or the services framework is missing or disabled,
// and enables it otherwise.
func EnableOrDisableEuicc(ctx context.Context, props core.PropertyStore, reg core.PackageRegistry) error {
	_, err := New(props, reg, Options{}).Run(ctx, core.ModeExecute)
	return err
}
