package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
	"github.com/ChrisB0-2/euicc-gate/internal/metrics"
)

// Action result reason constants.
const (
	reasonWouldSet    = "would_set"
	reasonSet         = "set"
	reasonSetFailed   = "set_failed"
	reasonCtxCanceled = "ctx_canceled"
	reasonInvalidMode = "invalid_mode"
)

// Simple writes the desired enabled state of each plan item to the registry.
// There is no batching, retry, or rollback. If an Auditor is provided, it
// records an AuditEvent for each item outcome.
type Simple struct {
	reg     core.PackageRegistry
	aud     core.Auditor
	runID   string
	now     func() time.Time
	log     logger.Logger
	metrics core.Metrics
}

// NewSimple creates an executor with no-op logging and metrics.
func NewSimple(reg core.PackageRegistry) *Simple {
	return NewSimpleWithMetrics(reg, nil, nil)
}

// NewSimpleWithLogger creates an executor with the given logger.
func NewSimpleWithLogger(reg core.PackageRegistry, log logger.Logger) *Simple {
	return NewSimpleWithMetrics(reg, log, nil)
}

// NewSimpleWithMetrics creates an executor with logger and metrics.
func NewSimpleWithMetrics(reg core.PackageRegistry, log logger.Logger, m core.Metrics) *Simple {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Simple{
		reg:     reg,
		now:     time.Now,
		log:     log,
		metrics: m,
	}
}

// WithAuditor attaches an auditor and the run ID stamped on its events.
// Safe to pass nil.
func (e *Simple) WithAuditor(aud core.Auditor, runID string) *Simple {
	e.aud = aud
	e.runID = runID
	return e
}

// Execute applies one PlanItem.
//
// Dry-run reports would_set and never touches the registry. Execute calls
// SetApplicationEnabledSetting(pkg, desired, 0) and reports set or set_failed.
func (e *Simple) Execute(ctx context.Context, item core.PlanItem, mode core.Mode) (res core.ActionResult) {
	res = core.ActionResult{
		Package:   item.Package,
		Desired:   item.Desired,
		Mode:      mode,
		StartedAt: e.now(),
	}

	// Named return so the deferred finalize is visible to the caller.
	defer func() {
		if res.FinishedAt.IsZero() {
			res.FinishedAt = e.now()
		}
		e.metrics.IncApply(res.Desired.String(), res.Reason)
		e.record(ctx, item, res)
	}()

	select {
	case <-ctx.Done():
		res.Reason = reasonCtxCanceled
		res.Err = ctx.Err()
		return res
	default:
	}

	switch mode {
	case core.ModeDryRun:
		e.log.Info("would set enabled state",
			logger.F("package", item.Package),
			logger.F("state", item.Desired.String()),
		)
		res.Reason = reasonWouldSet
		return res
	case core.ModeExecute:
	default:
		res.Reason = reasonInvalidMode
		res.Err = fmt.Errorf("invalid mode %q", mode)
		return res
	}

	if err := e.reg.SetApplicationEnabledSetting(ctx, item.Package, item.Desired, 0); err != nil {
		e.log.Warn("set enabled state failed",
			logger.F("package", item.Package),
			logger.F("state", item.Desired.String()),
			logger.F("error", err.Error()),
		)
		e.metrics.IncApplyErrors(item.Package)
		res.Reason = reasonSetFailed
		res.Err = err
		return res
	}

	e.log.Info("set enabled state",
		logger.F("package", item.Package),
		logger.F("state", item.Desired.String()),
	)
	res.Applied = true
	res.Reason = reasonSet
	return res
}

// ApplyAll executes every item in order. A failure on one item does not stop
// later items; all failures are joined into the returned error.
func (e *Simple) ApplyAll(ctx context.Context, items []core.PlanItem, mode core.Mode) ([]core.ActionResult, error) {
	results := make([]core.ActionResult, 0, len(items))
	var errs []error

	for _, it := range items {
		res := e.Execute(ctx, it, mode)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.Package, res.Err))
		}
	}

	return results, errors.Join(errs...)
}

// record writes one audit event if an auditor is configured.
// Auditing never panics into the caller and never blocks the write.
func (e *Simple) record(ctx context.Context, item core.PlanItem, res core.ActionResult) {
	if e.aud == nil {
		return
	}

	evt := core.NewApplyAuditEvent(e.runID, item, res)
	evt.Time = res.FinishedAt

	defer func() { _ = recover() }()
	e.aud.Record(ctx, evt)
}
