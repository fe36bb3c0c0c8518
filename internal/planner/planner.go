package planner

import (
	"context"
	"errors"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
)

type Simple struct {
	log logger.Logger
}

// NewSimple creates a planner with no-op logging.
func NewSimple() *Simple {
	return &Simple{log: logger.NewNop()}
}

// NewSimpleWithLogger creates a planner with the given logger.
func NewSimpleWithLogger(log logger.Logger) *Simple {
	if log == nil {
		log = logger.NewNop()
	}
	return &Simple{log: log}
}

// BuildPlan turns a decision into one PlanItem per target, in target order.
// The current status of each target is read with lookup (nil skips it) for
// reporting; a failed read leaves CurrentKnown false and never alters Desired.
func (p *Simple) BuildPlan(
	ctx context.Context,
	targets []string,
	dec core.Decision,
	lookup core.LookupFunc,
) ([]core.PlanItem, error) {
	p.log.Debug("building plan", logger.F("targets", len(targets)), logger.F("disable", dec.Disable))

	desired := core.StateFor(dec.Disable)
	items := make([]core.PlanItem, 0, len(targets))

	for _, name := range targets {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		item := core.PlanItem{Package: name, Desired: desired}
		if lookup != nil {
			st, err := lookup(ctx, name)
			switch {
			case err == nil:
				item.Current = st
				item.CurrentKnown = true
			case errors.Is(err, core.ErrPackageNotFound):
				item.CurrentKnown = true
			default:
				p.log.Debug("target status unknown", logger.F("package", name), logger.F("error", err.Error()))
			}
		}
		items = append(items, item)
	}

	p.log.Info("plan built", logger.F("items", len(items)), logger.F("state", desired.String()))
	return items, nil
}

// RegistryLookup adapts a PackageRegistry to a LookupFunc without the
// evaluator's logging and metrics, for reading target status.
func RegistryLookup(reg core.PackageRegistry) core.LookupFunc {
	return func(ctx context.Context, name string) (core.PackageStatus, error) {
		info, err := reg.GetPackageInfo(ctx, name)
		if err != nil {
			return core.PackageStatus{}, err
		}
		return core.PackageStatus{Installed: true, Enabled: info.Enabled}, nil
	}
}
