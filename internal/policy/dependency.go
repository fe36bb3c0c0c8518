package policy

import (
	"context"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// FallbackStatus is what a dependency counts as when its lookup fails for any
// reason, including transient registry errors. A failed lookup therefore
// forces disable.
var FallbackStatus = core.PackageStatus{Installed: false, Enabled: false}

// DependencyPolicy disables when any dependency is missing or disabled.
// Dependencies are checked in order and evaluation stops at the first failure.
type DependencyPolicy struct {
	Dependencies []string
}

func NewDependencyPolicy(deps []string) *DependencyPolicy {
	return &DependencyPolicy{Dependencies: deps}
}

func (p *DependencyPolicy) Evaluate(ctx context.Context, in core.Input) core.Decision {
	for _, dep := range p.Dependencies {
		st := resolve(ctx, in.Lookup, dep)
		if !st.Installed {
			return core.Decision{Disable: true, Reason: "dependency_missing:" + dep}
		}
		if !st.Enabled {
			return core.Decision{Disable: true, Reason: "dependency_disabled:" + dep}
		}
	}
	return core.Decision{Disable: false, Reason: "dependencies_ok"}
}

func resolve(ctx context.Context, lookup core.LookupFunc, name string) core.PackageStatus {
	if lookup == nil {
		return FallbackStatus
	}
	st, err := lookup(ctx, name)
	if err != nil {
		return FallbackStatus
	}
	return st
}
