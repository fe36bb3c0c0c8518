package policy

import (
	"context"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// CompositePolicy disables if at least one member policy disables (logical OR).
// Members are evaluated in order and evaluation stops at the first disabling
// decision, so a later member never runs once the outcome is settled.
type CompositePolicy struct {
	Policies []core.Policy
}

func NewCompositePolicy(policies ...core.Policy) *CompositePolicy {
	return &CompositePolicy{Policies: policies}
}

// Evaluate returns the first disabling decision, or the last enabling one.
func (p *CompositePolicy) Evaluate(ctx context.Context, in core.Input) core.Decision {
	if len(p.Policies) == 0 {
		return core.Decision{Disable: false, Reason: "no_policies"}
	}

	var last core.Decision
	for _, pol := range p.Policies {
		dec := pol.Evaluate(ctx, in)
		if dec.Disable {
			return dec
		}
		last = dec
	}
	return last
}
