package metrics

import (
	"time"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// Noop is a no-op implementation of core.Metrics.
// Use this when metrics collection is disabled.
type Noop struct{}

// NewNoop creates a new no-op metrics collector.
func NewNoop() *Noop {
	return &Noop{}
}

func (Noop) IncLookup(string)                 {}
func (Noop) IncDecision(string, bool)         {}
func (Noop) IncApply(string, string)          {}
func (Noop) IncApplyErrors(string)            {}
func (Noop) ObserveRunDuration(time.Duration) {}
func (Noop) SetLastRunTimestamp(time.Time)    {}

// Ensure Noop implements core.Metrics
var _ core.Metrics = (*Noop)(nil)
