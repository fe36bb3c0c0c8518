package auditor

import (
	"context"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// Multi writes audit events to multiple auditors.
type Multi struct {
	auditors []core.Auditor
}

// NewMulti creates an auditor that writes to multiple backends. Nil entries
// are skipped.
func NewMulti(auditors ...core.Auditor) *Multi {
	kept := make([]core.Auditor, 0, len(auditors))
	for _, a := range auditors {
		if a != nil {
			kept = append(kept, a)
		}
	}
	return &Multi{auditors: kept}
}

// Record writes the event to all configured auditors in order.
func (m *Multi) Record(ctx context.Context, evt core.AuditEvent) {
	for _, a := range m.auditors {
		a.Record(ctx, evt)
	}
}

// Len reports how many backends receive events.
func (m *Multi) Len() int {
	return len(m.auditors)
}

// Ensure Multi implements core.Auditor
var _ core.Auditor = (*Multi)(nil)
