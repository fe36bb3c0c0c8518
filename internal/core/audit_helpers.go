package core

import "time"

// Canonical audit actions
const (
	AuditActionDecide = "decide"
	AuditActionApply  = "apply"
)

// NewDecideAuditEvent standardizes decision-time audit shape.
func NewDecideAuditEvent(runID, sku string, mode Mode, dec Decision) AuditEvent {
	return AuditEvent{
		Time:   time.Now(),
		Level:  "info",
		Action: AuditActionDecide,
		RunID:  runID,
		Fields: map[string]any{
			"sku":        sku,
			"mode":       string(mode),
			"disable":    dec.Disable,
			"reason":     dec.Reason,
			"reason_key": ReasonKey(dec.Reason),
		},
	}
}

// NewApplyAuditEvent standardizes apply-time audit shape.
func NewApplyAuditEvent(runID string, it PlanItem, ar ActionResult) AuditEvent {
	level := "info"
	if ar.Err != nil {
		level = "error"
	}

	fields := map[string]any{
		"mode":    string(ar.Mode),
		"state":   ar.Desired.String(),
		"applied": ar.Applied,
		"reason":  ar.Reason,
	}
	if it.CurrentKnown {
		fields["was_installed"] = it.Current.Installed
		fields["was_enabled"] = it.Current.Enabled
	}

	return AuditEvent{
		Time:    time.Now(),
		Level:   level,
		Action:  AuditActionApply,
		RunID:   runID,
		Package: it.Package,
		Fields:  fields,
		Err:     ar.Err,
	}
}

// ReasonKey collapses reasons like "dependency_missing:com.x" -> "dependency_missing"
func ReasonKey(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i]
		}
	}
	return s
}
