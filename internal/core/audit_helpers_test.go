package core

import (
	"errors"
	"testing"
)

func TestReasonKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dependency_missing:com.google.android.gsf", "dependency_missing"},
		{"sku_reserved:IN", "sku_reserved"},
		{"dependencies_ok", "dependencies_ok"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ReasonKey(tt.in); got != tt.want {
			t.Errorf("ReasonKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewDecideAuditEvent(t *testing.T) {
	evt := NewDecideAuditEvent("run-1", "IN", ModeExecute, Decision{Disable: true, Reason: "sku_reserved:IN"})

	if evt.Action != AuditActionDecide {
		t.Errorf("expected action %q, got %q", AuditActionDecide, evt.Action)
	}
	if evt.RunID != "run-1" {
		t.Errorf("expected run id 'run-1', got %q", evt.RunID)
	}
	if evt.Fields["reason_key"] != "sku_reserved" {
		t.Errorf("expected key-only reason, got %#v", evt.Fields["reason_key"])
	}
	if evt.Fields["disable"] != true {
		t.Errorf("expected disable=true, got %#v", evt.Fields["disable"])
	}
}

func TestNewApplyAuditEvent_ErrorLevel(t *testing.T) {
	it := PlanItem{Package: "com.google.android.euicc", Desired: StateDisabled}
	ar := ActionResult{
		Package: it.Package,
		Desired: StateDisabled,
		Mode:    ModeExecute,
		Reason:  "set_failed",
		Err:     errors.New("boom"),
	}

	evt := NewApplyAuditEvent("run-1", it, ar)

	if evt.Level != "error" {
		t.Errorf("expected level 'error', got %q", evt.Level)
	}
	if evt.Package != "com.google.android.euicc" {
		t.Errorf("unexpected package %q", evt.Package)
	}
	if evt.Fields["state"] != "disabled" {
		t.Errorf("expected state 'disabled', got %#v", evt.Fields["state"])
	}
	if _, ok := evt.Fields["was_enabled"]; ok {
		t.Error("did not expect was_enabled when current state is unknown")
	}
}

func TestNewApplyAuditEvent_CurrentState(t *testing.T) {
	it := PlanItem{
		Package:      "com.google.android.euicc",
		Desired:      StateEnabled,
		Current:      PackageStatus{Installed: true, Enabled: false},
		CurrentKnown: true,
	}
	ar := ActionResult{Package: it.Package, Desired: StateEnabled, Mode: ModeExecute, Applied: true, Reason: "set"}

	evt := NewApplyAuditEvent("run-2", it, ar)

	if evt.Level != "info" {
		t.Errorf("expected level 'info', got %q", evt.Level)
	}
	if evt.Fields["was_installed"] != true || evt.Fields["was_enabled"] != false {
		t.Errorf("unexpected current state fields: %#v", evt.Fields)
	}
}

func TestStateFor(t *testing.T) {
	if StateFor(true) != StateDisabled {
		t.Error("expected disable=true to map to StateDisabled")
	}
	if StateFor(false) != StateEnabled {
		t.Error("expected disable=false to map to StateEnabled")
	}
	if StateDisabled.String() != "disabled" || StateEnabled.String() != "enabled" {
		t.Error("unexpected state names")
	}
}
