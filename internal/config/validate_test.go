package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateDevice_Backends(t *testing.T) {
	for _, backend := range ValidBackends {
		d := DeviceConfig{Backend: backend, FixturePath: "/tmp/device.yaml"}
		if errs := ValidateDevice(d); len(errs) > 0 {
			t.Errorf("backend %q should be valid, got: %v", backend, errs)
		}
	}
}

func TestValidateDevice_UnknownBackend(t *testing.T) {
	errs := ValidateDevice(DeviceConfig{Backend: "usb"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got: %d", len(errs))
	}
	if errs[0].Field != "device.backend" {
		t.Errorf("expected field device.backend, got: %s", errs[0].Field)
	}
}

func TestValidateDevice_FixtureNeedsPath(t *testing.T) {
	errs := ValidateDevice(DeviceConfig{Backend: "fixture"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got: %d", len(errs))
	}
	if errs[0].Field != "device.fixture_path" {
		t.Errorf("expected field device.fixture_path, got: %s", errs[0].Field)
	}
}

func TestValidateDevice_SKUPropertyAndBootWait(t *testing.T) {
	errs := ValidateDevice(DeviceConfig{
		Backend:     "local",
		SKUProperty: "ro.sku; reboot",
		BootWait:    -time.Second,
	})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got: %v", errs)
	}
}

func TestValidatePolicy_Defaults(t *testing.T) {
	if errs := ValidatePolicy(Default().Policy); len(errs) > 0 {
		t.Fatalf("expected defaults to validate, got: %v", errs)
	}
}

func TestValidatePolicy_PackageNames(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"com.google.android.euicc", true},
		{"a.b", true},
		{"com.example.app_2", true},
		{"euicc", false},
		{"com..google", false},
		{"com.1google", false},
		{"com.google.", false},
		{"com.google android", false},
		{"", false},
	}
	for _, tt := range tests {
		pol := PolicyConfig{Targets: []string{tt.name}}
		errs := ValidatePolicy(pol)
		if tt.valid && len(errs) > 0 {
			t.Errorf("%q: expected valid, got: %v", tt.name, errs)
		}
		if !tt.valid && len(errs) == 0 {
			t.Errorf("%q: expected invalid", tt.name)
		}
	}
}

func TestValidatePolicy_EmptyTargets(t *testing.T) {
	errs := ValidatePolicy(PolicyConfig{Dependencies: []string{"com.google.android.gms"}})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got: %d", len(errs))
	}
	if !strings.Contains(errs[0].Message, "at least one target") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestValidatePolicy_TargetIsDependency(t *testing.T) {
	pol := PolicyConfig{
		Dependencies: []string{"com.google.android.gms"},
		Targets:      []string{"com.google.android.gms"},
	}
	errs := ValidatePolicy(pol)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got: %v", errs)
	}
	if !strings.Contains(errs[0].Message, "also listed as a dependency") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestValidatePolicy_Duplicates(t *testing.T) {
	pol := PolicyConfig{
		Dependencies: []string{"com.google.android.gms", "com.google.android.gms"},
		Targets:      []string{"com.google.android.euicc"},
	}
	errs := ValidatePolicy(pol)
	if len(errs) != 1 || errs[0].Field != "policy.dependencies[1]" {
		t.Fatalf("expected duplicate error on policy.dependencies[1], got: %v", errs)
	}
}

func TestValidatePolicy_EmptyReservedSKU(t *testing.T) {
	pol := PolicyConfig{
		ReservedSKUs: []string{"IN", ""},
		Targets:      []string{"com.google.android.euicc"},
	}
	errs := ValidatePolicy(pol)
	if len(errs) != 1 || errs[0].Field != "policy.reserved_skus[1]" {
		t.Fatalf("expected error on policy.reserved_skus[1], got: %v", errs)
	}
}

func TestValidatePolicy_NoReservedSKUsAllowed(t *testing.T) {
	pol := PolicyConfig{Targets: []string{"com.google.android.euicc"}}
	if errs := ValidatePolicy(pol); len(errs) > 0 {
		t.Fatalf("expected no errors, got: %v", errs)
	}
}

func TestValidateExecution_InvalidMode(t *testing.T) {
	errs := ValidateExecution(ExecutionConfig{Mode: "invalid"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for invalid mode, got: %d", len(errs))
	}
	if errs[0].Field != "execution.mode" {
		t.Errorf("expected field execution.mode, got: %s", errs[0].Field)
	}
}

func TestValidateExecution_ValidModes(t *testing.T) {
	for _, mode := range ValidModes {
		errs := ValidateExecution(ExecutionConfig{Mode: mode, Timeout: time.Second})
		if len(errs) > 0 {
			t.Errorf("mode %q should be valid, got errors: %v", mode, errs)
		}
	}
}

func TestValidateExecution_NegativeTimeout(t *testing.T) {
	errs := ValidateExecution(ExecutionConfig{Mode: "execute", Timeout: -time.Second})
	if len(errs) != 1 || errs[0].Field != "execution.timeout" {
		t.Fatalf("expected timeout error, got: %v", errs)
	}
}

func TestValidateExecution_SameAuditFiles(t *testing.T) {
	errs := ValidateExecution(ExecutionConfig{Mode: "execute", AuditPath: "/var/audit", AuditDB: "/var/audit"})
	if len(errs) != 1 || errs[0].Field != "execution.audit_db" {
		t.Fatalf("expected audit_db error, got: %v", errs)
	}
}

func TestValidateExecution_LockFileCollides(t *testing.T) {
	errs := ValidateExecution(ExecutionConfig{Mode: "execute", AuditDB: "/var/gate.db", LockFile: "/var/gate.db"})
	if len(errs) != 1 || errs[0].Field != "execution.lock_file" {
		t.Fatalf("expected lock_file error, got: %v", errs)
	}
}

func TestValidateLogging_InvalidLevel(t *testing.T) {
	errs := ValidateLogging(LoggingConfig{Level: "verbose"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for invalid level, got: %d", len(errs))
	}
	if errs[0].Field != "logging.level" {
		t.Errorf("expected field logging.level, got: %s", errs[0].Field)
	}
}

func TestValidateLogging_ValidLevels(t *testing.T) {
	for _, level := range ValidLogLevels {
		if errs := ValidateLogging(LoggingConfig{Level: level}); len(errs) > 0 {
			t.Errorf("level %q should be valid, got errors: %v", level, errs)
		}
	}
}

func TestValidateLogging_EmptyValues(t *testing.T) {
	if errs := ValidateLogging(LoggingConfig{}); len(errs) > 0 {
		t.Fatalf("expected no errors for empty logging config, got: %v", errs)
	}
}

func TestValidateLogging_InvalidFormat(t *testing.T) {
	errs := ValidateLogging(LoggingConfig{Format: "xml"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for invalid format, got: %d", len(errs))
	}
	if errs[0].Field != "logging.format" {
		t.Errorf("expected field logging.format, got: %s", errs[0].Field)
	}
}

func TestValidateMetrics(t *testing.T) {
	if errs := ValidateMetrics(MetricsConfig{Enabled: true}); len(errs) != 1 {
		t.Fatalf("expected textfile_path error, got: %v", errs)
	}
	if errs := ValidateMetrics(MetricsConfig{Enabled: true, TextfilePath: "/tmp/m.prom"}); len(errs) > 0 {
		t.Fatalf("expected no errors, got: %v", errs)
	}
	if errs := ValidateMetrics(MetricsConfig{}); len(errs) > 0 {
		t.Fatalf("disabled metrics need no path, got: %v", errs)
	}
}

func TestValidate_FullValidConfig(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Device: DeviceConfig{
			Backend: "usb", // invalid
		},
		Policy: PolicyConfig{
			Dependencies: []string{"gms"}, // invalid
			Targets:      []string{},      // empty
		},
		Execution: ExecutionConfig{
			Mode: "badmode", // invalid
		},
		Logging: LoggingConfig{
			Level:  "badlevel",  // invalid
			Format: "badformat", // invalid
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}

	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got: %T", err)
	}

	if len(verrs) != 6 {
		t.Errorf("expected 6 errors, got: %d (%v)", len(verrs), verrs)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Message: "test message",
	}
	expected := "config validation failed: test.field: test message"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "field1", Message: "message1"},
		{Field: "field2", Message: "message2"},
	}
	result := errs.Error()
	if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
		t.Errorf("expected both fields in error, got: %s", result)
	}
}

func TestValidationErrors_Empty(t *testing.T) {
	errs := ValidationErrors{}
	if errs.Error() != "" {
		t.Errorf("expected empty string for empty errors, got: %q", errs.Error())
	}
}
