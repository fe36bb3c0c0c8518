package config

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError contains details about a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// ValidModes are the allowed execution modes.
var ValidModes = []string{"dry-run", "execute"}

// ValidBackends are the allowed device backends.
var ValidBackends = []string{"local", "adb", "fixture"}

// ValidLogLevels are the allowed log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats are the allowed log formats.
var ValidLogFormats = []string{"json", "text"}

// packageNameRE is the Android application id grammar: two or more
// dot-separated segments, each starting with a letter.
var packageNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// propertyKeyRE accepts system property names such as ro.boot.product.hardware.sku.
var propertyKeyRE = regexp.MustCompile(`^[A-Za-z0-9_.\-:@]+$`)

// Validate performs comprehensive validation of the configuration.
// It returns all validation errors found (not just the first).
// Returns nil if the configuration is valid.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, ValidateDevice(cfg.Device)...)
	errs = append(errs, ValidatePolicy(cfg.Policy)...)
	errs = append(errs, ValidateExecution(cfg.Execution)...)
	errs = append(errs, ValidateLogging(cfg.Logging)...)
	errs = append(errs, ValidateMetrics(cfg.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateDevice checks backend selection and its required settings.
func ValidateDevice(d DeviceConfig) []ValidationError {
	var errs []ValidationError

	if !contains(ValidBackends, d.Backend) {
		errs = append(errs, ValidationError{
			Field:   "device.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", ValidBackends, d.Backend),
		})
	}

	if d.Backend == "fixture" && d.FixturePath == "" {
		errs = append(errs, ValidationError{
			Field:   "device.fixture_path",
			Message: "required when backend is fixture (via config or --fixture flag)",
		})
	}

	if d.SKUProperty != "" && !propertyKeyRE.MatchString(d.SKUProperty) {
		errs = append(errs, ValidationError{
			Field:   "device.sku_property",
			Message: fmt.Sprintf("invalid property name %q", d.SKUProperty),
		})
	}

	if d.BootWait < 0 {
		errs = append(errs, ValidationError{
			Field:   "device.boot_wait",
			Message: "must be >= 0",
		})
	}

	return errs
}

// ValidatePolicy checks package lists. Reserved SKUs are compared verbatim,
// so only empty entries are rejected.
func ValidatePolicy(pol PolicyConfig) []ValidationError {
	var errs []ValidationError

	for i, sku := range pol.ReservedSKUs {
		if sku == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("policy.reserved_skus[%d]", i),
				Message: "must not be empty",
			})
		}
	}

	errs = append(errs, validatePackages("policy.dependencies", pol.Dependencies)...)
	errs = append(errs, validatePackages("policy.targets", pol.Targets)...)

	if len(pol.Targets) == 0 {
		errs = append(errs, ValidationError{
			Field:   "policy.targets",
			Message: "at least one target package is required",
		})
	}

	// A target that is also a dependency would decide its own fate.
	for _, target := range pol.Targets {
		if contains(pol.Dependencies, target) {
			errs = append(errs, ValidationError{
				Field:   "policy.targets",
				Message: fmt.Sprintf("%s is also listed as a dependency", target),
			})
		}
	}

	return errs
}

func validatePackages(field string, names []string) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(names))

	for i, name := range names {
		f := fmt.Sprintf("%s[%d]", field, i)
		if !packageNameRE.MatchString(name) {
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("invalid package name %q", name),
			})
			continue
		}
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   f,
				Message: fmt.Sprintf("duplicate package %s", name),
			})
		}
		seen[name] = true
	}

	return errs
}

// ValidateExecution checks execution mode and timeout.
func ValidateExecution(exec ExecutionConfig) []ValidationError {
	var errs []ValidationError

	if !contains(ValidModes, exec.Mode) {
		errs = append(errs, ValidationError{
			Field:   "execution.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", ValidModes, exec.Mode),
		})
	}

	if exec.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "execution.timeout",
			Message: "must be >= 0",
		})
	}

	if exec.AuditPath != "" && exec.AuditPath == exec.AuditDB {
		errs = append(errs, ValidationError{
			Field:   "execution.audit_db",
			Message: "must differ from execution.audit_path",
		})
	}

	if exec.LockFile != "" && (exec.LockFile == exec.AuditPath || exec.LockFile == exec.AuditDB) {
		errs = append(errs, ValidationError{
			Field:   "execution.lock_file",
			Message: "must differ from the audit files",
		})
	}

	return errs
}

// ValidateLogging checks logging configuration.
func ValidateLogging(log LoggingConfig) []ValidationError {
	var errs []ValidationError

	// level must be valid (or empty for default)
	if log.Level != "" && !contains(ValidLogLevels, log.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", ValidLogLevels, log.Level),
		})
	}

	// format must be "json" or "text" (or empty for default)
	if log.Format != "" && !contains(ValidLogFormats, log.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be one of %v, got %q", ValidLogFormats, log.Format),
		})
	}

	return errs
}

// ValidateMetrics checks that an enabled textfile has somewhere to go.
func ValidateMetrics(m MetricsConfig) []ValidationError {
	var errs []ValidationError

	if m.Enabled && m.TextfilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.textfile_path",
			Message: "required when metrics are enabled",
		})
	}

	return errs
}

// contains checks if a string slice contains a value.
func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
