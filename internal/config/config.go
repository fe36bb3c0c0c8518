package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// Config represents the complete configuration for euicc-gate.
type Config struct {
	Version   int             `yaml:"version"`
	Device    DeviceConfig    `yaml:"device"`
	Policy    PolicyConfig    `yaml:"policy"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DeviceConfig selects how the device is reached.
type DeviceConfig struct {
	SKUProperty string        `yaml:"sku_property"`
	Backend     string        `yaml:"backend"` // "local", "adb", or "fixture"
	ADBPath     string        `yaml:"adb_path"`
	Serial      string        `yaml:"serial"`
	FixturePath string        `yaml:"fixture_path"`
	BootWait    time.Duration `yaml:"boot_wait"` // 0 disables waiting for sys.boot_completed
}

// PolicyConfig configures the decision inputs and the packages acted on.
type PolicyConfig struct {
	ReservedSKUs []string `yaml:"reserved_skus"`
	Dependencies []string `yaml:"dependencies"`
	Targets      []string `yaml:"targets"`
}

// ExecutionConfig configures execution behavior.
type ExecutionConfig struct {
	Mode      string        `yaml:"mode"` // "dry-run" or "execute"
	Timeout   time.Duration `yaml:"timeout"`
	AuditPath string        `yaml:"audit_path"` // JSONL file, empty disables
	AuditDB   string        `yaml:"audit_db"`   // SQLite file, empty disables
	LockFile  string        `yaml:"lock_file"`  // held during execute runs, empty disables
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stderr", "stdout", or file path
}

// MetricsConfig configures the Prometheus textfile.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TextfilePath string `yaml:"textfile_path"`
	Namespace    string `yaml:"namespace"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Device: DeviceConfig{
			SKUProperty: core.DefaultSKUProperty,
			Backend:     "local",
			ADBPath:     "adb",
			BootWait:    0,
		},
		Policy: PolicyConfig{
			ReservedSKUs: append([]string(nil), core.DefaultReservedSKUs...),
			Dependencies: append([]string(nil), core.DefaultDependencies...),
			Targets:      append([]string(nil), core.DefaultTargets...),
		},
		Execution: ExecutionConfig{
			Mode:    string(core.ModeExecute),
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "euicc_gate",
		},
	}
}

// Load reads a config file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from path if it exists, otherwise returns defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// FindConfigFile searches for a config file in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"euicc-gate.yaml",
		"euicc-gate.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "euicc-gate", "config.yaml"),
		"/etc/euicc-gate/config.yaml",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
