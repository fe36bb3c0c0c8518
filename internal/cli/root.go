// Package cli implements the euicc-gate command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChrisB0-2/euicc-gate/internal/config"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// configError marks failures caused by configuration or usage rather than by
// the device.
type configError struct {
	err error
}

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

// app holds the state of one invocation.
type app struct {
	cfgFile  string
	backend  string
	adbPath  string
	serial   string
	fixture  string
	debug    bool
	waitBoot time.Duration

	cfg *config.Config
	log logger.Logger

	stdout  io.Writer
	stderr  io.Writer
	closers []io.Closer
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()

	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(stderr, "error: %v\n", err)

	var cerr configError
	if errors.As(err, &cerr) {
		return ExitConfig
	}
	return ExitFailure
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "euicc-gate",
		Short: "Enable or disable the eUICC package from SKU and dependency state",
		Long: `euicc-gate decides whether com.google.android.euicc may run on a device.

The package is disabled on reserved hardware SKUs and whenever Google Play
services or the Google services framework is missing or disabled. Otherwise
it is enabled.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return configError{err}
	})

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default searches ./euicc-gate.yaml, ~/.config/euicc-gate, /etc/euicc-gate)")
	pf.StringVar(&a.backend, "backend", "", "device backend: local, adb, or fixture")
	pf.StringVar(&a.adbPath, "adb", "", "path to the adb binary")
	pf.StringVar(&a.serial, "serial", "", "adb device serial")
	pf.StringVar(&a.fixture, "fixture", "", "device snapshot YAML (implies --backend fixture)")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")
	pf.DurationVar(&a.waitBoot, "wait-boot", 0, "wait up to this long for sys.boot_completed before evaluating")

	rootCmd.AddCommand(a.applyCmd())
	rootCmd.AddCommand(a.checkCmd())
	rootCmd.AddCommand(a.statusCmd())
	rootCmd.AddCommand(a.auditCmd())
	rootCmd.AddCommand(a.versionCmd())

	return rootCmd
}

// setup loads and validates configuration, then builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return configError{err}
	}

	a.mergeFlags(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return configError{err}
	}
	a.cfg = cfg

	log, err := a.initLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// loadConfig reads the explicit config file, or the first one found in the
// standard locations, or defaults.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgFile != "" {
		return config.Load(a.cfgFile)
	}
	return config.LoadOrDefault(config.FindConfigFile())
}

// mergeFlags applies CLI flag values over config values.
// CLI flags take precedence only if explicitly set.
func (a *app) mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Root().PersistentFlags().Changed

	if changed("fixture") {
		cfg.Device.FixturePath = a.fixture
		if !changed("backend") {
			cfg.Device.Backend = "fixture"
		}
	}
	if changed("backend") {
		cfg.Device.Backend = a.backend
	}
	if changed("adb") {
		cfg.Device.ADBPath = a.adbPath
	}
	if changed("serial") {
		cfg.Device.Serial = a.serial
	}
	if changed("wait-boot") {
		cfg.Device.BootWait = a.waitBoot
	}
	if a.debug {
		cfg.Logging.Level = "debug"
	}
}

// initLogger creates a logger based on configuration.
func (a *app) initLogger(cfg config.LoggingConfig) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		level = logger.LevelInfo
	}

	var output io.Writer
	switch cfg.Output {
	case "", "stderr":
		output = a.stderr
	case "stdout":
		output = a.stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		output = f
	}

	return logger.NewWithFormat(level, logger.Format(cfg.Format), output), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "euicc-gate %s\n", Version)
		},
	}
}
