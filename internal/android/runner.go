// Package android talks to the platform property store and package manager
// through the getprop and pm shell tools, either on the device itself or
// through adb.
package android

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// Runner executes one command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError describes a command that exited non-zero or could not start.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() []error {
	return []error{core.ErrCommandFailed, e.Err}
}

// LocalRunner runs commands on the current host. On a device this reaches
// getprop and pm directly.
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", name, ctxErr)
	}

	cerr := &CommandError{
		Command:  strings.TrimSpace(name + " " + strings.Join(args, " ")),
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return stdout.Bytes(), cerr
}

// ADBRunner runs commands in a device shell through adb.
type ADBRunner struct {
	// Path to the adb binary. Empty means "adb" from PATH.
	Path string
	// Serial selects the device (-s). Empty lets adb pick the only device.
	Serial string
	// Exec runs the adb process itself. Nil means LocalRunner.
	Exec Runner
}

func (r *ADBRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	adb := r.Path
	if adb == "" {
		adb = "adb"
	}
	runner := r.Exec
	if runner == nil {
		runner = LocalRunner{}
	}

	full := make([]string, 0, len(args)+4)
	if r.Serial != "" {
		full = append(full, "-s", r.Serial)
	}
	full = append(full, "shell", name)
	full = append(full, args...)

	return runner.Run(ctx, adb, full...)
}
