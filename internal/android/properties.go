package android

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// Properties reads system properties with getprop.
type Properties struct {
	runner Runner
}

func NewProperties(r Runner) *Properties {
	return &Properties{runner: r}
}

// Get returns the property value, or "" when the property is unset.
func (p *Properties) Get(ctx context.Context, key string) (string, error) {
	out, err := p.runner.Run(ctx, "getprop", key)
	if err != nil {
		return "", fmt.Errorf("getprop %s: %w", key, err)
	}
	return strings.TrimSpace(string(out)), nil
}

var _ core.PropertyStore = (*Properties)(nil)

// WaitForBootCompleted blocks until sys.boot_completed reads "1".
// Read errors while the device is still coming up are retried; when ctx ends
// the last read error (if any) is returned alongside the context error.
func WaitForBootCompleted(ctx context.Context, props core.PropertyStore, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		v, err := props.Get(ctx, core.BootCompletedProperty)
		if err == nil && v == "1" {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("waiting for boot: %w (last error: %v)", ctx.Err(), lastErr)
			}
			return fmt.Errorf("waiting for boot: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
