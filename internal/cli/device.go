package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ChrisB0-2/euicc-gate/internal/android"
	"github.com/ChrisB0-2/euicc-gate/internal/auditor"
	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/fixture"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
	"github.com/ChrisB0-2/euicc-gate/internal/metrics"
)

// bootPollInterval is how often sys.boot_completed is polled.
const bootPollInterval = time.Second

// device is the property store and package registry selected by config.
type device struct {
	props core.PropertyStore
	reg   core.PackageRegistry

	// Set only for the fixture backend.
	snap     *fixture.Device
	snapPath string
}

// persist writes fixture state back to disk. Other backends are live.
func (d *device) persist() error {
	if d.snap == nil {
		return nil
	}
	return d.snap.Save(d.snapPath)
}

func (a *app) openDevice(ctx context.Context) (*device, error) {
	dc := a.cfg.Device

	var dev *device
	switch dc.Backend {
	case "fixture":
		snap, err := fixture.Load(dc.FixturePath)
		if err != nil {
			return nil, configError{err}
		}
		dev = &device{props: snap, reg: snap, snap: snap, snapPath: dc.FixturePath}
	case "adb":
		r := &android.ADBRunner{Path: dc.ADBPath, Serial: dc.Serial}
		dev = &device{props: android.NewProperties(r), reg: android.NewPackageManager(r)}
	default:
		r := android.LocalRunner{}
		dev = &device{props: android.NewProperties(r), reg: android.NewPackageManager(r)}
	}

	a.log.Debug("device opened",
		logger.F("backend", dc.Backend),
		logger.F("serial", dc.Serial),
	)

	if dc.BootWait > 0 {
		wctx, cancel := context.WithTimeout(ctx, dc.BootWait)
		defer cancel()

		a.log.Info("waiting for boot", logger.F("timeout", dc.BootWait.String()))
		if err := android.WaitForBootCompleted(wctx, dev.props, bootPollInterval); err != nil {
			return nil, err
		}
	}

	return dev, nil
}

// openAuditor opens every configured audit sink. The result is nil when no
// sink is configured.
func (a *app) openAuditor() (core.Auditor, error) {
	var sinks []core.Auditor

	if path := a.cfg.Execution.AuditPath; path != "" {
		j, err := auditor.NewJSONL(path)
		if err != nil {
			return nil, fmt.Errorf("audit log: %w", err)
		}
		a.closers = append(a.closers, j)
		sinks = append(sinks, j)
	}

	if path := a.cfg.Execution.AuditDB; path != "" {
		s, err := auditor.NewSQLite(auditor.SQLiteConfig{Path: path})
		if err != nil {
			return nil, fmt.Errorf("audit database: %w", err)
		}
		a.closers = append(a.closers, s)
		sinks = append(sinks, s)
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return auditor.NewMulti(sinks...), nil
	}
}

// openMetrics returns the Prometheus collector when a textfile is configured,
// or nil.
func (a *app) openMetrics() *metrics.Prometheus {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewPrometheus(nil, a.cfg.Metrics.Namespace)
}
