package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "euicc_gate"

// Prometheus implements core.Metrics using Prometheus client.
//
// The gate is a one-shot process, so metrics are not served over HTTP; they are
// written to a node-exporter textfile after each run (see WriteTextfile).
type Prometheus struct {
	reg *prometheus.Registry

	// Evaluation metrics
	lookups   *prometheus.CounterVec
	decisions *prometheus.CounterVec

	// Apply metrics
	applies     *prometheus.CounterVec
	applyErrors *prometheus.CounterVec

	// Run metrics
	runDuration prometheus.Histogram
	lastRun     prometheus.Gauge
}

// NewPrometheus creates a new Prometheus metrics collector registered with reg.
// If reg is nil a fresh registry is created. An empty namespace uses
// DefaultNamespace.
func NewPrometheus(reg *prometheus.Registry, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	factory := promauto.With(reg)

	return &Prometheus{
		reg: reg,

		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "package_lookups_total",
			Help:      "Dependency lookups by outcome (enabled, disabled, not_found, error)",
		}, []string{"outcome"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Policy decisions by reason and outcome",
		}, []string{"reason", "disable"}),

		applies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "applies_total",
			Help:      "Enabled-state writes by target state and result",
		}, []string{"state", "result"}),
		applyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "apply_errors_total",
			Help:      "Failed enabled-state writes by package",
		}, []string{"package"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of one evaluate-and-apply run",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time of the last completed run",
		}),
	}
}

func (p *Prometheus) IncLookup(outcome string) {
	p.lookups.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) IncDecision(reason string, disable bool) {
	p.decisions.WithLabelValues(reason, boolStr(disable)).Inc()
}

func (p *Prometheus) IncApply(state string, result string) {
	p.applies.WithLabelValues(state, result).Inc()
}

func (p *Prometheus) IncApplyErrors(pkg string) {
	p.applyErrors.WithLabelValues(pkg).Inc()
}

func (p *Prometheus) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *Prometheus) SetLastRunTimestamp(t time.Time) {
	p.lastRun.Set(float64(t.Unix()))
}

// Registry returns the registry backing this collector.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.reg
}

// WriteTextfile atomically writes all gathered metrics in text exposition
// format, suitable for node-exporter's textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Ensure Prometheus implements core.Metrics
var _ core.Metrics = (*Prometheus)(nil)
