package auditor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// JSONLAuditor appends each decide and apply event of a gate run as one JSON
// line. Lines from one run share a run_id; apply lines carry the package.
type JSONLAuditor struct {
	mu       sync.Mutex
	f        *os.File
	writeErr error // first failed write; a run never stops for it
}

// NewJSONL opens path for appending, creating parent directories as needed.
// The file is 0600: it records device SKUs.
func NewJSONL(path string) (*JSONLAuditor, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &JSONLAuditor{f: f}, nil
}

// Close stops recording. Later events are dropped.
func (a *JSONLAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// Err returns the first write error, if any. The CLI warns with it after a run.
func (a *JSONLAuditor) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeErr
}

// Record writes evt, e.g.
//
//	{"time":"...","level":"info","action":"apply","run_id":"...","package":"com.google.android.euicc","fields":{"state":"disabled",...}}
func (a *JSONLAuditor) Record(_ context.Context, evt core.AuditEvent) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return
	}

	type wire struct {
		Time    time.Time      `json:"time"`
		Level   string         `json:"level"`
		Action  string         `json:"action"`
		RunID   string         `json:"run_id,omitempty"`
		Package string         `json:"package,omitempty"`
		Fields  map[string]any `json:"fields,omitempty"`
		Err     string         `json:"err,omitempty"`
	}

	w := wire{
		Time:    evt.Time,
		Level:   evt.Level,
		Action:  evt.Action,
		RunID:   evt.RunID,
		Package: evt.Package,
		Fields:  evt.Fields,
	}
	if evt.Err != nil {
		w.Err = evt.Err.Error()
	}

	b, err := json.Marshal(w)
	if err != nil {
		if a.writeErr == nil {
			a.writeErr = err
		}
		return
	}
	if _, err := a.f.Write(append(b, '\n')); err != nil && a.writeErr == nil {
		a.writeErr = err
	}
}

var _ core.Auditor = (*JSONLAuditor)(nil)
