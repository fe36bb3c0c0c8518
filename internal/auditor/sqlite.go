package auditor

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// SQLiteAuditor persists audit events to a SQLite database.
// Rows carry a SHA-256 checksum so edits to historical records are detectable.
type SQLiteAuditor struct {
	db       *sql.DB
	mu       sync.Mutex
	writeErr error
}

// SQLiteConfig configures the SQLite auditor.
type SQLiteConfig struct {
	Path string // Database file path
}

// AuditRecord represents a single audit log entry.
type AuditRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Action    string    `json:"action"`
	RunID     string    `json:"run_id,omitempty"`
	Package   string    `json:"package,omitempty"`
	SKU       string    `json:"sku,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	State     string    `json:"state,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Applied   bool      `json:"applied"`
	Error     string    `json:"error,omitempty"`
	Fields    string    `json:"fields,omitempty"` // JSON-encoded event fields
	Checksum  string    `json:"checksum"`
}

// NewSQLite creates a new SQLite auditor.
func NewSQLite(cfg SQLiteConfig) (*SQLiteAuditor, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteAuditor{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		action TEXT NOT NULL,
		run_id TEXT,
		package TEXT,
		sku TEXT,
		mode TEXT,
		state TEXT,
		reason TEXT,
		applied INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		fields TEXT,
		checksum TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_log(run_id);
	CREATE INDEX IF NOT EXISTS idx_audit_package ON audit_log(package);

	CREATE TABLE IF NOT EXISTS audit_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return err
	}

	_, err := db.Exec(`
		INSERT OR IGNORE INTO audit_meta (key, value)
		VALUES ('created_at', ?)
	`, time.Now().UTC().Format(time.RFC3339))

	return err
}

// recordFromEvent flattens the well-known fields into columns.
func recordFromEvent(evt core.AuditEvent) AuditRecord {
	r := AuditRecord{
		Timestamp: evt.Time,
		Level:     evt.Level,
		Action:    evt.Action,
		RunID:     evt.RunID,
		Package:   evt.Package,
	}
	if evt.Err != nil {
		r.Error = evt.Err.Error()
	}
	if evt.Fields != nil {
		r.SKU, _ = evt.Fields["sku"].(string)
		r.Mode, _ = evt.Fields["mode"].(string)
		r.State, _ = evt.Fields["state"].(string)
		r.Reason, _ = evt.Fields["reason"].(string)
		r.Applied, _ = evt.Fields["applied"].(bool)
	}
	if len(evt.Fields) > 0 {
		if b, err := json.Marshal(evt.Fields); err == nil {
			r.Fields = string(b)
		}
	}
	return r
}

// Record persists an audit event. Write failures are kept for Err and never
// returned to the caller.
func (a *SQLiteAuditor) Record(ctx context.Context, evt core.AuditEvent) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	r := recordFromEvent(evt)
	r.Checksum = computeChecksum(r)

	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, level, action, run_id, package, sku, mode, state, reason, applied, error, fields, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Level,
		r.Action,
		r.RunID,
		r.Package,
		r.SKU,
		r.Mode,
		r.State,
		r.Reason,
		r.Applied,
		r.Error,
		r.Fields,
		r.Checksum,
	)
	if err != nil && a.writeErr == nil {
		a.writeErr = fmt.Errorf("audit write: %w", err)
	}
}

// Err returns the first write error encountered, if any.
func (a *SQLiteAuditor) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeErr
}

// computeChecksum hashes every persisted column except id and checksum.
func computeChecksum(r AuditRecord) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%t|%s|%s",
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Level, r.Action, r.RunID, r.Package, r.SKU, r.Mode, r.State, r.Reason,
		r.Applied, r.Error, r.Fields)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Close closes the database connection.
func (a *SQLiteAuditor) Close() error {
	return a.db.Close()
}

const selectColumns = `id, timestamp, level, action, run_id, package, sku, mode, state, reason, applied, error, fields, checksum`

func scanRecord(rows *sql.Rows) (AuditRecord, error) {
	var r AuditRecord
	var ts string
	var runID, pkg, sku, mode, state, reason, errStr, fields sql.NullString

	if err := rows.Scan(&r.ID, &ts, &r.Level, &r.Action, &runID, &pkg, &sku, &mode, &state, &reason, &r.Applied, &errStr, &fields, &r.Checksum); err != nil {
		return AuditRecord{}, fmt.Errorf("scan row: %w", err)
	}

	r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	r.RunID = runID.String
	r.Package = pkg.String
	r.SKU = sku.String
	r.Mode = mode.String
	r.State = state.String
	r.Reason = reason.String
	r.Error = errStr.String
	r.Fields = fields.String
	return r, nil
}

// QueryFilter specifies filters for querying audit records.
type QueryFilter struct {
	Since   time.Time
	Until   time.Time
	Action  string // decide, apply
	Level   string // info, error
	RunID   string // exact match
	Package string // partial match
	Limit   int
}

// Query retrieves audit records matching the given filters, newest first.
func (a *SQLiteAuditor) Query(ctx context.Context, filter QueryFilter) ([]AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	query := `SELECT ` + selectColumns + ` FROM audit_log WHERE 1=1`
	args := []any{}

	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.Until.UTC().Format(time.RFC3339Nano))
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.Level != "" {
		query += " AND level = ?"
		args = append(args, filter.Level)
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Package != "" {
		query += " AND package LIKE ?"
		args = append(args, "%"+filter.Package+"%")
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// VerifyIntegrity checks all records for tampering.
// Returns list of record IDs with invalid checksums.
func (a *SQLiteAuditor) VerifyIntegrity(ctx context.Context) ([]int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM audit_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query for integrity check: %w", err)
	}
	defer rows.Close()

	var tampered []int64
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if r.Checksum != computeChecksum(r) {
			tampered = append(tampered, r.ID)
		}
	}

	return tampered, rows.Err()
}

// AuditStats contains summary statistics.
type AuditStats struct {
	TotalRecords     int64
	FirstRecord      time.Time
	LastRecord       time.Time
	Runs             int64
	DisableDecisions int64
	EnableDecisions  int64
	Applies          int64
	Errors           int64
}

// Stats returns summary statistics from the audit log.
func (a *SQLiteAuditor) Stats(ctx context.Context) (*AuditStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := &AuditStats{}

	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&stats.TotalRecords); err != nil {
		return nil, err
	}

	var firstTS, lastTS sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT MIN(timestamp), MAX(timestamp) FROM audit_log").Scan(&firstTS, &lastTS); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if firstTS.Valid {
		stats.FirstRecord, _ = time.Parse(time.RFC3339Nano, firstTS.String)
	}
	if lastTS.Valid {
		stats.LastRecord, _ = time.Parse(time.RFC3339Nano, lastTS.String)
	}

	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(DISTINCT run_id) FROM audit_log WHERE run_id != ''", &stats.Runs},
		{"SELECT COUNT(*) FROM audit_log WHERE action = 'decide' AND fields LIKE '%\"disable\":true%'", &stats.DisableDecisions},
		{"SELECT COUNT(*) FROM audit_log WHERE action = 'decide' AND fields LIKE '%\"disable\":false%'", &stats.EnableDecisions},
		{"SELECT COUNT(*) FROM audit_log WHERE action = 'apply' AND applied = 1", &stats.Applies},
		{"SELECT COUNT(*) FROM audit_log WHERE level = 'error'", &stats.Errors},
	}
	for _, c := range counts {
		if err := a.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// Prune removes records older than the retention period.
func (a *SQLiteAuditor) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339Nano)
	result, err := a.db.ExecContext(ctx, "DELETE FROM audit_log WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Export writes all records since the given time as indented JSON.
func (a *SQLiteAuditor) Export(ctx context.Context, since time.Time) ([]byte, error) {
	records, err := a.Query(ctx, QueryFilter{Since: since})
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(records, "", "  ")
}

// Ensure SQLiteAuditor implements core.Auditor
var _ core.Auditor = (*SQLiteAuditor)(nil)
