package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		logLevel Level
		logFunc  func(l *Structured)
		wantLog  bool
	}{
		{"debug at debug level", LevelDebug, func(l *Structured) { l.Debug("test") }, true},
		{"debug at info level", LevelInfo, func(l *Structured) { l.Debug("test") }, false},
		{"info at info level", LevelInfo, func(l *Structured) { l.Info("test") }, true},
		{"info at warn level", LevelWarn, func(l *Structured) { l.Info("test") }, false},
		{"error at warn level", LevelWarn, func(l *Structured) { l.Error("test") }, true},
		{"warn at error level", LevelError, func(l *Structured) { l.Warn("test") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(New(tt.logLevel, &buf))

			if hasOutput := buf.Len() > 0; hasOutput != tt.wantLog {
				t.Errorf("got output = %v, want %v", hasOutput, tt.wantLog)
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelInfo, &buf)

	log.Info("decision", F("sku", "IN"), F("disable", true))

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if entry.Level != "info" {
		t.Errorf("expected level 'info', got %q", entry.Level)
	}
	if entry.Tag != DefaultTag {
		t.Errorf("expected tag %q, got %q", DefaultTag, entry.Tag)
	}
	if entry.Message != "decision" {
		t.Errorf("expected message 'decision', got %q", entry.Message)
	}
	if entry.Fields["sku"] != "IN" {
		t.Errorf("expected sku=IN, got %v", entry.Fields["sku"])
	}
	if entry.Fields["disable"] != true {
		t.Errorf("expected disable=true, got %v", entry.Fields["disable"])
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("expected output to end with newline")
	}
}

func TestJSONOutputOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	New(LevelInfo, &buf).Info("plain")

	if strings.Contains(buf.String(), `"fields"`) {
		t.Errorf("expected no fields key, got %s", buf.String())
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat(LevelDebug, FormatText, &buf)
	log.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	log.Debug("package installed", F("package", "com.google.android.gms"), F("enabled", true))

	want := "2026-01-02T03:04:05Z D/EuiccGate: package installed enabled=true package=com.google.android.gms\n"
	if buf.String() != want {
		t.Errorf("unexpected text line:\n got: %q\nwant: %q", buf.String(), want)
	}
}

func TestUnknownFormatFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	NewWithFormat(LevelInfo, Format("xml"), &buf).Info("hello")

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON fallback, got %q: %v", buf.String(), err)
	}
}

func TestWithFieldsMerge(t *testing.T) {
	var buf bytes.Buffer
	base := New(LevelInfo, &buf)
	child := base.WithFields(F("run_id", "abc"), F("mode", "dry-run"))

	child.Info("applied", F("mode", "execute"))

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry.Fields["run_id"] != "abc" {
		t.Errorf("expected inherited run_id, got %v", entry.Fields["run_id"])
	}
	if entry.Fields["mode"] != "execute" {
		t.Errorf("expected call fields to override base fields, got %v", entry.Fields["mode"])
	}

	buf.Reset()
	base.Info("base")
	if strings.Contains(buf.String(), "run_id") {
		t.Error("expected parent logger to be unaffected by WithFields")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelError, &buf)

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatal("expected info to be filtered at error level")
	}

	log.SetLevel(LevelDebug)
	log.Debug("visible")
	if buf.Len() == 0 {
		t.Error("expected debug output after SetLevel")
	}
}

func TestConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelInfo, &buf)
	child := log.WithFields(F("child", true))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			log.Info("parent")
		}()
		go func() {
			defer wg.Done()
			child.Info("child")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 40 {
		t.Fatalf("expected 40 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("interleaved output: %q", line)
		}
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNop()
	log.Debug("x")
	log.Info("x", F("k", "v"))
	log.Warn("x")
	log.Error("x")
	if _, ok := log.WithFields(F("k", "v")).(NopLogger); !ok {
		t.Error("expected WithFields on NopLogger to return NopLogger")
	}
}
