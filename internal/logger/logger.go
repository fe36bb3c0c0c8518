package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// letter is the logcat priority letter for the level.
func (l Level) letter() string {
	switch l {
	case LevelDebug:
		return "D"
	case LevelInfo:
		return "I"
	case LevelWarn:
		return "W"
	case LevelError:
		return "E"
	default:
		return "?"
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Format selects the line encoding.
type Format string

const (
	FormatJSON Format = "json"
	// FormatText mimics logcat's brief format: "I/<tag>: msg key=value".
	FormatText Format = "text"
)

// DefaultTag names the component in every line.
const DefaultTag = "EuiccGate"

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Structured writes one line per entry in JSON or text format.
// Loggers derived with WithFields share the parent's lock and writer.
type Structured struct {
	mu     *sync.Mutex
	level  Level
	format Format
	tag    string
	output io.Writer
	fields []Field
	now    func() time.Time
}

type logEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Tag     string         `json:"tag"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// New creates a JSON logger.
func New(level Level, output io.Writer) *Structured {
	return NewWithFormat(level, FormatJSON, output)
}

// NewWithFormat creates a logger with the given format. Unknown formats fall
// back to JSON; a nil output writes to stderr.
func NewWithFormat(level Level, format Format, output io.Writer) *Structured {
	if output == nil {
		output = os.Stderr
	}
	if format != FormatText {
		format = FormatJSON
	}
	return &Structured{
		mu:     &sync.Mutex{},
		level:  level,
		format: format,
		tag:    DefaultTag,
		output: output,
		now:    time.Now,
	}
}

// NewDefault creates a logger with info level writing JSON to stderr.
func NewDefault() *Structured {
	return New(LevelInfo, os.Stderr)
}

func (l *Structured) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *Structured) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *Structured) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *Structured) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// WithFields returns a new logger with additional fields.
func (l *Structured) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)

	l.mu.Lock()
	level := l.level
	l.mu.Unlock()

	return &Structured{
		mu:     l.mu,
		level:  level,
		format: l.format,
		tag:    l.tag,
		output: l.output,
		fields: merged,
		now:    l.now,
	}
}

// SetLevel changes the log level.
func (l *Structured) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Structured) log(level Level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	all := make(map[string]any, len(l.fields)+len(fields))
	for _, f := range l.fields {
		all[f.Key] = f.Value
	}
	for _, f := range fields {
		all[f.Key] = f.Value
	}

	ts := l.now().UTC().Format(time.RFC3339)

	var line []byte
	if l.format == FormatText {
		line = []byte(formatText(ts, level, l.tag, msg, all))
	} else {
		entry := logEntry{Time: ts, Level: level.String(), Tag: l.tag, Message: msg}
		if len(all) > 0 {
			entry.Fields = all
		}
		b, err := json.Marshal(entry)
		if err != nil {
			line = []byte(formatText(ts, level, l.tag, msg, nil))
		} else {
			line = b
		}
	}

	_, _ = l.output.Write(append(line, '\n'))
}

// formatText renders fields sorted by key so lines are stable.
func formatText(ts string, level Level, tag, msg string, fields map[string]any) string {
	var sb strings.Builder
	sb.WriteString(ts)
	sb.WriteByte(' ')
	sb.WriteString(level.letter())
	sb.WriteByte('/')
	sb.WriteString(tag)
	sb.WriteString(": ")
	sb.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	return sb.String()
}

// NopLogger is a logger that discards all output.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) WithFields(fields ...Field) Logger { return NopLogger{} }

// NewNop creates a no-op logger.
func NewNop() Logger {
	return NopLogger{}
}
