// Structured logging for the G-code viewer
//
// Levelled, component-prefixed logging with structured fields. Output
// is text (optionally colored) or one JSON object per line. Coded
// errors passed to WithError also record their code.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/pool"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR"}

var levelColors = [...]string{
	DEBUG: "\x1b[36m",
	INFO:  "\x1b[32m",
	WARN:  "\x1b[33m",
	ERROR: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

func (l LogLevel) String() string {
	if l < DEBUG || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name (case-insensitive, "warning" accepted)
// to a LogLevel. Unknown names mean INFO.
func ParseLevel(s string) LogLevel {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return WARN
	}
	for lvl, name := range levelNames {
		if name == s {
			return LogLevel(lvl)
		}
	}
	return INFO
}

// OutputFormat selects text or JSON lines.
type OutputFormat int

const (
	FormatText OutputFormat = iota
	FormatJSON
)

// ParseFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Fields is a map of structured logging fields
type Fields map[string]interface{}

// output is shared by a root logger and every logger derived from it,
// so settings applied to the root reach all components.
type output struct {
	mu       sync.Mutex
	w        io.Writer
	level    LogLevel
	format   OutputFormat
	colorize bool
	caller   bool
}

// Logger writes entries for one component prefix
type Logger struct {
	prefix string
	out    *output
}

// Entry is a set of fields bound to a logger.
type Entry struct {
	logger *Logger
	fields Fields
}

// New creates a root logger writing text to stderr at INFO.
func New(prefix string) *Logger {
	return &Logger{prefix: prefix, out: &output{
		w:        os.Stderr,
		level:    INFO,
		colorize: os.Getenv("NO_COLOR") == "",
	}}
}

func (l *Logger) update(fn func(o *output)) {
	l.out.mu.Lock()
	fn(l.out)
	l.out.mu.Unlock()
}

func (l *Logger) SetLevel(level LogLevel)       { l.update(func(o *output) { o.level = level }) }
func (l *Logger) SetWriter(w io.Writer)         { l.update(func(o *output) { o.w = w }) }
func (l *Logger) SetColorize(enable bool)       { l.update(func(o *output) { o.colorize = enable }) }
func (l *Logger) SetFormat(format OutputFormat) { l.update(func(o *output) { o.format = format }) }
func (l *Logger) SetCaller(enable bool)         { l.update(func(o *output) { o.caller = enable }) }

// GetLevel returns the current minimum level.
func (l *Logger) GetLevel() LogLevel {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return l.out.level
}

func (l *Logger) Prefix() string { return l.prefix }

// WithPrefix returns a logger for another component sharing this output
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{prefix: prefix, out: l.out}
}

func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: l, fields: Fields{key: value}}
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{logger: l, fields: fields}
}

func (l *Logger) WithError(err error) *Entry {
	return (&Entry{logger: l}).WithError(err)
}

// The format argument is applied only when args are given, so plain
// messages may contain '%'.
func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(DEBUG, sprintf(msg, args), nil) }
func (l *Logger) Info(msg string, args ...interface{})  { l.emit(INFO, sprintf(msg, args), nil) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.emit(WARN, sprintf(msg, args), nil) }
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(ERROR, sprintf(msg, args), nil) }

func sprintf(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// WithField adds a field to the entry
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.WithFields(Fields{key: value})
}

// WithFields returns a new entry; e is not modified.
func (e *Entry) WithFields(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{logger: e.logger, fields: merged}
}

// WithError records err and, for coded errors, its code.
func (e *Entry) WithError(err error) *Entry {
	if err == nil {
		return e
	}
	f := Fields{"error": err.Error()}
	var he *errors.HostError
	if stderrors.As(err, &he) {
		f["code"] = string(he.Code)
	}
	return e.WithFields(f)
}

func (e *Entry) Debug(msg string) { e.logger.emit(DEBUG, msg, e.fields) }
func (e *Entry) Info(msg string)  { e.logger.emit(INFO, msg, e.fields) }
func (e *Entry) Warn(msg string)  { e.logger.emit(WARN, msg, e.fields) }
func (e *Entry) Error(msg string) { e.logger.emit(ERROR, msg, e.fields) }

func (e *Entry) Infof(format string, args ...interface{}) {
	e.logger.emit(INFO, fmt.Sprintf(format, args...), e.fields)
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.logger.emit(WARN, fmt.Sprintf(format, args...), e.fields)
}

// JSONLogEntry is one line of JSON output.
type JSONLogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// emit must be called directly from the exported logging methods: the
// caller frame is found at a fixed depth.
func (l *Logger) emit(level LogLevel, msg string, fields Fields) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	o := l.out
	if level < o.level {
		return
	}

	var caller string
	if o.caller {
		if _, file, line, ok := runtime.Caller(2); ok {
			caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	now := time.Now()

	if o.format == FormatJSON {
		entry := JSONLogEntry{
			Timestamp: now.Format(time.RFC3339Nano),
			Level:     level.String(),
			Logger:    l.prefix,
			Message:   msg,
			Caller:    caller,
		}
		if len(fields) > 0 {
			entry.Fields = fields
		}
		if err := json.NewEncoder(buf).Encode(entry); err != nil {
			buf.Reset()
			fmt.Fprintf(buf, "{\"error\":%q}\n", "cannot encode log entry: "+err.Error())
		}
	} else {
		fmt.Fprintf(buf, "%s [%-5s] ", now.Format("2006-01-02 15:04:05.000"), level)
		if o.colorize {
			buf.WriteString(levelColors[level] + l.prefix + ansiReset)
		} else {
			buf.WriteString(l.prefix)
		}
		buf.WriteString(": ")
		buf.WriteString(msg)
		if caller != "" {
			fmt.Fprintf(buf, " (%s)", caller)
		}
		writeFields(buf, fields)
		buf.WriteByte('\n')
	}
	_, _ = o.w.Write(buf.Bytes())
}

// writeFields appends " {k=v, ...}" with keys sorted.
func writeFields(w io.Writer, fields Fields) {
	if len(fields) == 0 {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	fmt.Fprintf(w, " {%s}", strings.Join(parts, ", "))
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = func() *Logger {
		l := New("gcodeview")
		ConfigureFromEnv(l)
		return l
	}()
)

// SetDefaultLogger replaces the root logger used by GetLogger.
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// Default returns the root logger
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetLogger returns a component logger derived from the default logger
func GetLogger(prefix string) *Logger {
	return Default().WithPrefix(prefix)
}

// ConfigureFromEnv applies GCODEVIEW_LOG_LEVEL, GCODEVIEW_LOG_FORMAT,
// GCODEVIEW_LOG_CALLER (any value enables caller info) and NO_COLOR.
func ConfigureFromEnv(l *Logger) {
	if v := os.Getenv("GCODEVIEW_LOG_LEVEL"); v != "" {
		l.SetLevel(ParseLevel(v))
	}
	if v := os.Getenv("GCODEVIEW_LOG_FORMAT"); v != "" {
		l.SetFormat(ParseFormat(v))
	}
	if os.Getenv("GCODEVIEW_LOG_CALLER") != "" {
		l.SetCaller(true)
	}
	if os.Getenv("NO_COLOR") != "" {
		l.SetColorize(false)
	}
}
