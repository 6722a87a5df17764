// Package logger provides the leveled logger used while building profile trees.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/gofhir/profiletree/pkg/event"
)

// Level represents the logging level.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return ""
	}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "none", "off":
		return LevelNone, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Prefix is written in front of every line.
const Prefix = "profiletree"

// output is shared by a logger and the loggers derived from it with WithResource.
type output struct {
	mu    sync.Mutex
	level Level
	w     io.Writer
}

// Logger provides logging functionality.
type Logger struct {
	out      *output
	resource string
}

var defaultLogger = New(os.Stderr, LevelInfo)

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// New creates a new logger.
func New(w io.Writer, level Level) *Logger {
	return &Logger{out: &output{level: level, w: w}}
}

// WithResource returns a logger tagging every line with the resource name. It shares
// level and output with l.
func (l *Logger) WithResource(name string) *Logger {
	return &Logger{out: l.out, resource: name}
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.level = level
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return level >= l.out.level
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w = w
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if level < l.out.level {
		return
	}

	timestamp := time.Now().Format("15:04:05")
	msg := fmt.Sprintf(format, args...)
	if l.resource != "" {
		_, _ = fmt.Fprintf(l.out.w, "[%s] %s [%s] %s: %s\n", timestamp, Prefix, level.String(), l.resource, msg)
		return
	}
	_, _ = fmt.Fprintf(l.out.w, "[%s] %s [%s] %s\n", timestamp, Prefix, level.String(), msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Dump logs a structural dump of v at debug level.
func (l *Logger) Dump(label string, v any) {
	if !l.Enabled(LevelDebug) {
		return
	}
	l.log(LevelDebug, "%s:\n%s", label, dumper.Sdump(v))
}

// Sink returns an event sink writing every event as a log line. Errors are logged at
// error level, warnings at warn level and information at debug level.
func (l *Logger) Sink() event.Sink {
	return event.SinkFunc(func(t event.Type, msg string, cause error) {
		level := LevelDebug
		switch t.Severity() {
		case event.SeverityError:
			level = LevelError
		case event.SeverityWarning:
			level = LevelWarn
		}
		if cause != nil {
			l.log(level, "%s: %s: %v", t, msg, cause)
			return
		}
		l.log(level, "%s: %s", t, msg)
	})
}

// Package-level convenience functions.

// Debug logs a debug message using the default logger.
func Debug(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...any) {
	defaultLogger.Error(format, args...)
}

// SetLevel sets the level of the default logger.
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// SetOutput sets the output of the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// Disable disables all logging.
func Disable() {
	defaultLogger.SetLevel(LevelNone)
}
