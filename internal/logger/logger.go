// Package logger writes component-scoped, leveled log lines to stderr.
// Debug and Info are only emitted in verbose mode.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Field is a key-value pair appended to a log line.
type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field { return Field{Key: key, Value: value} }

func Count(n int) Field { return Field{Key: "count", Value: n} }

func Duration(d time.Duration) Field { return Field{Key: "duration", Value: d} }

func Error(err error) Field { return Field{Key: "error", Value: err} }

type sink struct {
	mu      sync.Mutex
	w       io.Writer
	verbose func() bool
}

// Logger is safe for concurrent use. Loggers derived with WithComponent share
// the writer and the verbose switch of their parent.
type Logger struct {
	component string
	sink      *sink
}

// New creates a logger writing to stderr.
func New(component string, verbose bool) *Logger {
	return NewWithCallback(component, func() bool { return verbose })
}

// NewWithCallback creates a logger whose verbosity is decided per call, so a
// flag parsed after construction still takes effect.
func NewWithCallback(component string, verbose func() bool) *Logger {
	return &Logger{component: component, sink: &sink{w: os.Stderr, verbose: verbose}}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{component: "nop", sink: &sink{w: io.Discard, verbose: func() bool { return false }}}
}

// SetOutput redirects this logger and every logger derived from it.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.w = w
	l.sink.mu.Unlock()
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, sink: l.sink}
}

func (l *Logger) IsVerbose() bool {
	return l.sink.verbose != nil && l.sink.verbose()
}

func (l *Logger) Debug(msg string, fields ...Field) {
	if l.IsVerbose() {
		l.write("DEBUG", msg, fields)
	}
}

func (l *Logger) Info(msg string, fields ...Field) {
	if l.IsVerbose() {
		l.write("INFO", msg, fields)
	}
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.write("WARN", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.write("ERROR", msg, fields)
}

func (l *Logger) write(level, msg string, fields []Field) {
	component := l.component
	if component == "" {
		component = "main"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s [%s] %s", time.Now().Format("15:04:05.000"), level, component, msg)
	if len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
		}
		b.WriteString(" [" + strings.Join(parts, " ") + "]")
	}
	b.WriteByte('\n')

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	// nowhere to report a failed log write
	_, _ = io.WriteString(l.sink.w, b.String())
}
