// Package gasdblog provides GASDB's observational logging. It is purely
// ambient: nothing in the core depends on whether or how a call is logged.
//
// bundoc logs with bare, short, conditionally-emitted fmt.Printf("[INFO]
// ...")/fmt.Printf("[WARN] ...") calls scattered through database.go and
// collection.go (e.g. "[INFO] Auto-creating index for field '%s'...",
// "[WARN] Failed to load schema for collection %s: %v"). This package keeps
// that call-site shape — short, infrequent, one line per notable event —
// but backs it with a real structured logger instead of bare Printf, per
// SPEC_FULL.md's ambient-stack section.
package gasdblog

import "github.com/sirupsen/logrus"

// Logger wraps a *logrus.Entry scoped to the "gasdb" component.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger writing structured JSON-free text logs at Info level
// by default.
func New() *Logger {
	base := logrus.New()
	base.SetLevel(logrus.InfoLevel)
	return &Logger{entry: base.WithField("component", "gasdb")}
}

// NewWithLogrus wraps an already-configured *logrus.Logger, letting a host
// application control formatting/level/output.
func NewWithLogrus(base *logrus.Logger) *Logger {
	return &Logger{entry: base.WithField("component", "gasdb")}
}

func (l *Logger) Info(msg string)  { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *Logger) Error(msg string) { l.entry.Error(msg) }

// WithField returns a Logger scoped with an additional structured field
// (e.g. "collection": name), the idiomatic logrus way to carry context that
// bundoc's bare Printf calls inlined into the message string instead.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}
