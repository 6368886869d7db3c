// Package logging wraps a structured logger behind a small interface of
// Info/Debug/Error/Warn convenience methods, backed by logrus instead
// of bare log.Printf.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper around a logrus entry carrying component
// context that is attached to every line it emits.
type Logger struct {
	entry *logrus.Entry
}

// New creates a Logger for the named component. Debug enables
// debug-level output per-component instead of through a global
// verbosity flag.
func New(component string, debug bool) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
	return &Logger{entry: base.WithField("component", component)}
}

// WithFields returns a derived Logger carrying the given fields on
// every subsequent line, used on the hot path to attach request id, op,
// dialect, and status.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
