// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to stderr.  It keeps the printf-style
// verbosity API used across mailnet and delegates formatting and output
// to a private logrus instance.
type Logger struct {
	level LogLevel
	log   *logrus.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level: LogLevel(verbosity),
		log:   logrus.New(),
	}
	l.log.SetOutput(os.Stderr)
	l.log.SetLevel(logrusLevel(l.level))
	l.SetTimestamps(verbosity >= int(LogDebug))
	return l
}

func logrusLevel(level LogLevel) logrus.Level {
	switch {
	case level <= LogQuiet:
		return logrus.ErrorLevel
	case level == LogNormal:
		return logrus.InfoLevel
	case level == LogVerbose:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.log.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: !on,
		FullTimestamp:    on,
		TimestampFormat:  "15:04:05.000",
	})
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) { l.log.SetOutput(w) }

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// WithField returns a logrus entry carrying key=value, for call sites
// that want structured context on a single line.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.log.WithField(key, value)
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log.Trace(fmt.Sprintf(format, args...))
}

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

// NopLogger returns a Logger that discards everything, for library
// callers that did not supply one.
func NopLogger() *Logger {
	l := NewLogger(int(LogQuiet))
	l.SetOutput(io.Discard)
	return l
}
