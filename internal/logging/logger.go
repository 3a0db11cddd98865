// Package logging provides structured logging for Keepsake.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// global logger instance
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Output is JSON, one entry per
// line, gated by the given minimum level.
func Init(out io.Writer, level logrus.Level) {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(level)
		l.SetFormatter(&logrus.JSONFormatter{})
		global = l
	})
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, logrus.InfoLevel)
	}
	return global
}

// Fields is the context attached to a log entry.
type Fields = logrus.Fields

// merge collapses variadic context maps into one.
func merge(fields ...Fields) Fields {
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return fields[0]
	}
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}

// Convenience functions using the global logger

func Debug(message string, fields ...Fields) {
	Get().WithFields(merge(fields...)).Debug(message)
}

func Info(message string, fields ...Fields) {
	Get().WithFields(merge(fields...)).Info(message)
}

func Warn(message string, fields ...Fields) {
	Get().WithFields(merge(fields...)).Warn(message)
}

func Error(message string, err error, fields ...Fields) {
	entry := Get().WithFields(merge(fields...))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}
