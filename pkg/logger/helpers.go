package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogNavigation records a page navigation and how long it took.
func LogNavigation(l Logger, url string, elapsed time.Duration, err error) {
	fields := map[string]interface{}{
		"url":         url,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		l.WithError(err).WarnWithFields("navigation failed", fields)
		return
	}
	l.DebugWithFields("navigation completed", fields)
}

// LogExtraction records the outcome of extracting one note.
func LogExtraction(l Logger, url string, err error) {
	if err != nil {
		l.WithError(err).WarnWithFields("note extraction failed", map[string]interface{}{
			"url": url,
		})
		return
	}
	l.InfoWithFields("note extracted", map[string]interface{}{
		"url": url,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, fields map[string]interface{}) {
	l = l.WithField("component", component)
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	l.Debug("component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Debug("component stopped")
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
