package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogHarvestStart logs the beginning of a harvest for one group
func LogHarvestStart(l Logger, groupURL string, maxRecords int, hasCursor bool) {
	l.InfoWithFields("Harvest started", map[string]interface{}{
		"group":       groupURL,
		"max_records": maxRecords,
		"has_cursor":  hasCursor,
	})
}

// LogHarvestStop logs how and why a harvest ended
func LogHarvestStop(l Logger, groupURL, reason string, accepted, scrolls int, elapsed time.Duration) {
	l.InfoWithFields("Harvest stopped", map[string]interface{}{
		"group":    groupURL,
		"reason":   reason,
		"accepted": accepted,
		"scrolls":  scrolls,
		"duration": elapsed,
	})
}

// LogCandidateSkipped records a post handle that was not turned into a candidate
func LogCandidateSkipped(l Logger, reason string, err error) {
	fields := map[string]interface{}{"reason": reason}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.DebugWithFields("Candidate skipped", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)
	if len(config) > 0 {
		logger = logger.WithFields(config)
	}
	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
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
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
