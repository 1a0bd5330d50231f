// Package logger provides the structured logging interface used across the harvester.
//
// It wraps zerolog with a small field-oriented API:
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("group", group.URL).Info("Harvest started")
//	logger.WithError(err).Error("Harvest failed")
//
// Components receive a Logger in their constructors and fall back to the
// global instance from GetLogger. Tests use NewNopLogger or NewTestLogger,
// which captures messages for assertions.
package logger
