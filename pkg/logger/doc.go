// Package logger provides the structured logging interface used across rednote.
//
// It wraps zerolog. Console output is human readable by default and JSON when
// the format is "json"; when a log file is configured, entries are also
// written as JSON to a lumberjack-rotated file.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("session_id", id)
//	log.InfoWithFields("feed reloaded", map[string]interface{}{"items": 20})
//
// Components take a Logger by injection; tests use NewTestLogger to assert on
// captured entries, or NewNopLogger to silence output.
package logger
