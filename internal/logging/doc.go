// Package logging provides structured logging for the mejalight agent.
//
// It wraps a global zap logger with level helpers and a few domain-specific
// functions so that every component reports polls, commands, relay writes
// and link events with the same field names.
//
// # Log Levels
//
//   - Debug: every poll, unchanged relay writes, silent poll failures
//   - Info: commands received, relay state changes, link (re)association
//   - Warn: poll failures when failure logging is enabled, pin write errors
//   - Error: association exhausted, restart issued
//
// # Configuration
//
// Initialize once at startup:
//
//	if err := logging.Initialize("info"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// An empty level falls back to MEJALIGHT_LOG_LEVEL. When both are empty the
// logger is a no-op, which keeps one-shot CLI commands quiet.
//
// # Domain Helpers
//
//	logging.LogPoll(url, statusCode, body, elapsed)
//	logging.LogCommand(stationID, "ON1")
//	logging.LogStation(1, "Meja 1", true, changed)
//	logging.LogLink("wlan0", "reconnected", attempt)
//
// All functions are safe for concurrent use.
package logging
