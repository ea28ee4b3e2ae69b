package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity
// when no level is passed explicitly.
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "MEJALIGHT_LOG_LEVEL"

// maxLoggedBody caps how much of a response body ends up in a log line
const maxLoggedBody = 64

// Initialize creates the global logger with the specified level.
// If level is empty, MEJALIGHT_LOG_LEVEL is used. If neither is set,
// logging is disabled.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogPoll logs a completed poll request at debug level
func LogPoll(url string, statusCode int, body string, elapsed time.Duration) {
	Debug("Poll completed",
		zap.String("url", url),
		zap.Int("status_code", statusCode),
		zap.String("body", truncate(body)),
		zap.Duration("elapsed", elapsed),
	)
}

// LogCommand logs a non-empty command received for a station poll.
// stationID is 0 when the endpoint is polled without a station parameter.
func LogCommand(stationID int, command string) {
	Info("Command received",
		zap.Int("station", stationID),
		zap.String("command", truncate(command)),
	)
}

// LogStation logs a relay write. State changes are logged at info,
// re-asserted levels at debug.
func LogStation(id int, name string, on bool, changed bool) {
	state := "OFF"
	if on {
		state = "ON"
	}
	fields := []zap.Field{
		zap.Int("station", id),
		zap.String("name", name),
		zap.String("state", state),
	}
	if changed {
		Info("Station switched", fields...)
		return
	}
	Debug("Station state re-asserted", fields...)
}

// LogLink logs a connectivity event
func LogLink(link string, event string, attempt int) {
	Info("Link event",
		zap.String("link", link),
		zap.String("event", event),
		zap.Int("attempt", attempt),
	)
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "..."
	}
	return s
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
