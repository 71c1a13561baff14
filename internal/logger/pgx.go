package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// newrelicShutdownTimeout bounds how long Shutdown waits for the agent to
// flush its final harvest.
const newrelicShutdownTimeout = 10 * time.Second

// NewPgxLogger builds a dedicated logger for pgx query tracing.
//
// SQL logging is chatty, so it gets its own console logger (local use only)
// tagged with a component field instead of polluting the main JSON stream.
func NewPgxLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().
		Str("component", "pgx").
		Logger()
}

// GetPgxTraceLogLevel converts a zerolog level into the pgx tracelog level
// scale (tracelog: none=0 error=1 warn=2 info=3 debug=4 trace=5).
//
// Returned as int so callers can wrap it with tracelog.LogLevel without this
// package importing pgx.
func GetPgxTraceLogLevel(level zerolog.Level) int {
	switch level {
	case zerolog.TraceLevel:
		return 5 // tracelog.LogLevelTrace
	case zerolog.DebugLevel:
		return 4 // tracelog.LogLevelDebug
	case zerolog.InfoLevel:
		return 3 // tracelog.LogLevelInfo
	case zerolog.WarnLevel:
		return 2 // tracelog.LogLevelWarn
	case zerolog.ErrorLevel:
		return 1 // tracelog.LogLevelError
	default:
		return 0 // tracelog.LogLevelNone
	}
}
