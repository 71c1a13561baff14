// Package logger configures the application's logging,
// monitoring, and observability.
//
// It uses *ZeroLog* for logging and integrates with
// *New Relic* to instrument the codebase, forwarding logs,
// metrics, and traces for debugging.
package logger

import (
	"fmt"
	"os"

	"github.com/archonhq/archon/internal/config"
	"github.com/newrelic/go-agent/v3/integrations/logcontext-v2/zerologWriter"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// LoggerService wraps the optional New Relic application instance.
//
// The rest of the codebase never talks to the agent directly; it asks this
// service for the application and treats nil as "APM disabled". That keeps
// every call site no-op safe without sprinkling license checks around.
type LoggerService struct {
	nrApp *newrelic.Application
}

// NewLoggerService initializes the New Relic agent from config.
//
// Behavior:
//   - Empty license key: returns a service with a nil application. All
//     instrumentation downstream degrades to no-ops.
//   - Non-empty key: configures app name, distributed tracing, and log
//     forwarding per config. Agent connect errors are returned so startup
//     can decide whether to continue.
func NewLoggerService(cfg *config.Config, logger *zerolog.Logger) (*LoggerService, error) {
	obs := cfg.Observability

	if obs.NewRelic.LicenseKey == "" {
		logger.Info().Msg("New Relic license key not set, APM disabled")
		return &LoggerService{}, nil
	}

	opts := []newrelic.ConfigOption{
		newrelic.ConfigAppName(obs.ServiceName),
		newrelic.ConfigLicense(obs.NewRelic.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(obs.NewRelic.DistributedTracingEnabled),
		newrelic.ConfigAppLogForwardingEnabled(obs.NewRelic.AppLogForwardingEnabled),
	}

	if obs.NewRelic.DebugLogging {
		opts = append(opts, newrelic.ConfigDebugLogger(os.Stderr))
	}

	nrApp, err := newrelic.NewApplication(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize New Relic application: %w", err)
	}

	logger.Info().
		Str("service", obs.ServiceName).
		Str("environment", obs.Environment).
		Msg("New Relic APM initialized")

	return &LoggerService{nrApp: nrApp}, nil
}

// GetApplication returns the New Relic application, or nil when disabled.
func (s *LoggerService) GetApplication() *newrelic.Application {
	if s == nil {
		return nil
	}
	return s.nrApp
}

// Shutdown flushes pending telemetry. Safe to call when APM is disabled.
func (s *LoggerService) Shutdown() {
	if s == nil || s.nrApp == nil {
		return
	}
	// Harvest window; the agent gives up after this and we move on.
	s.nrApp.Shutdown(newrelicShutdownTimeout)
}

// New builds the main application logger from observability config.
//
// Format selection:
//   - "console": human-friendly output for local development
//   - anything else: JSON lines, which log pipelines actually want
//
// When New Relic log forwarding is on, stdout is wrapped with zerologWriter
// so log lines carry linking metadata and get shipped by the agent.
func New(cfg *config.Config, service *LoggerService) *zerolog.Logger {
	level := parseLevel(cfg.Observability.GetLogLevel())

	var logger zerolog.Logger
	if cfg.Observability.Logging.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().
			Logger()
	} else if app := service.GetApplication(); app != nil && cfg.Observability.NewRelic.AppLogForwardingEnabled {
		writer := zerologWriter.New(os.Stdout, app)
		logger = zerolog.New(writer).
			Level(level).
			With().Timestamp().
			Str("service", cfg.Observability.ServiceName).
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			Level(level).
			With().Timestamp().
			Str("service", cfg.Observability.ServiceName).
			Logger()
	}

	return &logger
}

// WithTraceContext returns a child logger carrying trace.id and span.id from
// the given transaction, so log lines correlate with distributed traces.
//
// If txn is nil the logger is returned unchanged.
func WithTraceContext(logger zerolog.Logger, txn *newrelic.Transaction) zerolog.Logger {
	if txn == nil {
		return logger
	}

	md := txn.GetTraceMetadata()
	builder := logger.With()
	if md.TraceID != "" {
		builder = builder.Str("trace.id", md.TraceID)
	}
	if md.SpanID != "" {
		builder = builder.Str("span.id", md.SpanID)
	}
	return builder.Logger()
}

// parseLevel maps a config level string to a zerolog level.
// Unknown strings fall back to info rather than failing startup.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
