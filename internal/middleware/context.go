package middleware

import (
	"context"

	"github.com/archonhq/archon/internal/logger"
	"github.com/archonhq/archon/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

const (
	// UserIDKey and UserRoleKey are the canonical Echo context keys for
	// user identity, set by the auth middleware.
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"

	// LoggerKey stores the request-scoped logger.
	LoggerKey = "logger"
)

// ContextEnhancer enriches the request context.
//
// It builds a request-scoped logger with correlation fields:
//   - request_id
//   - method, path, ip
//   - trace.id/span.id (if a New Relic transaction exists)
//   - user_id/user_role (if auth middleware ran earlier)
//
// and stores it in both the Echo context and the Go request context, so
// non-Echo code (repositories, services) can retrieve it too.
type ContextEnhancer struct {
	server *server.Server
}

// NewContextEnhancer creates a ContextEnhancer using the app container.
func NewContextEnhancer(s *server.Server) *ContextEnhancer {
	return &ContextEnhancer{server: s}
}

// EnhanceContext returns the Echo middleware.
func (ce *ContextEnhancer) EnhanceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Empty if the RequestID middleware hasn't run yet; keep the
			// field anyway so log shape stays constant.
			requestID := GetRequestID(c)

			contextLogger := ce.server.Logger.With().
				Str("request_id", requestID).
				Str("method", c.Request().Method).
				Str("path", c.Path()). // route template, not raw URL
				Str("ip", c.RealIP()).
				Logger()

			// trace.id/span.id tie log lines to the APM trace.
			if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
				contextLogger = logger.WithTraceContext(contextLogger, txn)
			}

			if userID := extractString(c, UserIDKey); userID != "" {
				contextLogger = contextLogger.With().Str("user_id", userID).Logger()
			}
			if userRole := extractString(c, UserRoleKey); userRole != "" {
				contextLogger = contextLogger.With().Str("user_role", userRole).Logger()
			}

			c.Set(LoggerKey, &contextLogger)

			// Also thread the logger through the Go request context so code
			// that only sees context.Context can log with correlation.
			ctx := context.WithValue(c.Request().Context(), LoggerKey, &contextLogger)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func extractString(c echo.Context, key string) string {
	if value, ok := c.Get(key).(string); ok {
		return value
	}
	return ""
}

// GetUserID reads user_id from Echo context. Empty until the auth
// middleware has run.
func GetUserID(c echo.Context) string {
	return extractString(c, UserIDKey)
}

// GetLogger retrieves the request-scoped logger from Echo context.
// If EnhanceContext didn't run, it returns a no-op logger rather than nil.
func GetLogger(c echo.Context) *zerolog.Logger {
	if logger, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return logger
	}

	logger := zerolog.Nop()
	return &logger
}
