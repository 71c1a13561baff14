package middleware

import (
	"github.com/archonhq/archon/internal/server"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Middlewares is a lightweight container that groups all middleware
// components used by the HTTP server.
//
// Build once, reuse everywhere: shared dependencies (*server.Server, the
// New Relic application instance) are wired in here instead of being
// scattered through routing code.
type Middlewares struct {
	// Global holds middleware used across the whole API: CORS, request
	// logging, recovery, secure headers, and the global error handler.
	Global *GlobalMiddlewares

	// Auth provides Clerk-based authentication middleware.
	Auth *AuthMiddleware

	// ContextEnhancer enriches each request with a request-scoped logger
	// (request_id, method, path, ip, optional user & trace metadata).
	ContextEnhancer *ContextEnhancer

	// Tracing provides the New Relic middleware plus attribute helpers.
	Tracing *TracingMiddleware

	// RateLimit enforces per-client request quotas using Redis.
	RateLimit *RateLimitMiddleware

	// Resilience guards routes with named circuit breakers and bulkheads
	// from the server's registry.
	Resilience *ResilienceMiddleware
}

// NewMiddlewares constructs all middleware components from the application
// container.
//
// When New Relic is not configured, nrApp stays nil and the tracing
// middleware degrades into a no-op.
func NewMiddlewares(s *server.Server) *Middlewares {
	var nrApp *newrelic.Application
	if s.LoggerService != nil {
		nrApp = s.LoggerService.GetApplication()
	}

	return &Middlewares{
		Global:          NewGlobalMiddlewares(s),
		Auth:            NewAuthMiddleware(s),
		ContextEnhancer: NewContextEnhancer(s),
		Tracing:         NewTracingMiddleware(s, nrApp),
		RateLimit:       NewRateLimitMiddleware(s),
		Resilience:      NewResilienceMiddleware(s),
	}
}
