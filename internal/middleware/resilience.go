package middleware

import (
	"github.com/archonhq/archon/internal/errs"
	"github.com/archonhq/archon/internal/resilience/breaker"
	"github.com/archonhq/archon/internal/resilience/bulkhead"
	"github.com/archonhq/archon/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ResilienceMiddleware guards routes with named breakers and bulkheads
// from the server's registry.
//
// Route-level guarding complements the pipeline inside the scan service:
// the service pipeline protects the worker, this protects the API itself
// (e.g. the scan trigger route shares the "archcheck" breaker, so clients
// get an instant 503 instead of enqueueing work that is doomed).
type ResilienceMiddleware struct {
	server *server.Server
}

// NewResilienceMiddleware constructs a ResilienceMiddleware.
func NewResilienceMiddleware(s *server.Server) *ResilienceMiddleware {
	return &ResilienceMiddleware{
		server: s,
	}
}

// WithBreaker wraps a route in the named circuit breaker.
//
// The handler's returned error is what counts as failure, with one carve-out:
// client-fault responses (4xx HTTPErrors) don't feed the failure counter.
// A burst of bad requests says nothing about the dependency's health, and
// letting it trip the breaker would turn one confused client into an
// outage for everyone.
func (rm *ResilienceMiddleware) WithBreaker(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b := rm.server.Resilience.Breaker(name)

			done, err := b.Allow()
			if err != nil {
				if !errors.Is(err, breaker.ErrOpen) {
					return err
				}

				GetLogger(c).Warn().
					Str("breaker", name).
					Msg("circuit breaker rejected request")

				code := "CIRCUIT_OPEN"
				return errs.NewServiceUnavailableError(
					"Service temporarily unavailable", &code,
					rm.server.Config.Resilience.Breaker.OpenTimeout.String(),
				)
			}

			handlerErr := next(c)
			done(!isServerFailure(handlerErr))
			return handlerErr
		}
	}
}

// WithBulkhead wraps a route in the named bulkhead.
func (rm *ResilienceMiddleware) WithBulkhead(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bh := rm.server.Resilience.Bulkhead(name)

			if err := bh.Acquire(c.Request().Context()); err != nil {
				if errors.Is(err, bulkhead.ErrFull) {
					GetLogger(c).Warn().
						Str("bulkhead", name).
						Msg("bulkhead rejected request")

					code := "BULKHEAD_FULL"
					return errs.NewServiceUnavailableError(
						"Service is at capacity", &code,
						rm.server.Config.Resilience.Bulkhead.MaxWait.String(),
					)
				}
				return err
			}
			defer bh.Release()

			return next(c)
		}
	}
}

// isServerFailure classifies a handler error for the breaker: nil and 4xx
// are successes, everything else (5xx, unknown errors) is a failure.
func isServerFailure(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status < 500 {
		return false
	}
	return true
}
