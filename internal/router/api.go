package router

import (
	"net/http"

	"github.com/archonhq/archon/internal/handler"
	"github.com/archonhq/archon/internal/middleware"
	"github.com/labstack/echo/v4"
)

// registerAPIRoutes registers the /api/v1 route group.
//
// Reads are open (behind rate limiting); mutations require a Clerk session.
// The scan trigger additionally shares the "archcheck" breaker and bulkhead
// with the worker, so clients get an instant 503 while the scanner's
// dependency is known-broken instead of enqueueing doomed work.
func registerAPIRoutes(r *echo.Echo, h *handler.Handlers, m *middleware.Middlewares) {
	v1 := r.Group("/api/v1", m.RateLimit.Limit())

	// Scans
	v1.POST("/scans",
		handler.Handle(h.Scan.Handler, h.Scan.TriggerScan, http.StatusAccepted, &handler.TriggerScanRequest{}),
		m.Auth.RequireAuth,
		m.Resilience.WithBreaker("archcheck"),
		m.Resilience.WithBulkhead("archcheck"),
	)
	v1.GET("/scans",
		handler.Handle(h.Scan.Handler, h.Scan.ListScans, http.StatusOK, &handler.ListScansRequest{}))
	v1.GET("/scans/:id",
		handler.Handle(h.Scan.Handler, h.Scan.GetScan, http.StatusOK, &handler.GetScanRequest{}))

	// Breakers
	v1.GET("/breakers",
		handler.Handle(h.Breaker.Handler, h.Breaker.ListBreakers, http.StatusOK, &handler.ListBreakersRequest{}))
	v1.GET("/breakers/:name/events",
		handler.Handle(h.Breaker.Handler, h.Breaker.ListBreakerEvents, http.StatusOK, &handler.ListBreakerEventsRequest{}))
	v1.POST("/breakers/:name/reset",
		handler.HandleNoContent(h.Breaker.Handler, h.Breaker.ResetBreaker, http.StatusNoContent, &handler.ResetBreakerRequest{}),
		m.Auth.RequireAuth,
	)
}
