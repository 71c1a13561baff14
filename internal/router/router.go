// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares and defines the API route groups, mapping
// specific paths to their corresponding handlers.
package router

import (
	"github.com/archonhq/archon/internal/handler"
	"github.com/archonhq/archon/internal/middleware"
	"github.com/archonhq/archon/internal/server"
	"github.com/labstack/echo/v4"
)

// Setup builds the Echo instance with the full middleware stack and all
// route groups registered.
//
// Middleware order matters:
//  1. New Relic first so every later stage runs inside a transaction
//  2. RequestID before the context enhancer (the logger wants the id)
//  3. ContextEnhancer before anything that logs
//  4. Request logging, recovery, CORS, secure headers
//  5. Tracing enhancement last, once user identity may exist
func Setup(s *server.Server, h *handler.Handlers, m *middleware.Middlewares) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = m.Global.GlobalErrorHandler

	e.Use(m.Tracing.NewRelicMiddleware())
	e.Use(middleware.RequestID())
	e.Use(m.ContextEnhancer.EnhanceContext())
	e.Use(m.Global.RequestLogger())
	e.Use(m.Global.Recover())
	e.Use(m.Global.CORS())
	e.Use(m.Global.Secure())
	e.Use(m.Tracing.EnhanceTracing())

	registerSystemRoutes(e, h)
	registerAPIRoutes(e, h, m)

	return e
}
