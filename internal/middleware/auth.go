package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/archonhq/archon/internal/errs"
	"github.com/archonhq/archon/internal/server"
	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware holds the app Server so middleware can access shared deps
// like Logger and Config.
type AuthMiddleware struct {
	server *server.Server
}

// NewAuthMiddleware constructs an AuthMiddleware.
func NewAuthMiddleware(s *server.Server) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
	}
}

// RequireAuth is an Echo middleware that enforces authentication using
// Clerk. Mutating endpoints (scan triggers, breaker resets) sit behind it.
//
// Flow:
//  1. Clerk's middleware parses and validates the Authorization header.
//  2. Failures get a JSON 401 via the failure handler below.
//  3. On success, session claims are pulled from the request context and
//     user identity is stored into Echo context for handlers and logging.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	// echo.WrapMiddleware adapts Clerk's net/http middleware to Echo.
	return echo.WrapMiddleware(
		clerkhttp.WithHeaderAuthorization(
			clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()

				// This runs outside Echo, so the global error handler can't
				// shape the response; write the schema by hand.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)

				response := errs.HTTPError{
					Code:    "UNAUTHORIZED",
					Message: "Unauthorized",
					Status:  http.StatusUnauthorized,
				}

				if err := json.NewEncoder(w).Encode(response); err != nil {
					auth.server.Logger.Error().
						Err(err).
						Str("function", "RequireAuth").
						Dur("duration", time.Since(start)).
						Msg("failed to write JSON response")
				}
			}))))(
		// Runs only when Clerk let the request through.
		func(c echo.Context) error {
			start := time.Now()

			claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
			if !ok {
				auth.server.Logger.Error().
					Str("function", "RequireAuth").
					Str("request_id", GetRequestID(c)).
					Dur("duration", time.Since(start)).
					Msg("could not get session claims from context")

				return errs.NewUnauthorizedError("Unauthorized", false)
			}

			// Stored in Echo's context (not Go's) for handlers to read.
			c.Set(UserIDKey, claims.Subject)
			c.Set(UserRoleKey, claims.ActiveOrganizationRole)
			c.Set("permissions", claims.Claims.ActiveOrganizationPermissions)

			auth.server.Logger.Info().
				Str("function", "RequireAuth").
				Str("user_id", claims.Subject).
				Str("request_id", GetRequestID(c)).
				Dur("duration", time.Since(start)).
				Msg("user authenticated successfully")

			return next(c)
		})
}
