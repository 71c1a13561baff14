package middleware

import (
	"fmt"
	"strconv"

	"github.com/archonhq/archon/internal/errs"
	"github.com/archonhq/archon/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware enforces a fixed-window request quota per client
// using Redis.
//
// Fixed window (INCR + EXPIRE) over sliding window because the counter is
// one key and two commands; the worst-case burst at a window boundary is
// acceptable for an internal API.
type RateLimitMiddleware struct {
	server *server.Server
}

// NewRateLimitMiddleware constructs a RateLimitMiddleware.
func NewRateLimitMiddleware(s *server.Server) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		server: s,
	}
}

// Limit returns an Echo middleware enforcing the configured quota.
//
// The counting key prefers the authenticated user id and falls back to the
// client IP, so anonymous clients share a per-IP budget while logged-in
// users each get their own.
//
// Redis being down fails open: dropping rate limiting is the lesser evil
// compared to rejecting all traffic.
func (r *RateLimitMiddleware) Limit() echo.MiddlewareFunc {
	cfg := r.server.Config.Resilience.RateLimit

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			client := GetUserID(c)
			if client == "" {
				client = c.RealIP()
			}

			key := fmt.Sprintf("ratelimit:%s", client)
			ctx := c.Request().Context()

			// INCR + EXPIRE in one pipeline round trip. EXPIRE on every hit
			// refreshes an existing TTL only when the key is new (NX), so
			// the window doesn't slide.
			var count *redis.IntCmd
			_, err := r.server.Redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
				count = pipe.Incr(ctx, key)
				pipe.ExpireNX(ctx, key, cfg.Window)
				return nil
			})
			if err != nil {
				GetLogger(c).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}

			if count.Val() > int64(cfg.Requests) {
				r.recordRateLimitHit(c.Path())

				GetLogger(c).Warn().
					Str("client", client).
					Int64("count", count.Val()).
					Msg("rate limit exceeded")

				retryAfter := r.server.Redis.TTL(ctx, key).Val()
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))

				return errs.NewTooManyRequestsError("Too many requests", retryAfter.String())
			}

			return next(c)
		}
	}
}

// recordRateLimitHit emits a New Relic custom event for dashboarding.
func (r *RateLimitMiddleware) recordRateLimitHit(endpoint string) {
	if r.server.LoggerService != nil && r.server.LoggerService.GetApplication() != nil {
		r.server.LoggerService.GetApplication().RecordCustomEvent("RateLimitHit", map[string]interface{}{
			"endpoint": endpoint,
		})
	}
}
