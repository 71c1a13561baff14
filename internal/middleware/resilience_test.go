package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/archonhq/archon/internal/config"
	"github.com/archonhq/archon/internal/errs"
	"github.com/archonhq/archon/internal/resilience"
	"github.com/archonhq/archon/internal/resilience/breaker"
	"github.com/archonhq/archon/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newResilienceTestServer builds a minimal Server: just config and the
// resilience registry, which is all this middleware touches.
func newResilienceTestServer(cfg *config.ResilienceConfig) *server.Server {
	logger := zerolog.Nop()
	return &server.Server{
		Config:     &config.Config{Resilience: cfg},
		Logger:     &logger,
		Resilience: resilience.NewRegistry(cfg, &logger),
	}
}

func invoke(t *testing.T, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	return handler(e.NewContext(req, rec))
}

func TestWithBreakerTripsOnServerFailures(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	srv := newResilienceTestServer(cfg)
	rm := NewResilienceMiddleware(srv)

	failing := rm.WithBreaker("scan")(func(c echo.Context) error {
		return errs.NewInternalServerError()
	})

	// Defaults: trip after 5 failures out of at least 10 calls.
	for i := 0; i < 10; i++ {
		err := invoke(t, failing)
		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusInternalServerError, httpErr.Status)
	}

	require.Equal(t, breaker.StateOpen, srv.Resilience.Breaker("scan").State())

	// The next request is rejected before the handler runs.
	called := false
	guarded := rm.WithBreaker("scan")(func(c echo.Context) error {
		called = true
		return nil
	})

	err := invoke(t, guarded)
	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	assert.Equal(t, "CIRCUIT_OPEN", httpErr.Code)
	require.NotNil(t, httpErr.Action)
	assert.Equal(t, errs.ActionTypeRetryAfter, httpErr.Action.Type)
	assert.Equal(t, cfg.Breaker.OpenTimeout.String(), httpErr.Action.Value)
	assert.False(t, called)
}

func TestWithBreakerIgnoresClientFaults(t *testing.T) {
	srv := newResilienceTestServer(config.DefaultResilienceConfig())
	rm := NewResilienceMiddleware(srv)

	badRequests := rm.WithBreaker("scan")(func(c echo.Context) error {
		return errs.NewBadRequestError("bad payload", false, nil, nil, nil)
	})

	// A confused client hammering 400s must not trip the breaker.
	for i := 0; i < 20; i++ {
		err := invoke(t, badRequests)
		require.Error(t, err)
	}

	b := srv.Resilience.Breaker("scan")
	assert.Equal(t, breaker.StateClosed, b.State())
	assert.Equal(t, 0, b.Counts().Failures)
}

func TestWithBreakerPassesSuccessThrough(t *testing.T) {
	srv := newResilienceTestServer(config.DefaultResilienceConfig())
	rm := NewResilienceMiddleware(srv)

	handler := rm.WithBreaker("scan")(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	require.NoError(t, invoke(t, handler))
	assert.Equal(t, 1, srv.Resilience.Breaker("scan").Counts().Successes)
}

func TestWithBulkheadRejectsWhenFull(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.Bulkhead.MaxConcurrent = 1
	cfg.Bulkhead.MaxWait = 0
	srv := newResilienceTestServer(cfg)
	rm := NewResilienceMiddleware(srv)

	// Occupy the only slot.
	bh := srv.Resilience.Bulkhead("scan")
	require.NoError(t, bh.Acquire(context.Background()))
	defer bh.Release()

	called := false
	handler := rm.WithBulkhead("scan")(func(c echo.Context) error {
		called = true
		return nil
	})

	err := invoke(t, handler)
	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	assert.Equal(t, "BULKHEAD_FULL", httpErr.Code)
	assert.False(t, called)
}

func TestWithBulkheadReleasesSlot(t *testing.T) {
	cfg := config.DefaultResilienceConfig()
	cfg.Bulkhead.MaxConcurrent = 1
	cfg.Bulkhead.MaxWait = 0
	srv := newResilienceTestServer(cfg)
	rm := NewResilienceMiddleware(srv)

	handler := rm.WithBulkhead("scan")(func(c echo.Context) error {
		assert.Equal(t, 1, srv.Resilience.Bulkhead("scan").InFlight())
		return nil
	})

	require.NoError(t, invoke(t, handler))
	require.NoError(t, invoke(t, handler), "the slot must be free again after the first request")
	assert.Equal(t, 0, srv.Resilience.Bulkhead("scan").InFlight())
}

func TestIsServerFailure(t *testing.T) {
	assert.False(t, isServerFailure(nil))
	assert.False(t, isServerFailure(errs.NewBadRequestError("bad", false, nil, nil, nil)))
	assert.False(t, isServerFailure(errs.NewNotFoundError("gone", false, nil)))
	assert.True(t, isServerFailure(errs.NewInternalServerError()))
	assert.True(t, isServerFailure(assert.AnError))
}
