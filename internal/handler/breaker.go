package handler

import (
	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/errs"
	"github.com/archonhq/archon/internal/middleware"
	"github.com/archonhq/archon/internal/resilience"
	"github.com/archonhq/archon/internal/server"
	"github.com/archonhq/archon/internal/service"
	"github.com/labstack/echo/v4"
)

// BreakerHandler serves the circuit breaker introspection endpoints.
type BreakerHandler struct {
	Handler
	services *service.Services
}

// NewBreakerHandler constructs a BreakerHandler.
func NewBreakerHandler(s *server.Server, services *service.Services) *BreakerHandler {
	return &BreakerHandler{
		Handler:  NewHandler(s),
		services: services,
	}
}

// ListBreakersRequest is empty; the route takes no input. It exists so the
// endpoint fits the generic handler pipeline.
type ListBreakersRequest struct{}

func (r *ListBreakersRequest) Validate() error {
	return nil
}

// ResetBreakerRequest carries the breaker name for POST /breakers/:name/reset.
type ResetBreakerRequest struct {
	Name string `param:"name" validate:"required,min=1,max=100"`
}

func (r *ResetBreakerRequest) Validate() error {
	return validate.Struct(r)
}

// ListBreakerEventsRequest carries the breaker name and page size for
// GET /breakers/:name/events.
type ListBreakerEventsRequest struct {
	Name  string `param:"name" validate:"required,min=1,max=100"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

func (r *ListBreakerEventsRequest) Validate() error {
	return validate.Struct(r)
}

// BreakersResponse lists the live state of every breaker and bulkhead.
type BreakersResponse struct {
	Breakers  []resilience.BreakerSnapshot  `json:"breakers"`
	Bulkheads []resilience.BulkheadSnapshot `json:"bulkheads"`
}

// ListBreakers returns a snapshot of all registered breakers and bulkheads.
func (h *BreakerHandler) ListBreakers(c echo.Context, req *ListBreakersRequest) (*BreakersResponse, error) {
	breakers, bulkheads := h.services.Breaker.Snapshot()

	return &BreakersResponse{
		Breakers:  breakers,
		Bulkheads: bulkheads,
	}, nil
}

// BreakerEventsResponse is one breaker's persisted transition history.
type BreakerEventsResponse struct {
	Name   string                `json:"name"`
	Events []domain.BreakerEvent `json:"events"`
}

// ListBreakerEvents returns the audit trail for one breaker, newest first.
// Unlike the live snapshot this reads the persisted history, so it works
// for breakers from earlier process lifetimes too.
func (h *BreakerHandler) ListBreakerEvents(c echo.Context, req *ListBreakerEventsRequest) (*BreakerEventsResponse, error) {
	events, err := h.services.Breaker.RecentEvents(c.Request().Context(), req.Name, req.Limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		// Empty list, not null, in the JSON.
		events = []domain.BreakerEvent{}
	}

	return &BreakerEventsResponse{
		Name:   req.Name,
		Events: events,
	}, nil
}

// ResetBreaker force-closes the named breaker. 404 when the breaker has
// never been created; a typo in the name should not look like success.
func (h *BreakerHandler) ResetBreaker(c echo.Context, req *ResetBreakerRequest) error {
	if !h.services.Breaker.Reset(req.Name) {
		return errs.NewNotFoundError("Breaker not found", true, nil)
	}

	middleware.GetLogger(c).Info().
		Str("breaker", req.Name).
		Str("user_id", middleware.GetUserID(c)).
		Msg("circuit breaker manually reset")

	return nil
}
