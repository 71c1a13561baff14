package service

import (
	"context"
	"sort"
	"time"

	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/repository"
	"github.com/archonhq/archon/internal/resilience"
	"github.com/archonhq/archon/internal/server"
	"github.com/google/uuid"
)

// defaultEventLimit is how many audit rows RecentEvents returns when the
// caller doesn't say.
const defaultEventLimit = 20

// breakerEventStore is the audit-trail surface the breaker service needs.
// *repository.BreakerEventRepository is the production implementation;
// tests substitute an in-memory fake.
type breakerEventStore interface {
	InsertStateChange(ctx context.Context, event *domain.BreakerEvent) error
	ListRecent(ctx context.Context, breakerName string, limit int) ([]domain.BreakerEvent, error)
}

var _ breakerEventStore = (*repository.BreakerEventRepository)(nil)

// BreakerService exposes the resilience registry to the API and records
// every breaker transition into the audit trail.
type BreakerService struct {
	server *server.Server
	events breakerEventStore
}

// NewBreakerService constructs a BreakerService and installs the registry
// state-change listener. Must run before the server takes traffic; the
// registry doesn't lock around the listener once breakers exist.
func NewBreakerService(s *server.Server, repos *repository.Repositories) *BreakerService {
	svc := &BreakerService{
		server: s,
		events: repos.BreakerEvent,
	}

	s.Resilience.OnStateChange(svc.recordStateChange)

	return svc
}

// recordStateChange persists the transition and emits a New Relic custom
// event. Runs on its own goroutine (the registry guarantees that), so a
// slow insert can't block the breaker.
func (b *BreakerService) recordStateChange(change resilience.StateChange) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := &domain.BreakerEvent{
		ID:          uuid.New(),
		BreakerName: change.Name,
		FromState:   change.From,
		ToState:     change.To,
		OccurredAt:  change.At,
	}

	if err := b.events.InsertStateChange(ctx, event); err != nil {
		b.server.Logger.Error().
			Err(err).
			Str("breaker", change.Name).
			Msg("failed to persist breaker state change")
	}

	if b.server.LoggerService != nil && b.server.LoggerService.GetApplication() != nil {
		b.server.LoggerService.GetApplication().RecordCustomEvent(
			"CircuitBreakerStateChange",
			map[string]interface{}{
				"breaker_name": change.Name,
				"from_state":   change.From,
				"to_state":     change.To,
			},
		)
	}
}

// Snapshot lists every registered breaker and bulkhead, sorted by name so
// the API output is stable.
func (b *BreakerService) Snapshot() ([]resilience.BreakerSnapshot, []resilience.BulkheadSnapshot) {
	breakers, bulkheads := b.server.Resilience.Snapshot()

	sort.Slice(breakers, func(i, j int) bool { return breakers[i].Name < breakers[j].Name })
	sort.Slice(bulkheads, func(i, j int) bool { return bulkheads[i].Name < bulkheads[j].Name })

	return breakers, bulkheads
}

// Reset force-closes the named breaker. Returns false when no breaker with
// that name has been created yet.
func (b *BreakerService) Reset(name string) bool {
	return b.server.Resilience.ResetBreaker(name)
}

// RecentEvents returns the latest persisted transitions for one breaker,
// newest first. Non-positive limits fall back to the default page size.
func (b *BreakerService) RecentEvents(ctx context.Context, name string, limit int) ([]domain.BreakerEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	return b.events.ListRecent(ctx, name, limit)
}
