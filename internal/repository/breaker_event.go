package repository

import (
	"context"

	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/server"
	"github.com/archonhq/archon/internal/sqlerr"
	"github.com/rs/zerolog"
)

// BreakerEventRepository appends circuit breaker transitions to the audit
// trail. Append-only; live breaker state is read from the in-process
// registry, these rows exist for postmortems.
type BreakerEventRepository struct {
	server *server.Server
	log    *zerolog.Logger
}

// NewBreakerEventRepository constructs a BreakerEventRepository.
func NewBreakerEventRepository(s *server.Server) *BreakerEventRepository {
	return &BreakerEventRepository{
		server: s,
		log:    s.Logger,
	}
}

// InsertStateChange records one breaker transition.
func (r *BreakerEventRepository) InsertStateChange(ctx context.Context, event *domain.BreakerEvent) error {
	_, err := r.server.DB.Pool.Exec(ctx, `
		INSERT INTO breaker_events (id, breaker_name, from_state, to_state, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.BreakerName, event.FromState, event.ToState, event.OccurredAt,
	)
	if err != nil {
		return sqlerr.HandleError(err)
	}
	return nil
}

// ListRecent returns the latest transitions for one breaker, newest first.
func (r *BreakerEventRepository) ListRecent(ctx context.Context, breakerName string, limit int) ([]domain.BreakerEvent, error) {
	rows, err := r.server.DB.Pool.Query(ctx, `
		SELECT id, breaker_name, from_state, to_state, occurred_at
		FROM breaker_events WHERE breaker_name = $1
		ORDER BY occurred_at DESC LIMIT $2`, breakerName, limit)
	if err != nil {
		return nil, sqlerr.HandleError(err)
	}
	defer rows.Close()

	var events []domain.BreakerEvent
	for rows.Next() {
		var e domain.BreakerEvent
		if err := rows.Scan(&e.ID, &e.BreakerName, &e.FromState, &e.ToState, &e.OccurredAt); err != nil {
			return nil, sqlerr.HandleError(err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlerr.HandleError(err)
	}
	return events, nil
}
