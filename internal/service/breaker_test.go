package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/resilience"
	"github.com/archonhq/archon/internal/server"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type breakerEventStoreStub struct {
	mu        sync.Mutex
	inserted  []domain.BreakerEvent
	stored    []domain.BreakerEvent
	lastName  string
	lastLimit int
	insertErr error
}

func (s *breakerEventStoreStub) InsertStateChange(_ context.Context, event *domain.BreakerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, *event)
	return nil
}

func (s *breakerEventStoreStub) ListRecent(_ context.Context, breakerName string, limit int) ([]domain.BreakerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastName = breakerName
	s.lastLimit = limit
	return s.stored, nil
}

var _ breakerEventStore = (*breakerEventStoreStub)(nil)

func newBreakerTestService(store breakerEventStore) *BreakerService {
	logger := zerolog.Nop()
	return &BreakerService{
		server: &server.Server{Logger: &logger},
		events: store,
	}
}

func TestRecordStateChangePersistsEvent(t *testing.T) {
	store := &breakerEventStoreStub{}
	svc := newBreakerTestService(store)

	at := time.Now().UTC()
	svc.recordStateChange(resilience.StateChange{
		Name: "archcheck",
		From: "closed",
		To:   "open",
		At:   at,
	})

	require.Len(t, store.inserted, 1)
	event := store.inserted[0]
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "archcheck", event.BreakerName)
	assert.Equal(t, "closed", event.FromState)
	assert.Equal(t, "open", event.ToState)
	assert.Equal(t, at, event.OccurredAt)
}

func TestRecordStateChangeSurvivesInsertFailure(t *testing.T) {
	store := &breakerEventStoreStub{insertErr: errors.New("connection refused")}
	svc := newBreakerTestService(store)

	// Runs on the registry's notification goroutine; a failed insert is
	// logged and must not panic or block.
	svc.recordStateChange(resilience.StateChange{
		Name: "archcheck",
		From: "open",
		To:   "half_open",
		At:   time.Now().UTC(),
	})

	assert.Empty(t, store.inserted)
}

func TestRecentEventsDefaultsLimit(t *testing.T) {
	store := &breakerEventStoreStub{
		stored: []domain.BreakerEvent{
			{ID: uuid.New(), BreakerName: "archcheck", FromState: "closed", ToState: "open"},
			{ID: uuid.New(), BreakerName: "archcheck", FromState: "open", ToState: "half_open"},
		},
	}
	svc := newBreakerTestService(store)

	events, err := svc.RecentEvents(context.Background(), "archcheck", 0)
	require.NoError(t, err)

	assert.Equal(t, "archcheck", store.lastName)
	assert.Equal(t, 20, store.lastLimit)
	assert.Equal(t, store.stored, events)
}

func TestRecentEventsPassesExplicitLimit(t *testing.T) {
	store := &breakerEventStoreStub{}
	svc := newBreakerTestService(store)

	_, err := svc.RecentEvents(context.Background(), "redis", 5)
	require.NoError(t, err)

	assert.Equal(t, "redis", store.lastName)
	assert.Equal(t, 5, store.lastLimit)
}
