package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/archonhq/archon/internal/config"
	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/resilience"
	"github.com/archonhq/archon/internal/server"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanTestServer(t *testing.T) *server.Server {
	t.Helper()

	logger := zerolog.Nop()
	cfg := &config.Config{Resilience: config.DefaultResilienceConfig()}
	return &server.Server{
		Config:     cfg,
		Logger:     &logger,
		Resilience: resilience.NewRegistry(cfg.Resilience, &logger),
	}
}

// writeLayeredModule writes a minimal module whose repository package
// imports its service package, which the default rules flag as exactly one
// layer violation.
func writeLayeredModule(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"go.mod":                      "module example.com/layered\n\ngo 1.23\n",
		"internal/service/service.go": "package service\n",
		"internal/repository/repo.go": "package repository\n\nimport _ \"example.com/layered/internal/service\"\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// scanStoreStub keeps one run and its violation rows in memory, mirroring
// the repository contract: ReplaceViolations swaps the rows for a scan,
// CompleteScanRun flips the status to completed.
type scanStoreStub struct {
	mu               sync.Mutex
	run              *domain.ScanRun
	violations       []domain.ScanViolation
	replaceCalls     int
	completeFailures int
}

func (s *scanStoreStub) CreateScanRun(_ context.Context, run *domain.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.run = &cp
	return nil
}

func (s *scanStoreStub) GetScanRun(_ context.Context, id uuid.UUID) (*domain.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil || s.run.ID != id {
		return nil, fmt.Errorf("scan run %s not found", id)
	}
	cp := *s.run
	return &cp, nil
}

func (s *scanStoreStub) MarkScanRunning(_ context.Context, id uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Status = domain.ScanStatusRunning
	s.run.StartedAt = &startedAt
	return nil
}

func (s *scanStoreStub) CompleteScanRun(_ context.Context, run *domain.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeFailures > 0 {
		s.completeFailures--
		return errors.New("update scan_runs: connection reset by peer")
	}
	cp := *run
	cp.Status = domain.ScanStatusCompleted
	s.run = &cp
	return nil
}

func (s *scanStoreStub) FailScanRun(_ context.Context, id uuid.UUID, scanErr string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Status = domain.ScanStatusFailed
	s.run.Error = scanErr
	s.run.FinishedAt = &finishedAt
	return nil
}

func (s *scanStoreStub) ReplaceViolations(_ context.Context, scanID uuid.UUID, violations []domain.ScanViolation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	kept := make([]domain.ScanViolation, 0, len(violations))
	for _, v := range s.violations {
		if v.ScanID != scanID {
			kept = append(kept, v)
		}
	}
	s.violations = append(kept, violations...)
	return nil
}

func (s *scanStoreStub) ListScanRuns(_ context.Context, _, _ int) ([]domain.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil, nil
	}
	return []domain.ScanRun{*s.run}, nil
}

func (s *scanStoreStub) ListViolations(_ context.Context, scanID uuid.UUID) ([]domain.ScanViolation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScanViolation
	for _, v := range s.violations {
		if v.ScanID == scanID {
			out = append(out, v)
		}
	}
	return out, nil
}

var _ scanStore = (*scanStoreStub)(nil)

func newPendingRun(root string) *domain.ScanRun {
	return &domain.ScanRun{
		ID:        uuid.New(),
		Root:      root,
		Status:    domain.ScanStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestRunScanCompletesAndStoresReport(t *testing.T) {
	root := writeLayeredModule(t)
	store := &scanStoreStub{run: newPendingRun(root)}
	svc := &ScanService{server: newScanTestServer(t), scans: store}

	require.NoError(t, svc.RunScan(context.Background(), store.run.ID))

	assert.Equal(t, domain.ScanStatusCompleted, store.run.Status)
	assert.Equal(t, "example.com/layered", store.run.ModulePath)
	assert.Equal(t, 2, store.run.Packages)
	assert.Equal(t, 1, store.run.ViolationCount)
	assert.NotNil(t, store.run.FinishedAt)

	require.Len(t, store.violations, 1)
	assert.Equal(t, "layer", store.violations[0].Rule)
	assert.Equal(t, "example.com/layered/internal/repository", store.violations[0].FromPkg)
	assert.Equal(t, "example.com/layered/internal/service", store.violations[0].ToPkg)
}

func TestRunScanRetryReplacesPriorViolations(t *testing.T) {
	root := writeLayeredModule(t)
	store := &scanStoreStub{run: newPendingRun(root), completeFailures: 1}
	svc := &ScanService{server: newScanTestServer(t), scans: store}
	id := store.run.ID

	// First delivery: the scan itself succeeds and its violations are
	// written, but persisting the summary fails transiently, so the task
	// errors out and the queue will redeliver it.
	require.Error(t, svc.RunScan(context.Background(), id))
	require.Len(t, store.violations, 1)

	// Redelivery must not stack a second copy of the report.
	require.NoError(t, svc.RunScan(context.Background(), id))

	assert.Equal(t, 2, store.replaceCalls)
	assert.Equal(t, domain.ScanStatusCompleted, store.run.Status)
	assert.Len(t, store.violations, store.run.ViolationCount)
	assert.Len(t, store.violations, 1)
}

func TestRunScanMarksRunFailedWhenRootMissing(t *testing.T) {
	store := &scanStoreStub{run: newPendingRun(filepath.Join(t.TempDir(), "missing"))}
	svc := &ScanService{server: newScanTestServer(t), scans: store}

	err := svc.RunScan(context.Background(), store.run.ID)
	require.Error(t, err)

	assert.Equal(t, domain.ScanStatusFailed, store.run.Status)
	assert.NotEmpty(t, store.run.Error)
	assert.Zero(t, store.replaceCalls)
}

func TestRunScanUnknownRun(t *testing.T) {
	store := &scanStoreStub{}
	svc := &ScanService{server: newScanTestServer(t), scans: store}

	err := svc.RunScan(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Zero(t, store.replaceCalls)
}
