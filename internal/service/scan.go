package service

import (
	"context"
	"time"

	"github.com/archonhq/archon/internal/archcheck"
	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/lib/email"
	"github.com/archonhq/archon/internal/lib/job"
	"github.com/archonhq/archon/internal/repository"
	"github.com/archonhq/archon/internal/resilience"
	"github.com/archonhq/archon/internal/server"
	"github.com/google/uuid"
)

// scanTimeout bounds a single scan attempt inside the pipeline. Walking and
// parsing even a large monorepo fits comfortably; anything longer means the
// tree is pathological or the disk is gone.
const scanTimeout = 5 * time.Minute

// scanStore is the persistence surface the scan service needs.
// *repository.ScanRepository is the production implementation; tests
// substitute an in-memory fake.
type scanStore interface {
	CreateScanRun(ctx context.Context, run *domain.ScanRun) error
	MarkScanRunning(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	CompleteScanRun(ctx context.Context, run *domain.ScanRun) error
	FailScanRun(ctx context.Context, id uuid.UUID, scanErr string, finishedAt time.Time) error
	ReplaceViolations(ctx context.Context, scanID uuid.UUID, violations []domain.ScanViolation) error
	GetScanRun(ctx context.Context, id uuid.UUID) (*domain.ScanRun, error)
	ListScanRuns(ctx context.Context, limit, offset int) ([]domain.ScanRun, error)
	ListViolations(ctx context.Context, scanID uuid.UUID) ([]domain.ScanViolation, error)
}

var _ scanStore = (*repository.ScanRepository)(nil)

// ScanService orchestrates architecture scans: it enqueues runs, executes
// them as background tasks, and serves the persisted results.
//
// Execution goes through the resilience pipeline. The scan root is often a
// network mount or a checkout that a sidecar refreshes, so filesystem reads
// can fail in bursts; the breaker stops a broken mount from burning worker
// slots, and the bulkhead keeps concurrent scans from starving the API.
type ScanService struct {
	server *server.Server
	scans  scanStore
	email  *email.Client
}

// NewScanService constructs a ScanService.
func NewScanService(s *server.Server, repos *repository.Repositories) *ScanService {
	return &ScanService{
		server: s,
		scans:  repos.Scan,
		email:  email.NewClient(s.Config, s.Logger),
	}
}

// TriggerScan creates a pending scan run and enqueues its execution.
//
// Empty root/rulesFile fall back to the configured defaults. The returned
// run is what the API serializes into the 202 response.
func (s *ScanService) TriggerScan(ctx context.Context, root, rulesFile, requestedBy string) (*domain.ScanRun, error) {
	if root == "" {
		root = s.server.Config.Archcheck.Root
	}
	if rulesFile == "" {
		rulesFile = s.server.Config.Archcheck.RulesFile
	}

	run := &domain.ScanRun{
		ID:          uuid.New(),
		Root:        root,
		RulesFile:   rulesFile,
		Status:      domain.ScanStatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.scans.CreateScanRun(ctx, run); err != nil {
		return nil, err
	}

	task, err := job.NewScanRunTask(run.ID, run.Root, run.RulesFile)
	if err != nil {
		return nil, err
	}

	if _, err := s.server.Job.Client.EnqueueContext(ctx, task); err != nil {
		// The run row exists but will never execute; mark it so it doesn't
		// sit in "pending" forever.
		_ = s.scans.FailScanRun(ctx, run.ID, "failed to enqueue scan task: "+err.Error(), time.Now().UTC())
		return nil, err
	}

	s.server.Logger.Info().
		Str("scan_id", run.ID.String()).
		Str("root", run.Root).
		Msg("scan enqueued")

	return run, nil
}

// RunScan executes a persisted scan run to completion. It satisfies
// job.ScanRunner and is invoked by the asynq worker.
//
// Flow:
//   - load the run and mark it running
//   - execute the analysis through the resilience pipeline
//   - persist violations and the report summary
//   - send the report email when configured and violations were found
//
// A returned error marks the run failed AND propagates to asynq. asynq
// delivers at least once, so a retry re-invokes RunScan for the same id;
// that is safe because the run flips back to running and ReplaceViolations
// swaps the previous attempt's rows instead of stacking a second report.
func (s *ScanService) RunScan(ctx context.Context, scanID uuid.UUID) error {
	run, err := s.scans.GetScanRun(ctx, scanID)
	if err != nil {
		return err
	}

	if err := s.scans.MarkScanRunning(ctx, run.ID, time.Now().UTC()); err != nil {
		return err
	}

	report, err := s.executeScan(ctx, run.Root, run.RulesFile)
	if err != nil {
		s.server.Logger.Error().
			Err(err).
			Str("scan_id", run.ID.String()).
			Msg("scan execution failed")
		_ = s.scans.FailScanRun(ctx, run.ID, err.Error(), time.Now().UTC())
		return err
	}

	violations := make([]domain.ScanViolation, 0, len(report.Violations))
	for _, v := range report.Violations {
		violations = append(violations, domain.ScanViolation{
			ID:       uuid.New(),
			ScanID:   run.ID,
			Rule:     v.Rule,
			Severity: string(v.Severity),
			FromPkg:  v.FromPkg,
			ToPkg:    v.ToPkg,
			Message:  v.Message,
		})
	}

	if err := s.scans.ReplaceViolations(ctx, run.ID, violations); err != nil {
		_ = s.scans.FailScanRun(ctx, run.ID, "failed to persist violations: "+err.Error(), time.Now().UTC())
		return err
	}

	finishedAt := time.Now().UTC()
	run.ModulePath = report.ModulePath
	run.Packages = report.Packages
	run.Edges = report.Edges
	run.ViolationCount = len(report.Violations)
	run.FinishedAt = &finishedAt

	if err := s.scans.CompleteScanRun(ctx, run); err != nil {
		return err
	}

	s.server.Logger.Info().
		Str("scan_id", run.ID.String()).
		Str("module_path", report.ModulePath).
		Int("packages", report.Packages).
		Int("violations", len(report.Violations)).
		Msg("scan completed")

	s.sendReportEmail(run)

	return nil
}

// executeScan runs the analyzer wrapped in the resilience pipeline:
// retry(breaker(bulkhead(timeout(analyze)))), all instances named "archcheck".
func (s *ScanService) executeScan(ctx context.Context, root, rulesFile string) (*archcheck.Report, error) {
	pipeline := resilience.Pipeline{
		Timeout:  scanTimeout,
		Bulkhead: s.server.Resilience.Bulkhead("archcheck"),
		Breaker:  s.server.Resilience.Breaker("archcheck"),
		Retry:    s.server.Resilience.RetryOptions(),
	}

	return resilience.Execute(pipeline, ctx, func(ctx context.Context) (*archcheck.Report, error) {
		return archcheck.Run(root, rulesFile)
	})
}

// sendReportEmail mails the violation report when a recipient is configured
// and the scan found anything. Email failure is logged, never propagated:
// the scan itself succeeded.
func (s *ScanService) sendReportEmail(run *domain.ScanRun) {
	recipient := s.server.Config.Archcheck.ReportRecipient
	if recipient == "" || s.server.Config.Integration.ResendAPIKey == "" {
		return
	}
	if run.ViolationCount == 0 {
		return
	}

	if err := s.email.SendScanReportEmail(recipient, run); err != nil {
		s.server.Logger.Error().
			Err(err).
			Str("scan_id", run.ID.String()).
			Str("recipient", recipient).
			Msg("failed to send scan report email")
	}
}

// GetScan returns one scan run together with its persisted violations.
func (s *ScanService) GetScan(ctx context.Context, id uuid.UUID) (*domain.ScanRun, []domain.ScanViolation, error) {
	run, err := s.scans.GetScanRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	violations, err := s.scans.ListViolations(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return run, violations, nil
}

// ListScans returns scan runs newest first.
func (s *ScanService) ListScans(ctx context.Context, limit, offset int) ([]domain.ScanRun, error) {
	return s.scans.ListScanRuns(ctx, limit, offset)
}

// ensure the interface stays satisfied
var _ job.ScanRunner = (*ScanService)(nil)
