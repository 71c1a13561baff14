package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ScanRunner executes a persisted scan run to completion. The service
// layer implements it; the job package only routes tasks to it.
type ScanRunner interface {
	RunScan(ctx context.Context, scanID uuid.UUID) error
}

// Handlers bundles the task handlers with their dependencies.
//
// Built by the service layer and handed to JobService.Start, so handler
// dependencies live on a struct instead of package-level globals.
type Handlers struct {
	logger *zerolog.Logger
	runner ScanRunner
}

// NewHandlers constructs the task handler bundle.
func NewHandlers(logger *zerolog.Logger, runner ScanRunner) *Handlers {
	return &Handlers{
		logger: logger,
		runner: runner,
	}
}

// handleScanRunTask processes one scan run task: decode the payload, hand
// the scan to the runner, report the outcome. A returned error makes Asynq
// mark the task failed and schedule a retry.
func (h *Handlers) handleScanRunTask(ctx context.Context, t *asynq.Task) error {
	var p ScanRunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal scan run payload: %w", err)
	}

	h.logger.Info().
		Str("type", TaskScanRun).
		Str("scan_id", p.ScanID.String()).
		Str("root", p.Root).
		Msg("Processing scan run task")

	if err := h.runner.RunScan(ctx, p.ScanID); err != nil {
		h.logger.Error().
			Str("type", TaskScanRun).
			Str("scan_id", p.ScanID.String()).
			Err(err).
			Msg("Failed to run scan")
		return err
	}

	h.logger.Info().
		Str("type", TaskScanRun).
		Str("scan_id", p.ScanID.String()).
		Msg("Successfully completed scan run")

	return nil
}
