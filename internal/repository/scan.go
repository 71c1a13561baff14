package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/archonhq/archon/internal/domain"
	"github.com/archonhq/archon/internal/server"
	"github.com/archonhq/archon/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ScanRepository persists scan runs and their violations.
type ScanRepository struct {
	server *server.Server
	log    *zerolog.Logger
}

// NewScanRepository constructs a ScanRepository.
func NewScanRepository(s *server.Server) *ScanRepository {
	return &ScanRepository{
		server: s,
		log:    s.Logger,
	}
}

const scanRunColumns = `id, root, rules_file, status, module_path, packages, edges,
	violation_count, error, requested_by, created_at, started_at, finished_at`

// CreateScanRun inserts a new pending scan run.
func (r *ScanRepository) CreateScanRun(ctx context.Context, run *domain.ScanRun) error {
	_, err := r.server.DB.Pool.Exec(ctx, `
		INSERT INTO scan_runs (id, root, rules_file, status, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Root, run.RulesFile, run.Status, run.RequestedBy, run.CreatedAt,
	)
	if err != nil {
		return sqlerr.HandleError(err)
	}
	return nil
}

// MarkScanRunning flips a scan to running and stamps started_at.
func (r *ScanRepository) MarkScanRunning(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	_, err := r.server.DB.Pool.Exec(ctx, `
		UPDATE scan_runs SET status = $2, started_at = $3 WHERE id = $1`,
		id, domain.ScanStatusRunning, startedAt,
	)
	if err != nil {
		return sqlerr.HandleError(err)
	}
	return nil
}

// CompleteScanRun records the report summary and marks the scan completed.
func (r *ScanRepository) CompleteScanRun(ctx context.Context, run *domain.ScanRun) error {
	_, err := r.server.DB.Pool.Exec(ctx, `
		UPDATE scan_runs
		SET status = $2, module_path = $3, packages = $4, edges = $5,
		    violation_count = $6, finished_at = $7
		WHERE id = $1`,
		run.ID, domain.ScanStatusCompleted, run.ModulePath, run.Packages,
		run.Edges, run.ViolationCount, run.FinishedAt,
	)
	if err != nil {
		return sqlerr.HandleError(err)
	}
	return nil
}

// FailScanRun marks the scan failed with its error message.
func (r *ScanRepository) FailScanRun(ctx context.Context, id uuid.UUID, scanErr string, finishedAt time.Time) error {
	_, err := r.server.DB.Pool.Exec(ctx, `
		UPDATE scan_runs SET status = $2, error = $3, finished_at = $4 WHERE id = $1`,
		id, domain.ScanStatusFailed, scanErr, finishedAt,
	)
	if err != nil {
		return sqlerr.HandleError(err)
	}
	return nil
}

// ReplaceViolations swaps in a scan's violations atomically: any rows from
// a previous attempt of the same run are deleted before the new set is
// bulk-inserted with pgx CopyFrom. The worker delivers tasks at least once,
// so a retried run must end up with exactly one report, not a stack of them.
// A scan of a messy tree can produce thousands of rows; COPY keeps the
// insert to a single round trip.
func (r *ScanRepository) ReplaceViolations(ctx context.Context, scanID uuid.UUID, violations []domain.ScanViolation) error {
	tx, err := r.server.DB.Pool.Begin(ctx)
	if err != nil {
		return sqlerr.HandleError(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scan_violations WHERE scan_id = $1`, scanID); err != nil {
		return sqlerr.HandleError(err)
	}

	if len(violations) > 0 {
		rows := make([][]any, 0, len(violations))
		for _, v := range violations {
			rows = append(rows, []any{v.ID, v.ScanID, v.Rule, v.Severity, v.FromPkg, v.ToPkg, v.Message})
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"scan_violations"},
			[]string{"id", "scan_id", "rule", "severity", "from_pkg", "to_pkg", "message"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return sqlerr.HandleError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return sqlerr.HandleError(err)
	}
	return nil
}

// GetScanRun fetches one scan run by id.
func (r *ScanRepository) GetScanRun(ctx context.Context, id uuid.UUID) (*domain.ScanRun, error) {
	row := r.server.DB.Pool.QueryRow(ctx,
		`SELECT `+scanRunColumns+` FROM scan_runs WHERE id = $1`, id)

	run, err := scanScanRun(row)
	if err != nil {
		// The table: prefix lets sqlerr turn no-rows into "Scan Run not found".
		return nil, sqlerr.HandleError(fmt.Errorf("table:scan_runs: %w", err))
	}
	return run, nil
}

// ListScanRuns returns scan runs newest first.
func (r *ScanRepository) ListScanRuns(ctx context.Context, limit, offset int) ([]domain.ScanRun, error) {
	rows, err := r.server.DB.Pool.Query(ctx,
		`SELECT `+scanRunColumns+` FROM scan_runs
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, sqlerr.HandleError(err)
	}
	defer rows.Close()

	var runs []domain.ScanRun
	for rows.Next() {
		run, err := scanScanRun(rows)
		if err != nil {
			return nil, sqlerr.HandleError(err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlerr.HandleError(err)
	}
	return runs, nil
}

// ListViolations returns a scan's violations in stable (rule, from, to)
// order, matching how the analyzer sorts its report.
func (r *ScanRepository) ListViolations(ctx context.Context, scanID uuid.UUID) ([]domain.ScanViolation, error) {
	rows, err := r.server.DB.Pool.Query(ctx, `
		SELECT id, scan_id, rule, severity, from_pkg, to_pkg, message
		FROM scan_violations WHERE scan_id = $1
		ORDER BY rule, from_pkg, to_pkg`, scanID)
	if err != nil {
		return nil, sqlerr.HandleError(err)
	}
	defer rows.Close()

	var violations []domain.ScanViolation
	for rows.Next() {
		var v domain.ScanViolation
		if err := rows.Scan(&v.ID, &v.ScanID, &v.Rule, &v.Severity, &v.FromPkg, &v.ToPkg, &v.Message); err != nil {
			return nil, sqlerr.HandleError(err)
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlerr.HandleError(err)
	}
	return violations, nil
}

// scanScanRun maps one row onto a domain.ScanRun. Works for both QueryRow
// and Query results since pgx.Row is the common subset.
func scanScanRun(row pgx.Row) (*domain.ScanRun, error) {
	var run domain.ScanRun
	err := row.Scan(
		&run.ID, &run.Root, &run.RulesFile, &run.Status, &run.ModulePath,
		&run.Packages, &run.Edges, &run.ViolationCount, &run.Error,
		&run.RequestedBy, &run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
