// Package domain holds the core data types shared across layers.
//
// These are plain structs with no behavior beyond what the data itself
// implies; repositories persist them, services orchestrate them, handlers
// serialize them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus tracks a scan run through its lifecycle.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanRun is one architecture scan, from request to report.
type ScanRun struct {
	ID        uuid.UUID  `json:"id"`
	Root      string     `json:"root"`
	RulesFile string     `json:"rules_file"`
	Status    ScanStatus `json:"status"`

	// Report summary, populated when the scan completes.
	ModulePath     string `json:"module_path"`
	Packages       int    `json:"packages"`
	Edges          int    `json:"edges"`
	ViolationCount int    `json:"violation_count"`

	// Error carries the failure reason for failed scans.
	Error string `json:"error,omitempty"`

	// RequestedBy is the authenticated user who triggered the scan,
	// empty for CLI and scheduled runs.
	RequestedBy string `json:"requested_by,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ScanViolation is one persisted finding from a completed scan.
type ScanViolation struct {
	ID       uuid.UUID `json:"id"`
	ScanID   uuid.UUID `json:"scan_id"`
	Rule     string    `json:"rule"`
	Severity string    `json:"severity"`
	FromPkg  string    `json:"from_pkg"`
	ToPkg    string    `json:"to_pkg,omitempty"`
	Message  string    `json:"message"`
}

// BreakerEvent is one circuit breaker transition in the audit trail.
type BreakerEvent struct {
	ID          uuid.UUID `json:"id"`
	BreakerName string    `json:"breaker_name"`
	FromState   string    `json:"from_state"`
	ToState     string    `json:"to_state"`
	OccurredAt  time.Time `json:"occurred_at"`
}
