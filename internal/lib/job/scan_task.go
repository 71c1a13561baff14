package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TaskScanRun is the job type name stored in Redis for architecture
	// scan executions.
	TaskScanRun = "scan:run"
)

// ScanRunPayload is the JSON payload for a scan run task.
//
// Only the scan ID is strictly necessary (the run row holds root and rules
// file), but carrying them in the payload lets the worker log what it is
// about to do before touching the database.
type ScanRunPayload struct {
	ScanID    uuid.UUID `json:"scan_id"`
	Root      string    `json:"root"`
	RulesFile string    `json:"rules_file"`
}

// NewScanRunTask constructs the Asynq task for executing a scan.
//
// Options:
//   - MaxRetry(3): a scan that fails three times is not transient
//   - Queue("default"): scans must not starve critical operational tasks
//   - Timeout(10m): hard ceiling for pathological module trees
func NewScanRunTask(scanID uuid.UUID, root, rulesFile string) (*asynq.Task, error) {
	payload, err := json.Marshal(ScanRunPayload{
		ScanID:    scanID,
		Root:      root,
		RulesFile: rulesFile,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskScanRun,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue("default"),
		asynq.Timeout(10*time.Minute),
	), nil
}
