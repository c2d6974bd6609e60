package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReconRun triggers a matching run for one owner.
	TaskReconRun = "recon:run"
	// TaskChecksScan runs the consistency detectors across owners.
	TaskChecksScan = "checks:scan"
	// TaskStatementsStale sweeps statements stuck in PARSING.
	TaskStatementsStale = "statements:stale"
)

// ReconRunPayload scopes a matching run. StatementID nil means the whole
// owner backlog.
type ReconRunPayload struct {
	OwnerID     int64  `json:"owner_id"`
	StatementID *int64 `json:"statement_id,omitempty"`
}

// NewReconRunTask constructs a matching run task.
func NewReconRunTask(payload ReconRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconRun, data), nil
}

// ChecksScanPayload scopes a detector sweep. Empty OwnerIDs means every
// owner with bank transactions.
type ChecksScanPayload struct {
	OwnerIDs    []int64 `json:"owner_ids,omitempty"`
	StatementID *int64  `json:"statement_id,omitempty"`
}

// NewChecksScanTask constructs a detector sweep task.
func NewChecksScanTask(payload ChecksScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChecksScan, data), nil
}

// NewStatementsStaleTask constructs the stale statement sweep task. The
// sweep carries no payload.
func NewStatementsStaleTask() *asynq.Task {
	return asynq.NewTask(TaskStatementsStale, nil)
}
