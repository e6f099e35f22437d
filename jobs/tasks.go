package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLedgerIntegrity verifies every ledger transaction balances and has at least two entries.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskBalancesRebuild recomputes drifted running balances from ledger entries.
	TaskBalancesRebuild = "balances:rebuild"
	// TaskInventoryReconcile checks site quantities against the movement history.
	TaskInventoryReconcile = "inventory:reconcile"
	// TaskIntegritySweep runs the ledger and inventory checks together.
	TaskIntegritySweep = "integrity:sweep"
)

// Names lists the task types an operator may trigger by hand.
var Names = []string{TaskLedgerIntegrity, TaskBalancesRebuild, TaskInventoryReconcile, TaskIntegritySweep, TaskIdempotencyCleanup}

// CheckPayload carries scheduling metadata for the integrity tasks.
type CheckPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	// Limit caps the number of findings reported per run. Zero uses the default.
	Limit int `json:"limit,omitempty"`
}

// NewTask builds one of the tasks in Names.
func NewTask(taskType string, payload CheckPayload) (*asynq.Task, error) {
	if !IsKnown(taskType) {
		return nil, &UnknownTaskError{Type: taskType}
	}
	if taskType == TaskIdempotencyCleanup {
		return NewCleanupTask(0)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// IsKnown reports whether taskType is one of Names.
func IsKnown(taskType string) bool {
	for _, name := range Names {
		if name == taskType {
			return true
		}
	}
	return false
}

// UnknownTaskError is returned for task types outside Names.
type UnknownTaskError struct {
	Type string
}

func (e *UnknownTaskError) Error() string {
	return "jobs: unsupported task " + e.Type
}

func decodePayload(t *asynq.Task) (CheckPayload, error) {
	var payload CheckPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	err := json.Unmarshal(t.Payload(), &payload)
	return payload, err
}
