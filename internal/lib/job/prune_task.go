package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskPruneThreads deletes threads idle for longer than a TTL.
	TaskPruneThreads = "threads:prune"

	// QueueMaintenance holds housekeeping tasks.
	QueueMaintenance = "maintenance"
)

// PruneThreadsPayload is the JSON payload of a TaskPruneThreads task.
type PruneThreadsPayload struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

// TTL returns the payload's TTL as a duration.
func (p PruneThreadsPayload) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// NewPruneThreadsTask builds a pruning task for threads idle longer than
// ttl. Only one such task can be pending at a time.
func NewPruneThreadsTask(ttl time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(PruneThreadsPayload{
		TTLSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskPruneThreads,
		payload,
		asynq.MaxRetry(1),
		asynq.Queue(QueueMaintenance),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Minute),
	), nil
}
