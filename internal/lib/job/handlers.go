package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ThreadPruner deletes threads that have been idle longer than a TTL.
type ThreadPruner interface {
	PruneIdleThreads(ctx context.Context, ttl time.Duration) (int, error)
}

// InitHandlers gives the handlers the services they act on.
func (j *JobService) InitHandlers(pruner ThreadPruner) {
	j.pruner = pruner
}

func (j *JobService) handlePruneThreadsTask(ctx context.Context, t *asynq.Task) error {
	var p PruneThreadsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal prune payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.TTLSeconds <= 0 {
		return fmt.Errorf("prune ttl must be positive, got %ds: %w", p.TTLSeconds, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", TaskPruneThreads).
		Dur("ttl", p.TTL()).
		Msg("Processing prune threads task")

	pruned, err := j.pruner.PruneIdleThreads(ctx, p.TTL())
	if err != nil {
		j.logger.Error().
			Str("type", TaskPruneThreads).
			Err(err).
			Msg("Failed to prune threads")
		return err
	}

	j.logger.Info().
		Str("type", TaskPruneThreads).
		Int("pruned", pruned).
		Msg("Successfully pruned threads")

	return nil
}
