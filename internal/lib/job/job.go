// Package job runs background maintenance on Asynq, a Redis-backed task
// queue.
//
// A Scheduler enqueues the periodic thread-pruning task and a Server
// processes it. The package is only used when Redis is configured.
package job

import (
	"fmt"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// JobService holds the Asynq client (enqueue), server (workers) and
// scheduler (periodic tasks).
type JobService struct {
	Client *asynq.Client

	server    *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zerolog.Logger
	jobs      config.JobsConfig

	pruner ThreadPruner
}

// NewJobService creates a JobService using the Redis address from cfg.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}
	asynqLogger := NewAsynqLogger(logger)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				QueueMaintenance: 1,
			},
			Logger: asynqLogger,
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   asynqLogger,
		Location: time.UTC,
	})

	return &JobService{
		Client:    asynq.NewClient(redisOpt),
		server:    server,
		scheduler: scheduler,
		logger:    logger,
		jobs:      cfg.Jobs,
	}
}

// PruningEnabled reports whether a thread TTL is configured.
func (j *JobService) PruningEnabled() bool {
	return j.jobs.ThreadTTL > 0
}

// Mux routes task types to their handlers.
func (j *JobService) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPruneThreads, j.handlePruneThreadsTask)
	return mux
}

// Start registers the periodic tasks and starts the worker server and
// scheduler. Neither call blocks. InitHandlers must run first.
func (j *JobService) Start() error {
	if j.pruner == nil {
		return fmt.Errorf("job handlers not initialized")
	}

	if j.PruningEnabled() {
		task, err := NewPruneThreadsTask(j.jobs.ThreadTTL)
		if err != nil {
			return err
		}
		spec := "@every " + j.jobs.PruneInterval.String()
		entryID, err := j.scheduler.Register(spec, task)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", TaskPruneThreads, err)
		}
		j.logger.Info().
			Str("entry_id", entryID).
			Str("spec", spec).
			Dur("thread_ttl", j.jobs.ThreadTTL).
			Msg("scheduled thread pruning")
	}

	j.logger.Info().Msg("Starting background job server")
	if err := j.server.Start(j.Mux()); err != nil {
		return fmt.Errorf("failed to start job server: %w", err)
	}
	if err := j.scheduler.Start(); err != nil {
		j.server.Shutdown()
		return fmt.Errorf("failed to start job scheduler: %w", err)
	}

	return nil
}

// Stop shuts down the scheduler and workers and closes the client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	j.scheduler.Shutdown()
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Warn().Err(err).Msg("failed to close job client")
	}
}
