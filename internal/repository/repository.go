// Package repository handles all interactions with storage.
//
// It defines the Store the services depend on and its two
// implementations: an in-memory store (the default) and a PostgreSQL
// store backed by pgx. Services never see which one is in use.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/model"
)

// ErrNotFound is returned (wrapped) when a thread, run or checkpoint does
// not exist.
var ErrNotFound = errors.New("not found")

// ThreadStore persists threads.
type ThreadStore interface {
	// CreateThread stores a new thread together with its first checkpoint.
	CreateThread(ctx context.Context, thread model.Thread, initial model.Checkpoint) error
	GetThread(ctx context.Context, threadID string) (model.Thread, error)
	UpdateThread(ctx context.Context, thread model.Thread) error
	// DeleteThread removes the thread with its runs and checkpoints.
	DeleteThread(ctx context.Context, threadID string) error
	// SearchThreads pages threads by updated_at, newest first, and reports
	// the total count.
	SearchThreads(ctx context.Context, offset, limit int) ([]model.Thread, int, error)
	// PruneThreads deletes threads that are not busy and were last updated
	// before idleBefore. It returns how many were deleted.
	PruneThreads(ctx context.Context, idleBefore time.Time) (int, error)
}

// RunStore persists runs.
type RunStore interface {
	// SaveRun inserts or replaces a run.
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, threadID, runID string) (model.Run, error)
	// ListRuns pages the runs of a thread, newest first.
	ListRuns(ctx context.Context, threadID string, offset, limit int) ([]model.Run, int, error)
}

// CheckpointStore persists the checkpoint history of threads.
type CheckpointStore interface {
	AddCheckpoint(ctx context.Context, threadID string, cp model.Checkpoint) error
	// ReplaceLatestCheckpoint overwrites the newest checkpoint of a thread.
	ReplaceLatestCheckpoint(ctx context.Context, threadID string, cp model.Checkpoint) error
	LatestCheckpoint(ctx context.Context, threadID string) (model.Checkpoint, error)
	// ListCheckpoints pages the history of a thread, newest first.
	ListCheckpoints(ctx context.Context, threadID string, offset, limit int) ([]model.Checkpoint, int, error)
}

// Store is everything the services need from storage.
type Store interface {
	ThreadStore
	RunStore
	CheckpointStore

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
	// Driver names the implementation ("memory", "postgres").
	Driver() string
}

// window returns the [start, end) bounds of a page over total items.
func window(total, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit >= 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
