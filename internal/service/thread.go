package service

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ThreadService manages threads and their checkpoint history.
type ThreadService struct {
	store      repository.Store
	assistants *AssistantService
}

func NewThreadService(store repository.Store, assistants *AssistantService) *ThreadService {
	return &ThreadService{store: store, assistants: assistants}
}

// CreateThreadInput holds the optional fields of a new thread.
type CreateThreadInput struct {
	Metadata model.Object
	Config   model.Object
	Context  model.Object
}

// Create stores an idle thread and its initial checkpoint.
func (s *ThreadService) Create(ctx context.Context, in CreateThreadInput) (model.Thread, error) {
	thread := model.NewThread(in.Metadata, in.Config, in.Context)
	initial := model.InitialCheckpoint(thread.ThreadID, s.assistants.Assistant().AssistantID)

	if err := s.store.CreateThread(ctx, thread, initial); err != nil {
		return model.Thread{}, fmt.Errorf("create thread: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("thread_id", thread.ThreadID).Msg("thread created")
	return thread, nil
}

func (s *ThreadService) Get(ctx context.Context, threadID string) (model.Thread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return model.Thread{}, notFound(err, MsgThreadNotFound)
	}
	return thread, nil
}

// UpdateMetadata merges metadata into the thread's metadata.
func (s *ThreadService) UpdateMetadata(ctx context.Context, threadID string, metadata model.Object) (model.Thread, error) {
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return model.Thread{}, err
	}

	if thread.Metadata == nil {
		thread.Metadata = model.Object{}
	}
	maps.Copy(thread.Metadata, metadata)
	thread.UpdatedAt = model.Now()

	if err := s.store.UpdateThread(ctx, thread); err != nil {
		return model.Thread{}, notFound(err, MsgThreadNotFound)
	}
	return thread, nil
}

// Delete removes a thread with its runs and checkpoints.
func (s *ThreadService) Delete(ctx context.Context, threadID string) error {
	if err := s.store.DeleteThread(ctx, threadID); err != nil {
		return notFound(err, MsgThreadNotFound)
	}
	zerolog.Ctx(ctx).Info().Str("thread_id", threadID).Msg("thread deleted")
	return nil
}

// Search pages threads, most recently updated first.
func (s *ThreadService) Search(ctx context.Context, offset, limit int) (Page[model.Thread], error) {
	threads, total, err := s.store.SearchThreads(ctx, offset, limit)
	if err != nil {
		return Page[model.Thread]{}, fmt.Errorf("search threads: %w", err)
	}
	return Page[model.Thread]{Items: threads, Offset: offset, Limit: limit, Total: total}, nil
}

// State returns the latest checkpoint of a thread.
func (s *ThreadService) State(ctx context.Context, threadID string) (model.Checkpoint, error) {
	cp, err := s.store.LatestCheckpoint(ctx, threadID)
	if err != nil {
		return model.Checkpoint{}, notFound(err, MsgThreadNotFound)
	}
	return cp, nil
}

// History pages the checkpoints of a thread, newest first.
func (s *ThreadService) History(ctx context.Context, threadID string, offset, limit int) (Page[model.Checkpoint], error) {
	checkpoints, total, err := s.store.ListCheckpoints(ctx, threadID, offset, limit)
	if err != nil {
		return Page[model.Checkpoint]{}, notFound(err, MsgThreadNotFound)
	}
	return Page[model.Checkpoint]{Items: checkpoints, Offset: offset, Limit: limit, Total: total}, nil
}

// PruneIdleThreads deletes threads that have not been updated for ttl.
// Busy threads are kept.
func (s *ThreadService) PruneIdleThreads(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("prune ttl must be positive, got %s", ttl)
	}

	pruned, err := s.store.PruneThreads(ctx, model.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("prune threads: %w", err)
	}
	return pruned, nil
}
