package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/model"
)

// MemoryStore keeps everything in process memory. Values are deep-copied
// on the way in and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu          sync.RWMutex
	threads     map[string]model.Thread
	checkpoints map[string][]model.Checkpoint // oldest first
	runs        map[string]model.Run
	threadRuns  map[string][]string // run ids, oldest first
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:     make(map[string]model.Thread),
		checkpoints: make(map[string][]model.Checkpoint),
		runs:        make(map[string]model.Run),
		threadRuns:  make(map[string][]string),
	}
}

func (m *MemoryStore) Driver() string { return "memory" }

func (m *MemoryStore) Ping(context.Context) error { return nil }

func notFound(table, id string) error {
	return fmt.Errorf("table:%s: %s %w", table, id, ErrNotFound)
}

func (m *MemoryStore) CreateThread(_ context.Context, thread model.Thread, initial model.Checkpoint) error {
	thread, err := model.Clone(thread)
	if err != nil {
		return err
	}
	initial, err = model.Clone(initial)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.threads[thread.ThreadID]; exists {
		return fmt.Errorf("thread %s already exists", thread.ThreadID)
	}
	m.threads[thread.ThreadID] = thread
	m.checkpoints[thread.ThreadID] = []model.Checkpoint{initial}
	return nil
}

func (m *MemoryStore) GetThread(_ context.Context, threadID string) (model.Thread, error) {
	m.mu.RLock()
	thread, ok := m.threads[threadID]
	m.mu.RUnlock()

	if !ok {
		return model.Thread{}, notFound("threads", threadID)
	}
	return model.Clone(thread)
}

func (m *MemoryStore) UpdateThread(_ context.Context, thread model.Thread) error {
	thread, err := model.Clone(thread)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[thread.ThreadID]; !ok {
		return notFound("threads", thread.ThreadID)
	}
	m.threads[thread.ThreadID] = thread
	return nil
}

func (m *MemoryStore) DeleteThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[threadID]; !ok {
		return notFound("threads", threadID)
	}
	m.deleteThreadLocked(threadID)
	return nil
}

func (m *MemoryStore) deleteThreadLocked(threadID string) {
	for _, runID := range m.threadRuns[threadID] {
		delete(m.runs, runID)
	}
	delete(m.threadRuns, threadID)
	delete(m.checkpoints, threadID)
	delete(m.threads, threadID)
}

func (m *MemoryStore) SearchThreads(_ context.Context, offset, limit int) ([]model.Thread, int, error) {
	m.mu.RLock()
	items := make([]model.Thread, 0, len(m.threads))
	for _, t := range m.threads {
		items = append(items, t)
	}
	m.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	start, end := window(len(items), offset, limit)
	page, err := model.Clone(items[start:end])
	if err != nil {
		return nil, 0, err
	}
	return page, len(items), nil
}

func (m *MemoryStore) PruneThreads(_ context.Context, idleBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, t := range m.threads {
		if t.Status != model.ThreadBusy && t.UpdatedAt.Before(idleBefore) {
			m.deleteThreadLocked(id)
			pruned++
		}
	}
	return pruned, nil
}

func (m *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	run, err := model.Clone(run)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[run.ThreadID]; !ok {
		return notFound("threads", run.ThreadID)
	}
	if _, exists := m.runs[run.RunID]; !exists {
		m.threadRuns[run.ThreadID] = append(m.threadRuns[run.ThreadID], run.RunID)
	}
	m.runs[run.RunID] = run
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, threadID, runID string) (model.Run, error) {
	m.mu.RLock()
	run, ok := m.runs[runID]
	m.mu.RUnlock()

	if !ok || run.ThreadID != threadID {
		return model.Run{}, notFound("runs", runID)
	}
	return model.Clone(run)
}

func (m *MemoryStore) ListRuns(_ context.Context, threadID string, offset, limit int) ([]model.Run, int, error) {
	m.mu.RLock()
	if _, ok := m.threads[threadID]; !ok {
		m.mu.RUnlock()
		return nil, 0, notFound("threads", threadID)
	}
	ids := m.threadRuns[threadID]
	items := make([]model.Run, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		items = append(items, m.runs[ids[i]])
	}
	m.mu.RUnlock()

	start, end := window(len(items), offset, limit)
	page, err := model.Clone(items[start:end])
	if err != nil {
		return nil, 0, err
	}
	return page, len(items), nil
}

func (m *MemoryStore) AddCheckpoint(_ context.Context, threadID string, cp model.Checkpoint) error {
	cp, err := model.Clone(cp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[threadID]; !ok {
		return notFound("threads", threadID)
	}
	m.checkpoints[threadID] = append(m.checkpoints[threadID], cp)
	return nil
}

func (m *MemoryStore) ReplaceLatestCheckpoint(_ context.Context, threadID string, cp model.Checkpoint) error {
	cp, err := model.Clone(cp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.checkpoints[threadID]
	if len(list) == 0 {
		return notFound("checkpoints", threadID)
	}
	list[len(list)-1] = cp
	return nil
}

func (m *MemoryStore) LatestCheckpoint(_ context.Context, threadID string) (model.Checkpoint, error) {
	m.mu.RLock()
	list := m.checkpoints[threadID]
	if len(list) == 0 {
		m.mu.RUnlock()
		return model.Checkpoint{}, notFound("checkpoints", threadID)
	}
	latest := list[len(list)-1]
	m.mu.RUnlock()

	return model.Clone(latest)
}

func (m *MemoryStore) ListCheckpoints(_ context.Context, threadID string, offset, limit int) ([]model.Checkpoint, int, error) {
	m.mu.RLock()
	list, ok := m.checkpoints[threadID]
	if !ok {
		m.mu.RUnlock()
		return nil, 0, notFound("threads", threadID)
	}
	items := make([]model.Checkpoint, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		items = append(items, list[i])
	}
	m.mu.RUnlock()

	start, end := window(len(items), offset, limit)
	page, err := model.Clone(items[start:end])
	if err != nil {
		return nil, 0, err
	}
	return page, len(items), nil
}
