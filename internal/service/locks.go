package service

import (
	"context"
	"sync"
)

// threadLocks serialises runs per thread. Waiters queue on a one-slot
// channel so they can give up when their context ends.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	slot chan struct{}
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// Lock blocks until the thread is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (l *threadLocks) Lock(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[threadID]
	if !ok {
		lock = &threadLock{slot: make(chan struct{}, 1)}
		l.locks[threadID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.slot <- struct{}{}:
		return func() {
			<-lock.slot
			l.release(threadID, lock)
		}, nil
	case <-ctx.Done():
		l.release(threadID, lock)
		return nil, ctx.Err()
	}
}

func (l *threadLocks) release(threadID string, lock *threadLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, threadID)
	}
}

// size reports how many threads have holders or waiters.
func (l *threadLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
