package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/paths"
)

const lockRetryDelay = 250 * time.Millisecond

// batchLock serializes batches and undos across jellyrename processes.
type batchLock struct {
	lock *flock.Flock
}

func newBatchLock() (*batchLock, error) {
	lockPath, err := paths.LockPath()
	if err != nil {
		return nil, err
	}
	return newBatchLockAt(lockPath)
}

func newBatchLockAt(lockPath string) (*batchLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("unable to create lock dir: %w", err)
	}
	return &batchLock{lock: flock.New(lockPath)}, nil
}

// Acquire waits for the lock until ctx ends. waiting is called once if
// another process holds it.
func (l *batchLock) Acquire(ctx context.Context, waiting func()) error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if ok {
		return nil
	}
	if waiting != nil {
		waiting()
	}
	ok, err = l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire lock: %s is held by another process", l.lock.Path())
	}
	return nil
}

func (l *batchLock) Release() error {
	return l.lock.Unlock()
}

// sharedLock is a sync.Locker for long running modes: it takes the in-process
// session lock first, then the cross-process file lock.
type sharedLock struct {
	mu     sync.Locker
	file   *batchLock
	logger *logging.Logger
}

func (l *sharedLock) Lock() {
	l.mu.Lock()
	if err := l.file.lock.Lock(); err != nil {
		l.logger.Error("lock", "file lock unavailable, continuing without it", err,
			logging.F("path", l.file.lock.Path()))
	}
}

func (l *sharedLock) Unlock() {
	if l.file.lock.Locked() {
		if err := l.file.Release(); err != nil {
			l.logger.Error("lock", "releasing file lock", err)
		}
	}
	l.mu.Unlock()
}
