package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// cycleLock serializes load-mutate-save cycles: first in-process (every
// store opened on the same path shares one mutex), then across processes
// through an advisory lock on a sidecar file.
type cycleLock struct {
	mu      *sync.Mutex
	path    string
	timeout time.Duration
}

var (
	pathLocksMu sync.Mutex
	pathLocks   = map[string]*sync.Mutex{}
)

func newCycleLock(storePath string, timeout time.Duration) *cycleLock {
	lockPath := storePath + ".lock"
	return &cycleLock{mu: pathMutex(lockPath), path: lockPath, timeout: timeout}
}

// pathMutex returns the process-wide mutex for path.
func pathMutex(path string) *sync.Mutex {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	pathLocksMu.Lock()
	defer pathLocksMu.Unlock()
	mu, ok := pathLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		pathLocks[key] = mu
	}
	return mu
}

func (l *cycleLock) Lock(ctx context.Context) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if !l.lockLocal(ctx) {
		return nil, l.waitErr(ctx)
	}
	release, err := acquireFileLock(ctx, l.path)
	if err != nil {
		l.mu.Unlock()
		if ctx.Err() != nil {
			return nil, l.waitErr(ctx)
		}
		return nil, fmt.Errorf("lock %s: %w", l.path, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			release()
			l.mu.Unlock()
		})
	}, nil
}

func (l *cycleLock) lockLocal(ctx context.Context) bool {
	const poll = 10 * time.Millisecond
	for {
		if l.mu.TryLock() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}
	}
}

func (l *cycleLock) waitErr(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s (%s)", ErrLockTimeout, l.timeout, l.path)
	}
	return ctx.Err()
}
