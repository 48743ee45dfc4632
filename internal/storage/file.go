package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tasksched/internal/task"
	logx "tasksched/pkg/logx"
)

// fileStore keeps the collection in one JSON document.
//
// Files:
//   - <path>       the collection (JSON array, insertion order)
//   - <path>.tmp   written then renamed over <path> on every save
//   - <path>.lock  advisory lock for load-mutate-save cycles
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool

	*cycleLock
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &fileStore{
		log:       log.With(logx.String("path", path)),
		path:      path,
		cycleLock: newCycleLock(path, cfg.LockTimeout),
	}, nil
}

func (s *fileStore) Path() string { return s.path }

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) Load(ctx context.Context) []task.Task {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("tasks file not found; starting with an empty task list")
			return []task.Task{}
		}
		s.log.Error("tasks file unreadable; starting with an empty task list", logx.Err(err))
		return []task.Task{}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.log.Warn("tasks file is empty; starting with an empty task list")
		return []task.Task{}
	}

	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		s.log.Error("tasks file corrupt; starting with an empty task list", logx.Err(err))
		return []task.Task{}
	}
	tasks, err := fromRecords(recs)
	if err != nil {
		s.log.Error("tasks file holds invalid records; starting with an empty task list", logx.Err(err))
		return []task.Task{}
	}
	s.log.Debug("tasks loaded", logx.Int("count", len(tasks)))
	return tasks
}

func (s *fileStore) Save(ctx context.Context, tasks []task.Task) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data, err := json.MarshalIndent(toRecords(tasks), "", "    ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write tasks file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write tasks file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync tasks file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close tasks file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace tasks file: %w", err)
	}
	s.log.Debug("tasks saved", logx.Int("count", len(tasks)))
	return nil
}

func (s *fileStore) Clear(ctx context.Context) error {
	return s.Save(ctx, nil)
}
