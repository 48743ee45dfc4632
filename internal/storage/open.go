package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasksched/internal/task"
	logx "tasksched/pkg/logx"
)

// Store is the persistence boundary for the task collection.
//
// Load never fails: a missing resource is an empty collection, and a
// resource that cannot be decoded is logged and treated as empty.
// Save replaces the whole collection; there are no partial writes.
type Store interface {
	Load(ctx context.Context) []task.Task
	Save(ctx context.Context, tasks []task.Task) error
	Clear(ctx context.Context) error

	// Lock takes the exclusive lock for one load-mutate-save cycle.
	Lock(ctx context.Context) (unlock func(), err error)

	// Path is the resource the store persists to.
	Path() string
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = DefaultPath
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	switch driver {
	case "", "file", "json":
		return openFile(cfg, log.With(logx.String("comp", "storage.file")))
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log.With(logx.String("comp", "storage.sqlite")))
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// KnownDriver reports whether Open accepts the driver name.
func KnownDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "file", "json", "sqlite", "sqlite3":
		return true
	}
	return false
}

func toRecords(tasks []task.Task) []record {
	out := make([]record, 0, len(tasks))
	for _, t := range tasks {
		r := record{
			ID:          t.ID,
			Description: t.Description,
			Priority:    t.Priority,
			AddedTime:   t.AddedTime.Format(time.RFC3339Nano),
			Status:      string(t.Status),
			Error:       t.Error,
		}
		if t.CompletedTime != nil {
			s := t.CompletedTime.Format(time.RFC3339Nano)
			r.CompletedTime = &s
		}
		out = append(out, r)
	}
	return out
}

// fromRecords decodes and validates the whole collection. Any bad record
// rejects the collection.
func fromRecords(recs []record) ([]task.Task, error) {
	out := make([]task.Task, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for i, r := range recs {
		added, err := parseTime(r.AddedTime)
		if err != nil {
			return nil, recordErr(i, "added_time", err)
		}
		st, err := task.ParseStatus(r.Status)
		if err != nil {
			return nil, recordErr(i, "status", err)
		}
		t := task.Task{
			ID:          r.ID,
			Description: r.Description,
			Priority:    r.Priority,
			AddedTime:   added,
			Status:      st,
			Error:       r.Error,
		}
		if r.CompletedTime != nil && strings.TrimSpace(*r.CompletedTime) != "" {
			ct, err := parseTime(*r.CompletedTime)
			if err != nil {
				return nil, recordErr(i, "completed_time", err)
			}
			t.CompletedTime = &ct
		}
		if err := t.Validate(); err != nil {
			return nil, recordErr(i, "", err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, recordErr(i, "id", errors.New("duplicate id "+t.ID))
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// parseTime accepts RFC3339 and the zone-less ISO form written by older
// tools ("2006-01-02T15:04:05.999999"), read as local time.
func parseTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
}

type recordError struct {
	index int
	field string
	err   error
}

func recordErr(i int, field string, err error) error {
	return &recordError{index: i, field: field, err: err}
}

func (e *recordError) Error() string {
	if e.field == "" {
		return fmt.Sprintf("record %d: %v", e.index, e.err)
	}
	return fmt.Sprintf("record %d %s: %v", e.index, e.field, e.err)
}

func (e *recordError) Unwrap() error { return e.err }
