// Package registry is the in-memory working copy of the task collection for
// one command invocation.
//
// Mutations never leave memory and storage out of step: the next state is
// computed on a copy, persisted, and only then committed. A failed save
// leaves the registry exactly as it was.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tasksched/internal/task"
	logx "tasksched/pkg/logx"
)

// Saver persists the full collection.
type Saver interface {
	Save(ctx context.Context, tasks []task.Task) error
}

// Options overrides the clock and id source (tests).
type Options struct {
	Now   func() time.Time
	NewID func() string
}

type Registry struct {
	mu    sync.Mutex
	tasks []task.Task

	saver Saver
	now   func() time.Time
	newID func() string
	log   logx.Logger
}

// New wraps a loaded collection. A nil saver keeps the registry in memory.
func New(tasks []task.Task, saver Saver, opt Options, log logx.Logger) *Registry {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.NewID == nil {
		opt.NewID = func() string { return uuid.NewString() }
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		tasks: task.Clone(tasks),
		saver: saver,
		now:   opt.Now,
		newID: opt.NewID,
		log:   log.With(logx.String("comp", "registry")),
	}
}

// Add creates a pending task. The duplicate check and the append are one
// step under the registry lock.
func (r *Registry) Add(ctx context.Context, description string, priority int) (task.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return task.Task{}, task.ErrEmptyDescription
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tasks {
		if t.Pending() && t.Priority == priority {
			r.log.Debug("duplicate pending priority", logx.Int("priority", priority), logx.String("conflict_id", t.ID))
			return task.Task{}, &task.DuplicatePriorityError{Priority: priority, Conflict: t}
		}
	}

	id, err := r.freshIDLocked()
	if err != nil {
		return task.Task{}, err
	}
	nt := task.Task{
		ID:          id,
		Description: description,
		Priority:    priority,
		AddedTime:   r.now(),
		Status:      task.StatusPending,
	}

	next := append(task.Clone(r.tasks), nt)
	if err := r.persist(ctx, next); err != nil {
		return task.Task{}, err
	}
	r.tasks = next
	r.log.Info("task added", logx.String("id", nt.ID), logx.Int("priority", nt.Priority))
	return nt, nil
}

func (r *Registry) freshIDLocked() (string, error) {
	const attempts = 8
	for i := 0; i < attempts; i++ {
		id := r.newID()
		if id != "" && r.indexLocked(id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique task id after %d attempts", attempts)
}

// MarkCompleted moves a pending task to completed and persists.
func (r *Registry) MarkCompleted(ctx context.Context, id string, at time.Time) (task.Task, error) {
	return r.finish(ctx, id, task.StatusCompleted, at, "")
}

// MarkFailed moves a pending task to failed, keeping the cause text.
func (r *Registry) MarkFailed(ctx context.Context, id string, at time.Time, cause error) (task.Task, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return r.finish(ctx, id, task.StatusFailed, at, msg)
}

func (r *Registry) finish(ctx context.Context, id string, to task.Status, at time.Time, errText string) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return task.Task{}, fmt.Errorf("%w: id %s", task.ErrNotFound, id)
	}
	cur := r.tasks[i]
	if !task.CanTransition(cur.Status, to) {
		return task.Task{}, &task.TransitionError{ID: id, From: cur.Status, To: to}
	}
	if at.IsZero() {
		at = r.now()
	}
	if at.Before(cur.AddedTime) {
		at = cur.AddedTime
	}

	next := task.Clone(r.tasks)
	next[i].Status = to
	next[i].CompletedTime = &at
	next[i].Error = errText
	if err := r.persist(ctx, next); err != nil {
		return task.Task{}, err
	}
	r.tasks = next
	return task.Clone(next[i : i+1])[0], nil
}

func (r *Registry) persist(ctx context.Context, next []task.Task) error {
	if r.saver == nil {
		return nil
	}
	if err := r.saver.Save(ctx, next); err != nil {
		r.log.Error("persist failed; change not applied", logx.Err(err))
		return fmt.Errorf("%w: %w", task.ErrPersist, err)
	}
	return nil
}

func (r *Registry) indexLocked(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Pending returns pending tasks in insertion order.
func (r *Registry) Pending() []task.Task { return r.filter(task.StatusPending) }

// Completed returns completed tasks in insertion order.
func (r *Registry) Completed() []task.Task { return r.filter(task.StatusCompleted) }

// Failed returns failed tasks in insertion order.
func (r *Registry) Failed() []task.Task { return r.filter(task.StatusFailed) }

func (r *Registry) filter(st task.Status) []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if t.Status == st {
			out = append(out, t)
		}
	}
	return task.Clone(out)
}

// FindPendingByPriority returns the first pending task with the priority.
func (r *Registry) FindPendingByPriority(priority int) (task.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.Pending() && t.Priority == priority {
			return task.Clone([]task.Task{t})[0], true
		}
	}
	return task.Task{}, false
}

// Get looks a task up by id.
func (r *Registry) Get(id string) (task.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return task.Task{}, false
	}
	return task.Clone(r.tasks[i : i+1])[0], true
}

// ViewAll returns every task ordered by (priority, added_time) for display.
// It is not the storage order and not the execution order.
func (r *Registry) ViewAll() []task.Task {
	out := r.All()
	sort.SliceStable(out, func(i, j int) bool { return task.ViewLess(out[i], out[j]) })
	return out
}

// All returns the collection in insertion order.
func (r *Registry) All() []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tasks) == 0 {
		return []task.Task{}
	}
	return task.Clone(r.tasks)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
