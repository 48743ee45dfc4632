// Package task holds the scheduler's only entity and its lifecycle rules.
package task

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
//
// Transitions (see CanTransition):
//
//	pending -> completed
//	pending -> failed
//	pending -> cancelled
//
// Every state other than pending is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusCompleted, StatusFailed, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s.Valid() && s != StatusPending }

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus is strict: stored records with an unknown status are rejected
// so that a corrupt collection is never half-loaded.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// Task is a unit of schedulable work.
//
// CompletedTime is set once the task leaves pending, whatever the terminal
// state. Error carries the executor failure for failed tasks.
type Task struct {
	ID            string     `json:"id"`
	Description   string     `json:"description"`
	Priority      int        `json:"priority"`
	AddedTime     time.Time  `json:"added_time"`
	Status        Status     `json:"status"`
	CompletedTime *time.Time `json:"completed_time,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func (t Task) Pending() bool { return t.Status == StatusPending }

// Validate checks the per-record invariants a loaded task must satisfy.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task has empty id")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("task %s: %w", t.ID, ErrEmptyDescription)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task %s: unknown status %q", t.ID, t.Status)
	}
	if t.AddedTime.IsZero() {
		return fmt.Errorf("task %s: missing added_time", t.ID)
	}
	if t.CompletedTime != nil && t.CompletedTime.Before(t.AddedTime) {
		return fmt.Errorf("task %s: completed_time before added_time", t.ID)
	}
	return nil
}

// Less orders tasks for execution: priority first, id as the tie-break.
func Less(a, b Task) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.ID < b.ID
}

// ViewLess orders tasks for display: priority, then added time, then id.
func ViewLess(a, b Task) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.AddedTime.Equal(b.AddedTime) {
		return a.AddedTime.Before(b.AddedTime)
	}
	return a.ID < b.ID
}

// Clone copies a slice of tasks including the CompletedTime pointers.
func Clone(in []Task) []Task {
	if in == nil {
		return nil
	}
	out := make([]Task, len(in))
	for i, t := range in {
		if t.CompletedTime != nil {
			ct := *t.CompletedTime
			t.CompletedTime = &ct
		}
		out[i] = t
	}
	return out
}
