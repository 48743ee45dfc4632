package task

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDescription  = errors.New("task description is empty")
	ErrDuplicatePriority = errors.New("duplicate pending priority")
	ErrNotFound          = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersist           = errors.New("persist task collection")
)

// DuplicatePriorityError names the pending task already holding a priority.
//
// errors.Is(err, ErrDuplicatePriority) reports true for it.
type DuplicatePriorityError struct {
	Priority int
	Conflict Task
}

func (e *DuplicatePriorityError) Error() string {
	return fmt.Sprintf("a pending task with priority %d already exists (%q)", e.Priority, e.Conflict.Description)
}

func (e *DuplicatePriorityError) Is(target error) bool { return target == ErrDuplicatePriority }

// TransitionError describes a rejected status change.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
