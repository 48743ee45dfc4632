package engine

import (
	"context"
	"time"

	"tasksched/internal/task"
)

// Executor performs the work a task stands for.
//
// Implementations must be synchronous. The scheduler treats one Execute call
// as atomic: cancellation is only honoured between tasks.
type Executor interface {
	Execute(ctx context.Context, t task.Task) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, t task.Task) error

func (f ExecutorFunc) Execute(ctx context.Context, t task.Task) error { return f(ctx, t) }

// Config controls simulated work and pacing.
//
// Defaults (when fields are zero):
//   - min_work: 500ms
//   - max_work: 3s
//   - chars_per_second: 20
//   - rate_per_sec: 0 (no pacing)
type Config struct {
	MinWork        time.Duration
	MaxWork        time.Duration
	CharsPerSecond float64

	// RatePerSec caps how many tasks may start per second. 0 disables pacing.
	RatePerSec float64
	Burst      int
}

const (
	DefaultMinWork        = 500 * time.Millisecond
	DefaultMaxWork        = 3 * time.Second
	DefaultCharsPerSecond = 20.0
)

func (c Config) withDefaults() Config {
	if c.MinWork <= 0 {
		c.MinWork = DefaultMinWork
	}
	if c.MaxWork <= 0 {
		c.MaxWork = DefaultMaxWork
	}
	if c.MaxWork < c.MinWork {
		c.MaxWork = c.MinWork
	}
	if c.CharsPerSecond <= 0 {
		c.CharsPerSecond = DefaultCharsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// HistoryItem records one execution.
type HistoryItem struct {
	ID          string
	Description string
	Priority    int
	Started     time.Time
	Duration    time.Duration
	Error       string
}
