package engine

import (
	"context"
	"time"

	"tasksched/internal/task"
)

// Simulated stands in for real work: it blocks for a time proportional to
// the description length, clamped to [MinWork, MaxWork]. It never fails and
// is not interruptible once started.
type Simulated struct {
	cfg   Config
	sleep func(time.Duration)
}

// NewSimulated builds the simulated executor. A nil sleep uses time.Sleep.
func NewSimulated(cfg Config, sleep func(time.Duration)) *Simulated {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Simulated{cfg: cfg.withDefaults(), sleep: sleep}
}

// WorkFor returns the simulated duration for a description.
func (s *Simulated) WorkFor(description string) time.Duration {
	d := time.Duration(float64(len(description)) / s.cfg.CharsPerSecond * float64(time.Second))
	if d < s.cfg.MinWork {
		d = s.cfg.MinWork
	}
	if d > s.cfg.MaxWork {
		d = s.cfg.MaxWork
	}
	return d
}

func (s *Simulated) Execute(ctx context.Context, t task.Task) error {
	_ = ctx
	s.sleep(s.WorkFor(t.Description))
	return nil
}
