package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasksched/internal/task"
	"tasksched/internal/task/engine"
	"tasksched/internal/task/registry"
	logx "tasksched/pkg/logx"
)

// Hooks are optional progress callbacks, called synchronously.
type Hooks struct {
	OnStart func(t task.Task)
	OnDone  func(t task.Task, item engine.HistoryItem)
}

// Report summarizes one drain.
type Report struct {
	Pending   int // pending tasks when the run started
	Processed int // tasks that left pending (completed or failed)
	Failed    int
	History   []engine.HistoryItem
	Elapsed   time.Duration
}

type Scheduler struct {
	reg   *registry.Registry
	exec  engine.Executor
	pacer *engine.Pacer
	hooks Hooks
	now   func() time.Time
	log   logx.Logger
}

// New builds a scheduler over reg. A nil exec uses the simulated executor
// configured by cfg.
func New(reg *registry.Registry, exec engine.Executor, cfg engine.Config, hooks Hooks, log logx.Logger) *Scheduler {
	if exec == nil {
		exec = engine.NewSimulated(cfg, nil)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		reg:   reg,
		exec:  exec,
		pacer: engine.NewPacer(cfg),
		hooks: hooks,
		now:   time.Now,
		log:   log.With(logx.String("comp", "scheduler")),
	}
}

// RunAll executes every pending task in ascending priority order.
//
// No pending tasks is not an error: the report has Pending == 0.
// An executor error marks that task failed and the drain continues.
// Cancellation stops the drain before the next task starts. A persist
// failure stops the drain; the report covers the tasks already recorded.
func (s *Scheduler) RunAll(ctx context.Context) (Report, error) {
	start := time.Now()
	pending := s.reg.Pending()
	rep := Report{Pending: len(pending)}
	if len(pending) == 0 {
		s.log.Info("no pending tasks")
		return rep, nil
	}

	s.log.Info("drain started", logx.Int("pending", len(pending)))
	q := newWorkQueue(pending)
	for {
		t, ok := q.pop()
		if !ok {
			break
		}
		s.log.Trace("task dequeued", logx.String("id", t.ID), logx.Int("priority", t.Priority), logx.Int("remaining", q.Len()))
		if err := s.pacer.Wait(ctx); err != nil {
			rep.Elapsed = time.Since(start)
			s.log.Warn("drain interrupted", logx.Int("processed", rep.Processed), logx.Int("remaining", q.Len()+1), logx.Err(err))
			return rep, err
		}
		if err := ctx.Err(); err != nil {
			rep.Elapsed = time.Since(start)
			s.log.Warn("drain interrupted", logx.Int("processed", rep.Processed), logx.Int("remaining", q.Len()+1), logx.Err(err))
			return rep, err
		}

		item, failed, err := s.runOne(ctx, t)
		if err != nil {
			rep.Elapsed = time.Since(start)
			return rep, err
		}
		rep.Processed++
		if failed {
			rep.Failed++
		}
		rep.History = append(rep.History, item)
	}

	rep.Elapsed = time.Since(start)
	s.log.Info("drain finished", logx.Int("processed", rep.Processed), logx.Int("failed", rep.Failed), logx.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// ExecuteOne runs exactly the pending task holding priority.
// It returns task.ErrNotFound (no state change) when there is none.
func (s *Scheduler) ExecuteOne(ctx context.Context, priority int) (task.Task, error) {
	t, ok := s.reg.FindPendingByPriority(priority)
	if !ok {
		return task.Task{}, fmt.Errorf("%w: no pending task with priority %d", task.ErrNotFound, priority)
	}
	if err := ctx.Err(); err != nil {
		return task.Task{}, err
	}
	if _, _, err := s.runOne(ctx, t); err != nil {
		return task.Task{}, err
	}
	done, _ := s.reg.Get(t.ID)
	return done, nil
}

// runOne executes t and records the outcome. failed reports an executor
// error (already recorded); err is only set when recording failed.
func (s *Scheduler) runOne(ctx context.Context, t task.Task) (engine.HistoryItem, bool, error) {
	if s.hooks.OnStart != nil {
		s.hooks.OnStart(t)
	}
	item, execErr := engine.Run(ctx, s.exec, t, s.log)

	var (
		done task.Task
		err  error
	)
	if execErr != nil {
		done, err = s.reg.MarkFailed(ctx, t.ID, s.now(), execErr)
	} else {
		done, err = s.reg.MarkCompleted(ctx, t.ID, s.now())
	}
	if err != nil {
		if errors.Is(err, task.ErrPersist) {
			s.log.Error("task outcome not persisted", logx.String("id", t.ID), logx.Err(err))
		}
		return item, false, fmt.Errorf("record task %s: %w", t.ID, err)
	}
	if s.hooks.OnDone != nil {
		s.hooks.OnDone(done, item)
	}
	return item, execErr != nil, nil
}
