// Package app wires one command invocation: open the store, take the cycle
// lock, load, mutate through the registry or scheduler, and release.
package app

import (
	"context"
	"fmt"
	"sync"

	"tasksched/internal/storage"
	"tasksched/internal/task"
	"tasksched/internal/task/engine"
	"tasksched/internal/task/registry"
	"tasksched/internal/task/scheduler"
	logx "tasksched/pkg/logx"
)

type App struct {
	storeCfg  storage.Config
	engineCfg engine.Config
	log       logx.Logger

	exec    engine.Executor
	regOpt  registry.Options
	hooks   scheduler.Hooks
	openFor func(storage.Config, logx.Logger) (storage.Store, error)
}

type Option func(*App)

// WithExecutor replaces the simulated executor.
func WithExecutor(e engine.Executor) Option { return func(a *App) { a.exec = e } }

// WithRegistryOptions overrides the registry clock and id source.
func WithRegistryOptions(o registry.Options) Option { return func(a *App) { a.regOpt = o } }

// WithHooks installs scheduler progress callbacks.
func WithHooks(h scheduler.Hooks) Option { return func(a *App) { a.hooks = h } }

func New(cfg *Config, log logx.Logger, opts ...Option) (*App, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	ec, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &App{storeCfg: sc, engineCfg: ec, log: log, openFor: storage.Open}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if cfg != nil {
		log.Debug("config loaded", cfg.Summary()...)
	}
	return a, nil
}

// StorePath is the resource commands read and write.
func (a *App) StorePath() string { return a.storeCfg.Path }

// cycle runs fn inside one locked load-mutate-save cycle.
func (a *App) cycle(ctx context.Context, fn func(ctx context.Context, st storage.Store, reg *registry.Registry) error) error {
	st, err := a.openFor(a.storeCfg, a.log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	unlock, err := st.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	reg := registry.New(st.Load(ctx), st, a.regOpt, a.log)
	return fn(ctx, st, reg)
}

// Add creates a pending task with a unique pending priority.
func (a *App) Add(ctx context.Context, description string, priority int) (task.Task, error) {
	var out task.Task
	err := a.cycle(ctx, func(ctx context.Context, _ storage.Store, reg *registry.Registry) error {
		t, err := reg.Add(ctx, description, priority)
		out = t
		return err
	})
	return out, err
}

// RunAll drains every pending task in priority order.
func (a *App) RunAll(ctx context.Context) (scheduler.Report, error) {
	var rep scheduler.Report
	err := a.cycle(ctx, func(ctx context.Context, _ storage.Store, reg *registry.Registry) error {
		var err error
		rep, err = a.scheduler(reg).RunAll(ctx)
		return err
	})
	return rep, err
}

// Execute runs the single pending task holding priority.
func (a *App) Execute(ctx context.Context, priority int) (task.Task, error) {
	var out task.Task
	err := a.cycle(ctx, func(ctx context.Context, _ storage.Store, reg *registry.Registry) error {
		var err error
		out, err = a.scheduler(reg).ExecuteOne(ctx, priority)
		return err
	})
	return out, err
}

// ClearHistory empties the whole collection, pending tasks included.
func (a *App) ClearHistory(ctx context.Context) error {
	return a.cycle(ctx, func(ctx context.Context, st storage.Store, _ *registry.Registry) error {
		if err := st.Clear(ctx); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		a.log.Info("task history cleared", logx.String("path", st.Path()))
		return nil
	})
}

// View returns all tasks ordered by (priority, added_time).
//
// Reads take no lock: both drivers replace the collection atomically.
func (a *App) View(ctx context.Context) ([]task.Task, error) {
	st, err := a.openFor(a.storeCfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()
	return registry.New(st.Load(ctx), nil, a.regOpt, a.log).ViewAll(), nil
}

// Watch calls render with the current view, then again after every change
// to the store, until ctx is done.
func (a *App) Watch(ctx context.Context, render func([]task.Task)) error {
	tasks, err := a.View(ctx)
	if err != nil {
		return err
	}
	render(tasks)

	var mu sync.Mutex
	return storage.Watch(ctx, a.storeCfg.Path, a.log, func() {
		mu.Lock()
		defer mu.Unlock()
		tasks, err := a.View(ctx)
		if err != nil {
			a.log.Warn("refresh failed", logx.Err(err))
			return
		}
		render(tasks)
	})
}

func (a *App) scheduler(reg *registry.Registry) *scheduler.Scheduler {
	return scheduler.New(reg, a.exec, a.engineCfg, a.hooks, a.log)
}
