package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"tasksched/internal/task"
	logx "tasksched/pkg/logx"
)

var ErrNilExecutor = errors.New("task engine: nil executor")

// Run executes one task and records the outcome. A panic inside the
// executor is converted to an error so one bad task cannot abort a drain.
func Run(ctx context.Context, exec Executor, t task.Task, log logx.Logger) (item HistoryItem, err error) {
	item = HistoryItem{ID: t.ID, Description: t.Description, Priority: t.Priority, Started: time.Now()}
	if exec == nil {
		item.Error = ErrNilExecutor.Error()
		return item, ErrNilExecutor
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				if log.Enabled(logx.LevelError) {
					log.Error("task.panic", logx.String("id", t.ID), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}
		}()
		err = exec.Execute(ctx, t)
	}()

	item.Duration = time.Since(item.Started)
	if err != nil {
		item.Error = err.Error()
		log.Warn("task.failed", logx.String("id", t.ID), logx.Int("priority", t.Priority), logx.Err(err), logx.Duration("dur", item.Duration))
		return item, err
	}
	log.Info("task.completed", logx.String("id", t.ID), logx.Int("priority", t.Priority), logx.Duration("dur", item.Duration))
	return item, nil
}
