package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tasksched/internal/storage"
	"tasksched/internal/task"
	"tasksched/internal/task/engine"
	"tasksched/internal/task/scheduler"
)

const timeLayout = "2006-01-02 15:04:05"

func progressHooks(out io.Writer) scheduler.Hooks {
	return scheduler.Hooks{
		OnStart: func(t task.Task) {
			fmt.Fprintf(out, "\nExecuting task (priority %d): %s\n", t.Priority, t.Description)
		},
		OnDone: func(t task.Task, item engine.HistoryItem) {
			if t.Status == task.StatusFailed {
				fmt.Fprintf(out, "Task %q failed: %s\n", t.Description, t.Error)
				return
			}
			fmt.Fprintf(out, "Task %q completed.\n", t.Description)
		},
	}
}

func runSummary(processed, failed, pending int) string {
	s := fmt.Sprintf("Scheduler finished: %d of %d %s processed", processed, pending, plural(pending, "task", "tasks"))
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	return s + "."
}

// renderTasks prints the view listing. Output only depends on the tasks, so
// two renders of an unchanged collection are identical.
func renderTasks(tasks []task.Task) string {
	if len(tasks) == 0 {
		return "No tasks found. Add some first!\n"
	}
	var b strings.Builder
	b.WriteString("--- All Tasks ---\n")
	for i, t := range tasks {
		fmt.Fprintf(&b, "--- Task %d ---\n", i+1)
		fmt.Fprintf(&b, "ID: %s\n", t.ID)
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
		fmt.Fprintf(&b, "Priority: %d\n", t.Priority)
		fmt.Fprintf(&b, "Added: %s\n", t.AddedTime.Local().Format(timeLayout))
		fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(t.Status)))
		if t.CompletedTime != nil {
			fmt.Fprintf(&b, "Finished: %s (waited %s)\n", t.CompletedTime.Local().Format(timeLayout), waited(t.AddedTime, *t.CompletedTime))
		}
		if t.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", t.Error)
		}
		b.WriteString(strings.Repeat("-", 20))
		b.WriteString("\n")
	}
	return b.String()
}

func waited(added, finished time.Time) string {
	if finished.Sub(added) < time.Second {
		return "less than a second"
	}
	return strings.TrimSpace(humanize.RelTime(added, finished, "", ""))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// describe turns internal errors into the message printed to the user.
func describe(err error) string {
	var dup *task.DuplicatePriorityError
	switch {
	case errors.As(err, &dup):
		return fmt.Sprintf("a pending task with priority %d already exists (%q). Please choose a unique priority.", dup.Priority, dup.Conflict.Description)
	case errors.Is(err, task.ErrNotFound):
		return strings.TrimPrefix(err.Error(), task.ErrNotFound.Error()+": ")
	case errors.Is(err, storage.ErrLockTimeout):
		return "the task store is busy (another tasksched command holds the lock); try again"
	case errors.Is(err, task.ErrPersist):
		return "could not save tasks, no change was applied: " + err.Error()
	case errors.Is(err, errUsage):
		return strings.TrimPrefix(err.Error(), errUsage.Error()+": ")
	default:
		return err.Error()
	}
}
