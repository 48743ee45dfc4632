package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tasksched/internal/task"
)

func addCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add <description> <priority>",
		Short: "Add a task with a unique priority (lower number = higher priority)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := strings.TrimSpace(args[0])
			if desc == "" {
				return fmt.Errorf("%w: description must not be empty", errUsage)
			}
			prio, err := parsePriority(args[1])
			if err != nil {
				return err
			}
			t, err := e.app.Add(cmd.Context(), desc, prio)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %q (priority %d) added with ID: %s\n", t.Description, t.Priority, t.ID)
			return nil
		},
	}
}

func runAllCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run-all",
		Short: "Run all pending tasks in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rep, err := e.app.RunAll(cmd.Context())
			if rep.Pending == 0 {
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "No pending tasks to run. Add tasks with 'tasksched add' first.")
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, runSummary(rep.Processed, rep.Failed, rep.Pending))
			return err
		},
	}
}

func executeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <priority>",
		Short: "Execute the single pending task holding a priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prio, err := parsePriority(args[0])
			if err != nil {
				return err
			}
			t, err := e.app.Execute(cmd.Context(), prio)
			if err != nil {
				return err
			}
			if t.Status == task.StatusFailed {
				return fmt.Errorf("task %q failed: %s", t.Description, t.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task execution for priority %d finished.\n", prio)
			return nil
		},
	}
}

func viewCmd(e *env) *cobra.Command {
	var (
		asJSON bool
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "View all tasks (pending and finished), sorted by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			render := func(tasks []task.Task) {
				if asJSON {
					b, err := json.MarshalIndent(tasks, "", "  ")
					if err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
						return
					}
					fmt.Fprintln(out, string(b))
					return
				}
				fmt.Fprint(out, renderTasks(tasks))
			}
			if watch {
				return e.app.Watch(cmd.Context(), render)
			}
			tasks, err := e.app.View(cmd.Context())
			if err != nil {
				return err
			}
			render(tasks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-render whenever the task store changes")
	return cmd
}

func clearHistoryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-history",
		Short: "Remove all tasks (pending and finished)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.app.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task history cleared. All tasks removed from %s.\n", e.app.StorePath())
			return nil
		},
	}
}

func parsePriority(raw string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: priority %q is not an integer", errUsage, raw)
	}
	return p, nil
}
