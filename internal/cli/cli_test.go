package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"tasksched/internal/storage"
	"tasksched/internal/task"
)

type harness struct {
	cfgPath   string
	storePath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "tasksched.yaml")
	body := `logging:
  level: error
  console: false
scheduler:
  min_work: 1ms
  max_work: 1ms
`
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return &harness{cfgPath: cfg, storePath: filepath.Join(dir, "tasks.json")}
}

func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", h.cfgPath, "--store", h.storePath}, args...)
	err := Execute(context.Background(), "test", full, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v (stderr %q)", args, err, errOut)
	}
	return out
}

func TestAddAndView(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	out := h.mustRun(t, "add", "Write report", "2")
	if !strings.Contains(out, `Task "Write report" (priority 2) added with ID: `) {
		t.Errorf("unexpected add output: %q", out)
	}
	h.mustRun(t, "add", "Send email", "1")

	view := h.mustRun(t, "view")
	if !strings.HasPrefix(view, "--- All Tasks ---") {
		t.Fatalf("unexpected view output: %q", view)
	}
	first := strings.Index(view, "Description: Send email")
	second := strings.Index(view, "Description: Write report")
	if first < 0 || second < 0 || first > second {
		t.Errorf("expected priority order in view, got:\n%s", view)
	}
	if got := strings.Count(view, "Status: PENDING"); got != 2 {
		t.Errorf("expected 2 pending tasks, got %d", got)
	}
}

func TestAddDuplicatePriority(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.mustRun(t, "add", "Task A", "5")
	_, errOut, err := h.run(t, "add", "Task B", "5")
	if !errors.Is(err, task.ErrDuplicatePriority) {
		t.Fatalf("expected duplicate priority error, got %v", err)
	}
	if !strings.Contains(errOut, "Error: a pending task with priority 5 already exists") || !strings.Contains(errOut, `"Task A"`) {
		t.Errorf("unexpected stderr: %q", errOut)
	}

	var tasks []task.Task
	if err := json.Unmarshal([]byte(h.mustRun(t, "view", "--json")), &tasks); err != nil {
		t.Fatalf("Failed to decode view --json: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Description != "Task A" {
		t.Errorf("expected only Task A to be stored, got %+v", tasks)
	}
}

func TestArgumentErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"non-integer priority", []string{"add", "Task", "high"}, `priority "high" is not an integer`},
		{"blank description", []string{"add", "   ", "1"}, "description must not be empty"},
		{"execute non-integer", []string{"execute", "x"}, `priority "x" is not an integer`},
		{"missing args", []string{"add", "only-description"}, "accepts 2 arg(s)"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			_, errOut, err := h.run(t, tc.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(errOut, tc.want) {
				t.Errorf("stderr %q does not contain %q", errOut, tc.want)
			}
			if _, statErr := os.Stat(h.storePath); !os.IsNotExist(statErr) {
				t.Errorf("expected no store to be written, stat err = %v", statErr)
			}
		})
	}
}

func TestRunAllEmpty(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	out := h.mustRun(t, "run-all")
	if !strings.Contains(out, "No pending tasks to run.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRunAllThenView(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.mustRun(t, "add", "Write report", "2")
	h.mustRun(t, "add", "Send email", "1")

	out := h.mustRun(t, "run-all")
	emailAt := strings.Index(out, "Executing task (priority 1): Send email")
	reportAt := strings.Index(out, "Executing task (priority 2): Write report")
	if emailAt < 0 || reportAt < 0 || emailAt > reportAt {
		t.Errorf("expected tasks to run in priority order, got:\n%s", out)
	}
	if !strings.Contains(out, "Scheduler finished: 2 of 2 tasks processed.") {
		t.Errorf("missing summary in %q", out)
	}

	view := h.mustRun(t, "view")
	if got := strings.Count(view, "Status: COMPLETED"); got != 2 {
		t.Errorf("expected 2 completed tasks, got %d in:\n%s", got, view)
	}
	if !strings.Contains(view, "(waited less than a second)") {
		t.Errorf("expected wait time in view, got:\n%s", view)
	}

	// A priority freed by completion can be reused.
	h.mustRun(t, "add", "Follow up", "1")
}

func TestExecute(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.mustRun(t, "add", "Task A", "5")
	h.mustRun(t, "add", "Task B", "7")

	out := h.mustRun(t, "execute", "7")
	if !strings.Contains(out, "Task execution for priority 7 finished.") {
		t.Errorf("unexpected output: %q", out)
	}

	var tasks []task.Task
	if err := json.Unmarshal([]byte(h.mustRun(t, "view", "--json")), &tasks); err != nil {
		t.Fatalf("Failed to decode view --json: %v", err)
	}
	status := map[string]task.Status{}
	for _, tk := range tasks {
		status[tk.Description] = tk.Status
	}
	if status["Task A"] != task.StatusPending || status["Task B"] != task.StatusCompleted {
		t.Errorf("unexpected statuses: %v", status)
	}
}

func TestExecuteMissingPriority(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.mustRun(t, "add", "Task A", "5")
	before, err := os.ReadFile(h.storePath)
	if err != nil {
		t.Fatalf("Failed to read store: %v", err)
	}

	_, errOut, err := h.run(t, "execute", "99")
	if !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if strings.TrimSpace(errOut) != "Error: no pending task with priority 99" {
		t.Errorf("unexpected stderr: %q", errOut)
	}

	after, err := os.ReadFile(h.storePath)
	if err != nil {
		t.Fatalf("Failed to read store: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("store changed after a failed execute")
	}
}

func TestClearHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.mustRun(t, "add", "Task A", "1")
	h.mustRun(t, "run-all")
	h.mustRun(t, "add", "Task B", "2")

	out := h.mustRun(t, "clear-history")
	if !strings.Contains(out, "Task history cleared.") {
		t.Errorf("unexpected output: %q", out)
	}
	if view := h.mustRun(t, "view"); !strings.Contains(view, "No tasks found.") {
		t.Errorf("expected empty view, got %q", view)
	}
	if got := strings.TrimSpace(h.mustRun(t, "view", "--json")); got != "[]" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestViewIsStable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.mustRun(t, "add", "Task A", "3")
	h.mustRun(t, "add", "Task B", "1")
	h.mustRun(t, "execute", "1")

	first := h.mustRun(t, "view")
	second := h.mustRun(t, "view")
	if first != second {
		t.Errorf("view output changed without a mutation:\n%s\n---\n%s", first, second)
	}
}

func TestSQLiteDriverFlag(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.storePath = filepath.Join(filepath.Dir(h.storePath), "tasks.db")

	h.mustRun(t, "--driver", "sqlite", "add", "Task A", "1")
	out := h.mustRun(t, "--driver", "sqlite", "view")
	if !strings.Contains(out, "Description: Task A") {
		t.Errorf("unexpected view output: %q", out)
	}
}

func TestUnknownDriver(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, errOut, err := h.run(t, "--driver", "postgres", "view")
	if err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
	if !strings.Contains(errOut, `unknown driver "postgres"`) {
		t.Errorf("unexpected stderr: %q", errOut)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	dup := &task.DuplicatePriorityError{Priority: 4, Conflict: task.Task{Description: "Task A"}}
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"duplicate", fmt.Errorf("add: %w", dup), `a pending task with priority 4 already exists ("Task A")`},
		{"lock", fmt.Errorf("lock: %w", storage.ErrLockTimeout), "the task store is busy"},
		{"persist", fmt.Errorf("%w: %w", task.ErrPersist, errors.New("disk full")), "disk full"},
		{"plain", errors.New("boom"), "boom"},
	}
	for _, tc := range cases {
		if got := describe(tc.err); !strings.Contains(got, tc.want) {
			t.Errorf("%s: describe() = %q, want it to contain %q", tc.name, got, tc.want)
		}
	}
}

func TestWaited(t *testing.T) {
	t.Parallel()

	added := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if got := waited(added, added.Add(300*time.Millisecond)); got != "less than a second" {
		t.Errorf("waited() = %q", got)
	}
	if got := waited(added, added.Add(3*time.Minute)); got != "3 minutes" {
		t.Errorf("waited() = %q", got)
	}
}

func TestNegativePriority(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	out := h.mustRun(t, "add", "urgent", "-1")
	if !strings.Contains(out, `Task "urgent" (priority -1) added with ID: `) {
		t.Errorf("unexpected add output: %q", out)
	}
	h.mustRun(t, "add", "later", "3")

	view := h.mustRun(t, "view")
	if !strings.Contains(view, "Priority: -1") {
		t.Fatalf("negative priority missing from view:\n%s", view)
	}
	if strings.Index(view, "Description: urgent") > strings.Index(view, "Description: later") {
		t.Errorf("priority -1 should sort before 3:\n%s", view)
	}

	if _, _, err := h.run(t, "add", "also urgent", "-1"); !errors.Is(err, task.ErrDuplicatePriority) {
		t.Errorf("duplicate negative priority err = %v", err)
	}

	out = h.mustRun(t, "execute", "-1", "--verbose=false")
	if !strings.Contains(out, "Task execution for priority -1 finished.") {
		t.Errorf("unexpected execute output: %q", out)
	}
}

func TestWithNegativeArgs(t *testing.T) {
	t.Parallel()
	root, _ := newRoot("test")

	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"add", []string{"add", "urgent", "-1"}, []string{"add", "urgent", "--", "-1"}},
		{"execute", []string{"execute", "-3"}, []string{"execute", "--", "-3"}},
		{"flag values stay in front", []string{"--store", "/tmp/t.json", "execute", "-3"}, []string{"--store", "/tmp/t.json", "execute", "--", "-3"}},
		{"flags after the number", []string{"execute", "-3", "--driver", "sqlite"}, []string{"execute", "--driver", "sqlite", "--", "-3"}},
		{"bool shorthand", []string{"-v", "add", "x", "-2"}, []string{"-v", "add", "x", "--", "-2"}},
		{"positive untouched", []string{"add", "x", "5"}, []string{"add", "x", "5"}},
		{"explicit dash dash untouched", []string{"add", "x", "--", "-2"}, []string{"add", "x", "--", "-2"}},
		{"negative flag value untouched", []string{"-s", "-1", "view"}, []string{"-s", "-1", "view"}},
	}
	for _, tc := range cases {
		if got := withNegativeArgs(root, tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: withNegativeArgs(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestSQLiteCorruptStoreIsRecovered(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.storePath = filepath.Join(filepath.Dir(h.storePath), "garbage.db")
	if err := os.WriteFile(h.storePath, bytes.Repeat([]byte("not a database\n"), 300), 0o644); err != nil {
		t.Fatalf("Failed to write garbage store: %v", err)
	}

	if view := h.mustRun(t, "--driver", "sqlite", "view"); !strings.Contains(view, "No tasks found.") {
		t.Errorf("expected empty view for a corrupt store, got %q", view)
	}
	h.mustRun(t, "--driver", "sqlite", "add", "x", "1")
	if view := h.mustRun(t, "--driver", "sqlite", "view"); !strings.Contains(view, "Description: x") {
		t.Errorf("expected the new task after recovery, got %q", view)
	}
}
