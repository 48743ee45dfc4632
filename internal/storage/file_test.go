package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasksched/internal/task"
	logx "tasksched/pkg/logx"
)

func openTestFile(t *testing.T, log logx.Logger) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	st, err := Open(Config{Driver: "file", Path: path}, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func sampleTasks() []task.Task {
	base := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	done := base.Add(time.Minute)
	return []task.Task{
		{ID: "b", Description: "Write report", Priority: 2, AddedTime: base, Status: task.StatusPending},
		{ID: "a", Description: "Send email", Priority: 1, AddedTime: base.Add(time.Second), Status: task.StatusCompleted, CompletedTime: &done},
		{ID: "c", Description: "Deploy", Priority: 3, AddedTime: base.Add(2 * time.Second), Status: task.StatusFailed, CompletedTime: &done, Error: "boom"},
	}
}

func TestFileLoadMissing(t *testing.T) {
	t.Parallel()
	st, _ := openTestFile(t, logx.Nop())
	got := st.Load(context.Background())
	if got == nil || len(got) != 0 {
		t.Fatalf("Load on missing file = %v, want empty non-nil slice", got)
	}
}

func TestFileLoadCorrupt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{not json"},
		{name: "object instead of list", body: `{"id":"x"}`},
		{name: "unknown status", body: `[{"id":"x","description":"d","priority":1,"added_time":"2024-01-01T00:00:00Z","status":"running"}]`},
		{name: "missing description", body: `[{"id":"x","description":"","priority":1,"added_time":"2024-01-01T00:00:00Z","status":"pending"}]`},
		{name: "duplicate id", body: `[{"id":"x","description":"d","priority":1,"added_time":"2024-01-01T00:00:00Z","status":"pending"},{"id":"x","description":"e","priority":2,"added_time":"2024-01-01T00:00:00Z","status":"pending"}]`},
		{name: "empty file", body: "   \n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			st, path := openTestFile(t, logx.NewWriter(&buf, "debug"))
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			got := st.Load(context.Background())
			if len(got) != 0 {
				t.Fatalf("Load = %d tasks, want 0", len(got))
			}
			if !strings.Contains(buf.String(), "starting with an empty task list") {
				t.Fatalf("expected diagnostic log, got %q", buf.String())
			}
		})
	}
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()
	st, path := openTestFile(t, logx.Nop())
	ctx := context.Background()
	want := sampleTasks()

	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	got := st.Load(ctx)
	if len(got) != len(want) {
		t.Fatalf("Load = %d tasks, want %d", len(got), len(want))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Description != w.Description || g.Priority != w.Priority || g.Status != w.Status || g.Error != w.Error {
			t.Fatalf("task %d = %+v, want %+v", i, g, w)
		}
		if !g.AddedTime.Equal(w.AddedTime) {
			t.Fatalf("task %d added_time = %v, want %v", i, g.AddedTime, w.AddedTime)
		}
		if (g.CompletedTime == nil) != (w.CompletedTime == nil) {
			t.Fatalf("task %d completed_time presence mismatch", i)
		}
		if w.CompletedTime != nil && !g.CompletedTime.Equal(*w.CompletedTime) {
			t.Fatalf("task %d completed_time = %v, want %v", i, g.CompletedTime, w.CompletedTime)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Count(string(raw), `"completed_time"`) != 2 {
		t.Fatalf("completed_time must only be written for finished tasks:\n%s", raw)
	}
}

func TestFileLoadLegacyTimestamps(t *testing.T) {
	t.Parallel()
	st, path := openTestFile(t, logx.Nop())
	body := `[
    {"id": "1", "description": "Write report", "priority": 2, "added_time": "2024-05-01T10:00:00.123456", "status": "pending"},
    {"id": "2", "description": "Send email", "priority": 1, "added_time": "2024-05-01T10:00:01.000001", "status": "completed", "completed_time": "2024-05-01T10:05:00.5"}
]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got := st.Load(context.Background())
	if len(got) != 2 {
		t.Fatalf("Load = %d tasks, want 2", len(got))
	}
	if got[1].CompletedTime == nil || got[1].Status != task.StatusCompleted {
		t.Fatalf("unexpected second task: %+v", got[1])
	}
}

func TestFileClear(t *testing.T) {
	t.Parallel()
	st, path := openTestFile(t, logx.Nop())
	ctx := context.Background()
	if err := st.Save(ctx, sampleTasks()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := st.Load(ctx); len(got) != 0 {
		t.Fatalf("Load after Clear = %d tasks, want 0", len(got))
	}
	raw, _ := os.ReadFile(path)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("cleared file = %q, want []", raw)
	}
}

func TestFileSaveAfterClose(t *testing.T) {
	t.Parallel()
	st, _ := openTestFile(t, logx.Nop())
	_ = st.Close()
	if err := st.Save(context.Background(), nil); err != ErrClosed {
		t.Fatalf("Save after Close = %v, want ErrClosed", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if KnownDriver("postgres") {
		t.Fatal("KnownDriver(postgres) = true")
	}
	if !KnownDriver("SQLite") {
		t.Fatal("KnownDriver(SQLite) = false")
	}
}
