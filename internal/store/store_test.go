package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vidnote/vidnote/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "https://example.com/v.mp4")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID == "" || task.Status != types.TaskRunning {
		t.Fatalf("unexpected new task: %+v", task)
	}

	if err := s.FinishTask(ctx, task.ID, types.TaskSucceeded, "", "/out/note.md"); err != nil {
		t.Fatalf("finish task: %v", err)
	}

	tasks, err := s.RecentTasks(ctx, 10)
	if err != nil {
		t.Fatalf("recent tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	got := tasks[0]
	if got.ID != task.ID || got.Status != types.TaskSucceeded || got.NotePath != "/out/note.md" {
		t.Fatalf("unexpected task row: %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("finished_at not set")
	}
}

func TestRecentTasksOrderAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	// Same-second inserts; order among them is unspecified, so only check
	// the limit and that all rows round-trip.
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		task, err := s.CreateTask(ctx, "file.mp4")
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		seen[task.ID] = true
	}

	tasks, err := s.RecentTasks(ctx, 3)
	if err != nil {
		t.Fatalf("recent tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	for _, task := range tasks {
		if !seen[task.ID] {
			t.Fatalf("unknown task id %q", task.ID)
		}
	}
}

func TestSaveSelections(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "file.mp4")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	moments := []types.KeyMoment{
		{ID: "m001", Timestamp: 12.5, Rank: 1},
		{ID: "m002", Timestamp: 48.0, Rank: 2},
	}
	results := []types.SelectionResult{
		{MomentID: "m001", FrameIndex: 2, Method: types.MethodVision},
		{MomentID: "m002", FrameIndex: -1, Method: types.MethodFallback, Err: "no candidate frames"},
	}
	if err := s.SaveSelections(ctx, task.ID, moments, results); err != nil {
		t.Fatalf("save selections: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM selections WHERE task_id = ?`, task.ID).Scan(&n); err != nil {
		t.Fatalf("count selections: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d selection rows, want 2", n)
	}

	var (
		frameIndex int
		method     string
		ts         float64
	)
	err = s.db.QueryRow(`
		SELECT frame_index, method, timestamp_sec FROM selections
		WHERE task_id = ? AND moment_id = ?
	`, task.ID, "m002").Scan(&frameIndex, &method, &ts)
	if err != nil {
		t.Fatalf("query selection: %v", err)
	}
	if frameIndex != -1 || method != string(types.MethodFallback) || ts != 48.0 {
		t.Fatalf("unexpected selection row: index=%d method=%q ts=%v", frameIndex, method, ts)
	}

	// Saving again replaces instead of duplicating.
	if err := s.SaveSelections(ctx, task.ID, moments, results); err != nil {
		t.Fatalf("re-save selections: %v", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM selections WHERE task_id = ?`, task.ID).Scan(&n); err != nil {
		t.Fatalf("count selections: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d selection rows after re-save, want 2", n)
	}
}
