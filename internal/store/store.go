// Package store persists task history in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vidnote/vidnote/internal/types"
)

type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default history database location.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vidnote", "history.sqlite")
}

// Open opens (creating if needed) the history database with WAL enabled.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			status      TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			note_path   TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			finished_at INTEGER
		);
		CREATE TABLE IF NOT EXISTS selections (
			task_id       TEXT NOT NULL REFERENCES tasks(id),
			moment_id     TEXT NOT NULL,
			timestamp_sec REAL NOT NULL,
			frame_index   INTEGER NOT NULL,
			method        TEXT NOT NULL,
			err           TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (task_id, moment_id)
		);
		CREATE TABLE IF NOT EXISTS capabilities (
			provider_id TEXT NOT NULL,
			model_name  TEXT NOT NULL,
			has_vision  INTEGER NOT NULL,
			confidence  TEXT NOT NULL,
			detected_at INTEGER NOT NULL,
			PRIMARY KEY (provider_id, model_name)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) CreateTask(ctx context.Context, source string) (types.Task, error) {
	task := types.Task{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    types.TaskRunning,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, source, status, created_at)
		VALUES (?, ?, ?, ?)
	`, task.ID, task.Source, string(task.Status), task.CreatedAt.Unix())
	if err != nil {
		return types.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *Store) FinishTask(ctx context.Context, id string, status types.TaskStatus, reason, notePath string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, reason = ?, note_path = ?, finished_at = ?
		WHERE id = ?
	`, string(status), reason, notePath, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return nil
}

func (s *Store) SaveSelections(ctx context.Context, taskID string, moments []types.KeyMoment, results []types.SelectionResult) error {
	tsByID := make(map[string]float64, len(moments))
	for _, m := range moments {
		tsByID[m.ID] = m.Timestamp
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range results {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO selections (task_id, moment_id, timestamp_sec, frame_index, method, err)
			VALUES (?, ?, ?, ?, ?, ?)
		`, taskID, r.MomentID, tsByID[r.MomentID], r.FrameIndex, string(r.Method), r.Err)
		if err != nil {
			return fmt.Errorf("insert selection: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) RecentTasks(ctx context.Context, limit int) ([]types.Task, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, status, reason, note_path, created_at, finished_at
		FROM tasks
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var (
			t          types.Task
			status     string
			createdAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Source, &status, &t.Reason, &t.NotePath, &createdAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = types.TaskStatus(status)
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		if finishedAt.Valid {
			t.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
