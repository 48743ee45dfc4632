package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tasksched/internal/task"
	logx "tasksched/pkg/logx"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps the collection in the tasks table; position preserves
// insertion order.
//
// A file at path that is not a SQLite database is treated like a corrupt
// JSON file: Load reports an empty collection and the next Save replaces
// the file.
type sqliteStore struct {
	db     *sql.DB
	cfg    Config
	log    logx.Logger
	path   string
	closed bool
	broken error

	*cycleLock
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	st := &sqliteStore{
		cfg:       cfg,
		log:       log.With(logx.String("path", path)),
		path:      path,
		cycleLock: newCycleLock(path, cfg.LockTimeout),
	}
	if err := st.connect(context.Background()); err != nil {
		if !isCorrupt(err) {
			return nil, err
		}
		st.broken = err
		st.log.Error("tasks database is corrupt; starting with an empty task list", logx.Err(err))
	}
	return st, nil
}

func (s *sqliteStore) connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if s.cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", s.cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

// recreate drops a corrupt database file and starts a fresh one.
func (s *sqliteStore) recreate(ctx context.Context) error {
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove corrupt database: %w", err)
		}
	}
	if err := s.connect(ctx); err != nil {
		return err
	}
	s.log.Warn("corrupt tasks database replaced", logx.String("cause", s.broken.Error()))
	s.broken = nil
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(b))
	return err
}

// isCorrupt reports whether err means the file is not a usable database.
func isCorrupt(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed")
}

func (s *sqliteStore) Path() string { return s.path }

func (s *sqliteStore) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) []task.Task {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.broken != nil || s.db == nil {
		return []task.Task{}
	}
	recs, err := s.query(ctx)
	if err != nil {
		s.log.Error("task table unreadable; starting with an empty task list", logx.Err(err))
		return []task.Task{}
	}
	tasks, err := fromRecords(recs)
	if err != nil {
		s.log.Error("task table holds invalid records; starting with an empty task list", logx.Err(err))
		return []task.Task{}
	}
	s.log.Debug("tasks loaded", logx.Int("count", len(tasks)))
	return tasks
}

func (s *sqliteStore) query(ctx context.Context) ([]record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, priority, added_time, status, completed_time, error
		 FROM tasks ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []record
	for rows.Next() {
		var (
			r         record
			completed sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Description, &r.Priority, &r.AddedTime, &r.Status, &completed, &errText); err != nil {
			return nil, err
		}
		if completed.Valid {
			v := completed.String
			r.CompletedTime = &v
		}
		r.Error = errText.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *sqliteStore) Save(ctx context.Context, tasks []task.Task) error {
	if s == nil || s.closed {
		return ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.broken != nil {
		if err := s.recreate(ctx); err != nil {
			return err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks(position, id, description, priority, added_time, status, completed_time, error)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range toRecords(tasks) {
		var completed any
		if r.CompletedTime != nil {
			completed = *r.CompletedTime
		}
		if _, err := stmt.ExecContext(ctx, i, r.ID, r.Description, r.Priority, r.AddedTime, r.Status, completed, nullStr(r.Error)); err != nil {
			return fmt.Errorf("insert task %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("tasks saved", logx.Int("count", len(tasks)))
	return nil
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	return s.Save(ctx, nil)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
