package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agent_checkpoints (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL UNIQUE,
	parent_checkpoint_id TEXT,
	checkpoint_data BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_checkpoints_thread
	ON agent_checkpoints(thread_id, created_at);
`

// SQLiteStore persists checkpoints to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a SQLite checkpoint database.
// The path should be a file path (e.g., "./checkpoints.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to ":memory:" would be a separate database.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_checkpoints
			(id, thread_id, checkpoint_id, parent_checkpoint_id, checkpoint_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cp.ID, cp.ThreadID, cp.CheckpointID, nullString(cp.ParentCheckpointID),
		[]byte(cp.Data), cp.CreatedAt.UTC().UnixNano())
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCheckpoint, cp.CheckpointID)
		}
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	cps, err := s.List(ctx, threadID, 1)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, ErrNotFound
	}
	return cps[0], nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, checkpoint_id, parent_checkpoint_id, checkpoint_data, created_at
		FROM agent_checkpoints
		WHERE thread_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, threadID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	cps := []*Checkpoint{}
	for rows.Next() {
		var (
			cp      Checkpoint
			parent  sql.NullString
			data    []byte
			created int64
		)
		if err := rows.Scan(&cp.ID, &cp.ThreadID, &cp.CheckpointID, &parent, &data, &created); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.ParentCheckpointID = parent.String
		cp.Data = data
		cp.CreatedAt = time.Unix(0, created).UTC()
		cps = append(cps, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return cps, nil
}

// DeleteThread implements Store.
func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func isSQLiteConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
