// Package checkpoint provides the append-only checkpoint log used to resume
// conversations. Checkpoints are grouped by thread; the newest checkpoint of
// a thread (by CreatedAt, ties broken by insertion order) is its latest.
package checkpoint

import (
	"context"
	"errors"
)

// DefaultListLimit is used by List when limit <= 0.
const DefaultListLimit = 10

// Store is an append-only log of checkpoints keyed by thread.
// Implementations must be safe for concurrent use. Concurrent writers to the
// same thread never overwrite each other.
type Store interface {
	// Put appends a checkpoint. Returns ErrDuplicateCheckpoint if the
	// CheckpointID (or ID) has been written before.
	Put(ctx context.Context, cp *Checkpoint) error

	// Latest returns the newest checkpoint for a thread.
	// Returns ErrNotFound if the thread has none.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// List returns up to limit checkpoints for a thread, newest first.
	// Returns an empty slice (not an error) for unknown threads.
	List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error)

	// DeleteThread removes every checkpoint of a thread. Retention only.
	DeleteThread(ctx context.Context, threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a thread has no checkpoints.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrDuplicateCheckpoint indicates a checkpoint ID was reused.
	ErrDuplicateCheckpoint = errors.New("checkpoint already exists")

	// ErrInvalidCheckpoint indicates a checkpoint is missing required fields.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
