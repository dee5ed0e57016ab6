package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory checkpoint store for tests and single-process use.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]storedCheckpoint
	ids     map[string]struct{}
	seq     uint64
	closed  bool
}

type storedCheckpoint struct {
	cp  *Checkpoint
	seq uint64
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]storedCheckpoint),
		ids:     make(map[string]struct{}),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	idKey, cpKey := "id:"+cp.ID, "cp:"+cp.CheckpointID
	if _, ok := m.ids[idKey]; ok {
		return ErrDuplicateCheckpoint
	}
	if _, ok := m.ids[cpKey]; ok {
		return ErrDuplicateCheckpoint
	}
	m.ids[idKey] = struct{}{}
	m.ids[cpKey] = struct{}{}

	m.seq++
	m.threads[cp.ThreadID] = append(m.threads[cp.ThreadID], storedCheckpoint{cp: cp.Clone(), seq: m.seq})
	return nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	cps, err := m.List(ctx, threadID, 1)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, ErrNotFound
	}
	return cps[0], nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, threadID string, limit int) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	stored := append([]storedCheckpoint(nil), m.threads[threadID]...)
	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i], stored[j]
		if !a.cp.CreatedAt.Equal(b.cp.CreatedAt) {
			return a.cp.CreatedAt.After(b.cp.CreatedAt)
		}
		return a.seq > b.seq
	})

	limit = normalizeLimit(limit)
	if len(stored) > limit {
		stored = stored[:limit]
	}

	out := make([]*Checkpoint, len(stored))
	for i, s := range stored {
		out[i] = s.cp.Clone()
	}
	return out, nil
}

// DeleteThread implements Store.
func (m *MemoryStore) DeleteThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for _, s := range m.threads[threadID] {
		delete(m.ids, "id:"+s.cp.ID)
		delete(m.ids, "cp:"+s.cp.CheckpointID)
	}
	delete(m.threads, threadID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.threads = nil
	m.ids = nil
	return nil
}

// Len returns the total number of checkpoints across all threads.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, t := range m.threads {
		n += len(t)
	}
	return n
}
