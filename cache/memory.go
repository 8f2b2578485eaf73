package cache

import (
	"context"
	"sync"
)

// MemoryTable is an in-memory memo table.
// Memoized keys are lost when the process exits; useful for tests and
// single-shot tools.
type MemoryTable struct {
	mu      sync.RWMutex
	entries map[memoKey]Key
}

type memoKey struct {
	id     Identity
	digest string
}

// NewMemoryTable creates an empty in-memory memo table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		entries: make(map[memoKey]Key),
	}
}

// Lookup returns the key memoized for digest, if any.
func (t *MemoryTable) Lookup(_ context.Context, id Identity, digest string) (Key, bool, error) {
	t.mu.RLock()
	key, ok := t.entries[memoKey{id: id, digest: digest}]
	t.mu.RUnlock()
	return key, ok, nil
}

// Store records key for digest unless a key is already recorded.
// The recorded key is returned.
func (t *MemoryTable) Store(_ context.Context, id Identity, digest string, key Key) (Key, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	mk := memoKey{id: id, digest: digest}
	if existing, ok := t.entries[mk]; ok {
		return existing, nil
	}
	t.entries[mk] = key
	return key, nil
}

// Len returns the number of memoized keys.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Ensure MemoryTable implements Table
var _ Table = (*MemoryTable)(nil)
