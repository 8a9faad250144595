package cache

import (
	"sync"

	"github.com/opencontainers/go-digest"
)

// Memory is a Backend that keeps archives in memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[digest.Digest]memoryEntry
}

type memoryEntry struct {
	rec     Record
	content []byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{entries: make(map[digest.Digest]memoryEntry)}
}

// Get implements Backend.
func (m *Memory) Get(fingerprint digest.Digest) (Record, []byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[fingerprint]
	m.mu.RUnlock()
	if !ok {
		return Record{}, nil, false
	}
	return e.rec, e.content, true
}

// Put implements Backend.
func (m *Memory) Put(rec Record, content []byte) error {
	if err := validate(rec, content); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[rec.Fingerprint] = memoryEntry{rec: rec, content: content}
	return nil
}

// Len returns the number of stored archives.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
