package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec      Record
	deadline time.Time
}

type memoryManager struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryManager constructs an in-memory Manager. It backs tests and the
// degraded no-persistence mode used when Redis is not configured; records
// then survive only within a single process.
func NewMemoryManager() Manager {
	return &memoryManager{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *memoryManager) Load(_ context.Context, sessionID string) Record {
	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()
	if !ok {
		return Record{}
	}
	if m.now().After(entry.deadline) {
		// Lazy expiry; the next Save overwrites the stale entry anyway.
		m.mu.Lock()
		delete(m.entries, sessionID)
		m.mu.Unlock()
		return Record{}
	}
	return entry.rec
}

func (m *memoryManager) Save(_ context.Context, sessionID string, rec Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = memoryEntry{rec: rec, deadline: m.now().Add(ttl)}
	return nil
}

func (m *memoryManager) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
	return nil
}

func (m *memoryManager) Mode() string {
	return "memory"
}
