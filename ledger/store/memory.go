// Package store provides SnapshotSlot implementations.
package store

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY SLOT - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	payload []byte
	ok      bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return nil, false, nil
	}
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out, true, nil
}

func (m *Memory) Save(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = make([]byte, len(payload))
	copy(m.payload, payload)
	m.ok = true
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = nil
	m.ok = false
	return nil
}
