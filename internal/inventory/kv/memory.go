package kv

import (
	"context"
	"slices"
	"sync"
)

// Memory implements Backend using an in-memory map.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	return m.SetMany(ctx, map[string][]byte{key: value})
}

// SetMany stores all entries under a single lock.
func (m *Memory) SetMany(ctx context.Context, entries map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for key := range entries {
		if key == "" {
			return ErrInvalidKey
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range entries {
		m.entries[key] = slices.Clone(value)
	}
	return nil
}
