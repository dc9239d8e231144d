// Package kv provides flat key-value backends for persisted inventory state.
package kv

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned when a key cannot be stored by a backend.
var ErrInvalidKey = errors.New("invalid key")

// Backend is a flat key-value storage. Values are opaque blobs.
// It abstracts the underlying medium, allowing for different implementations (e.g., in-memory, file, database).
type Backend interface {
	// Get returns the value stored under key.
	// The boolean is false if the key has never been written.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// SetMany replaces several keys at once.
	SetMany(ctx context.Context, entries map[string][]byte) error
}
