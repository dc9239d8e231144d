package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]*$`)

// File implements Backend with one JSON file per key inside a directory.
// Every key is replaced atomically through a temporary file and a rename.
type File struct {
	mu  sync.Mutex
	dir string
}

// NewFile creates a file backend rooted at dir, creating the directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

// Get reads the file stored for key.
func (f *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return data, true, nil
}

// Set replaces the file stored for key.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	return f.SetMany(ctx, map[string][]byte{key: value})
}

// SetMany writes every value to a temporary file first and renames them into place
// only when all writes succeeded.
func (f *File) SetMany(ctx context.Context, entries map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		if _, err := f.path(key); err != nil {
			return err
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)

	f.mu.Lock()
	defer f.mu.Unlock()

	temps := make(map[string]string, len(keys))
	defer func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}()
	for _, key := range keys {
		tmp, err := f.writeTemp(key, entries[key])
		if err != nil {
			return err
		}
		temps[key] = tmp
	}
	for _, key := range keys {
		path, _ := f.path(key)
		if err := os.Rename(temps[key], path); err != nil {
			return fmt.Errorf("failed to replace key %s: %w", key, err)
		}
		delete(temps, key)
	}
	return nil
}

func (f *File) writeTemp(key string, value []byte) (string, error) {
	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for key %s: %w", key, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to write key %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to sync key %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to close key %s: %w", key, err)
	}
	return name, nil
}

func (f *File) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}
