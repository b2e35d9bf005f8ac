package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned by [Store.Load] when no trained bundle exists for
// the requested user. Callers surface this as a distinct outcome from an
// UNKNOWN decision: one means "nothing to compare against", the other
// "compared but not confident".
var ErrNotFound = errors.New("model: not found")

// Store persists classifier bundles keyed by normalised user identifier.
type Store interface {
	// Load reads the trained bundle for user. Returns [ErrNotFound] when
	// the user has never been trained.
	Load(ctx context.Context, user string) (*Bundle, error)

	// Save atomically replaces the bundle for user. Training is never
	// incremental, so the previous bundle is always fully overwritten.
	Save(ctx context.Context, user string, b *Bundle) error

	// Delete removes the bundle. Deleting an absent bundle is not an error.
	Delete(ctx context.Context, user string) error
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore keeps each bundle msgpack-encoded at root/models/<user>.model.
// Writes go to a temporary file followed by a rename so that a half-written
// bundle is never observable.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating the models
// directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "models"), 0o755); err != nil {
		return nil, fmt.Errorf("model: create models dir: %w", err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) path(user string) string {
	return filepath.Join(s.root, "models", user+".model")
}

// Load implements [Store.Load].
func (s *FileStore) Load(ctx context.Context, user string) (*Bundle, error) {
	data, err := os.ReadFile(s.path(user))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("model: read %q: %w", user, err)
	}

	var b Bundle
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("model: decode %q: %w", user, err)
	}
	return &b, nil
}

// Save implements [Store.Save].
func (s *FileStore) Save(ctx context.Context, user string, b *Bundle) error {
	data, err := msgpack.Marshal(b)
	if err != nil {
		return fmt.Errorf("model: encode %q: %w", user, err)
	}

	path := s.path(user)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+user+"-*.tmp")
	if err != nil {
		return fmt.Errorf("model: temp file for %q: %w", user, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("model: write %q: %w", user, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("model: close %q: %w", user, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("model: replace %q: %w", user, err)
	}
	return nil
}

// Delete implements [Store.Delete].
func (s *FileStore) Delete(ctx context.Context, user string) error {
	err := os.Remove(s.path(user))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("model: delete %q: %w", user, err)
	}
	return nil
}
