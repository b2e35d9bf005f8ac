package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by [Store.Load] when no profile document exists
// for the requested user.
var ErrNotFound = errors.New("profile: not found")

// Store persists profile documents and owns the stored-audio file layout.
// All implementations must be safe for concurrent use across users; callers
// are responsible for serialising operations on the same user.
type Store interface {
	// Load reads the profile for user. Returns [ErrNotFound] when the user
	// has never been persisted.
	Load(ctx context.Context, user string) (*Profile, error)

	// LoadOrCreate reads the profile for user, returning a fresh empty
	// profile when none exists. Profiles are created lazily; nothing is
	// written until the first Save.
	LoadOrCreate(ctx context.Context, user string) (*Profile, error)

	// Save atomically replaces the profile document for user.
	Save(ctx context.Context, user string, p *Profile) error

	// Delete removes the profile document. Deleting an absent profile is
	// not an error.
	Delete(ctx context.Context, user string) error

	// Users lists all users that currently have a profile document.
	Users(ctx context.Context) ([]string, error)

	// NewAudioPath reserves a unique path for one new capture under the
	// user/label audio directory, creating the directory as needed.
	NewAudioPath(user, label string) (string, error)

	// ListAudio returns the stored audio files for user/label.
	ListAudio(user, label string) ([]string, error)

	// DeleteAudio removes all stored audio for user/label.
	DeleteAudio(user, label string) error

	// DeleteUserAudio removes the user's entire audio directory.
	DeleteUserAudio(user string) error
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore keeps each profile as an indented JSON document under
// root/profiles/<user>.json and stored audio under
// root/audio/<user>/<label>/<uuid>.wav. Writes go to a temporary file in the
// same directory followed by a rename, so a half-written document is never
// observable.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating the profiles and
// audio directories when missing.
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"profiles", "audio"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("profile: create %s dir: %w", sub, err)
		}
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) profilePath(user string) string {
	return filepath.Join(s.root, "profiles", user+".json")
}

func (s *FileStore) audioDir(user string) string {
	return filepath.Join(s.root, "audio", user)
}

// Load implements [Store.Load].
func (s *FileStore) Load(ctx context.Context, user string) (*Profile, error) {
	data, err := os.ReadFile(s.profilePath(user))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: read %q: %w", user, err)
	}

	p := New()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("profile: decode %q: %w", user, err)
	}
	if p.Actions == nil {
		p.Actions = make(map[string]string)
	}
	return p, nil
}

// LoadOrCreate implements [Store.LoadOrCreate].
func (s *FileStore) LoadOrCreate(ctx context.Context, user string) (*Profile, error) {
	p, err := s.Load(ctx, user)
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	return p, err
}

// Save implements [Store.Save].
func (s *FileStore) Save(ctx context.Context, user string, p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: encode %q: %w", user, err)
	}

	path := s.profilePath(user)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+user+"-*.tmp")
	if err != nil {
		return fmt.Errorf("profile: temp file for %q: %w", user, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("profile: write %q: %w", user, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("profile: close %q: %w", user, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("profile: replace %q: %w", user, err)
	}
	return nil
}

// Delete implements [Store.Delete].
func (s *FileStore) Delete(ctx context.Context, user string) error {
	err := os.Remove(s.profilePath(user))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("profile: delete %q: %w", user, err)
	}
	return nil
}

// Users implements [Store.Users].
func (s *FileStore) Users(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "profiles"))
	if err != nil {
		return nil, fmt.Errorf("profile: list users: %w", err)
	}
	var users []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		users = append(users, strings.TrimSuffix(name, ".json"))
	}
	return users, nil
}

// NewAudioPath implements [Store.NewAudioPath]. File names are UUIDs rather
// than sequential counters so that concurrent writers can never collide.
func (s *FileStore) NewAudioPath(user, label string) (string, error) {
	dir := filepath.Join(s.audioDir(user), label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("profile: create audio dir %q/%q: %w", user, label, err)
	}
	return filepath.Join(dir, uuid.NewString()+".wav"), nil
}

// ListAudio implements [Store.ListAudio].
func (s *FileStore) ListAudio(user, label string) ([]string, error) {
	dir := filepath.Join(s.audioDir(user), label)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: list audio %q/%q: %w", user, label, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wav") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// DeleteAudio implements [Store.DeleteAudio].
func (s *FileStore) DeleteAudio(user, label string) error {
	if err := os.RemoveAll(filepath.Join(s.audioDir(user), label)); err != nil {
		return fmt.Errorf("profile: delete audio %q/%q: %w", user, label, err)
	}
	return nil
}

// DeleteUserAudio implements [Store.DeleteUserAudio].
func (s *FileStore) DeleteUserAudio(user string) error {
	if err := os.RemoveAll(s.audioDir(user)); err != nil {
		return fmt.Errorf("profile: delete audio %q: %w", user, err)
	}
	return nil
}
