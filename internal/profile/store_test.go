package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	p := New()
	p.AddExample("/data/audio/alice/lights_on/a.wav", "lights_on")
	p.AddExample("/data/audio/alice/lights_on/b.wav", "lights_on")
	p.BindAction("lights_on", "script.lights_on")

	if err := s.Save(ctx, "alice", p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}
}

func TestLoadMissingUser(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Load(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of absent user: got %v, want ErrNotFound", err)
	}

	p, err := s.LoadOrCreate(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if len(p.Examples) != 0 || p.Version != 0 {
		t.Errorf("fresh profile not empty: %+v", p)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Save(ctx, "bob", New()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "bob"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "bob"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Load(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete: got %v, want ErrNotFound", err)
	}
}

func TestUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	for _, u := range []string{"alice", "bob"} {
		if err := s.Save(ctx, u, New()); err != nil {
			t.Fatalf("Save %s: %v", u, err)
		}
	}

	users, err := s.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %v, want 2 entries", users)
	}
}

func TestNewAudioPathUnique(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seen := make(map[string]bool)
	for range 20 {
		p, err := s.NewAudioPath("alice", "lights_on")
		if err != nil {
			t.Fatalf("NewAudioPath: %v", err)
		}
		if seen[p] {
			t.Fatalf("duplicate audio path %q", p)
		}
		seen[p] = true
	}
}

func TestListAudio(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	if paths, err := s.ListAudio("alice", "lights_on"); err != nil || len(paths) != 0 {
		t.Fatalf("ListAudio before any capture = %v, %v; want empty, nil", paths, err)
	}

	want := make(map[string]bool)
	for range 3 {
		p, err := s.NewAudioPath("alice", "lights_on")
		if err != nil {
			t.Fatalf("NewAudioPath: %v", err)
		}
		if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		want[p] = true
	}
	// Stray non-capture files in the label directory are not listed.
	stray := filepath.Join(filepath.Dir(firstKey(want)), "notes.txt")
	if err := os.WriteFile(stray, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	paths, err := s.ListAudio("alice", "lights_on")
	if err != nil {
		t.Fatalf("ListAudio: %v", err)
	}
	if len(paths) != len(want) {
		t.Fatalf("ListAudio returned %d paths, want %d", len(paths), len(want))
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %q", p)
		}
	}

	if err := s.DeleteAudio("alice", "lights_on"); err != nil {
		t.Fatalf("DeleteAudio: %v", err)
	}
	if paths, err := s.ListAudio("alice", "lights_on"); err != nil || len(paths) != 0 {
		t.Fatalf("ListAudio after DeleteAudio = %v, %v; want empty, nil", paths, err)
	}
}

func firstKey(m map[string]bool) string {
	for k := range m {
		return k
	}
	return ""
}

func TestVersionIncreasesOnMutation(t *testing.T) {
	t.Parallel()

	p := New()
	v := p.Version
	p.AddExample("x.wav", "stop")
	if p.Version <= v {
		t.Error("AddExample did not bump version")
	}
	v = p.Version
	p.BindAction("stop", "script.stop")
	if p.Version <= v {
		t.Error("BindAction did not bump version")
	}
	v = p.Version
	p.RemoveLabel("stop")
	if p.Version <= v {
		t.Error("RemoveLabel did not bump version")
	}
	if len(p.Examples) != 0 {
		t.Errorf("examples left after RemoveLabel: %+v", p.Examples)
	}
	if _, ok := p.Action("stop"); ok {
		t.Error("action binding left after RemoveLabel")
	}
}

func TestEnrollmentIsAdditive(t *testing.T) {
	t.Parallel()

	p := New()
	for range 3 {
		p.AddExample("a.wav", "lights_on")
	}
	for range 2 {
		p.AddExample("b.wav", "lights_on")
	}
	if got := p.CountByLabel()["lights_on"]; got != 5 {
		t.Errorf("example count = %d, want 5", got)
	}
}
