package blob

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "uploads"), zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incoming")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return path
}

func TestStoreMovesFileIntoPlace(t *testing.T) {
	s := newTestStore(t)
	b, err := s.Store(writeTemp(t, "media-bytes"), "My Song.mp4")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if !strings.HasSuffix(b.Name, "-My-Song.mp4") {
		t.Fatalf("expected sanitized name with timestamp prefix, got %q", b.Name)
	}
	if b.URL != PublicPrefix+"/"+b.Name {
		t.Fatalf("unexpected url %q", b.URL)
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if string(data) != "media-bytes" {
		t.Fatalf("blob contents corrupted: %q", data)
	}

	// No temp debris left next to the blob.
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file in store dir, got %d", len(entries))
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"My  Cool\tTrack.mp4": "My-Cool-Track.mp4",
		"  spaced.mov ":       "spaced.mov",
		"../../etc/passwd":    "passwd",
		"":                    "upload",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	b, err := s.Store(writeTemp(t, "x"), "clip.mp4")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	s.Delete(b.Name)
	if _, err := os.Stat(b.Path); !os.IsNotExist(err) {
		t.Fatalf("expected blob gone, stat err = %v", err)
	}
	// Deleting an absent locator must not panic or error.
	s.Delete(b.Name)
	s.Delete("never-existed.mp4")
}

func TestResolveURL(t *testing.T) {
	s := newTestStore(t)
	b, err := s.Store(writeTemp(t, "x"), "clip.mp4")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	path, ok := s.ResolveURL(b.URL)
	if !ok {
		t.Fatalf("expected %q to resolve", b.URL)
	}
	if path != b.Path {
		t.Fatalf("resolved %q, want %q", path, b.Path)
	}
	if _, ok := s.ResolveURL(PublicPrefix + "/missing.mp4"); ok {
		t.Fatalf("expected missing blob to not resolve")
	}
	if _, ok := s.ResolveURL(""); ok {
		t.Fatalf("expected empty locator to not resolve")
	}
}
