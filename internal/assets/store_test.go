// Package assets provides unit tests for the bounded asset store.
package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

// writeSource creates a source file of n bytes and returns its path.
func writeSource(t *testing.T, dir, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestSave_copiesIntoOwnedDirectory(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	src := writeSource(t, srcDir, "clip.mp4", 1024)
	ref, err := s.Save(KindVideo, src)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(ref)
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if info.Size() != 1024 {
		t.Errorf("stored size = %d, want 1024", info.Size())
	}
	if !strings.HasSuffix(ref, ".mp4") {
		t.Errorf("stored reference %q should keep the source extension", ref)
	}

	// The source file is copied, not moved.
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source file should survive Save: %v", err)
	}
}

func TestSave_nameEncodesCreationInstant(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	src := writeSource(t, srcDir, "clip.mp4", 64)
	ref, err := s.Save(KindVideo, src)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	name := filepath.Base(ref)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if _, err := ulid.Parse(stem); err != nil {
		t.Errorf("stored name %q does not parse as a ULID: %v", stem, err)
	}
}

func TestSave_missingSource(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save(KindVideo, "/no/such/file.mp4"); err == nil {
		t.Error("Save of a missing source should fail")
	}
}

func TestSave_emptySourceRejected(t *testing.T) {
	s := newTestStore(t)
	src := writeSource(t, t.TempDir(), "empty.mp4", 0)

	if _, err := s.Save(KindVideo, src); err == nil {
		t.Error("Save of an empty source should fail")
	}
}

func TestDelete_idempotent(t *testing.T) {
	s := newTestStore(t)
	src := writeSource(t, t.TempDir(), "clip.mp4", 32)

	ref, err := s.Save(KindVideo, src)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Delete(ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Deleting an already-absent file is success.
	if err := s.Delete(ref); err != nil {
		t.Errorf("second Delete should succeed, got %v", err)
	}
	// Empty refs are skipped.
	if err := s.Delete(""); err != nil {
		t.Errorf("Delete(\"\") should succeed, got %v", err)
	}
}

func TestCacheSize_sumsBothDirectories(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	if _, err := s.Save(KindVideo, writeSource(t, srcDir, "a.mp4", 300)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.Save(KindThumbnail, writeSource(t, srcDir, "a.jpg", 50)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	size, err := s.CacheSize()
	if err != nil {
		t.Fatalf("CacheSize failed: %v", err)
	}
	if size != 350 {
		t.Errorf("CacheSize = %d, want 350", size)
	}
}

func TestEnforceBudget_evictsOldestFirst(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	// Six 100-byte clips against a 500-byte budget: the oldest must go.
	var refs []string
	for i := 0; i < 6; i++ {
		ref, err := s.Save(KindVideo, writeSource(t, srcDir, "clip.mp4", 100))
		if err != nil {
			t.Fatalf("Save #%d failed: %v", i, err)
		}
		refs = append(refs, ref)
	}

	if err := s.EnforceBudget(500); err != nil {
		t.Fatalf("EnforceBudget failed: %v", err)
	}

	size, _ := s.CacheSize()
	if size > 500 {
		t.Errorf("CacheSize = %d after eviction, want <= 500", size)
	}

	// The remaining set is exactly the 5 most recent files.
	if _, err := os.Stat(refs[0]); !os.IsNotExist(err) {
		t.Error("oldest file should have been evicted")
	}
	for _, ref := range refs[1:] {
		if _, err := os.Stat(ref); err != nil {
			t.Errorf("recent file %q should survive eviction: %v", ref, err)
		}
	}
}

func TestEnforceBudget_idempotentUnderBudget(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	var refs []string
	for i := 0; i < 3; i++ {
		ref, err := s.Save(KindVideo, writeSource(t, srcDir, "clip.mp4", 100))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		refs = append(refs, ref)
	}

	for i := 0; i < 3; i++ {
		if err := s.EnforceBudget(1000); err != nil {
			t.Fatalf("EnforceBudget #%d failed: %v", i, err)
		}
	}

	for _, ref := range refs {
		if _, err := os.Stat(ref); err != nil {
			t.Errorf("file %q deleted by an under-budget sweep: %v", ref, err)
		}
	}
}

func TestEnforceBudget_skipsForeignFiles(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	ref, err := s.Save(KindVideo, writeSource(t, srcDir, "clip.mp4", 100))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A sidecar-style file not written by Save: no ULID name, so it is
	// never counted or evicted.
	foreign := ref + ".meta"
	if err := os.WriteFile(foreign, []byte(`{"startTime":0,"endTime":5}`), 0644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	size, _ := s.CacheSize()
	if size != 100 {
		t.Errorf("CacheSize = %d, foreign files should not count", size)
	}

	if err := s.EnforceBudget(0); err != nil {
		t.Fatalf("EnforceBudget failed: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file should survive eviction: %v", err)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	s.Save(KindVideo, writeSource(t, srcDir, "a.mp4", 200))
	s.Save(KindVideo, writeSource(t, srcDir, "b.mp4", 300))
	s.Save(KindThumbnail, writeSource(t, srcDir, "a.jpg", 40))

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.VideoFiles != 2 || stats.VideoBytes != 500 {
		t.Errorf("video stats = %d files / %d bytes, want 2 / 500", stats.VideoFiles, stats.VideoBytes)
	}
	if stats.ThumbnailFiles != 1 || stats.ThumbnailBytes != 40 {
		t.Errorf("thumbnail stats = %d files / %d bytes, want 1 / 40", stats.ThumbnailFiles, stats.ThumbnailBytes)
	}
	if stats.TotalBytes != 540 {
		t.Errorf("TotalBytes = %d, want 540", stats.TotalBytes)
	}
}

func TestWipe(t *testing.T) {
	s := newTestStore(t)
	srcDir := t.TempDir()

	s.Save(KindVideo, writeSource(t, srcDir, "a.mp4", 100))
	s.Save(KindThumbnail, writeSource(t, srcDir, "a.jpg", 50))

	if err := s.Wipe(); err != nil {
		t.Fatalf("Wipe failed: %v", err)
	}

	size, _ := s.CacheSize()
	if size != 0 {
		t.Errorf("CacheSize = %d after Wipe, want 0", size)
	}
}
