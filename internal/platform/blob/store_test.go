package blob

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestSaveUsesProviderVoiceTimestampName(t *testing.T) {
	store, err := NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	path, err := store.Save("edge", "en-US-AriaNeural", []byte("audio-bytes"), "mp3")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	name := filepath.Base(path)
	pattern := regexp.MustCompile(`^edge_en-US-AriaNeural_\d+\.mp3$`)
	if !pattern.MatchString(name) {
		t.Fatalf("unexpected file name: %s", name)
	}

	data, err := store.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestRemoveMissingIsNoError(t *testing.T) {
	store, err := NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Remove(filepath.Join(t.TempDir(), "missing.mp3")); err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
}

func TestSweepTempRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "tmp")
	store, err := NewStore(dir, tempDir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	old := filepath.Join(tempDir, "stale.mp3")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	fresh := filepath.Join(tempDir, "fresh.mp3")
	if err := os.WriteFile(fresh, []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	removed, err := store.SweepTemp(15 * time.Minute)
	if err != nil {
		t.Fatalf("SweepTemp: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh file should survive")
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("stale file should be gone")
	}
}
