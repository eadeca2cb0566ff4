package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"bookaudio-server-go/internal/platform/errors"
)

var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f\s]`)

// Store persists audio bytes on local disk. Files are written to the temp
// directory first and renamed into place so readers never observe partial
// writes.
type Store struct {
	dir     string
	tempDir string
}

func NewStore(dir, tempDir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New(errors.KindConfig, "blob.new", "blob dir is required")
	}
	if tempDir == "" {
		tempDir = filepath.Join(dir, "tmp")
	}
	for _, d := range []string{dir, tempDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "blob.new", "failed to create blob dir", err)
		}
	}
	return &Store{dir: dir, tempDir: tempDir}, nil
}

// Save writes data under a provider_voice_timestamp name and returns the
// final path.
func (s *Store) Save(provider, voice string, data []byte, format string) (string, error) {
	if format == "" {
		format = "mp3"
	}
	name := fmt.Sprintf("%s_%s_%d.%s",
		sanitize(provider), sanitize(voice), time.Now().UnixNano(), format)

	tempPath := filepath.Join(s.tempDir, name)
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return "", errors.Wrap(errors.KindStorage, "blob.save", "failed to write temp file", err)
	}

	finalPath := filepath.Join(s.dir, name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return "", errors.Wrap(errors.KindStorage, "blob.save", "failed to move file into place", err)
	}
	return finalPath, nil
}

func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "blob.read", "failed to read audio file", err)
	}
	return data, nil
}

// Remove deletes an audio file. Missing files are not an error; the sweep is
// best-effort.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.KindStorage, "blob.remove", "failed to remove audio file", err)
	}
	return nil
}

// SweepTemp removes temp files older than maxAge and reports how many were
// deleted. maxAge zero removes everything.
func (s *Store) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "blob.sweep_temp", "failed to read temp dir", err)
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.tempDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func sanitize(part string) string {
	safe := unsafeChars.ReplaceAllString(part, "_")
	safe = strings.Trim(safe, "_. ")
	if safe == "" {
		safe = "audio"
	}
	return safe
}
