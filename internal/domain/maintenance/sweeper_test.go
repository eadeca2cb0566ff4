package maintenance

import (
	"context"
	"testing"
	"time"

	"bookaudio-server-go/internal/domain/audiocache"
	"bookaudio-server-go/internal/domain/events"
	"bookaudio-server-go/internal/platform/blob"
	"bookaudio-server-go/internal/platform/storage"
	platformtest "bookaudio-server-go/internal/platform/testing"
)

type fixture struct {
	sweeper   *Sweeper
	artifacts storage.ArtifactRepository
	blobs     *blob.Store
	audio     *audiocache.AudioCache
	meta      *audiocache.MetadataCache
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := platformtest.SetupTestConfig(t)
	logger := platformtest.SetupTestLogger(t)

	db, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	blobs, err := blob.NewStore(cfg.Blob.Dir, "")
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	artifacts := storage.NewArtifactRepository(db)
	audio := audiocache.NewAudioCache(10, time.Minute)
	meta := audiocache.NewMetadataCache(time.Minute)
	t.Cleanup(meta.Close)

	sweeper := NewSweeper(cfg.Maintenance, logger.Slog(), artifacts, blobs, audio, meta, events.NewBus())
	return &fixture{
		sweeper:   sweeper,
		artifacts: artifacts,
		blobs:     blobs,
		audio:     audio,
		meta:      meta,
		ctx:       context.Background(),
	}
}

func (f *fixture) seedArtifact(t *testing.T, id string, expiresAt time.Time) *storage.AudioArtifact {
	t.Helper()
	path, err := f.blobs.Save("edge", "en-US-AriaNeural", []byte("audio for "+id), "mp3")
	if err != nil {
		t.Fatal(err)
	}
	artifact := &storage.AudioArtifact{
		ID:             id,
		BookID:         "book-1",
		ChapterID:      "ch-" + id,
		FilePath:       path,
		SizeBytes:      10,
		Voice:          "en-US-AriaNeural",
		Provider:       "edge",
		Format:         "mp3",
		CacheExpiresAt: expiresAt,
	}
	if err := f.artifacts.Save(f.ctx, artifact); err != nil {
		t.Fatal(err)
	}
	return artifact
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	f := newFixture(t)
	expired := f.seedArtifact(t, "old", time.Now().Add(-time.Hour))
	fresh := f.seedArtifact(t, "new", time.Now().Add(time.Hour))
	f.audio.Set(expired.ID, []byte("cached"), "audio/mpeg")
	f.meta.Set(audiocache.ArtifactKey(expired.ID), expired)
	f.meta.Set(audiocache.SyncKey(expired.ID), "mapping")

	removed, err := f.sweeper.SweepExpired(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if got, _ := f.artifacts.FindByID(f.ctx, expired.ID); got != nil {
		t.Fatal("expired record should be deleted")
	}
	if got, _ := f.artifacts.FindByID(f.ctx, fresh.ID); got == nil {
		t.Fatal("fresh record must survive")
	}
	if _, err := f.blobs.Read(expired.FilePath); err == nil {
		t.Fatal("expired file should be removed")
	}
	if _, err := f.blobs.Read(fresh.FilePath); err != nil {
		t.Fatalf("fresh file must survive: %v", err)
	}
	if _, ok := f.audio.Get(expired.ID); ok {
		t.Fatal("cache entry for expired artifact should be dropped")
	}
	if _, ok := f.meta.Get(audiocache.ArtifactKey(expired.ID)); ok {
		t.Fatal("metadata entry for expired artifact should be dropped")
	}
	if _, ok := f.meta.Get(audiocache.SyncKey(expired.ID)); ok {
		t.Fatal("sync mapping for expired artifact should be dropped")
	}
}

func TestSweepMissingFileStillDeletesRecord(t *testing.T) {
	f := newFixture(t)
	expired := f.seedArtifact(t, "gone", time.Now().Add(-time.Hour))
	if err := f.blobs.Remove(expired.FilePath); err != nil {
		t.Fatal(err)
	}

	removed, err := f.sweeper.SweepExpired(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("missing file must not block record removal, removed=%d", removed)
	}
	if got, _ := f.artifacts.FindByID(f.ctx, expired.ID); got != nil {
		t.Fatal("record should be deleted")
	}
}

func TestSweepNothingExpired(t *testing.T) {
	f := newFixture(t)
	f.seedArtifact(t, "fresh", time.Now().Add(time.Hour))

	removed, err := f.sweeper.SweepExpired(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Fatalf("expected nothing removed, got %d", removed)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	f.sweeper.Start()
	f.sweeper.Stop()
}
