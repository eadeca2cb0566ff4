package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"bookaudio-server-go/internal/platform/errors"
)

func TestHashMatchesSha256(t *testing.T) {
	data := []byte("audio payload")
	sum := sha256.Sum256(data)
	if Hash(data) != hex.EncodeToString(sum[:]) {
		t.Fatal("hash must be hex sha256 of the payload")
	}
}

func TestAudioCacheSetGet(t *testing.T) {
	c := NewAudioCache(10, time.Minute)

	stored := c.Set("a1", []byte("mp3 bytes"), "audio/mpeg")
	got, ok := c.Get("a1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Hash != stored.Hash || got.Size != 9 || got.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestAudioCacheTTL(t *testing.T) {
	c := NewAudioCache(10, 10*time.Millisecond)
	c.Set("a1", []byte("x"), "audio/mpeg")

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a1"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestAudioCacheEvictsOldestAtCapacity(t *testing.T) {
	c := NewAudioCache(3, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("x"), "audio/mpeg")
		time.Sleep(time.Millisecond)
	}
	// Touch k0 so k1 becomes the least recently used.
	c.Get("k0")
	time.Sleep(time.Millisecond)

	c.Set("k3", []byte("x"), "audio/mpeg")

	if stats := c.Stats(); stats.Entries != 3 {
		t.Fatalf("expected entry count capped at 3, got %d", stats.Entries)
	}
	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected k1 evicted")
	}
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("expected recently used k0 kept")
	}
}

func TestGetOrLoadReadThrough(t *testing.T) {
	c := NewAudioCache(10, time.Minute)
	loads := 0
	load := func() ([]byte, error) {
		loads++
		return []byte("from disk"), nil
	}

	first, err := c.GetOrLoad("a1", "audio/mpeg", load)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.GetOrLoad("a1", "audio/mpeg", load)
	if err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Fatalf("expected one loader call, got %d", loads)
	}
	if first.Hash != second.Hash {
		t.Fatal("cached entry must match loaded entry")
	}
}

func TestGetOrLoadLoaderFailure(t *testing.T) {
	c := NewAudioCache(10, time.Minute)

	_, err := c.GetOrLoad("a1", "audio/mpeg", func() ([]byte, error) {
		return nil, fmt.Errorf("file gone")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsKind(err, errors.KindCacheMiss) {
		t.Fatalf("expected cache_miss kind, got %v", errors.KindOf(err))
	}
}

// The blob store fails with a typed storage error; the miss kind must still
// win so the transport answers 404 rather than 500.
func TestGetOrLoadTypedStorageCause(t *testing.T) {
	c := NewAudioCache(10, time.Minute)

	cause := errors.New(errors.KindStorage, "blob.read", "failed to read audio file")
	_, err := c.GetOrLoad("a1", "audio/mpeg", func() ([]byte, error) {
		return nil, cause
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.KindOf(err) != errors.KindCacheMiss {
		t.Fatalf("expected cache_miss kind, got %v", errors.KindOf(err))
	}
	if errors.HTTPStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404 mapping, got %d", errors.HTTPStatus(err))
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("cause must stay on the error chain")
	}
}

func TestAudioCacheCounters(t *testing.T) {
	c := NewAudioCache(10, time.Minute)
	c.Set("a1", []byte("x"), "audio/mpeg")

	c.Get("a1")
	c.Get("a1")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Fatalf("unexpected hit rate: %f", stats.HitRate)
	}
}

func TestMetadataCacheRoundTrip(t *testing.T) {
	c := NewMetadataCache(time.Minute)
	defer c.Close()

	c.Set("sync:a1", map[string]string{"quality": "good"})
	got, ok := c.Get("sync:a1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.(map[string]string)["quality"] != "good" {
		t.Fatalf("unexpected value: %v", got)
	}

	c.Delete("sync:a1")
	if _, ok := c.Get("sync:a1"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMetadataCacheTTL(t *testing.T) {
	c := NewMetadataCache(10 * time.Millisecond)
	defer c.Close()

	c.Set("k", 1)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestClearResetsEntriesNotCounters(t *testing.T) {
	c := NewAudioCache(10, time.Minute)
	c.Set("a1", []byte("x"), "audio/mpeg")
	c.Get("a1")

	c.Clear()
	stats := c.Stats()
	if stats.Entries != 0 {
		t.Fatalf("expected no entries after clear, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Fatalf("counters should survive clear, got %+v", stats)
	}
}
