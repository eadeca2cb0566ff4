package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"bookaudio-server-go/internal/platform/errors"
)

// Entry is one cached audio payload. Hash doubles as the HTTP ETag for
// whatever bytes this entry serves.
type Entry struct {
	Data        []byte
	ContentType string
	Size        int64
	Hash        string
	storedAt    time.Time
	lastAccess  time.Time
}

// AudioCache is the second tier: full audio payloads held in memory with a
// TTL and a hard entry ceiling. When the ceiling is hit the least recently
// touched entry is evicted.
type AudioCache struct {
	entries    map[string]*Entry
	mutex      sync.Mutex
	maxEntries int
	ttl        time.Duration
	hits       int64
	misses     int64
}

func NewAudioCache(maxEntries int, ttl time.Duration) *AudioCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &AudioCache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Hash is the cache's content fingerprint, also served as the ETag.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *AudioCache) Get(key string) (*Entry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	entry.lastAccess = time.Now()
	c.hits++
	return entry, true
}

func (c *AudioCache) Set(key string, data []byte, contentType string) *Entry {
	now := time.Now()
	entry := &Entry{
		Data:        data,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        Hash(data),
		storedAt:    now,
		lastAccess:  now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = entry
	return entry
}

// GetOrLoad returns the cached entry or runs the loader on a miss and caches
// its result. A loader failure surfaces as a cache_miss wrapping the cause.
// The error is built directly rather than through Wrap: the loader usually
// fails with a typed storage error, and the miss kind must win over it.
func (c *AudioCache) GetOrLoad(key string, contentType string, load func() ([]byte, error)) (*Entry, error) {
	if entry, ok := c.Get(key); ok {
		return entry, nil
	}
	data, err := load()
	if err != nil {
		return nil, &errors.Error{
			Kind:    errors.KindCacheMiss,
			Op:      "audiocache.load",
			Message: "cache miss and loader failed for " + key,
			Cause:   err,
		}
	}
	return c.Set(key, data, contentType), nil
}

// caller holds the lock
func (c *AudioCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *AudioCache) Delete(key string) {
	c.mutex.Lock()
	delete(c.entries, key)
	c.mutex.Unlock()
}

func (c *AudioCache) Clear() {
	c.mutex.Lock()
	c.entries = make(map[string]*Entry)
	c.mutex.Unlock()
}

func (c *AudioCache) Stats() TierStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var bytes int64
	for _, entry := range c.entries {
		bytes += entry.Size
	}
	return TierStats{
		Entries:    len(c.entries),
		Bytes:      bytes,
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		HitRate:    hitRate(c.hits, c.misses),
	}
}

// TierStats describes one cache tier for the stats endpoint.
type TierStats struct {
	Entries    int     `json:"entries"`
	Bytes      int64   `json:"bytes,omitempty"`
	MaxEntries int     `json:"max_entries,omitempty"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// Stats is the combined view over both tiers.
type Stats struct {
	Metadata TierStats `json:"metadata"`
	Audio    TierStats `json:"audio"`
}
