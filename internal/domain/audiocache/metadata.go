package audiocache

import (
	"sync"
	"time"
)

// ArtifactKey and SyncKey name the metadata-tier entries for one artifact.
// The audio service writes them and the maintenance sweeper evicts them, so
// the scheme lives here where both can see it.
func ArtifactKey(artifactID string) string {
	return "artifact:" + artifactID
}

func SyncKey(artifactID string) string {
	return "sync:" + artifactID
}

type metaEntry struct {
	value     any
	expiresAt time.Time
}

// MetadataCache is the first tier: short-TTL storage for sync mappings,
// artifact descriptors and other small lookups that sit in front of the
// database.
type MetadataCache struct {
	items    map[string]metaEntry
	mutex    sync.RWMutex
	ttl      time.Duration
	hits     int64
	misses   int64
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMetadataCache(ttl time.Duration) *MetadataCache {
	c := &MetadataCache{
		items: make(map[string]metaEntry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.gcLoop()
	return c
}

func (c *MetadataCache) gcLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mutex.Lock()
			for key, entry := range c.items {
				if now.After(entry.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mutex.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *MetadataCache) Get(key string) (any, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.items, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.value, true
}

func (c *MetadataCache) Set(key string, value any) {
	c.mutex.Lock()
	c.items[key] = metaEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mutex.Unlock()
}

func (c *MetadataCache) Delete(key string) {
	c.mutex.Lock()
	delete(c.items, key)
	c.mutex.Unlock()
}

func (c *MetadataCache) Clear() {
	c.mutex.Lock()
	c.items = make(map[string]metaEntry)
	c.mutex.Unlock()
}

func (c *MetadataCache) Stats() TierStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return TierStats{
		Entries: len(c.items),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate(c.hits, c.misses),
	}
}

func (c *MetadataCache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
