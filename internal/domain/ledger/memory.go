package ledger

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	total     float64
	expiresAt time.Time
}

type memoryLedger struct {
	items       map[string]*memoryEntry
	mutex       sync.Mutex
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-process ledger. Counters expire lazily on access
// and eagerly via a background sweep.
func NewMemory() Ledger {
	l := &memoryLedger{
		items:       make(map[string]*memoryEntry),
		cleanupFreq: 5 * time.Minute,
		stop:        make(chan struct{}),
	}
	go l.gcLoop()
	return l
}

func (l *memoryLedger) gcLoop() {
	ticker := time.NewTicker(l.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanupExpired()
		case <-l.stop:
			return
		}
	}
}

func (l *memoryLedger) Add(_ context.Context, key string, amount float64, ttl time.Duration) (float64, error) {
	now := time.Now()
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entry, ok := l.items[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &memoryEntry{expiresAt: now.Add(ttl)}
		l.items[key] = entry
	}
	entry.total += amount
	return entry.total, nil
}

func (l *memoryLedger) Get(_ context.Context, key string) (float64, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entry, ok := l.items[key]
	if !ok {
		return 0, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(l.items, key)
		return 0, nil
	}
	return entry.total, nil
}

func (l *memoryLedger) Reset(_ context.Context, key string) error {
	l.mutex.Lock()
	delete(l.items, key)
	l.mutex.Unlock()
	return nil
}

func (l *memoryLedger) cleanupExpired() {
	now := time.Now()
	l.mutex.Lock()
	for key, entry := range l.items {
		if now.After(entry.expiresAt) {
			delete(l.items, key)
		}
	}
	l.mutex.Unlock()
}

func (l *memoryLedger) Close(_ context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	return nil
}
