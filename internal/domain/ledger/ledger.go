package ledger

import (
	"context"
	"fmt"
	"time"
)

// Ledger is a set of expiring numeric counters. Cost guards and rate
// limiters both accumulate into it; the backend is either in-process memory
// or redis when several instances share quota.
type Ledger interface {
	// Add increments the counter and returns the new total. The ttl applies
	// from the counter's first increment.
	Add(ctx context.Context, key string, amount float64, ttl time.Duration) (float64, error)
	Get(ctx context.Context, key string) (float64, error)
	Reset(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// HourKey buckets a requester's operation spend into the current UTC hour.
// Keys from different hours never collide, so stale spend simply expires.
func HourKey(requester, op string, t time.Time) string {
	return fmt.Sprintf("%s:%s:%s", requester, op, t.UTC().Format("2006010215"))
}

// MinuteKey buckets into the current UTC minute, used for bandwidth quota.
func MinuteKey(requester, op string, t time.Time) string {
	return fmt.Sprintf("%s:%s:%s", requester, op, t.UTC().Format("200601021504"))
}

// WindowKey buckets into fixed windows of the given width. Requests land in
// the bucket covering t; a new window starts a fresh counter.
func WindowKey(requester, op string, t time.Time, window time.Duration) string {
	if window <= 0 {
		window = time.Minute
	}
	bucket := t.Unix() / int64(window.Seconds())
	return fmt.Sprintf("%s:%s:w%d", requester, op, bucket)
}
