package quota

import (
	"context"
	"fmt"
	"time"

	"bookaudio-server-go/internal/domain/ledger"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/errors"
)

const (
	opStream      = "stream"
	opGenerate    = "generate"
	opHighQuality = "generate-hq"
	opBandwidth   = "bandwidth"
)

// Limiter enforces the per-requester request and bandwidth quotas with
// fixed-window counters in the ledger. Windows are keyed by bucket, so a new
// window always starts from zero.
type Limiter struct {
	cfg    config.LimitsConfig
	ledger ledger.Ledger
	now    func() time.Time
}

func NewLimiter(cfg config.LimitsConfig, l ledger.Ledger) *Limiter {
	return &Limiter{cfg: cfg, ledger: l, now: time.Now}
}

// AllowStream admits one streaming request, or returns a rate_limit error
// carrying the time until the current window resets.
func (l *Limiter) AllowStream(ctx context.Context, requester string) error {
	return l.allow(ctx, requester, opStream, l.cfg.StreamRequests, l.cfg.StreamWindow.Std())
}

// AllowGenerate admits one generation request. High-quality requests are
// additionally counted against their own stricter ceiling.
func (l *Limiter) AllowGenerate(ctx context.Context, requester string, highQuality bool) error {
	window := l.cfg.GenerateWindow.Std()
	if highQuality && l.cfg.HighQualityRequests > 0 {
		if err := l.allow(ctx, requester, opHighQuality, l.cfg.HighQualityRequests, window); err != nil {
			return err
		}
	}
	return l.allow(ctx, requester, opGenerate, l.cfg.GenerateRequests, window)
}

func (l *Limiter) allow(ctx context.Context, requester, op string, limit int, window time.Duration) error {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	now := l.now()
	key := ledger.WindowKey(requester, op, now, window)
	count, err := l.ledger.Add(ctx, key, 1, window+time.Minute)
	if err != nil {
		return err
	}
	if int(count) > limit {
		return errors.RateLimited("quota."+op,
			fmt.Sprintf("%s limit of %d requests per %s exceeded", op, limit, window),
			untilWindowEnd(now, window))
	}
	return nil
}

// RecordBandwidth charges streamed bytes against the requester's per-minute
// byte budget derived from the configured Mbps ceiling. The caller streams
// first and records after, so a single oversized response is never split.
func (l *Limiter) RecordBandwidth(ctx context.Context, requester string, bytes int64) error {
	budget := l.BytesPerMinute()
	if budget <= 0 || bytes <= 0 {
		return nil
	}
	now := l.now()
	key := ledger.MinuteKey(requester, opBandwidth, now)
	total, err := l.ledger.Add(ctx, key, float64(bytes), 2*time.Minute)
	if err != nil {
		return err
	}
	if int64(total) > budget {
		return errors.RateLimited("quota.bandwidth",
			fmt.Sprintf("bandwidth budget of %d bytes per minute exceeded", budget),
			untilNextMinute(now))
	}
	return nil
}

// CheckBandwidth reports whether the requester still has budget this minute
// without charging anything.
func (l *Limiter) CheckBandwidth(ctx context.Context, requester string) error {
	budget := l.BytesPerMinute()
	if budget <= 0 {
		return nil
	}
	now := l.now()
	used, err := l.ledger.Get(ctx, ledger.MinuteKey(requester, opBandwidth, now))
	if err != nil {
		return err
	}
	if int64(used) >= budget {
		return errors.RateLimited("quota.bandwidth",
			fmt.Sprintf("bandwidth budget of %d bytes per minute exceeded", budget),
			untilNextMinute(now))
	}
	return nil
}

// BytesPerMinute converts the configured Mbps ceiling into a per-minute
// byte budget.
func (l *Limiter) BytesPerMinute() int64 {
	if l.cfg.BandwidthMbps <= 0 {
		return 0
	}
	return int64(l.cfg.BandwidthMbps * 1_000_000 / 8 * 60)
}

func untilWindowEnd(now time.Time, window time.Duration) time.Duration {
	seconds := int64(window.Seconds())
	bucket := now.Unix() / seconds
	end := time.Unix((bucket+1)*seconds, 0)
	return end.Sub(now)
}

func untilNextMinute(now time.Time) time.Duration {
	return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
}
