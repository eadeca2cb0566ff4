package quota

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"bookaudio-server-go/internal/domain/ledger"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/errors"
)

func newTestLimiter(t *testing.T, cfg config.LimitsConfig) *Limiter {
	t.Helper()
	l := ledger.NewMemory()
	t.Cleanup(func() { _ = l.Close(context.Background()) })
	return NewLimiter(cfg, l)
}

func TestAllowStreamWithinLimit(t *testing.T) {
	lim := newTestLimiter(t, config.LimitsConfig{
		StreamRequests: 3,
		StreamWindow:   config.Duration(15 * time.Minute),
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := lim.AllowStream(ctx, "u1"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}

	err := lim.AllowStream(ctx, "u1")
	if err == nil {
		t.Fatal("expected rejection past the limit")
	}
	if !errors.IsKind(err, errors.KindRateLimit) {
		t.Fatalf("expected rate_limit kind, got %v", errors.KindOf(err))
	}
	var typed *errors.Error
	if !stderrors.As(err, &typed) || typed.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %+v", typed)
	}

	// Other requesters keep their own window.
	if err := lim.AllowStream(ctx, "u2"); err != nil {
		t.Fatalf("other requester rejected: %v", err)
	}
}

func TestAllowStreamNewWindowResets(t *testing.T) {
	lim := newTestLimiter(t, config.LimitsConfig{
		StreamRequests: 1,
		StreamWindow:   config.Duration(15 * time.Minute),
	})
	ctx := context.Background()

	base := time.Date(2026, 8, 28, 10, 0, 30, 0, time.UTC)
	lim.now = func() time.Time { return base }

	if err := lim.AllowStream(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := lim.AllowStream(ctx, "u1"); err == nil {
		t.Fatal("expected rejection in same window")
	}

	lim.now = func() time.Time { return base.Add(16 * time.Minute) }
	if err := lim.AllowStream(ctx, "u1"); err != nil {
		t.Fatalf("new window should admit: %v", err)
	}
}

func TestAllowGenerateHighQualityStricter(t *testing.T) {
	lim := newTestLimiter(t, config.LimitsConfig{
		GenerateRequests:    10,
		GenerateWindow:      config.Duration(time.Hour),
		HighQualityRequests: 2,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := lim.AllowGenerate(ctx, "u1", true); err != nil {
			t.Fatalf("high-quality request %d rejected: %v", i+1, err)
		}
	}
	if err := lim.AllowGenerate(ctx, "u1", true); err == nil {
		t.Fatal("expected high-quality ceiling to trip first")
	}

	// Standard-quality requests still fit under the general ceiling.
	if err := lim.AllowGenerate(ctx, "u1", false); err != nil {
		t.Fatalf("standard request rejected: %v", err)
	}
}

func TestBandwidthBudget(t *testing.T) {
	lim := newTestLimiter(t, config.LimitsConfig{BandwidthMbps: 10})
	ctx := context.Background()

	budget := lim.BytesPerMinute()
	if budget != 75_000_000 {
		t.Fatalf("expected 75MB/min for 10Mbps, got %d", budget)
	}

	if err := lim.CheckBandwidth(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := lim.RecordBandwidth(ctx, "u1", budget-1); err != nil {
		t.Fatalf("within budget: %v", err)
	}

	err := lim.RecordBandwidth(ctx, "u1", 2)
	if err == nil {
		t.Fatal("expected budget exceeded")
	}
	if !errors.IsKind(err, errors.KindRateLimit) {
		t.Fatalf("expected rate_limit kind, got %v", errors.KindOf(err))
	}
	if err := lim.CheckBandwidth(ctx, "u1"); err == nil {
		t.Fatal("check should report exhausted budget")
	}
}

func TestLimitsDisabledWhenZero(t *testing.T) {
	lim := newTestLimiter(t, config.LimitsConfig{})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := lim.AllowStream(ctx, "u1"); err != nil {
			t.Fatalf("unlimited config rejected request: %v", err)
		}
	}
	if err := lim.RecordBandwidth(ctx, "u1", 1<<40); err != nil {
		t.Fatalf("unlimited bandwidth rejected: %v", err)
	}
}
