package cost

import (
	"context"
	"fmt"
	"time"

	"bookaudio-server-go/internal/domain/ledger"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/errors"
)

// Counters outlive their hour by one more so a request straddling the
// rollover still sees the closing hour's spend.
const hourlyTTL = 2 * time.Hour

// Guard enforces the spend ceilings: hard per-chapter and per-book caps
// checked before any provider call, and per-requester rolling-hour caps
// accumulated in the ledger.
type Guard struct {
	cfg    config.CostConfig
	ledger ledger.Ledger
}

func NewGuard(cfg config.CostConfig, l ledger.Ledger) *Guard {
	return &Guard{cfg: cfg, ledger: l}
}

// CheckChapter rejects an estimate above the per-chapter cap. Nothing is
// charged; rejection happens before synthesis.
func (g *Guard) CheckChapter(est Estimate) error {
	if g.cfg.ChapterCapUSD > 0 && est.Cost > g.cfg.ChapterCapUSD {
		return errors.New(errors.KindCostExceeded, "cost.check_chapter",
			fmt.Sprintf("estimated cost $%.4f exceeds chapter cap $%.4f", est.Cost, g.cfg.ChapterCapUSD))
	}
	return nil
}

// CheckBook rejects a projected whole-book spend above the per-book cap.
func (g *Guard) CheckBook(totalUSD float64) error {
	if g.cfg.BookCapUSD > 0 && totalUSD > g.cfg.BookCapUSD {
		return errors.New(errors.KindCostExceeded, "cost.check_book",
			fmt.Sprintf("estimated cost $%.4f exceeds book cap $%.4f", totalUSD, g.cfg.BookCapUSD))
	}
	return nil
}

// CheckHourly rejects the request when the requester's spend this hour plus
// the new estimate would pass the endpoint's hourly cap.
func (g *Guard) CheckHourly(ctx context.Context, requester, op string, est Estimate) error {
	limit, ok := g.cfg.HourlyCapsUSD[op]
	if !ok || limit <= 0 {
		return nil
	}
	spent, err := g.ledger.Get(ctx, ledger.HourKey(requester, op, time.Now()))
	if err != nil {
		return err
	}
	if spent+est.Cost > limit {
		return errors.New(errors.KindCostExceeded, "cost.check_hourly",
			fmt.Sprintf("hourly spend $%.4f plus $%.4f exceeds cap $%.4f for %s", spent, est.Cost, limit, op))
	}
	return nil
}

// Charge records actual spend against the requester's hour bucket. Called
// only after synthesis succeeds; failed attempts cost nothing.
func (g *Guard) Charge(ctx context.Context, requester, op string, actualUSD float64) error {
	if actualUSD <= 0 {
		return nil
	}
	_, err := g.ledger.Add(ctx, ledger.HourKey(requester, op, time.Now()), actualUSD, hourlyTTL)
	return err
}

// HourlySpent reports the requester's spend in the current hour bucket.
func (g *Guard) HourlySpent(ctx context.Context, requester, op string) (float64, error) {
	return g.ledger.Get(ctx, ledger.HourKey(requester, op, time.Now()))
}
