// Package accrual advances budget balances on schedule. A persisted
// watermark records the last month already applied; catch-up walks forward
// one month at a time so a crash mid-run loses at most the month in flight.
package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"homeledger/internal/core"
	"homeledger/internal/ledger"
	"homeledger/internal/storage"
)

// Scheduler drives the engine's monthly accrual from the stored watermark.
type Scheduler struct {
	store  *storage.Store
	engine *ledger.Engine
}

func NewScheduler(store *storage.Store, engine *ledger.Engine) *Scheduler {
	return &Scheduler{store: store, engine: engine}
}

// firstOfMonth normalizes any date to the first day of its month, the only
// form the watermark ever takes.
func firstOfMonth(d core.Date) core.Date {
	return core.NewDate(d.Year(), int(d.Month()), 1)
}

// CatchUp applies every whole month between the watermark and now's month,
// inclusive of now's month, and returns how many months it applied. A
// missing watermark is initialized to the current month with nothing
// applied, so a fresh database does not backfill history it never lived
// through.
func (s *Scheduler) CatchUp(ctx context.Context, now core.Date) (int, error) {
	if err := now.Validate(); err != nil {
		return 0, err
	}
	current := firstOfMonth(now)

	last, ok, err := s.store.Queries().GetSettingDate(ctx, storage.SettingLastBudgetUpdate)
	if err != nil {
		return 0, fmt.Errorf("read accrual watermark: %w", err)
	}
	if !ok {
		if err := s.store.Queries().SetSettingDate(ctx, storage.SettingLastBudgetUpdate, current); err != nil {
			return 0, fmt.Errorf("initialize accrual watermark: %w", err)
		}
		slog.InfoContext(ctx, "Initialized accrual watermark", "month", current.ISO())
		return 0, nil
	}

	months := 0
	for month := firstOfMonth(last).AddMonths(1); !month.After(current.Time); month = month.AddMonths(1) {
		// AccrueMonth advances the watermark inside its own transaction.
		if _, err := s.engine.AccrueMonth(ctx, month); err != nil {
			return months, err
		}
		months++
	}
	if months > 0 {
		slog.InfoContext(ctx, "Accrual caught up", "months", months, "through", current.ISO())
	}
	return months, nil
}

// Run catches up immediately and then once per interval until ctx is
// cancelled. Errors are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	tick := func() {
		if _, err := s.CatchUp(ctx, core.DateOf(time.Now())); err != nil {
			slog.ErrorContext(ctx, "Accrual catch-up failed", "error", err)
		}
	}
	tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
