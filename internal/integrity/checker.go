// Package integrity audits the ledger for invariant drift: duplicate
// statement links, orphaned splits, empty transactions, and balance caches
// that disagree with the rows behind them. Findings are data, not errors;
// the checker reports, a human repairs.
package integrity

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

// Report holds every finding of one audit run. EmptyTransactions is a
// warning (a transaction awaiting splits is legal mid-entry); everything
// else indicates a past partial write or an out-of-band edit.
type Report struct {
	DuplicateLinks    []storage.DuplicateLink
	OrphanSplits      []core.Split
	EmptyTransactions []int64
	AccountMismatches []storage.BalanceMismatch
	BudgetMismatches  []storage.BalanceMismatch
}

// Clean reports whether the audit found nothing, warnings included.
func (r Report) Clean() bool {
	return len(r.DuplicateLinks) == 0 &&
		len(r.OrphanSplits) == 0 &&
		len(r.EmptyTransactions) == 0 &&
		len(r.AccountMismatches) == 0 &&
		len(r.BudgetMismatches) == 0
}

// Checker runs the audits.
type Checker struct {
	store *storage.Store
}

func NewChecker(store *storage.Store) *Checker {
	return &Checker{store: store}
}

// Check runs every audit concurrently and aggregates the findings. An error
// means an audit could not run, not that it found something.
func (c *Checker) Check(ctx context.Context) (Report, error) {
	var report Report
	q := c.store.Queries()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.DuplicateLinks, err = q.ListDuplicateLinks(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		report.OrphanSplits, err = q.ListOrphanSplits(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		report.EmptyTransactions, err = q.ListEmptyTransactions(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		report.AccountMismatches, err = q.ListAccountMismatches(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		report.BudgetMismatches, err = q.ListBudgetMismatches(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("integrity check: %w", err)
	}

	if report.Clean() {
		slog.InfoContext(ctx, "Integrity check clean")
	} else {
		slog.WarnContext(ctx, "Integrity check found issues",
			"duplicate_links", len(report.DuplicateLinks),
			"orphan_splits", len(report.OrphanSplits),
			"empty_transactions", len(report.EmptyTransactions),
			"account_mismatches", len(report.AccountMismatches),
			"budget_mismatches", len(report.BudgetMismatches))
	}
	return report, nil
}
