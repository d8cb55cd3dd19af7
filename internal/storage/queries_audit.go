package storage

import (
	"context"
	"database/sql"
	"fmt"

	"homeledger/internal/core"
)

// Audit queries. These read the raw rows behind the balance caches and link
// columns so the integrity checker can report drift without trusting any
// cached value.

// DuplicateLink reports one transaction claimed by more than one statement
// line.
type DuplicateLink struct {
	TransactionID int64
	LineIDs       []int64
}

// ListDuplicateLinks returns every transaction linked by two or more valid
// statement lines.
func (q *Queries) ListDuplicateLinks(ctx context.Context) ([]DuplicateLink, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT taction_id, id FROM statement_transactions
		WHERE valid = 1 AND taction_id IN (
			SELECT taction_id FROM statement_transactions
			WHERE valid = 1 AND taction_id IS NOT NULL
			GROUP BY taction_id HAVING COUNT(*) > 1
		)
		ORDER BY taction_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list duplicate links: %w", err)
	}
	defer rows.Close()

	var out []DuplicateLink
	for rows.Next() {
		var transactionID, lineID int64
		if err := rows.Scan(&transactionID, &lineID); err != nil {
			return nil, fmt.Errorf("list duplicate links: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].TransactionID == transactionID {
			out[n-1].LineIDs = append(out[n-1].LineIDs, lineID)
		} else {
			out = append(out, DuplicateLink{TransactionID: transactionID, LineIDs: []int64{lineID}})
		}
	}
	return out, rows.Err()
}

// ListOrphanSplits returns valid splits whose parent transaction is voided
// or missing. Voiding invalidates splits in the same unit, so any hit means
// a past partial write.
func (q *Queries) ListOrphanSplits(ctx context.Context) ([]core.Split, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT s.id, s.amount_cents, s.category_id, s.taction_id, s.date, s.valid, s.not_real
		FROM sub s
		LEFT JOIN taction t ON t.id = s.taction_id
		WHERE s.valid = 1 AND (t.id IS NULL OR t.valid = 0)
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list orphan splits: %w", err)
	}
	defer rows.Close()

	var out []core.Split
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("list orphan splits: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListEmptyTransactions returns valid transactions carrying no valid splits.
func (q *Queries) ListEmptyTransactions(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.id FROM taction t
		LEFT JOIN sub s ON s.taction_id = t.id AND s.valid = 1
		WHERE t.valid = 1
		GROUP BY t.id
		HAVING COUNT(s.id) = 0
		ORDER BY t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list empty transactions: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list empty transactions: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// BalanceMismatch reports a cached balance that disagrees with the value
// recomputed from the underlying rows.
type BalanceMismatch struct {
	ID       int64
	Name     string
	Cached   core.Money
	Computed core.Money
}

// ListAccountMismatches recomputes every valid account's balance as opening
// plus the split sum of its valid transactions and returns the rows where
// the cache disagrees.
func (q *Queries) ListAccountMismatches(ctx context.Context) ([]BalanceMismatch, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.balance_cents,
		       a.opening_cents + COALESCE((
		           SELECT SUM(s.amount_cents) FROM sub s
		           JOIN taction t ON t.id = s.taction_id
		           WHERE t.account_id = a.id AND t.valid = 1 AND s.valid = 1
		       ), 0) AS computed_cents
		FROM account a
		WHERE a.valid = 1
		ORDER BY a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list account mismatches: %w", err)
	}
	return collectMismatches(rows)
}

// ListBudgetMismatches recomputes every valid budget's balance as opening
// plus valid split sums through its categories plus all adjustments, and
// returns the rows where the cache disagrees.
func (q *Queries) ListBudgetMismatches(ctx context.Context) ([]BalanceMismatch, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.balance_cents,
		       b.opening_cents
		       + COALESCE((
		           SELECT SUM(s.amount_cents) FROM sub s
		           JOIN category c ON c.id = s.category_id
		           JOIN taction t ON t.id = s.taction_id
		           WHERE c.budget_id = b.id AND t.valid = 1 AND s.valid = 1
		       ), 0)
		       + COALESCE((
		           SELECT SUM(ba.amount_cents) FROM budget_adjustments ba
		           WHERE ba.budget_id = b.id
		       ), 0) AS computed_cents
		FROM budget b
		WHERE b.valid = 1
		ORDER BY b.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list budget mismatches: %w", err)
	}
	return collectMismatches(rows)
}

func collectMismatches(rows *sql.Rows) ([]BalanceMismatch, error) {
	defer rows.Close()
	var out []BalanceMismatch
	for rows.Next() {
		var m BalanceMismatch
		if err := rows.Scan(&m.ID, &m.Name, &m.Cached.Cents, &m.Computed.Cents); err != nil {
			return nil, fmt.Errorf("scan balance mismatch: %w", err)
		}
		if m.Cached.Equal(m.Computed) {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
