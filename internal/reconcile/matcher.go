// Package reconcile matches imported statement lines against ledger
// transactions. Matching is deliberately strict: same account, exact amount,
// and a bounded date window. Anything less certain is surfaced for a human,
// never guessed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"homeledger/internal/core"
	"homeledger/internal/ledger"
	"homeledger/internal/storage"
)

// matchWindowDays bounds how far a transaction date may sit from the
// statement line date, in either direction, inclusive.
const matchWindowDays = 14

// Outcome is the result of one auto-assignment attempt.
type Outcome int

const (
	NoMatch Outcome = iota
	Assigned
	Ambiguous
	AlreadyTaken
)

func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no match"
	case Assigned:
		return "assigned"
	case Ambiguous:
		return "ambiguous"
	case AlreadyTaken:
		return "already taken"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Summary aggregates an auto-assignment sweep.
type Summary struct {
	Assigned     int
	NoMatch      int
	Ambiguous    int
	AlreadyTaken int
}

// Matcher reconciles statement lines. Linking writes go through its store
// transaction helper; transaction creation delegates to the ledger engine.
type Matcher struct {
	store  *storage.Store
	engine *ledger.Engine
}

func NewMatcher(store *storage.Store, engine *ledger.Engine) *Matcher {
	return &Matcher{store: store, engine: engine}
}

// FindCandidates returns the transactions that could back line: same
// account, exactly the line's amount, dated within the match window.
// Already-linked transactions are included; Assign decides whether a link
// is takeable.
func (m *Matcher) FindCandidates(ctx context.Context, line core.StatementLine) ([]core.Transaction, error) {
	amount := line.Amount
	candidates, err := m.store.Queries().ListTransactions(ctx, storage.TransactionFilter{
		AccountID: line.AccountID,
		Amount:    &amount,
		After:     line.Date.AddDays(-matchWindowDays),
		Before:    line.Date.AddDays(matchWindowDays),
	})
	if err != nil {
		return nil, fmt.Errorf("find candidates for line %d: %w", line.ID, err)
	}
	return candidates, nil
}

// Assign links line lineID to transactionID. It refuses with
// ErrAlreadyLinked when either side is taken: the line already points at a
// transaction, or another line already claims this transaction.
func (m *Matcher) Assign(ctx context.Context, lineID, transactionID int64) error {
	err := m.store.InTx(ctx, func(q *storage.Queries) error {
		line, err := q.GetStatementLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.Linked() {
			return fmt.Errorf("statement line %d already linked to transaction %d: %w",
				lineID, *line.TransactionID, core.ErrAlreadyLinked)
		}

		t, err := q.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if !t.Valid {
			return fmt.Errorf("transaction %d: %w", transactionID, core.ErrNotFound)
		}

		holders, err := q.ListStatementLines(ctx, storage.StatementFilter{
			TransactionID:   transactionID,
			IncludeDeferred: true,
		})
		if err != nil {
			return err
		}
		if len(holders) > 0 {
			return fmt.Errorf("transaction %d already held by statement line %d: %w",
				transactionID, holders[0].ID, core.ErrAlreadyLinked)
		}

		return q.LinkStatementLine(ctx, lineID, transactionID)
	})
	if err != nil {
		return fmt.Errorf("assign statement line: %w", err)
	}
	return nil
}

// Unlink clears the line's transaction link.
func (m *Matcher) Unlink(ctx context.Context, lineID int64) error {
	if err := m.store.Queries().UnlinkStatementLine(ctx, lineID); err != nil {
		return fmt.Errorf("unlink statement line: %w", err)
	}
	return nil
}

// Defer parks a line so reconciliation sweeps skip it.
func (m *Matcher) Defer(ctx context.Context, lineID int64) error {
	return m.store.Queries().SetStatementDeferred(ctx, lineID, true)
}

// Undefer returns a parked line to the reconciliation pool.
func (m *Matcher) Undefer(ctx context.Context, lineID int64) error {
	return m.store.Queries().SetStatementDeferred(ctx, lineID, false)
}

// AutoAssign attempts to link one line without human input. Multiple
// candidates narrow to exact-date matches; a lone survivor whose
// transaction is free gets linked. Everything else reports why not.
func (m *Matcher) AutoAssign(ctx context.Context, line core.StatementLine) (Outcome, error) {
	if line.Linked() {
		return AlreadyTaken, nil
	}

	candidates, err := m.FindCandidates(ctx, line)
	if err != nil {
		return NoMatch, err
	}
	if len(candidates) == 0 {
		return NoMatch, nil
	}
	if len(candidates) > 1 {
		exact := candidates[:0]
		for _, c := range candidates {
			if c.Date.Equal(line.Date.Time) {
				exact = append(exact, c)
			}
		}
		if len(exact) != 1 {
			return Ambiguous, nil
		}
		candidates = exact
	}

	err = m.Assign(ctx, line.ID, candidates[0].ID)
	switch {
	case err == nil:
		return Assigned, nil
	case errors.Is(err, core.ErrAlreadyLinked):
		return AlreadyTaken, nil
	default:
		return NoMatch, err
	}
}

// AutoAssignUnassigned sweeps every unlinked, undeferred line (optionally
// one account's) through AutoAssign and tallies the outcomes.
func (m *Matcher) AutoAssignUnassigned(ctx context.Context, accountID int64) (Summary, error) {
	var sum Summary
	lines, err := m.store.Queries().ListStatementLines(ctx, storage.StatementFilter{
		Unassigned: true,
		AccountID:  accountID,
	})
	if err != nil {
		return sum, fmt.Errorf("list unassigned lines: %w", err)
	}

	for _, line := range lines {
		outcome, err := m.AutoAssign(ctx, line)
		if err != nil {
			return sum, err
		}
		switch outcome {
		case Assigned:
			sum.Assigned++
		case NoMatch:
			sum.NoMatch++
		case Ambiguous:
			sum.Ambiguous++
		case AlreadyTaken:
			sum.AlreadyTaken++
		}
	}

	slog.InfoContext(ctx, "Auto-assignment sweep finished",
		"assigned", sum.Assigned, "no_match", sum.NoMatch,
		"ambiguous", sum.Ambiguous, "already_taken", sum.AlreadyTaken)
	return sum, nil
}

// CreateFromLine materializes a transaction directly from a statement line
// that has no ledger counterpart, linking the two and clearing any deferral
// atomically. The line's date, account and amount carry over; description
// defaults to the line's when empty.
func (m *Matcher) CreateFromLine(ctx context.Context, lineID, methodID, categoryID int64, description string) (int64, error) {
	line, err := m.store.Queries().GetStatementLine(ctx, lineID)
	if err != nil {
		return 0, err
	}
	if description == "" {
		description = line.Description
	}
	return m.engine.CreateLinkedTransaction(ctx, ledger.CreateTransactionParams{
		Date:        line.Date,
		AccountID:   line.AccountID,
		MethodID:    methodID,
		Description: description,
		Net:         line.Amount,
		Splits:      []ledger.SplitSpec{{Amount: line.Amount, CategoryID: categoryID}},
	}, lineID)
}
