// Package ledger is the invariant-preserving bookkeeping engine: transaction
// creation and voiding, transfers, and budget adjustments. Every mutation is
// serialized through one mutex and applied as a single database transaction,
// so multi-row operations commit atomically and balance caches never drift
// from the rows that back them.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"homeledger/internal/core"
	"homeledger/internal/events"
	"homeledger/internal/storage"
)

// Reserved rows seeded by the schema migrations; the transfer path depends
// on both.
const (
	TransferCategory = "Transfer"
	AutomatedMethod  = "Automated"
)

// Engine owns all ledger mutations. Reads can go straight to the store;
// writes must come through here.
type Engine struct {
	mu     sync.Mutex
	store  *storage.Store
	events *events.Publisher
}

// NewEngine builds an engine over store. pub may be nil to disable mutation
// events.
func NewEngine(store *storage.Store, pub *events.Publisher) *Engine {
	return &Engine{store: store, events: pub}
}

// SplitSpec is one category-tagged portion of a new transaction.
type SplitSpec struct {
	Amount     core.Money
	CategoryID int64
}

// CreateTransactionParams carries everything CreateTransaction needs.
// Splits must be non-empty and sum exactly to Net.
type CreateTransactionParams struct {
	Date        core.Date
	AccountID   int64
	MethodID    int64
	Description string
	Receipt     bool
	Net         core.Money
	Splits      []SplitSpec
	Transfer    bool
	NotReal     bool
}

func (p CreateTransactionParams) validate() error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if p.AccountID <= 0 {
		return fmt.Errorf("%w: bad account id %d", core.ErrValidation, p.AccountID)
	}
	if p.MethodID <= 0 {
		return fmt.Errorf("%w: bad method id %d", core.ErrValidation, p.MethodID)
	}
	if len(p.Splits) == 0 {
		return fmt.Errorf("%w: transaction needs at least one split", core.ErrValidation)
	}
	var sum core.Money
	for _, s := range p.Splits {
		if s.CategoryID <= 0 {
			return fmt.Errorf("%w: bad category id %d", core.ErrValidation, s.CategoryID)
		}
		sum = sum.Add(s.Amount)
	}
	if !sum.Equal(p.Net) {
		return fmt.Errorf("%w: splits sum %s, net %s", core.ErrSplitSumMismatch, sum, p.Net)
	}
	return nil
}

// CreateTransaction posts one transaction with its splits, applying the net
// amount to the account balance cache and each split amount to the owning
// budget's cache, all in one atomic unit.
func (e *Engine) CreateTransaction(ctx context.Context, p CreateTransactionParams) (int64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var id int64
	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		id, err = e.post(ctx, q, p)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	e.publish(ctx, events.NewMutation("transaction", events.OpCreated, id))
	return id, nil
}

// post writes the transaction, its splits and both balance deltas using the
// caller's open database transaction.
func (e *Engine) post(ctx context.Context, q *storage.Queries, p CreateTransactionParams) (int64, error) {
	account, err := q.GetAccount(ctx, p.AccountID)
	if err != nil {
		return 0, err
	}
	if !account.Valid {
		return 0, fmt.Errorf("account %d: %w", p.AccountID, core.ErrNotFound)
	}
	if _, err := q.GetMethod(ctx, p.MethodID); err != nil {
		return 0, err
	}

	id, err := q.InsertTransaction(ctx, core.Transaction{
		Date:        p.Date,
		Transfer:    p.Transfer,
		AccountID:   p.AccountID,
		MethodID:    p.MethodID,
		Description: p.Description,
		Receipt:     p.Receipt,
		NotReal:     p.NotReal,
	})
	if err != nil {
		return 0, err
	}

	for _, s := range p.Splits {
		cat, err := q.GetCategory(ctx, s.CategoryID)
		if err != nil {
			return 0, err
		}
		if !cat.Valid {
			return 0, fmt.Errorf("category %d: %w", s.CategoryID, core.ErrNotFound)
		}
		if _, err := q.InsertSplit(ctx, core.Split{
			Amount:        s.Amount,
			CategoryID:    s.CategoryID,
			TransactionID: id,
			Date:          p.Date,
			NotReal:       p.NotReal,
		}); err != nil {
			return 0, err
		}
		if err := q.AddToBudgetBalance(ctx, cat.BudgetID, s.Amount); err != nil {
			return 0, err
		}
	}

	if err := q.AddToAccountBalance(ctx, p.AccountID, p.Net); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateTransfer posts a withdrawal/deposit pair of equal magnitude and
// opposite sign against the reserved Transfer category and Automated method.
// The pair commits atomically: either both postings land or neither does.
func (e *Engine) CreateTransfer(ctx context.Context, date core.Date, fromAccount, toAccount int64, description string, receipt bool, amount core.Money) (withdrawID, depositID int64, err error) {
	if fromAccount == toAccount {
		return 0, 0, fmt.Errorf("%w: transfer to same account %d", core.ErrValidation, fromAccount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = e.store.InTx(ctx, func(q *storage.Queries) error {
		method, err := q.GetMethodByName(ctx, AutomatedMethod)
		if err != nil {
			return err
		}
		category, err := q.GetCategoryByName(ctx, TransferCategory)
		if err != nil {
			return err
		}

		withdraw := amount.Neg()
		p := CreateTransactionParams{
			Date:        date,
			AccountID:   fromAccount,
			MethodID:    method.ID,
			Description: description,
			Receipt:     receipt,
			Net:         withdraw,
			Splits:      []SplitSpec{{Amount: withdraw, CategoryID: category.ID}},
			Transfer:    true,
		}
		if withdrawID, err = e.post(ctx, q, p); err != nil {
			return err
		}

		p.AccountID = toAccount
		p.Net = amount
		p.Splits = []SplitSpec{{Amount: amount, CategoryID: category.ID}}
		depositID, err = e.post(ctx, q, p)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("create transfer: %w", err)
	}

	e.publish(ctx, events.NewMutation("transaction", events.OpCreated, withdrawID))
	e.publish(ctx, events.NewMutation("transaction", events.OpCreated, depositID))
	return withdrawID, depositID, nil
}

// CreateLinkedTransaction posts a transaction and links statement line
// lineID to it in the same database transaction, clearing any deferral on
// the line. Fails with ErrAlreadyLinked when the line already points at a
// transaction.
func (e *Engine) CreateLinkedTransaction(ctx context.Context, p CreateTransactionParams, lineID int64) (int64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var id int64
	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		line, err := q.GetStatementLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.Linked() {
			return fmt.Errorf("statement line %d already linked to transaction %d: %w",
				lineID, *line.TransactionID, core.ErrAlreadyLinked)
		}
		if id, err = e.post(ctx, q, p); err != nil {
			return err
		}
		if err := q.LinkStatementLine(ctx, lineID, id); err != nil {
			return err
		}
		if line.Deferred {
			return q.SetStatementDeferred(ctx, lineID, false)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create linked transaction: %w", err)
	}

	e.publish(ctx, events.NewMutation("transaction", events.OpCreated, id))
	e.publish(ctx, events.NewMutation("statement_line", events.OpLinked, lineID))
	return id, nil
}

// VoidTransaction soft-deletes a transaction: invalidates it and its splits,
// reverses both balance caches by the original amounts, and releases any
// statement line pointing at it. Fails with ErrAlreadyVoided on a repeat
// void and ErrInconsistentState when a split is already invalid.
func (e *Engine) VoidTransaction(ctx context.Context, transactionID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if !t.Valid {
			return fmt.Errorf("transaction %d: %w", transactionID, core.ErrAlreadyVoided)
		}

		splits, err := q.ListSplits(ctx, storage.SplitFilter{
			TransactionID:  transactionID,
			IncludeInvalid: true,
		})
		if err != nil {
			return err
		}

		var total core.Money
		for _, s := range splits {
			if !s.Valid {
				return fmt.Errorf("%w: transaction %d has invalid split %d",
					core.ErrInconsistentState, transactionID, s.ID)
			}
			total = total.Add(s.Amount)
		}

		for _, s := range splits {
			cat, err := q.GetCategory(ctx, s.CategoryID)
			if err != nil {
				return err
			}
			if err := q.AddToBudgetBalance(ctx, cat.BudgetID, s.Amount.Neg()); err != nil {
				return err
			}
			if err := q.SetSplitValid(ctx, s.ID, false); err != nil {
				return err
			}
		}

		if err := q.AddToAccountBalance(ctx, t.AccountID, total.Neg()); err != nil {
			return err
		}
		if err := q.SetTransactionValid(ctx, transactionID, false); err != nil {
			return err
		}

		released, err := q.ClearStatementLinks(ctx, transactionID)
		if err != nil {
			return err
		}
		if released > 0 {
			slog.InfoContext(ctx, "Released statement links on void",
				"transaction_id", transactionID, "lines", released)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("void transaction: %w", err)
	}

	e.publish(ctx, events.NewMutation("transaction", events.OpVoided, transactionID))
	return nil
}

// AdjustBudgetParams configures a direct budget balance change outside the
// split path: manual correction, inter-budget transfer, or accrual.
type AdjustBudgetParams struct {
	Date           core.Date
	Amount         core.Money
	BudgetID       int64
	Transfer       bool
	PeriodicUpdate bool
}

// AdjustBudget appends a BudgetAdjustment audit row and applies the amount
// to the budget balance cache in the same unit.
func (e *Engine) AdjustBudget(ctx context.Context, p AdjustBudgetParams) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var id int64
	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		id, err = adjustBudget(ctx, q, p)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adjust budget: %w", err)
	}

	e.publish(ctx, events.NewMutation("budget", events.OpAdjusted, p.BudgetID))
	return id, nil
}

func adjustBudget(ctx context.Context, q *storage.Queries, p AdjustBudgetParams) (int64, error) {
	budget, err := q.GetBudget(ctx, p.BudgetID)
	if err != nil {
		return 0, err
	}
	if !budget.Valid {
		return 0, fmt.Errorf("budget %d: %w", p.BudgetID, core.ErrNotFound)
	}
	id, err := q.InsertBudgetAdjustment(ctx, core.BudgetAdjustment{
		Date:           p.Date,
		Amount:         p.Amount,
		BudgetID:       p.BudgetID,
		Transfer:       p.Transfer,
		PeriodicUpdate: p.PeriodicUpdate,
	})
	if err != nil {
		return 0, err
	}
	if err := q.AddToBudgetBalance(ctx, p.BudgetID, p.Amount); err != nil {
		return 0, err
	}
	return id, nil
}

// TransferBudget moves amount between two budgets as a pair of transfer
// adjustments with opposite sign, committed atomically.
func (e *Engine) TransferBudget(ctx context.Context, date core.Date, amount core.Money, fromBudget, toBudget int64) error {
	if fromBudget == toBudget {
		return fmt.Errorf("%w: transfer to same budget %d", core.ErrValidation, fromBudget)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		if _, err := adjustBudget(ctx, q, AdjustBudgetParams{
			Date: date, Amount: amount.Neg(), BudgetID: fromBudget, Transfer: true,
		}); err != nil {
			return err
		}
		_, err := adjustBudget(ctx, q, AdjustBudgetParams{
			Date: date, Amount: amount, BudgetID: toBudget, Transfer: true,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("transfer budget: %w", err)
	}

	e.publish(ctx, events.NewMutation("budget", events.OpAdjusted, fromBudget))
	e.publish(ctx, events.NewMutation("budget", events.OpAdjusted, toBudget))
	return nil
}

// AccrueMonth applies every valid budget's monthly increment for one
// calendar month and advances the persisted watermark to month, all in one
// database transaction. Returns the number of budgets adjusted. The
// scheduler drives this month by month so a partial catch-up keeps every
// fully-applied month.
func (e *Engine) AccrueMonth(ctx context.Context, month core.Date) (int, error) {
	if err := month.Validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	applied := 0
	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		budgets, err := q.ListBudgets(ctx, storage.BudgetFilter{})
		if err != nil {
			return err
		}
		for _, b := range budgets {
			inc := b.Increment.MonthlyIncrement(b.Frequency)
			if inc.IsZero() {
				continue
			}
			if _, err := adjustBudget(ctx, q, AdjustBudgetParams{
				Date:           month,
				Amount:         inc,
				BudgetID:       b.ID,
				PeriodicUpdate: true,
			}); err != nil {
				return err
			}
			applied++
		}
		return q.SetSettingDate(ctx, storage.SettingLastBudgetUpdate, month)
	})
	if err != nil {
		return 0, fmt.Errorf("accrue month %s: %w", month, err)
	}

	slog.InfoContext(ctx, "Applied monthly accrual", "month", month.ISO(), "budgets", applied)
	return applied, nil
}

func (e *Engine) publish(ctx context.Context, m events.Mutation) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishMutation(ctx, m); err != nil {
		// Events are best-effort; the ledger mutation already committed.
		slog.ErrorContext(ctx, "Failed to publish mutation event",
			"entity", m.Entity, "op", m.Op, "id", m.ID, "error", err)
	}
}
