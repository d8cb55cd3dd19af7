package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"homeledger/internal/core"
	"homeledger/internal/events"
	"homeledger/internal/storage"
)

// Entity registration. These go through the engine so creation events fire
// and the balance caches start from the declared opening amounts.

// AddAccount registers a new account with its opening balance.
func (e *Engine) AddAccount(ctx context.Context, name string, opening core.Money, purpose core.Purpose, visible bool) (int64, error) {
	a := core.Account{
		Name:       strings.TrimSpace(name),
		Balance:    opening,
		Opening:    opening,
		Purpose:    purpose,
		Visibility: visible,
		Valid:      true,
	}
	if err := a.Validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.store.Queries().InsertAccount(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("add account: %w", err)
	}
	slog.InfoContext(ctx, "Added account", "id", id, "name", a.Name)
	e.publish(ctx, events.NewMutation("account", events.OpCreated, id))
	return id, nil
}

// AddBudget registers a new budget. increment and frequency configure the
// monthly accrual; a zero increment disables it.
func (e *Engine) AddBudget(ctx context.Context, name string, opening core.Money, purpose core.Purpose, frequency core.Frequency, increment core.Money, visible bool) (int64, error) {
	b := core.Budget{
		Name:       strings.TrimSpace(name),
		Balance:    opening,
		Opening:    opening,
		Purpose:    purpose,
		Frequency:  frequency,
		Increment:  increment,
		Visibility: visible,
		Valid:      true,
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.store.Queries().InsertBudget(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("add budget: %w", err)
	}
	slog.InfoContext(ctx, "Added budget", "id", id, "name", b.Name)
	e.publish(ctx, events.NewMutation("budget", events.OpCreated, id))
	return id, nil
}

// AddCategory registers a category under the budget that will absorb its
// splits.
func (e *Engine) AddCategory(ctx context.Context, name string, budgetID int64) (int64, error) {
	c := core.Category{Name: strings.TrimSpace(name), BudgetID: budgetID, Valid: true}
	if err := c.Validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var id int64
	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		budget, err := q.GetBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		if !budget.Valid {
			return fmt.Errorf("budget %d: %w", budgetID, core.ErrNotFound)
		}
		id, err = q.InsertCategory(ctx, c)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add category: %w", err)
	}
	e.publish(ctx, events.NewMutation("category", events.OpCreated, id))
	return id, nil
}

// AddMethod registers a payment method.
func (e *Engine) AddMethod(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: empty method name", core.ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.store.Queries().InsertMethod(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("add method: %w", err)
	}
	e.publish(ctx, events.NewMutation("method", events.OpCreated, id))
	return id, nil
}

// SetBudgetProfile replaces the budget's twelve-month target curve.
func (e *Engine) SetBudgetProfile(ctx context.Context, p core.BudgetProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetBudget(ctx, p.BudgetID); err != nil {
			return err
		}
		return q.SetBudgetProfile(ctx, p)
	})
	if err != nil {
		return fmt.Errorf("set budget profile: %w", err)
	}
	e.publish(ctx, events.NewMutation("budget", events.OpAdjusted, p.BudgetID))
	return nil
}
