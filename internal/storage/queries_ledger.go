package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"homeledger/internal/core"
)

// AccountFilter narrows ListAccounts. Zero value lists valid, visible rows.
type AccountFilter struct {
	IncludeInvalid bool
	IncludeHidden  bool
}

func (q *Queries) InsertAccount(ctx context.Context, a core.Account) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO account (name, balance_cents, opening_cents, purpose, visibility, valid)
		VALUES (?, ?, ?, ?, ?, 1)
	`, a.Name, a.Balance.Cents, a.Opening.Cents, string(a.Purpose), boolInt(a.Visibility))
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var a core.Account
	if err := checkID("account", id); err != nil {
		return a, err
	}
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, balance_cents, opening_cents, purpose, visibility, valid
		FROM account WHERE id = ?
	`, id)
	if err := scanAccount(row, &a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
		}
		return a, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, f AccountFilter) ([]core.Account, error) {
	where := []string{"1=1"}
	if !f.IncludeInvalid {
		where = append(where, "valid = 1")
	}
	if !f.IncludeHidden {
		where = append(where, "visibility = 1")
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, balance_cents, opening_cents, purpose, visibility, valid
		FROM account WHERE `+strings.Join(where, " AND ")+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddToAccountBalance applies a delta to the account balance cache.
func (q *Queries) AddToAccountBalance(ctx context.Context, id int64, delta core.Money) error {
	if err := checkID("account", id); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE account SET balance_cents = balance_cents + ? WHERE id = ?",
		delta.Cents, id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return requireRow(res, "account", id)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable, a *core.Account) error {
	var balance, opening, visibility, valid int64
	var purpose string
	if err := row.Scan(&a.ID, &a.Name, &balance, &opening, &purpose, &visibility, &valid); err != nil {
		return err
	}
	a.Balance = core.Money{Cents: balance}
	a.Opening = core.Money{Cents: opening}
	a.Purpose = core.Purpose(purpose)
	a.Visibility = visibility == 1
	a.Valid = valid == 1
	return nil
}

// BudgetFilter narrows ListBudgets. Zero value lists valid rows, hidden
// included (hidden budgets like Transfer still accrue and audit).
type BudgetFilter struct {
	IncludeInvalid bool
	VisibleOnly    bool
}

func (q *Queries) InsertBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO budget (name, balance_cents, opening_cents, purpose, frequency, increment_cents, visibility, valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	`, b.Name, b.Balance.Cents, b.Opening.Cents, string(b.Purpose), string(b.Frequency), b.Increment.Cents, boolInt(b.Visibility))
	if err != nil {
		return 0, fmt.Errorf("insert budget: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	var b core.Budget
	if err := checkID("budget", id); err != nil {
		return b, err
	}
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, balance_cents, opening_cents, purpose, frequency, increment_cents, visibility, valid
		FROM budget WHERE id = ?
	`, id)
	if err := scanBudget(row, &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
		}
		return b, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (q *Queries) GetBudgetByName(ctx context.Context, name string) (core.Budget, error) {
	var b core.Budget
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, balance_cents, opening_cents, purpose, frequency, increment_cents, visibility, valid
		FROM budget WHERE name = ?
	`, name)
	if err := scanBudget(row, &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, fmt.Errorf("budget %q: %w", name, core.ErrNotFound)
		}
		return b, fmt.Errorf("get budget by name: %w", err)
	}
	return b, nil
}

func (q *Queries) ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	where := []string{"1=1"}
	if !f.IncludeInvalid {
		where = append(where, "valid = 1")
	}
	if f.VisibleOnly {
		where = append(where, "visibility = 1")
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, balance_cents, opening_cents, purpose, frequency, increment_cents, visibility, valid
		FROM budget WHERE `+strings.Join(where, " AND ")+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := scanBudget(rows, &b); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) AddToBudgetBalance(ctx context.Context, id int64, delta core.Money) error {
	if err := checkID("budget", id); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE budget SET balance_cents = balance_cents + ? WHERE id = ?",
		delta.Cents, id)
	if err != nil {
		return fmt.Errorf("update budget balance: %w", err)
	}
	return requireRow(res, "budget", id)
}

func scanBudget(row scannable, b *core.Budget) error {
	var balance, opening, increment, visibility, valid int64
	var purpose, frequency string
	if err := row.Scan(&b.ID, &b.Name, &balance, &opening, &purpose, &frequency, &increment, &visibility, &valid); err != nil {
		return err
	}
	b.Balance = core.Money{Cents: balance}
	b.Opening = core.Money{Cents: opening}
	b.Purpose = core.Purpose(purpose)
	b.Frequency = core.Frequency(frequency)
	b.Increment = core.Money{Cents: increment}
	b.Visibility = visibility == 1
	b.Valid = valid == 1
	return nil
}

// SetBudgetProfile replaces the 12-month target curve for a budget.
func (q *Queries) SetBudgetProfile(ctx context.Context, p core.BudgetProfile) error {
	if err := checkID("budget", p.BudgetID); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx,
		"DELETE FROM budget_profile WHERE budget_id = ?", p.BudgetID); err != nil {
		return fmt.Errorf("clear budget profile: %w", err)
	}
	for i, target := range p.Targets {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO budget_profile (budget_id, month, target_cents) VALUES (?, ?, ?)
		`, p.BudgetID, i+1, target.Cents); err != nil {
			return fmt.Errorf("insert budget profile month %d: %w", i+1, err)
		}
	}
	return nil
}

func (q *Queries) GetBudgetProfile(ctx context.Context, budgetID int64) (core.BudgetProfile, error) {
	p := core.BudgetProfile{BudgetID: budgetID}
	if err := checkID("budget", budgetID); err != nil {
		return p, err
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT month, target_cents FROM budget_profile WHERE budget_id = ? ORDER BY month", budgetID)
	if err != nil {
		return p, fmt.Errorf("query budget profile: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var month, cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return p, fmt.Errorf("scan budget profile: %w", err)
		}
		if month >= 1 && month <= 12 {
			p.Targets[month-1] = core.Money{Cents: cents}
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return p, err
	}
	if !found {
		return p, fmt.Errorf("budget %d profile: %w", budgetID, core.ErrNotFound)
	}
	return p, nil
}

// AdjustmentFilter narrows ListBudgetAdjustments by budget and date range.
type AdjustmentFilter struct {
	BudgetID  int64
	After     core.Date
	Before    core.Date
	Transfers *bool
}

func (q *Queries) InsertBudgetAdjustment(ctx context.Context, a core.BudgetAdjustment) (int64, error) {
	if err := checkID("budget", a.BudgetID); err != nil {
		return 0, err
	}
	if err := a.Date.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO budget_adjustments (date, amount_cents, budget_id, transfer, periodic_update)
		VALUES (?, ?, ?, ?, ?)
	`, a.Date.ISO(), a.Amount.Cents, a.BudgetID, boolInt(a.Transfer), boolInt(a.PeriodicUpdate))
	if err != nil {
		return 0, fmt.Errorf("insert budget adjustment: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) ListBudgetAdjustments(ctx context.Context, f AdjustmentFilter) ([]core.BudgetAdjustment, error) {
	where := []string{"1=1"}
	var args []any
	if f.BudgetID > 0 {
		where = append(where, "budget_id = ?")
		args = append(args, f.BudgetID)
	}
	if !f.After.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.After.ISO())
	}
	if !f.Before.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.Before.ISO())
	}
	if f.Transfers != nil {
		where = append(where, "transfer = ?")
		args = append(args, boolInt(*f.Transfers))
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, date, amount_cents, budget_id, transfer, periodic_update
		FROM budget_adjustments WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query budget adjustments: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetAdjustment
	for rows.Next() {
		var a core.BudgetAdjustment
		var date string
		var cents, transfer, periodic int64
		if err := rows.Scan(&a.ID, &date, &cents, &a.BudgetID, &transfer, &periodic); err != nil {
			return nil, fmt.Errorf("scan budget adjustment: %w", err)
		}
		if a.Date, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		a.Amount = core.Money{Cents: cents}
		a.Transfer = transfer == 1
		a.PeriodicUpdate = periodic == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO category (name, budget_id, valid) VALUES (?, ?, 1)",
		c.Name, c.BudgetID)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	if err := checkID("category", id); err != nil {
		return c, err
	}
	var valid int64
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, budget_id, valid FROM category WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.BudgetID, &valid)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("get category: %w", err)
	}
	c.Valid = valid == 1
	return c, nil
}

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	var valid int64
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, budget_id, valid FROM category WHERE name = ?", name).
		Scan(&c.ID, &c.Name, &c.BudgetID, &valid)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("get category by name: %w", err)
	}
	c.Valid = valid == 1
	return c, nil
}

// ListCategories returns valid categories, optionally limited to one budget.
func (q *Queries) ListCategories(ctx context.Context, budgetID int64) ([]core.Category, error) {
	where := "valid = 1"
	var args []any
	if budgetID > 0 {
		where += " AND budget_id = ?"
		args = append(args, budgetID)
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name, budget_id, valid FROM category WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var valid int64
		if err := rows.Scan(&c.ID, &c.Name, &c.BudgetID, &valid); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Valid = valid == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) InsertMethod(ctx context.Context, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: empty method name", core.ErrValidation)
	}
	res, err := q.db.ExecContext(ctx, "INSERT INTO method (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("insert method: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetMethod(ctx context.Context, id int64) (core.Method, error) {
	var m core.Method
	if err := checkID("method", id); err != nil {
		return m, err
	}
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name FROM method WHERE id = ?", id).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("method %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("get method: %w", err)
	}
	return m, nil
}

func (q *Queries) GetMethodByName(ctx context.Context, name string) (core.Method, error) {
	var m core.Method
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name FROM method WHERE name = ?", name).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("method %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("get method by name: %w", err)
	}
	return m, nil
}

func (q *Queries) ListMethods(ctx context.Context) ([]core.Method, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name FROM method ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query methods: %w", err)
	}
	defer rows.Close()

	var out []core.Method
	for rows.Next() {
		var m core.Method
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan method: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return nil
}
