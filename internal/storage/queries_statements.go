package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"homeledger/internal/core"
)

// StatementFilter narrows ListStatementLines. The default listing excludes
// deferred lines, matching the reconciliation workflow's working set.
type StatementFilter struct {
	Unassigned      bool
	IncludeDeferred bool
	IncludeInvalid  bool
	AccountID       int64
	After           core.Date
	Before          core.Date
	Month           int
	Year            int
	TransactionID   int64 // lines linked to this transaction
}

func (q *Queries) InsertStatementLine(ctx context.Context, l core.StatementLine) (int64, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO statement_transactions
			(date, statement_month, statement_year, account_id, amount_cents, description, taction_id, deferred, valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, l.Date.ISO(), l.StatementMonth, l.StatementYear, l.AccountID, l.Amount.Cents,
		l.Description, l.TransactionID, boolInt(l.Deferred))
	if err != nil {
		return 0, fmt.Errorf("insert statement line: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetStatementLine(ctx context.Context, id int64) (core.StatementLine, error) {
	var l core.StatementLine
	if err := checkID("statement line", id); err != nil {
		return l, err
	}
	row := q.db.QueryRowContext(ctx, `
		SELECT id, date, statement_month, statement_year, account_id, amount_cents,
		       description, taction_id, deferred, valid
		FROM statement_transactions WHERE id = ?
	`, id)
	if err := scanStatementLine(row, &l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return l, fmt.Errorf("statement line %d: %w", id, core.ErrNotFound)
		}
		return l, fmt.Errorf("get statement line: %w", err)
	}
	return l, nil
}

func (q *Queries) ListStatementLines(ctx context.Context, f StatementFilter) ([]core.StatementLine, error) {
	where := []string{"1=1"}
	var args []any
	if !f.IncludeInvalid {
		where = append(where, "valid = 1")
	}
	if f.Unassigned {
		where = append(where, "taction_id IS NULL")
	}
	if !f.IncludeDeferred {
		where = append(where, "deferred = 0")
	}
	if f.AccountID > 0 {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if !f.After.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.After.ISO())
	}
	if !f.Before.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.Before.ISO())
	}
	if f.Month > 0 {
		where = append(where, "statement_month = ?")
		args = append(args, f.Month)
	}
	if f.Year > 0 {
		where = append(where, "statement_year = ?")
		args = append(args, f.Year)
	}
	if f.TransactionID > 0 {
		where = append(where, "taction_id = ?")
		args = append(args, f.TransactionID)
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, date, statement_month, statement_year, account_id, amount_cents,
		       description, taction_id, deferred, valid
		FROM statement_transactions WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query statement lines: %w", err)
	}
	defer rows.Close()

	var out []core.StatementLine
	for rows.Next() {
		var l core.StatementLine
		if err := scanStatementLine(rows, &l); err != nil {
			return nil, fmt.Errorf("scan statement line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LinkStatementLine points a statement line at a transaction. Uniqueness of
// the link is the matcher's concern (advisory duplicate check before write,
// audited after); the store only records it.
func (q *Queries) LinkStatementLine(ctx context.Context, lineID, transactionID int64) error {
	if err := checkID("statement line", lineID); err != nil {
		return err
	}
	if err := checkID("transaction", transactionID); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE statement_transactions SET taction_id = ? WHERE id = ?", transactionID, lineID)
	if err != nil {
		return fmt.Errorf("link statement line: %w", err)
	}
	return requireRow(res, "statement line", lineID)
}

// UnlinkStatementLine clears the link on one line.
func (q *Queries) UnlinkStatementLine(ctx context.Context, lineID int64) error {
	if err := checkID("statement line", lineID); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE statement_transactions SET taction_id = NULL WHERE id = ?", lineID)
	if err != nil {
		return fmt.Errorf("unlink statement line: %w", err)
	}
	return requireRow(res, "statement line", lineID)
}

// ClearStatementLinks nulls every link pointing at transactionID, returning
// the number of lines released. Used when the transaction is voided.
func (q *Queries) ClearStatementLinks(ctx context.Context, transactionID int64) (int64, error) {
	if err := checkID("transaction", transactionID); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE statement_transactions SET taction_id = NULL WHERE taction_id = ?", transactionID)
	if err != nil {
		return 0, fmt.Errorf("clear statement links: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) SetStatementDeferred(ctx context.Context, lineID int64, deferred bool) error {
	if err := checkID("statement line", lineID); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE statement_transactions SET deferred = ? WHERE id = ?", boolInt(deferred), lineID)
	if err != nil {
		return fmt.Errorf("update statement deferred: %w", err)
	}
	return requireRow(res, "statement line", lineID)
}

// CountStatementDuplicates reports how many existing lines share the exact
// (date, account, amount, description) tuple. The importer skips matches.
func (q *Queries) CountStatementDuplicates(ctx context.Context, date core.Date, accountID int64, amount core.Money, description string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM statement_transactions
		WHERE date = ? AND account_id = ? AND amount_cents = ? AND description = ?
	`, date.ISO(), accountID, amount.Cents, description).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count statement duplicates: %w", err)
	}
	return n, nil
}

func scanStatementLine(row scannable, l *core.StatementLine) error {
	var date string
	var cents, deferred, valid int64
	var tactionID sql.NullInt64
	if err := row.Scan(&l.ID, &date, &l.StatementMonth, &l.StatementYear, &l.AccountID,
		&cents, &l.Description, &tactionID, &deferred, &valid); err != nil {
		return err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return err
	}
	l.Date = d
	l.Amount = core.Money{Cents: cents}
	if tactionID.Valid {
		id := tactionID.Int64
		l.TransactionID = &id
	} else {
		l.TransactionID = nil
	}
	l.Deferred = deferred == 1
	l.Valid = valid == 1
	return nil
}

// CategorizedDescription pairs a historical statement description with the
// category its linked transaction was filed under. The suggester trains on
// these.
type CategorizedDescription struct {
	Description string
	CategoryID  int64
}

func (q *Queries) ListCategorizedDescriptions(ctx context.Context) ([]CategorizedDescription, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT st.description, s.category_id
		FROM statement_transactions st
		JOIN taction t ON t.id = st.taction_id AND t.valid = 1
		JOIN sub s ON s.taction_id = t.id AND s.valid = 1
		WHERE st.valid = 1 AND st.taction_id IS NOT NULL AND st.description != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("query categorized descriptions: %w", err)
	}
	defer rows.Close()

	var out []CategorizedDescription
	for rows.Next() {
		var c CategorizedDescription
		if err := rows.Scan(&c.Description, &c.CategoryID); err != nil {
			return nil, fmt.Errorf("scan categorized description: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) InsertHsaDistribution(ctx context.Context, h core.HsaDistribution) (int64, error) {
	if err := h.Date.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO hsa_transactions
			(date, person, merchant, amount_cents, description, expense_taction_id,
			 distribution_taction_id, receipt_path, hsa_debit, dependent_care, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.Date.ISO(), h.Person, h.Merchant, h.Amount.Cents, h.Description,
		h.ExpenseTransactionID, h.DistributionTransactionID, h.ReceiptPath,
		boolInt(h.HsaDebit), boolInt(h.DependentCare), h.SourceID)
	if err != nil {
		return 0, fmt.Errorf("insert hsa distribution: %w", err)
	}
	return res.LastInsertId()
}

// HsaFilter narrows ListHsaDistributions.
type HsaFilter struct {
	MissingExpense      bool
	MissingDistribution bool
	MissingReceipt      bool
	SourceID            string
}

func (q *Queries) ListHsaDistributions(ctx context.Context, f HsaFilter) ([]core.HsaDistribution, error) {
	where := []string{"1=1"}
	var args []any
	if f.MissingExpense {
		where = append(where, "expense_taction_id IS NULL")
	}
	if f.MissingDistribution {
		where = append(where, "distribution_taction_id IS NULL")
	}
	if f.MissingReceipt {
		where = append(where, "receipt_path = ''")
	}
	if f.SourceID != "" {
		where = append(where, "source_id = ?")
		args = append(args, f.SourceID)
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, date, person, merchant, amount_cents, description, expense_taction_id,
		       distribution_taction_id, receipt_path, hsa_debit, dependent_care, source_id
		FROM hsa_transactions WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query hsa distributions: %w", err)
	}
	defer rows.Close()

	var out []core.HsaDistribution
	for rows.Next() {
		var h core.HsaDistribution
		var date string
		var cents, debit, depCare int64
		var expenseID, distributionID sql.NullInt64
		if err := rows.Scan(&h.ID, &date, &h.Person, &h.Merchant, &cents, &h.Description,
			&expenseID, &distributionID, &h.ReceiptPath, &debit, &depCare, &h.SourceID); err != nil {
			return nil, fmt.Errorf("scan hsa distribution: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, err
		}
		h.Date = d
		h.Amount = core.Money{Cents: cents}
		if expenseID.Valid {
			v := expenseID.Int64
			h.ExpenseTransactionID = &v
		}
		if distributionID.Valid {
			v := distributionID.Int64
			h.DistributionTransactionID = &v
		}
		h.HsaDebit = debit == 1
		h.DependentCare = depCare == 1
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *Queries) SetHsaField(ctx context.Context, id int64, field HsaLinkField, value any) error {
	if err := checkID("hsa distribution", id); err != nil {
		return err
	}
	var column string
	switch field {
	case HsaExpense:
		column = "expense_taction_id"
	case HsaDistributionTxn:
		column = "distribution_taction_id"
	case HsaReceipt:
		column = "receipt_path"
	default:
		return fmt.Errorf("%w: unknown hsa field", core.ErrValidation)
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE hsa_transactions SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("update hsa %s: %w", column, err)
	}
	return requireRow(res, "hsa distribution", id)
}

// HsaLinkField selects which HSA link column SetHsaField updates. A closed
// enum, not a caller-supplied column name.
type HsaLinkField int

const (
	HsaExpense HsaLinkField = iota
	HsaDistributionTxn
	HsaReceipt
)

// Settings: a small key/value table; the accrual watermark lives here.

const SettingLastBudgetUpdate = "last_budget_update"

// GetSettingDate reads a date-valued setting. ok is false when unset.
func (q *Queries) GetSettingDate(ctx context.Context, key string) (core.Date, bool, error) {
	var value string
	err := q.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Date{}, false, nil
	}
	if err != nil {
		return core.Date{}, false, fmt.Errorf("get setting %s: %w", key, err)
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("setting %s: %w", key, err)
	}
	return d, true, nil
}

func (q *Queries) SetSettingDate(ctx context.Context, key string, d core.Date) error {
	if err := d.Validate(); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, d.ISO())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
