package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"homeledger/internal/core"
)

// TransactionFilter is the named-optional-filter set for transaction reads.
// Amount filters on the split sum of the transaction.
type TransactionFilter struct {
	After          core.Date
	Before         core.Date
	AccountID      int64
	Amount         *core.Money
	Description    string // substring match
	IncludeInvalid bool
	IncludeNotReal bool
}

const transactionSelect = `
	SELECT t.id, t.date, t.transfer, t.account_id, t.method_id, t.description,
	       t.receipt, t.valid, t.not_real,
	       COALESCE(SUM(CASE WHEN s.valid = 1 THEN s.amount_cents ELSE 0 END), 0) AS amount_cents
	FROM taction t
	LEFT JOIN sub s ON s.taction_id = t.id
`

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO taction (date, transfer, account_id, method_id, description, receipt, valid, not_real)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
	`, t.Date.ISO(), boolInt(t.Transfer), t.AccountID, t.MethodID, t.Description,
		boolInt(t.Receipt), boolInt(t.NotReal))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// GetTransaction fetches one transaction regardless of validity; voiding
// needs to see invalid rows to report ErrAlreadyVoided.
func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var t core.Transaction
	if err := checkID("transaction", id); err != nil {
		return t, err
	}
	row := q.db.QueryRowContext(ctx, transactionSelect+" WHERE t.id = ? GROUP BY t.id", id)
	if err := scanTransaction(row, &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
		}
		return t, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	where := []string{"1=1"}
	var args []any
	if !f.IncludeInvalid {
		where = append(where, "t.valid = 1")
	}
	if !f.IncludeNotReal {
		where = append(where, "t.not_real = 0")
	}
	if f.AccountID > 0 {
		where = append(where, "t.account_id = ?")
		args = append(args, f.AccountID)
	}
	if !f.After.IsZero() {
		where = append(where, "t.date >= ?")
		args = append(args, f.After.ISO())
	}
	if !f.Before.IsZero() {
		where = append(where, "t.date <= ?")
		args = append(args, f.Before.ISO())
	}
	if f.Description != "" {
		where = append(where, "t.description LIKE ?")
		args = append(args, "%"+f.Description+"%")
	}
	query := transactionSelect + " WHERE " + strings.Join(where, " AND ") + " GROUP BY t.id"
	if f.Amount != nil {
		query += " HAVING amount_cents = ?"
		args = append(args, f.Amount.Cents)
	}
	query += " ORDER BY t.date DESC, t.id DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) SetTransactionValid(ctx context.Context, id int64, valid bool) error {
	if err := checkID("transaction", id); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE taction SET valid = ? WHERE id = ?", boolInt(valid), id)
	if err != nil {
		return fmt.Errorf("update transaction valid: %w", err)
	}
	return requireRow(res, "transaction", id)
}

func scanTransaction(row scannable, t *core.Transaction) error {
	var date string
	var transfer, receipt, valid, notReal, cents int64
	if err := row.Scan(&t.ID, &date, &transfer, &t.AccountID, &t.MethodID,
		&t.Description, &receipt, &valid, &notReal, &cents); err != nil {
		return err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return err
	}
	t.Date = d
	t.Transfer = transfer == 1
	t.Receipt = receipt == 1
	t.Valid = valid == 1
	t.NotReal = notReal == 1
	t.Amount = core.Money{Cents: cents}
	return nil
}

// SplitFilter narrows ListSplits.
type SplitFilter struct {
	TransactionID  int64
	CategoryID     int64
	After          core.Date
	Before         core.Date
	IncludeInvalid bool
}

func (q *Queries) InsertSplit(ctx context.Context, s core.Split) (int64, error) {
	if err := checkID("category", s.CategoryID); err != nil {
		return 0, err
	}
	if err := checkID("transaction", s.TransactionID); err != nil {
		return 0, err
	}
	if err := s.Date.Validate(); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO sub (amount_cents, category_id, taction_id, date, valid, not_real)
		VALUES (?, ?, ?, ?, 1, ?)
	`, s.Amount.Cents, s.CategoryID, s.TransactionID, s.Date.ISO(), boolInt(s.NotReal))
	if err != nil {
		return 0, fmt.Errorf("insert split: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) ListSplits(ctx context.Context, f SplitFilter) ([]core.Split, error) {
	where := []string{"1=1"}
	var args []any
	if !f.IncludeInvalid {
		where = append(where, "valid = 1")
	}
	if f.TransactionID > 0 {
		where = append(where, "taction_id = ?")
		args = append(args, f.TransactionID)
	}
	if f.CategoryID > 0 {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.After.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.After.ISO())
	}
	if !f.Before.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.Before.ISO())
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, amount_cents, category_id, taction_id, date, valid, not_real
		FROM sub WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query splits: %w", err)
	}
	defer rows.Close()

	var out []core.Split
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) SetSplitValid(ctx context.Context, id int64, valid bool) error {
	if err := checkID("split", id); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE sub SET valid = ? WHERE id = ?", boolInt(valid), id)
	if err != nil {
		return fmt.Errorf("update split valid: %w", err)
	}
	return requireRow(res, "split", id)
}

func scanSplit(row scannable) (core.Split, error) {
	var s core.Split
	var date string
	var cents, valid, notReal int64
	if err := row.Scan(&s.ID, &cents, &s.CategoryID, &s.TransactionID, &date, &valid, &notReal); err != nil {
		return s, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return s, err
	}
	s.Date = d
	s.Amount = core.Money{Cents: cents}
	s.Valid = valid == 1
	s.NotReal = notReal == 1
	return s, nil
}
