package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"homeledger/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenSeedsReservedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	q := store.Queries()

	method, err := q.GetMethodByName(ctx, "Automated")
	if err != nil {
		t.Fatalf("Automated method missing: %v", err)
	}
	if method.ID == 0 {
		t.Fatal("Automated method has no id")
	}

	budget, err := q.GetBudgetByName(ctx, "Transfer")
	if err != nil {
		t.Fatalf("Transfer budget missing: %v", err)
	}
	if budget.Visibility {
		t.Fatal("Transfer budget should be hidden")
	}
	if !budget.Increment.IsZero() {
		t.Fatal("Transfer budget should not accrue")
	}

	category, err := q.GetCategoryByName(ctx, "Transfer")
	if err != nil {
		t.Fatalf("Transfer category missing: %v", err)
	}
	if category.BudgetID != budget.ID {
		t.Fatalf("Transfer category owned by budget %d, want %d", category.BudgetID, budget.ID)
	}
}

func TestAccountRoundTripAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	q := store.Queries()

	id, err := q.InsertAccount(ctx, core.Account{
		Name:       "Checking",
		Balance:    core.MustParseMoney("100.00"),
		Opening:    core.MustParseMoney("100.00"),
		Purpose:    core.Spending,
		Visibility: true,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := q.InsertAccount(ctx, core.Account{
		Name: "Old 401k", Purpose: core.Saving, Visibility: false,
	}); err != nil {
		t.Fatalf("insert hidden: %v", err)
	}

	a, err := q.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Name != "Checking" || a.Balance.Cents != 10000 || !a.Valid {
		t.Fatalf("round trip mismatch: %+v", a)
	}

	visible, err := q.ListAccounts(ctx, AccountFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("expected 1 visible account, got %d", len(visible))
	}

	all, err := q.ListAccounts(ctx, AccountFilter{IncludeHidden: true})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(all))
	}

	if err := q.AddToAccountBalance(ctx, id, core.MustParseMoney("-25.00")); err != nil {
		t.Fatalf("add balance: %v", err)
	}
	a, _ = q.GetAccount(ctx, id)
	if a.Balance.Cents != 7500 {
		t.Fatalf("expected 7500 after delta, got %d", a.Balance.Cents)
	}

	if _, err := q.GetAccount(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := q.AddToAccountBalance(ctx, 9999, core.Zero); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing balance target, got %v", err)
	}
}

// seedLedger inserts an account, method, budget and category and returns
// their ids.
func seedLedger(t *testing.T, store *Store) (accountID, methodID, budgetID, categoryID int64) {
	t.Helper()
	ctx := context.Background()
	q := store.Queries()

	var err error
	if accountID, err = q.InsertAccount(ctx, core.Account{
		Name: "Checking", Purpose: core.Spending, Visibility: true,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if methodID, err = q.InsertMethod(ctx, "Debit Card"); err != nil {
		t.Fatalf("seed method: %v", err)
	}
	if budgetID, err = q.InsertBudget(ctx, core.Budget{
		Name: "Groceries", Purpose: core.Spending, Frequency: core.Monthly,
		Increment: core.MustParseMoney("400.00"), Visibility: true,
	}); err != nil {
		t.Fatalf("seed budget: %v", err)
	}
	if categoryID, err = q.InsertCategory(ctx, core.Category{
		Name: "Food", BudgetID: budgetID,
	}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return
}

func insertTransactionWithSplit(t *testing.T, q *Queries, date core.Date, accountID, methodID, categoryID int64, amount core.Money) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := q.InsertTransaction(ctx, core.Transaction{
		Date: date, AccountID: accountID, MethodID: methodID, Description: "test",
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	if _, err := q.InsertSplit(ctx, core.Split{
		Amount: amount, CategoryID: categoryID, TransactionID: id, Date: date,
	}); err != nil {
		t.Fatalf("insert split: %v", err)
	}
	return id
}

func TestTransactionAmountAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	q := store.Queries()
	accountID, methodID, _, categoryID := seedLedger(t, store)

	d1 := core.NewDate(2024, 3, 10)
	d2 := core.NewDate(2024, 3, 20)
	id1 := insertTransactionWithSplit(t, q, d1, accountID, methodID, categoryID, core.MustParseMoney("-42.00"))
	id2 := insertTransactionWithSplit(t, q, d2, accountID, methodID, categoryID, core.MustParseMoney("-17.50"))

	got, err := q.GetTransaction(ctx, id1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != -4200 {
		t.Fatalf("split sum: expected -4200, got %d", got.Amount.Cents)
	}

	amount := core.MustParseMoney("-17.50")
	matches, err := q.ListTransactions(ctx, TransactionFilter{AccountID: accountID, Amount: &amount})
	if err != nil {
		t.Fatalf("list by amount: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != id2 {
		t.Fatalf("expected only transaction %d, got %+v", id2, matches)
	}

	inWindow, err := q.ListTransactions(ctx, TransactionFilter{
		After:  core.NewDate(2024, 3, 15),
		Before: core.NewDate(2024, 3, 31),
	})
	if err != nil {
		t.Fatalf("list by window: %v", err)
	}
	if len(inWindow) != 1 || inWindow[0].ID != id2 {
		t.Fatalf("date window: expected transaction %d, got %+v", id2, inWindow)
	}

	// Soft delete hides from the default listing but not from Get.
	if err := q.SetTransactionValid(ctx, id1, false); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	remaining, err := q.ListTransactions(ctx, TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 valid transaction, got %d", len(remaining))
	}
	voided, err := q.GetTransaction(ctx, id1)
	if err != nil {
		t.Fatalf("get voided: %v", err)
	}
	if voided.Valid {
		t.Fatal("voided transaction still valid")
	}
}

func TestStatementLineLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	q := store.Queries()
	accountID, methodID, _, categoryID := seedLedger(t, store)

	date := core.NewDate(2024, 4, 2)
	lineID, err := q.InsertStatementLine(ctx, core.StatementLine{
		Date: date, StatementMonth: 4, StatementYear: 2024,
		AccountID: accountID, Amount: core.MustParseMoney("-30.00"),
		Description: "COFFEE SHOP",
	})
	if err != nil {
		t.Fatalf("insert line: %v", err)
	}

	n, err := q.CountStatementDuplicates(ctx, date, accountID, core.MustParseMoney("-30.00"), "COFFEE SHOP")
	if err != nil {
		t.Fatalf("count duplicates: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 duplicate, got %d", n)
	}

	unassigned, err := q.ListStatementLines(ctx, StatementFilter{Unassigned: true})
	if err != nil {
		t.Fatalf("list unassigned: %v", err)
	}
	if len(unassigned) != 1 {
		t.Fatalf("expected 1 unassigned line, got %d", len(unassigned))
	}

	txID := insertTransactionWithSplit(t, q, date, accountID, methodID, categoryID, core.MustParseMoney("-30.00"))
	if err := q.LinkStatementLine(ctx, lineID, txID); err != nil {
		t.Fatalf("link: %v", err)
	}

	line, err := q.GetStatementLine(ctx, lineID)
	if err != nil {
		t.Fatalf("get line: %v", err)
	}
	if !line.Linked() || *line.TransactionID != txID {
		t.Fatalf("link not recorded: %+v", line)
	}

	// Deferred lines drop out of the default working set.
	if err := q.SetStatementDeferred(ctx, lineID, true); err != nil {
		t.Fatalf("defer: %v", err)
	}
	working, err := q.ListStatementLines(ctx, StatementFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(working) != 0 {
		t.Fatalf("deferred line still in working set: %+v", working)
	}
	all, err := q.ListStatementLines(ctx, StatementFilter{IncludeDeferred: true})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 line, got %d", len(all))
	}

	released, err := q.ClearStatementLinks(ctx, txID)
	if err != nil {
		t.Fatalf("clear links: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released line, got %d", released)
	}
	line, _ = q.GetStatementLine(ctx, lineID)
	if line.Linked() {
		t.Fatal("link survived ClearStatementLinks")
	}
}

func TestSettingsWatermark(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	q := store.Queries()

	if _, ok, err := q.GetSettingDate(ctx, SettingLastBudgetUpdate); err != nil || ok {
		t.Fatalf("expected unset watermark, got ok=%v err=%v", ok, err)
	}

	want := core.NewDate(2024, 7, 1)
	if err := q.SetSettingDate(ctx, SettingLastBudgetUpdate, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := q.GetSettingDate(ctx, SettingLastBudgetUpdate)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ISO() != want.ISO() {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// Upsert overwrites.
	next := want.AddMonths(1)
	if err := q.SetSettingDate(ctx, SettingLastBudgetUpdate, next); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = q.GetSettingDate(ctx, SettingLastBudgetUpdate)
	if got.ISO() != next.ISO() {
		t.Fatalf("expected %s after overwrite, got %s", next, got)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	errBoom := fmt.Errorf("boom")
	err := store.InTx(ctx, func(q *Queries) error {
		if _, err := q.InsertMethod(ctx, "Cash"); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	if _, err := store.Queries().GetMethodByName(ctx, "Cash"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("insert should have rolled back, got %v", err)
	}
}
