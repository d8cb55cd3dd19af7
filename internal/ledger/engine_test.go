package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

type fixture struct {
	store  *storage.Store
	engine *Engine

	accountID  int64
	methodID   int64
	budgetID   int64
	categoryID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, engine: NewEngine(store, nil)}

	f.accountID, err = f.engine.AddAccount(ctx, "Checking", core.MustParseMoney("1000.00"), core.Spending, true)
	require.NoError(t, err)
	f.methodID, err = f.engine.AddMethod(ctx, "Debit Card")
	require.NoError(t, err)
	f.budgetID, err = f.engine.AddBudget(ctx, "Groceries", core.MustParseMoney("200.00"), core.Spending, core.Monthly, core.MustParseMoney("400.00"), true)
	require.NoError(t, err)
	f.categoryID, err = f.engine.AddCategory(ctx, "Food", f.budgetID)
	require.NoError(t, err)
	return f
}

func (f *fixture) account(t *testing.T) core.Account {
	t.Helper()
	a, err := f.store.Queries().GetAccount(context.Background(), f.accountID)
	require.NoError(t, err)
	return a
}

func (f *fixture) budget(t *testing.T) core.Budget {
	t.Helper()
	b, err := f.store.Queries().GetBudget(context.Background(), f.budgetID)
	require.NoError(t, err)
	return b
}

func TestCreateTransactionUpdatesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.CreateTransaction(ctx, CreateTransactionParams{
		Date:        core.NewDate(2024, 3, 10),
		AccountID:   f.accountID,
		MethodID:    f.methodID,
		Description: "groceries",
		Net:         core.MustParseMoney("-42.00"),
		Splits:      []SplitSpec{{Amount: core.MustParseMoney("-42.00"), CategoryID: f.categoryID}},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	assert.Equal(t, int64(95800), f.account(t).Balance.Cents)
	assert.Equal(t, int64(15800), f.budget(t).Balance.Cents)

	got, err := f.store.Queries().GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(-4200), got.Amount.Cents)
}

func TestCreateTransactionMultiSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherBudget, err := f.engine.AddBudget(ctx, "Household", core.Zero, core.Spending, core.Monthly, core.Zero, true)
	require.NoError(t, err)
	otherCategory, err := f.engine.AddCategory(ctx, "Cleaning", otherBudget)
	require.NoError(t, err)

	_, err = f.engine.CreateTransaction(ctx, CreateTransactionParams{
		Date:        core.NewDate(2024, 3, 11),
		AccountID:   f.accountID,
		MethodID:    f.methodID,
		Description: "supermarket run",
		Net:         core.MustParseMoney("-60.00"),
		Splits: []SplitSpec{
			{Amount: core.MustParseMoney("-45.00"), CategoryID: f.categoryID},
			{Amount: core.MustParseMoney("-15.00"), CategoryID: otherCategory},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(94000), f.account(t).Balance.Cents)
	assert.Equal(t, int64(15500), f.budget(t).Balance.Cents)

	b, err := f.store.Queries().GetBudget(ctx, otherBudget)
	require.NoError(t, err)
	assert.Equal(t, int64(-1500), b.Balance.Cents)
}

func TestCreateTransactionSplitSumMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateTransaction(context.Background(), CreateTransactionParams{
		Date:      core.NewDate(2024, 3, 10),
		AccountID: f.accountID,
		MethodID:  f.methodID,
		Net:       core.MustParseMoney("-50.00"),
		Splits:    []SplitSpec{{Amount: core.MustParseMoney("-42.00"), CategoryID: f.categoryID}},
	})
	require.ErrorIs(t, err, core.ErrSplitSumMismatch)

	// Nothing was written.
	assert.Equal(t, int64(100000), f.account(t).Balance.Cents)
	txs, err := f.store.Queries().ListTransactions(context.Background(), storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCreateTransactionRejectsEmptySplits(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateTransaction(context.Background(), CreateTransactionParams{
		Date:      core.NewDate(2024, 3, 10),
		AccountID: f.accountID,
		MethodID:  f.methodID,
	})
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestVoidTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.CreateTransaction(ctx, CreateTransactionParams{
		Date:      core.NewDate(2024, 3, 10),
		AccountID: f.accountID,
		MethodID:  f.methodID,
		Net:       core.MustParseMoney("-42.00"),
		Splits:    []SplitSpec{{Amount: core.MustParseMoney("-42.00"), CategoryID: f.categoryID}},
	})
	require.NoError(t, err)

	// A statement line linked to the transaction gets released on void.
	lineID, err := f.store.Queries().InsertStatementLine(ctx, core.StatementLine{
		Date: core.NewDate(2024, 3, 10), StatementMonth: 3, StatementYear: 2024,
		AccountID: f.accountID, Amount: core.MustParseMoney("-42.00"),
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Queries().LinkStatementLine(ctx, lineID, id))

	require.NoError(t, f.engine.VoidTransaction(ctx, id))

	assert.Equal(t, int64(100000), f.account(t).Balance.Cents)
	assert.Equal(t, int64(20000), f.budget(t).Balance.Cents)

	voided, err := f.store.Queries().GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.False(t, voided.Valid)

	line, err := f.store.Queries().GetStatementLine(ctx, lineID)
	require.NoError(t, err)
	assert.False(t, line.Linked())

	// Voiding twice is a detectable mistake.
	require.ErrorIs(t, f.engine.VoidTransaction(ctx, id), core.ErrAlreadyVoided)
}

func TestCreateTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	savingsID, err := f.engine.AddAccount(ctx, "Savings", core.Zero, core.Saving, true)
	require.NoError(t, err)

	withdrawID, depositID, err := f.engine.CreateTransfer(ctx,
		core.NewDate(2024, 4, 1), f.accountID, savingsID, "monthly sweep", false,
		core.MustParseMoney("250.00"))
	require.NoError(t, err)
	require.NotEqual(t, withdrawID, depositID)

	assert.Equal(t, int64(75000), f.account(t).Balance.Cents)
	savings, err := f.store.Queries().GetAccount(ctx, savingsID)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), savings.Balance.Cents)

	// Both legs carry the reserved category and are flagged as transfers.
	withdraw, err := f.store.Queries().GetTransaction(ctx, withdrawID)
	require.NoError(t, err)
	assert.True(t, withdraw.Transfer)
	assert.Equal(t, int64(-25000), withdraw.Amount.Cents)

	// The Transfer budget nets to zero.
	transferBudget, err := f.store.Queries().GetBudgetByName(ctx, TransferCategory)
	require.NoError(t, err)
	assert.Zero(t, transferBudget.Balance.Cents)

	_, _, err = f.engine.CreateTransfer(ctx, core.NewDate(2024, 4, 1),
		f.accountID, f.accountID, "self", false, core.MustParseMoney("1.00"))
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestAdjustAndTransferBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AdjustBudget(ctx, AdjustBudgetParams{
		Date:     core.NewDate(2024, 4, 1),
		Amount:   core.MustParseMoney("50.00"),
		BudgetID: f.budgetID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), f.budget(t).Balance.Cents)

	otherID, err := f.engine.AddBudget(ctx, "Vacation", core.Zero, core.Saving, core.Monthly, core.Zero, true)
	require.NoError(t, err)

	require.NoError(t, f.engine.TransferBudget(ctx, core.NewDate(2024, 4, 2),
		core.MustParseMoney("100.00"), f.budgetID, otherID))

	assert.Equal(t, int64(15000), f.budget(t).Balance.Cents)
	other, err := f.store.Queries().GetBudget(ctx, otherID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), other.Balance.Cents)

	// Both sides left an audit row flagged as a transfer.
	transfers := true
	adjustments, err := f.store.Queries().ListBudgetAdjustments(ctx, storage.AdjustmentFilter{Transfers: &transfers})
	require.NoError(t, err)
	assert.Len(t, adjustments, 2)

	require.ErrorIs(t,
		f.engine.TransferBudget(ctx, core.NewDate(2024, 4, 2), core.MustParseMoney("1.00"), otherID, otherID),
		core.ErrValidation)
}

func TestAccrueMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second budget accruing yearly, and the seeded Transfer budget which
	// must not accrue.
	yearlyID, err := f.engine.AddBudget(ctx, "Insurance", core.Zero, core.Saving, core.Yearly, core.MustParseMoney("120.00"), true)
	require.NoError(t, err)

	month := core.NewDate(2024, 5, 1)
	applied, err := f.engine.AccrueMonth(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	assert.Equal(t, int64(60000), f.budget(t).Balance.Cents) // 200 + 400
	yearly, err := f.store.Queries().GetBudget(ctx, yearlyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), yearly.Balance.Cents) // 120/12

	watermark, ok, err := f.store.Queries().GetSettingDate(ctx, storage.SettingLastBudgetUpdate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, month.ISO(), watermark.ISO())

	// Accrual adjustments are flagged as periodic updates.
	adjustments, err := f.store.Queries().ListBudgetAdjustments(ctx, storage.AdjustmentFilter{BudgetID: f.budgetID})
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.True(t, adjustments[0].PeriodicUpdate)
}

func TestCreateLinkedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lineID, err := f.store.Queries().InsertStatementLine(ctx, core.StatementLine{
		Date: core.NewDate(2024, 6, 3), StatementMonth: 6, StatementYear: 2024,
		AccountID: f.accountID, Amount: core.MustParseMoney("-19.99"),
		Description: "STREAMING SVC", Deferred: true,
	})
	require.NoError(t, err)

	params := CreateTransactionParams{
		Date:        core.NewDate(2024, 6, 3),
		AccountID:   f.accountID,
		MethodID:    f.methodID,
		Description: "streaming",
		Net:         core.MustParseMoney("-19.99"),
		Splits:      []SplitSpec{{Amount: core.MustParseMoney("-19.99"), CategoryID: f.categoryID}},
	}
	id, err := f.engine.CreateLinkedTransaction(ctx, params, lineID)
	require.NoError(t, err)

	line, err := f.store.Queries().GetStatementLine(ctx, lineID)
	require.NoError(t, err)
	require.True(t, line.Linked())
	assert.Equal(t, id, *line.TransactionID)
	assert.False(t, line.Deferred)

	_, err = f.engine.CreateLinkedTransaction(ctx, params, lineID)
	require.ErrorIs(t, err, core.ErrAlreadyLinked)
}
