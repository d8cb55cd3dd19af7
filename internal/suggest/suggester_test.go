package suggest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

func TestPredict(t *testing.T) {
	s := &Suggester{samples: []storage.CategorizedDescription{
		{Description: "STARBUCKS #1042", CategoryID: 1},
		{Description: "SHELL OIL 5573", CategoryID: 2},
		{Description: "WHOLE FOODS MKT", CategoryID: 3},
	}}

	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"STARBUCKS #2210", 1, true},
		{"starbucks #1042", 1, true}, // case-insensitive
		{"SHELL OIL 9911", 2, true},
		{"WHOLE FOODS MK", 3, true},
		{"COMPLETELY UNRELATED VENDOR NAME", 0, false}, // too far from anything
		{"", 0, false},
		{"   ", 0, false},
	}
	for _, tc := range cases {
		got, ok := s.Predict(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.in, tc.ok, ok)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("%q: expected category %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestPredictEmptyModel(t *testing.T) {
	s := &Suggester{}
	if _, ok := s.Predict("ANYTHING"); ok {
		t.Fatal("empty model should not predict")
	}
}

func TestRetrainLoadsLinkedDescriptions(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	q := store.Queries()

	accountID, err := q.InsertAccount(ctx, core.Account{Name: "Card", Purpose: core.Spending, Visibility: true})
	require.NoError(t, err)
	methodID, err := q.InsertMethod(ctx, "Card")
	require.NoError(t, err)
	budgetID, err := q.InsertBudget(ctx, core.Budget{Name: "Fuel", Purpose: core.Spending, Frequency: core.Monthly})
	require.NoError(t, err)
	categoryID, err := q.InsertCategory(ctx, core.Category{Name: "Gas", BudgetID: budgetID})
	require.NoError(t, err)

	date := core.NewDate(2024, 6, 1)
	txID, err := q.InsertTransaction(ctx, core.Transaction{Date: date, AccountID: accountID, MethodID: methodID})
	require.NoError(t, err)
	_, err = q.InsertSplit(ctx, core.Split{Amount: core.MustParseMoney("-40.00"), CategoryID: categoryID, TransactionID: txID, Date: date})
	require.NoError(t, err)
	lineID, err := q.InsertStatementLine(ctx, core.StatementLine{
		Date: date, StatementMonth: 6, StatementYear: 2024, AccountID: accountID,
		Amount: core.MustParseMoney("-40.00"), Description: "SHELL OIL 5573",
	})
	require.NoError(t, err)
	require.NoError(t, q.LinkStatementLine(ctx, lineID, txID))

	s := NewSuggester(store)
	require.NoError(t, s.Retrain(ctx))

	got, ok := s.Predict("SHELL OIL 9911")
	require.True(t, ok)
	assert.Equal(t, categoryID, got)
}
