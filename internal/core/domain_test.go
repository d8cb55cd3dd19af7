package core

import (
	"errors"
	"testing"
)

func TestAccountValidate(t *testing.T) {
	good := Account{Name: "Checking", Purpose: Spending}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, a := range map[string]Account{
		"empty name":   {Name: "  ", Purpose: Spending},
		"bad purpose":  {Name: "x", Purpose: "Gambling"},
		"zero purpose": {Name: "x"},
	} {
		if err := a.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{Name: "Groceries", Purpose: Spending, Frequency: Monthly}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := Budget{Name: "Groceries", Purpose: Spending, Frequency: "Q"}
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Produce", BudgetID: 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Category{Name: "Produce"}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatal("missing budget should not validate")
	}
}

func TestStatementLineValidateAndLinked(t *testing.T) {
	line := StatementLine{Date: NewDate(2024, 5, 3), StatementMonth: 5, AccountID: 1}
	if err := line.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Linked() {
		t.Fatal("unlinked line reported linked")
	}

	id := int64(7)
	line.TransactionID = &id
	if !line.Linked() {
		t.Fatal("linked line reported unlinked")
	}

	line.StatementMonth = 13
	if err := line.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatal("month 13 should not validate")
	}
}
