package core

import (
	"fmt"
	"strings"
)

// Purpose classifies accounts and budgets.
type Purpose string

const (
	Spending Purpose = "Spending"
	Saving   Purpose = "Saving"
)

type (
	// Account is a real-world money holding. Balance is a running cache
	// maintained incrementally by the ledger engine, not derived per query.
	// Opening is the balance at creation time; recomputation audits need it
	// to re-derive Balance from the transaction log.
	Account struct {
		ID         int64
		Name       string
		Balance    Money
		Opening    Money
		Purpose    Purpose
		Visibility bool
		Valid      bool
	}

	// Budget is a spending/saving envelope fed by splits of its owned
	// categories, manual adjustments and scheduled accrual.
	Budget struct {
		ID         int64
		Name       string
		Balance    Money
		Opening    Money
		Purpose    Purpose
		Frequency  Frequency
		Increment  Money
		Visibility bool
		Valid      bool
	}

	// BudgetProfile is an optional per-budget annual target curve: one
	// target balance per calendar month.
	BudgetProfile struct {
		BudgetID int64
		Targets  [12]Money
	}

	// BudgetAdjustment is an append-only audit row for every balance change
	// applied to a budget outside the split path.
	BudgetAdjustment struct {
		ID             int64
		Date           Date
		Amount         Money
		BudgetID       int64
		Transfer       bool
		PeriodicUpdate bool
	}

	// Category tags splits and belongs to exactly one budget.
	Category struct {
		ID       int64
		Name     string
		BudgetID int64
		Valid    bool
	}

	// Method is a payment method ("Automated" is reserved for transfers).
	Method struct {
		ID   int64
		Name string
	}

	// Transaction is a single ledger posting against one account on one
	// date. Its net amount is the sum of its splits; it is never amended
	// after creation, only voided.
	Transaction struct {
		ID          int64
		Date        Date
		Transfer    bool
		AccountID   int64
		MethodID    int64
		Description string
		Receipt     bool
		Valid       bool
		NotReal     bool

		// Amount is the split sum, populated by read queries.
		Amount Money
	}

	// Split is one category-tagged portion of a transaction's amount. Date
	// is a denormalized copy of the parent transaction date for time-range
	// queries.
	Split struct {
		ID            int64
		Amount        Money
		CategoryID    int64
		TransactionID int64
		Date          Date
		Valid         bool
		NotReal       bool
	}

	// StatementLine is an imported bank/card statement entry awaiting or
	// holding a link to a transaction. TransactionID is nil while unlinked.
	StatementLine struct {
		ID             int64
		Date           Date
		StatementMonth int
		StatementYear  int
		AccountID      int64
		Amount         Money
		Description    string
		TransactionID  *int64
		Deferred       bool
		Valid          bool
	}

	// HsaDistribution tracks an HSA expense and its reimbursement, each
	// optionally linked to a ledger transaction.
	HsaDistribution struct {
		ID                        int64
		Date                      Date
		Person                    string
		Merchant                  string
		Amount                    Money
		Description               string
		ExpenseTransactionID      *int64
		DistributionTransactionID *int64
		ReceiptPath               string
		HsaDebit                  bool
		DependentCare             bool
		SourceID                  string
	}
)

// Linked reports whether the line holds an active transaction link.
func (l StatementLine) Linked() bool { return l.TransactionID != nil }

func (p Purpose) Validate() error {
	switch p {
	case Spending, Saving:
		return nil
	}
	return fmt.Errorf("%w: unknown purpose %q", ErrValidation, string(p))
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: empty account name", ErrValidation)
	}
	return a.Purpose.Validate()
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: empty budget name", ErrValidation)
	}
	if err := b.Purpose.Validate(); err != nil {
		return err
	}
	if _, err := ParseFrequency(string(b.Frequency)); err != nil {
		return err
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: empty category name", ErrValidation)
	}
	if c.BudgetID <= 0 {
		return fmt.Errorf("%w: category needs an owning budget", ErrValidation)
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.AccountID <= 0 {
		return fmt.Errorf("%w: bad account id %d", ErrValidation, t.AccountID)
	}
	if t.MethodID <= 0 {
		return fmt.Errorf("%w: bad method id %d", ErrValidation, t.MethodID)
	}
	return nil
}

func (l StatementLine) Validate() error {
	if err := l.Date.Validate(); err != nil {
		return err
	}
	if l.StatementMonth < 1 || l.StatementMonth > 12 {
		return fmt.Errorf("%w: statement month %d", ErrValidation, l.StatementMonth)
	}
	if l.AccountID <= 0 {
		return fmt.Errorf("%w: bad account id %d", ErrValidation, l.AccountID)
	}
	return nil
}
