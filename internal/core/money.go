// Package core holds the domain types of the ledger: money, dates, entities
// and the shared error taxonomy.
//
// All monetary values are exact fixed-point decimals with two fractional
// digits, carried as signed integer cents. Floating point never enters the
// bookkeeping path; parsing and rounding go through shopspring/decimal.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in cents. The zero value is zero dollars.
type Money struct {
	Cents int64
}

// Zero is the zero amount.
var Zero = Money{}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// ParseMoney converts a decimal string to Money. It accepts both dot (12.34)
// and comma (12,34) separators and an optional leading sign, and performs
// half-up rounding on a third fractional digit.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Zero, fmt.Errorf("%w: empty amount", ErrValidation)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: amount %q: %v", ErrValidation, s, err)
	}
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}, nil
}

// MustParseMoney is ParseMoney for literals in tests and seed data.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

func (m Money) Equal(o Money) bool { return m.Cents == o.Cents }

// String renders the amount with exactly two fractional digits, e.g. "-50.00".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// Frequency is a budget accrual schedule, stored as its single-letter code.
type Frequency string

const (
	Daily   Frequency = "D"
	Weekly  Frequency = "W"
	Monthly Frequency = "M"
	Yearly  Frequency = "Y"
)

// ParseFrequency accepts either the letter code or the full name.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D", "DAILY":
		return Daily, nil
	case "W", "WEEKLY":
		return Weekly, nil
	case "M", "MONTHLY":
		return Monthly, nil
	case "Y", "YEARLY":
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: unknown frequency %q", ErrValidation, s)
}

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	case Monthly:
		return "Monthly"
	case Yearly:
		return "Yearly"
	}
	return string(f)
}

// MonthlyIncrement converts a per-frequency increment to its monthly
// equivalent: Yearly/12, Daily*365/12, Weekly*52/12, Monthly unchanged.
// Results are rounded to cents with banker's rounding.
func (m Money) MonthlyIncrement(f Frequency) Money {
	inc := decimal.New(m.Cents, -2)
	switch f {
	case Yearly:
		inc = inc.Div(twelve)
	case Daily:
		inc = inc.Mul(decimal.NewFromInt(365)).Div(twelve)
	case Weekly:
		inc = inc.Mul(decimal.NewFromInt(52)).Div(twelve)
	}
	return Money{Cents: inc.RoundBank(2).Mul(hundred).Round(0).IntPart()}
}
