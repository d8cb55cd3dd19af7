package core

import "errors"

// Sentinel errors for the failure classes callers branch on. Wrap them with
// fmt.Errorf("...: %w", ...) and classify with errors.Is.
var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrSplitSumMismatch marks a transaction whose splits do not sum to
	// its net amount.
	ErrSplitSumMismatch = errors.New("splits do not sum to net amount")

	// ErrAlreadyVoided marks a repeated void of the same transaction.
	ErrAlreadyVoided = errors.New("transaction already voided")

	// ErrAlreadyLinked marks a statement link where either side is taken.
	ErrAlreadyLinked = errors.New("already linked")

	// ErrInconsistentState marks stored data that violates a ledger
	// invariant and needs manual repair.
	ErrInconsistentState = errors.New("inconsistent ledger state")

	// ErrNotFound marks a lookup of a missing or invalidated row.
	ErrNotFound = errors.New("not found")
)
