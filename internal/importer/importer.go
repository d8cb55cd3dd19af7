// Package importer loads bank and HSA statement exports into the database.
// Imports are idempotent: re-running the same file adds nothing, because
// rows already present are skipped by exact-content match.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

// Line is one parsed statement row before it becomes a StatementLine.
type Line struct {
	Date        core.Date
	Amount      core.Money
	Description string
}

// Result summarizes one import batch.
type Result struct {
	BatchID uuid.UUID
	Added   int
	Skipped int
}

// Importer writes statement batches. Each batch is one database
// transaction: a failed import leaves nothing behind.
type Importer struct {
	store *storage.Store
}

func NewImporter(store *storage.Store) *Importer {
	return &Importer{store: store}
}

// ImportStatement loads lines for one account and statement period. Zero
// amounts are dropped and a line whose (date, account, amount, description)
// tuple already exists is skipped, so the same export can be imported twice
// without duplicating rows.
func (i *Importer) ImportStatement(ctx context.Context, accountID int64, month, year int, lines []Line) (Result, error) {
	result := Result{BatchID: uuid.New()}
	if month < 1 || month > 12 {
		return result, fmt.Errorf("%w: statement month %d", core.ErrValidation, month)
	}

	err := i.store.InTx(ctx, func(q *storage.Queries) error {
		account, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.Valid {
			return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
		}

		for _, line := range lines {
			if line.Amount.IsZero() {
				result.Skipped++
				continue
			}
			n, err := q.CountStatementDuplicates(ctx, line.Date, accountID, line.Amount, line.Description)
			if err != nil {
				return err
			}
			if n > 0 {
				result.Skipped++
				continue
			}
			if _, err := q.InsertStatementLine(ctx, core.StatementLine{
				Date:           line.Date,
				StatementMonth: month,
				StatementYear:  year,
				AccountID:      accountID,
				Amount:         line.Amount,
				Description:    line.Description,
				Valid:          true,
			}); err != nil {
				return err
			}
			result.Added++
		}
		return nil
	})
	if err != nil {
		return Result{BatchID: result.BatchID}, fmt.Errorf("import statement: %w", err)
	}

	slog.InfoContext(ctx, "Imported statement",
		"batch_id", result.BatchID, "account_id", accountID,
		"month", month, "year", year,
		"added", result.Added, "skipped", result.Skipped)
	return result, nil
}

// ImportHsaDistributions loads HSA export rows, skipping any whose SourceID
// is already present.
func (i *Importer) ImportHsaDistributions(ctx context.Context, rows []core.HsaDistribution) (Result, error) {
	result := Result{BatchID: uuid.New()}

	err := i.store.InTx(ctx, func(q *storage.Queries) error {
		for _, h := range rows {
			if h.SourceID != "" {
				existing, err := q.ListHsaDistributions(ctx, storage.HsaFilter{SourceID: h.SourceID})
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					result.Skipped++
					continue
				}
			}
			if _, err := q.InsertHsaDistribution(ctx, h); err != nil {
				return err
			}
			result.Added++
		}
		return nil
	})
	if err != nil {
		return Result{BatchID: result.BatchID}, fmt.Errorf("import hsa distributions: %w", err)
	}

	slog.InfoContext(ctx, "Imported HSA distributions",
		"batch_id", result.BatchID, "added", result.Added, "skipped", result.Skipped)
	return result, nil
}
