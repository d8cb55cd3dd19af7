package ledger

import (
	"context"
	"fmt"
	"strings"

	"homeledger/internal/core"
	"homeledger/internal/events"
	"homeledger/internal/storage"
)

// AddHsaDistribution records an HSA-eligible expense awaiting reimbursement.
func (e *Engine) AddHsaDistribution(ctx context.Context, h core.HsaDistribution) (int64, error) {
	if err := h.Date.Validate(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(h.Merchant) == "" {
		return 0, fmt.Errorf("%w: empty HSA merchant", core.ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.store.Queries().InsertHsaDistribution(ctx, h)
	if err != nil {
		return 0, fmt.Errorf("add hsa distribution: %w", err)
	}
	e.publish(ctx, events.NewMutation("hsa_distribution", events.OpCreated, id))
	return id, nil
}

// LinkHsaExpense attaches the original expense transaction to an HSA record.
func (e *Engine) LinkHsaExpense(ctx context.Context, hsaID, transactionID int64) error {
	return e.linkHsaTransaction(ctx, hsaID, transactionID, storage.HsaExpense)
}

// LinkHsaDistribution attaches the reimbursement transaction to an HSA
// record.
func (e *Engine) LinkHsaDistribution(ctx context.Context, hsaID, transactionID int64) error {
	return e.linkHsaTransaction(ctx, hsaID, transactionID, storage.HsaDistributionTxn)
}

func (e *Engine) linkHsaTransaction(ctx context.Context, hsaID, transactionID int64, field storage.HsaLinkField) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if !t.Valid {
			return fmt.Errorf("transaction %d: %w", transactionID, core.ErrNotFound)
		}
		return q.SetHsaField(ctx, hsaID, field, transactionID)
	})
	if err != nil {
		return fmt.Errorf("link hsa transaction: %w", err)
	}
	e.publish(ctx, events.NewMutation("hsa_distribution", events.OpLinked, hsaID))
	return nil
}

// AttachHsaReceipt stores the receipt location on an HSA record.
func (e *Engine) AttachHsaReceipt(ctx context.Context, hsaID int64, receiptPath string) error {
	if strings.TrimSpace(receiptPath) == "" {
		return fmt.Errorf("%w: empty receipt path", core.ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Queries().SetHsaField(ctx, hsaID, storage.HsaReceipt, receiptPath); err != nil {
		return fmt.Errorf("attach hsa receipt: %w", err)
	}
	e.publish(ctx, events.NewMutation("hsa_distribution", events.OpLinked, hsaID))
	return nil
}
