package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type SyncRepository struct {
	store *store
}

func (r *SyncRepository) CreateIfAbsent(_ context.Context, rec domain.BankTransactionSync) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.syncByTxnID[rec.BankTransactionID]; ok {
		return false, nil
	}
	r.store.syncs[rec.SyncID] = rec
	r.store.syncOrder = append(r.store.syncOrder, rec.SyncID)
	r.store.syncByTxnID[rec.BankTransactionID] = rec.SyncID
	return true, nil
}

func (r *SyncRepository) GetByID(_ context.Context, syncID uuid.UUID) (domain.BankTransactionSync, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.syncs[syncID]
	if !ok {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: sync record %s", domain.ErrNotFound, syncID)
	}
	return rec, nil
}

func (r *SyncRepository) ListByStatus(_ context.Context, status domain.SyncStatus, limit, offset int) ([]domain.BankTransactionSync, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	matched := make([]domain.BankTransactionSync, 0)
	for _, id := range r.store.syncOrder {
		rec := r.store.syncs[id]
		if status != "" && rec.Status != status {
			continue
		}
		matched = append(matched, rec)
	}
	total := len(matched)
	if offset > 0 {
		if offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *SyncRepository) LinkTx(_ context.Context, params ports.LinkSyncTxParams) (domain.BankTransactionSync, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.syncs[params.SyncID]
	if !ok {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: sync record %s", domain.ErrNotFound, params.SyncID)
	}
	if rec.Status != domain.SyncStatusUnlinked {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: sync record %s is not unlinked", domain.ErrConflict, params.SyncID)
	}
	payment, ok := r.store.payments[params.PaymentID]
	if !ok || payment.Status != domain.PaymentStatusCompleted || payment.SyncID != nil {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: payment %s is not completed and unlinked", domain.ErrConflict, params.PaymentID)
	}

	syncID := params.SyncID
	payment.SyncID = &syncID
	payment.UpdatedAt = params.LinkedAt
	r.store.payments[params.PaymentID] = payment

	paymentID := params.PaymentID
	rec.Status = domain.SyncStatusLinked
	rec.LinkedPaymentID = &paymentID
	rec.UpdatedAt = params.LinkedAt
	r.store.syncs[params.SyncID] = rec
	r.store.enqueueOutbox(params.Event)
	return rec, nil
}

func (r *SyncRepository) Ignore(_ context.Context, syncID uuid.UUID, reason string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.syncs[syncID]
	if !ok || rec.Status != domain.SyncStatusUnlinked {
		return fmt.Errorf("%w: sync record %s is not unlinked", domain.ErrConflict, syncID)
	}
	rec.Status = domain.SyncStatusIgnored
	rec.IgnoreReason = reason
	rec.UpdatedAt = at
	r.store.syncs[syncID] = rec
	return nil
}

func (r *SyncRepository) Unlink(_ context.Context, syncID uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.syncs[syncID]
	if !ok || rec.Status != domain.SyncStatusLinked {
		return fmt.Errorf("%w: sync record %s is not linked", domain.ErrConflict, syncID)
	}
	if rec.LinkedPaymentID != nil {
		if payment, ok := r.store.payments[*rec.LinkedPaymentID]; ok {
			payment.SyncID = nil
			payment.UpdatedAt = at
			r.store.payments[payment.PaymentID] = payment
		}
	}
	rec.Status = domain.SyncStatusUnlinked
	rec.LinkedPaymentID = nil
	rec.UpdatedAt = at
	r.store.syncs[syncID] = rec
	return nil
}
