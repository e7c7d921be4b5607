package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type PaymentRepository struct {
	store *store
}

func (r *PaymentRepository) Create(_ context.Context, payment domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.payments[payment.PaymentID]; ok {
		return fmt.Errorf("%w: payment %s already exists", domain.ErrConflict, payment.PaymentID)
	}
	r.store.payments[payment.PaymentID] = payment
	r.store.paymentOrder = append(r.store.paymentOrder, payment.PaymentID)
	return nil
}

func (r *PaymentRepository) GetByID(_ context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[paymentID]
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: payment %s", domain.ErrNotFound, paymentID)
	}
	return p, nil
}

func (r *PaymentRepository) GetByProviderRef(_ context.Context, providerRef string) (domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.paymentOrder {
		p := r.store.payments[id]
		if p.ProviderRef == providerRef && providerRef != "" {
			return p, nil
		}
	}
	return domain.Payment{}, fmt.Errorf("%w: payment for provider ref %q", domain.ErrNotFound, providerRef)
}

func (r *PaymentRepository) SetProviderRef(_ context.Context, paymentID uuid.UUID, providerRef string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[paymentID]
	if !ok || p.Status != domain.PaymentStatusPending {
		return fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, paymentID)
	}
	p.ProviderRef = providerRef
	p.UpdatedAt = at
	r.store.payments[paymentID] = p
	return nil
}

func (r *PaymentRepository) List(_ context.Context, query ports.PaymentListQuery) ([]domain.Payment, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	matched := make([]domain.Payment, 0)
	for _, id := range r.store.paymentOrder {
		p := r.store.payments[id]
		if query.PayerID != "" && p.PayerID != query.PayerID {
			continue
		}
		if query.Status != "" && p.Status != query.Status {
			continue
		}
		matched = append(matched, p)
	}
	total := len(matched)
	if query.Offset > 0 {
		if query.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[query.Offset:]
	}
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, total, nil
}

func (r *PaymentRepository) ListByBatch(_ context.Context, batchID uuid.UUID) ([]domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Payment, 0)
	for _, id := range r.store.paymentOrder {
		p := r.store.payments[id]
		if p.BatchID != nil && *p.BatchID == batchID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PaymentRepository) ListCompletedUnlinked(_ context.Context, amount decimal.Decimal, from, to time.Time) ([]domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Payment, 0)
	for _, id := range r.store.paymentOrder {
		p := r.store.payments[id]
		if p.Status != domain.PaymentStatusCompleted || p.SyncID != nil {
			continue
		}
		if !p.Amount.Equal(amount) {
			continue
		}
		at := p.CreatedAt
		if p.CompletedAt != nil {
			at = *p.CompletedAt
		}
		if at.Before(from) || at.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *PaymentRepository) CompletePendingTx(_ context.Context, params ports.CompletePaymentTxParams) (domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[params.PaymentID]
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: payment %s", domain.ErrNotFound, params.PaymentID)
	}
	if p.Status != domain.PaymentStatusPending {
		return domain.Payment{}, fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, params.PaymentID)
	}
	if err := r.store.applyDeltas(params.Deltas, params.CompletedAt); err != nil {
		return domain.Payment{}, err
	}
	r.store.receiptSeq++
	completedAt := params.CompletedAt
	p.Status = domain.PaymentStatusCompleted
	p.ProviderTransactionID = params.ProviderTransactionID
	p.ReceiptNumber = fmt.Sprintf("RCT-%06d", r.store.receiptSeq)
	p.CompletedAt = &completedAt
	p.UpdatedAt = params.CompletedAt
	r.store.payments[params.PaymentID] = p
	r.store.enqueueOutbox(params.Event)
	return p, nil
}

func (r *PaymentRepository) FailPendingTx(_ context.Context, params ports.FailPaymentTxParams) (domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[params.PaymentID]
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: payment %s", domain.ErrNotFound, params.PaymentID)
	}
	if p.Status != domain.PaymentStatusPending {
		return domain.Payment{}, fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, params.PaymentID)
	}
	p.Status = domain.PaymentStatusFailed
	p.FailureReason = params.Reason
	p.UpdatedAt = params.FailedAt
	r.store.payments[params.PaymentID] = p
	r.store.enqueueOutbox(params.Event)
	return p, nil
}

func (r *PaymentRepository) CancelPending(_ context.Context, paymentID uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[paymentID]
	if !ok || p.Status != domain.PaymentStatusPending {
		return fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, paymentID)
	}
	p.Status = domain.PaymentStatusCancelled
	p.UpdatedAt = at
	r.store.payments[paymentID] = p
	return nil
}
