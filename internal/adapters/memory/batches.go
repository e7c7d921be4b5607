package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
)

type BatchRepository struct {
	store *store
}

func (r *BatchRepository) CreateWithMembersTx(_ context.Context, batch domain.BatchPayment, members []domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.batches[batch.BatchID]; ok {
		return fmt.Errorf("%w: batch %s already exists", domain.ErrConflict, batch.BatchID)
	}
	batch.Amount = domain.SumMembers(members)
	batch.MemberCount = len(members)
	r.store.batches[batch.BatchID] = batch
	r.store.batchOrder = append(r.store.batchOrder, batch.BatchID)
	for _, member := range members {
		r.store.payments[member.PaymentID] = member
		r.store.paymentOrder = append(r.store.paymentOrder, member.PaymentID)
	}
	return nil
}

func (r *BatchRepository) AppendMembersTx(_ context.Context, batchID uuid.UUID, members []domain.Payment, at time.Time) (domain.BatchPayment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[batchID]
	if !ok {
		return domain.BatchPayment{}, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	if batch.Status != domain.BatchStatusPending {
		return domain.BatchPayment{}, fmt.Errorf("%w: batch is %s, expected pending", domain.ErrConflict, batch.Status)
	}
	for _, member := range members {
		r.store.payments[member.PaymentID] = member
		r.store.paymentOrder = append(r.store.paymentOrder, member.PaymentID)
	}
	r.recomputeLocked(&batch, at)
	r.store.batches[batchID] = batch
	return batch, nil
}

func (r *BatchRepository) GetByID(_ context.Context, batchID uuid.UUID) (domain.BatchPayment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[batchID]
	if !ok {
		return domain.BatchPayment{}, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	return batch, nil
}

func (r *BatchRepository) GetByProviderRef(_ context.Context, providerRef string) (domain.BatchPayment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.batchOrder {
		b := r.store.batches[id]
		if b.ProviderRef == providerRef && providerRef != "" {
			return b, nil
		}
	}
	return domain.BatchPayment{}, fmt.Errorf("%w: batch for provider ref %q", domain.ErrNotFound, providerRef)
}

func (r *BatchRepository) List(_ context.Context, limit, offset int) ([]domain.BatchPayment, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	all := make([]domain.BatchPayment, 0, len(r.store.batchOrder))
	for _, id := range r.store.batchOrder {
		all = append(all, r.store.batches[id])
	}
	total := len(all)
	if offset > 0 {
		if offset >= len(all) {
			return nil, total, nil
		}
		all = all[offset:]
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *BatchRepository) MarkDeposited(_ context.Context, batchID uuid.UUID, providerRef string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[batchID]
	if !ok || batch.Status != domain.BatchStatusPending {
		return fmt.Errorf("%w: batch %s is not pending", domain.ErrConflict, batchID)
	}
	batch.Status = domain.BatchStatusDeposited
	batch.ProviderRef = providerRef
	batch.UpdatedAt = at
	r.store.batches[batchID] = batch
	return nil
}

func (r *BatchRepository) MarkCompleted(_ context.Context, batchID uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[batchID]
	if !ok || batch.Status != domain.BatchStatusDeposited {
		return fmt.Errorf("%w: batch %s is not deposited", domain.ErrConflict, batchID)
	}
	batch.Status = domain.BatchStatusCompleted
	batch.UpdatedAt = at
	r.store.batches[batchID] = batch
	return nil
}

func (r *BatchRepository) CancelTx(_ context.Context, batchID uuid.UUID, at time.Time) (domain.BatchPayment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[batchID]
	if !ok {
		return domain.BatchPayment{}, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	switch batch.Status {
	case domain.BatchStatusPending, domain.BatchStatusDeposited:
	default:
		return domain.BatchPayment{}, fmt.Errorf("%w: batch is %s", domain.ErrConflict, batch.Status)
	}
	for _, id := range r.store.paymentOrder {
		p := r.store.payments[id]
		if p.BatchID == nil || *p.BatchID != batchID || p.Status != domain.PaymentStatusPending {
			continue
		}
		p.Status = domain.PaymentStatusCancelled
		p.UpdatedAt = at
		r.store.payments[id] = p
	}
	batch.Status = domain.BatchStatusCancelled
	r.recomputeLocked(&batch, at)
	r.store.batches[batchID] = batch
	return batch, nil
}

func (r *BatchRepository) recomputeLocked(batch *domain.BatchPayment, at time.Time) {
	members := make([]domain.Payment, 0)
	for _, id := range r.store.paymentOrder {
		p := r.store.payments[id]
		if p.BatchID != nil && *p.BatchID == batch.BatchID && p.Status != domain.PaymentStatusCancelled {
			members = append(members, p)
		}
	}
	batch.Amount = domain.SumMembers(members)
	batch.MemberCount = len(members)
	batch.UpdatedAt = at
}
