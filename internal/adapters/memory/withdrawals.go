package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type WithdrawalRepository struct {
	store *store
}

func (r *WithdrawalRepository) Create(_ context.Context, request domain.WithdrawalRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.withdrawals[request.RequestID]; ok {
		return fmt.Errorf("%w: request %s already exists", domain.ErrConflict, request.RequestID)
	}
	r.store.withdrawals[request.RequestID] = request
	r.store.withdrawalOrder = append(r.store.withdrawalOrder, request.RequestID)
	return nil
}

func (r *WithdrawalRepository) GetByID(_ context.Context, requestID uuid.UUID) (domain.WithdrawalRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.withdrawals[requestID]
	if !ok {
		return domain.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", domain.ErrNotFound, requestID)
	}
	return req, nil
}

func (r *WithdrawalRepository) List(_ context.Context, status domain.WithdrawalStatus, limit, offset int) ([]domain.WithdrawalRequest, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	matched := make([]domain.WithdrawalRequest, 0)
	for _, id := range r.store.withdrawalOrder {
		req := r.store.withdrawals[id]
		if status != "" && req.Status != status {
			continue
		}
		matched = append(matched, req)
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

func (r *WithdrawalRepository) ListApprovals(_ context.Context, requestID uuid.UUID) ([]domain.WithdrawalApproval, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	approvals := r.store.approvals[requestID]
	out := make([]domain.WithdrawalApproval, len(approvals))
	copy(out, approvals)
	return out, nil
}

func (r *WithdrawalRepository) ApproveTx(_ context.Context, params ports.ApproveWithdrawalTxParams) (domain.WithdrawalRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.withdrawals[params.RequestID]
	if !ok {
		return domain.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", domain.ErrNotFound, params.RequestID)
	}
	if req.Status != domain.WithdrawalStatusPending {
		return domain.WithdrawalRequest{}, fmt.Errorf("%w: request is %s", domain.ErrConflict, req.Status)
	}
	for _, a := range r.store.approvals[params.RequestID] {
		if a.ApproverID == params.ApproverID {
			return domain.WithdrawalRequest{}, fmt.Errorf("%w: approver %s already approved request %s",
				domain.ErrConflict, params.ApproverID, params.RequestID)
		}
	}

	if req.ApprovalCount+1 >= req.RequiredApprovals {
		// Quorum: the debit must succeed or the approval itself is rolled
		// back, leaving the request pending and retryable.
		debit := []ports.LedgerDelta{{
			WalletID:  req.WalletID,
			Amount:    req.Amount,
			Direction: domain.DirectionDebit,
			CauseType: "withdrawal",
			CauseID:   req.RequestID,
		}}
		if err := r.store.applyDeltas(debit, params.ApprovedAt); err != nil {
			return domain.WithdrawalRequest{}, err
		}

		expense := params.ExpensePayment
		r.store.payments[expense.PaymentID] = expense
		r.store.paymentOrder = append(r.store.paymentOrder, expense.PaymentID)

		processedAt := params.ApprovedAt
		req.Status = domain.WithdrawalStatusProcessed
		req.PaymentID = &expense.PaymentID
		req.ProcessedAt = &processedAt
		r.store.enqueueOutbox(params.Event)
	}

	r.store.approvals[params.RequestID] = append(r.store.approvals[params.RequestID], domain.WithdrawalApproval{
		ApprovalID: uuid.New(),
		RequestID:  params.RequestID,
		ApproverID: params.ApproverID,
		Comment:    params.Comment,
		ApprovedAt: params.ApprovedAt,
	})
	req.ApprovalCount++
	req.UpdatedAt = params.ApprovedAt
	r.store.withdrawals[params.RequestID] = req
	return req, nil
}

func (r *WithdrawalRepository) Reject(_ context.Context, requestID uuid.UUID, reason string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.withdrawals[requestID]
	if !ok || req.Status != domain.WithdrawalStatusPending {
		return fmt.Errorf("%w: request %s is not pending", domain.ErrConflict, requestID)
	}
	req.Status = domain.WithdrawalStatusRejected
	req.RejectionReason = reason
	req.UpdatedAt = at
	r.store.withdrawals[requestID] = req
	return nil
}

func (r *WithdrawalRepository) Cancel(_ context.Context, requestID uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.withdrawals[requestID]
	if !ok || req.Status != domain.WithdrawalStatusPending {
		return fmt.Errorf("%w: request %s is not pending", domain.ErrConflict, requestID)
	}
	req.Status = domain.WithdrawalStatusCancelled
	req.UpdatedAt = at
	r.store.withdrawals[requestID] = req
	return nil
}
