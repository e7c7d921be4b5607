package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

// RequestWithdrawal proposes a wallet debit. The balance check here is
// advisory; the binding check runs again inside the final-approval
// transaction.
func (s *Service) RequestWithdrawal(ctx context.Context, actor ports.AuthClaims, input RequestWithdrawalInput) (domain.WithdrawalRequest, error) {
	if !actor.Role.CanOperate() {
		return domain.WithdrawalRequest{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateWithdrawalInput(input.Amount, input.Purpose, input.Destination, input.Method); err != nil {
		return domain.WithdrawalRequest{}, err
	}

	wallet, err := s.wallets.GetByID(ctx, input.WalletID)
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}
	if !wallet.IsActive {
		return domain.WithdrawalRequest{}, fmt.Errorf("%w: (%s, %s)", domain.ErrWalletInactive, wallet.Category, wallet.SubCategory)
	}
	if wallet.Balance.LessThan(input.Amount) {
		return domain.WithdrawalRequest{}, fmt.Errorf("%w: wallet balance %s, requested %s", domain.ErrInsufficientFunds, wallet.Balance, input.Amount)
	}

	now := s.nowFn()
	request := domain.WithdrawalRequest{
		RequestID:         uuid.New(),
		WalletID:          wallet.WalletID,
		Amount:            input.Amount,
		Purpose:           strings.TrimSpace(input.Purpose),
		Description:       strings.TrimSpace(input.Description),
		Method:            input.Method,
		Destination:       strings.TrimSpace(input.Destination),
		RequiredApprovals: s.cfg.RequiredApprovals,
		ApprovalCount:     0,
		Status:            domain.WithdrawalStatusPending,
		RequestedBy:       actor.ApproverID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.withdrawals.Create(ctx, request); err != nil {
		return domain.WithdrawalRequest{}, err
	}
	return request, nil
}

// ApproveWithdrawal records one approver's confirmation. The approver is
// re-authenticated against their approval secret, which is distinct from the
// login password and confirms out-of-band authority. Reaching quorum debits
// the wallet, writes the mirror expense payment and marks the request
// processed, all inside the same transaction as the final approval.
func (s *Service) ApproveWithdrawal(ctx context.Context, actor ports.AuthClaims, requestID uuid.UUID, input ApproveWithdrawalInput) (domain.WithdrawalRequest, error) {
	approver, err := s.approvers.GetByID(ctx, actor.ApproverID)
	if err != nil {
		return domain.WithdrawalRequest{}, domain.ErrUnauthorized
	}
	if !approver.IsActive || !approver.Role.CanApprove() {
		return domain.WithdrawalRequest{}, domain.ErrUnauthorized
	}
	if approver.ApprovalSecretHash == "" {
		return domain.WithdrawalRequest{}, domain.ErrUnauthorized
	}
	if err := s.hasher.Compare(approver.ApprovalSecretHash, input.Secret); err != nil {
		return domain.WithdrawalRequest{}, domain.ErrInvalidCredentials
	}

	request, err := s.withdrawals.GetByID(ctx, requestID)
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}
	if request.Status != domain.WithdrawalStatusPending {
		return domain.WithdrawalRequest{}, fmt.Errorf("%w: request is %s", domain.ErrConflict, request.Status)
	}
	wallet, err := s.wallets.GetByID(ctx, request.WalletID)
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}

	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"request_id": request.RequestID,
		"wallet_id":  request.WalletID,
		"amount":     request.Amount,
		"purpose":    request.Purpose,
	})
	expense := domain.Payment{
		PaymentID:   uuid.New(),
		PayerID:     approver.Username,
		Type:        domain.PaymentTypeExpense,
		Amount:      request.Amount,
		Category:    wallet.Category,
		SubCategory: wallet.SubCategory,
		Provider:    domain.ProviderInternal,
		Status:      domain.PaymentStatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}

	updated, err := s.withdrawals.ApproveTx(ctx, ports.ApproveWithdrawalTxParams{
		RequestID:      requestID,
		ApproverID:     approver.ApproverID,
		Comment:        strings.TrimSpace(input.Comment),
		ApprovedAt:     now,
		ExpensePayment: expense,
		Event:          s.newOutboxEvent("withdrawal.processed", requestID.String(), payload),
	})
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}

	if updated.Status == domain.WithdrawalStatusProcessed {
		s.disburse(ctx, updated)
	}
	return updated, nil
}

// disburse sends the processed withdrawal to the payout gateway. Best
// effort after commit: a payout failure never rolls back the approval, it is
// surfaced through the outbox for operator follow-up.
func (s *Service) disburse(ctx context.Context, request domain.WithdrawalRequest) {
	if s.payouts == nil {
		return
	}
	_, err := s.payouts.Payout(ctx, ports.PayoutRequest{
		Reference:   request.RequestID.String(),
		Amount:      request.Amount,
		Destination: request.Destination,
		Method:      request.Method,
		Description: request.Purpose,
	})
	if err != nil {
		payload, _ := json.Marshal(map[string]any{
			"request_id": request.RequestID,
			"error":      err.Error(),
		})
		_ = s.outbox.Enqueue(ctx, s.newOutboxEvent("withdrawal.payout_failed", request.RequestID.String(), payload))
	}
}

// RejectWithdrawal terminates a pending request with a reason.
func (s *Service) RejectWithdrawal(ctx context.Context, actor ports.AuthClaims, requestID uuid.UUID, reason string) error {
	if !actor.Role.CanApprove() {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: rejection reason is required", domain.ErrInvalidInput)
	}
	return s.withdrawals.Reject(ctx, requestID, strings.TrimSpace(reason), s.nowFn())
}

// CancelWithdrawal lets the initiator withdraw a pending request.
func (s *Service) CancelWithdrawal(ctx context.Context, actor ports.AuthClaims, requestID uuid.UUID) error {
	request, err := s.withdrawals.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.RequestedBy != actor.ApproverID && actor.Role != domain.RoleAdmin {
		return domain.ErrUnauthorized
	}
	return s.withdrawals.Cancel(ctx, requestID, s.nowFn())
}

func (s *Service) GetWithdrawal(ctx context.Context, requestID uuid.UUID) (domain.WithdrawalRequest, []domain.WithdrawalApproval, error) {
	request, err := s.withdrawals.GetByID(ctx, requestID)
	if err != nil {
		return domain.WithdrawalRequest{}, nil, err
	}
	approvals, err := s.withdrawals.ListApprovals(ctx, requestID)
	if err != nil {
		return domain.WithdrawalRequest{}, nil, err
	}
	return request, approvals, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, status domain.WithdrawalStatus, limit, offset int) ([]domain.WithdrawalRequest, int, error) {
	return s.withdrawals.List(ctx, status, limit, offset)
}
