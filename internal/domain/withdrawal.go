package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusProcessed WithdrawalStatus = "processed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
	WithdrawalStatusCancelled WithdrawalStatus = "cancelled"
)

type WithdrawalMethod string

const (
	WithdrawalMethodMobile WithdrawalMethod = "mobile"
	WithdrawalMethodBank   WithdrawalMethod = "bank"
)

// WithdrawalRequest is a proposed wallet debit awaiting quorum. The balance
// check at creation is advisory; the binding check happens in the same
// transaction as the final approval.
type WithdrawalRequest struct {
	RequestID         uuid.UUID        `json:"request_id"`
	WalletID          uuid.UUID        `json:"wallet_id"`
	Amount            decimal.Decimal  `json:"amount"`
	Purpose           string           `json:"purpose"`
	Description       string           `json:"description,omitempty"`
	Method            WithdrawalMethod `json:"method"`
	Destination       string           `json:"destination"`
	RequiredApprovals int              `json:"required_approvals"`
	ApprovalCount     int              `json:"approval_count"`
	Status            WithdrawalStatus `json:"status"`
	RejectionReason   string           `json:"rejection_reason,omitempty"`
	RequestedBy       uuid.UUID        `json:"requested_by"`
	PaymentID         *uuid.UUID       `json:"payment_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ProcessedAt       *time.Time       `json:"processed_at,omitempty"`
}

// WithdrawalApproval is one approver's confirmation. At most one exists per
// (request, approver); the persistence layer enforces the pair uniquely.
type WithdrawalApproval struct {
	ApprovalID uuid.UUID `json:"approval_id"`
	RequestID  uuid.UUID `json:"request_id"`
	ApproverID uuid.UUID `json:"approver_id"`
	Comment    string    `json:"comment,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

func ValidateWithdrawalInput(amount decimal.Decimal, purpose, destination string, method WithdrawalMethod) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("%w: amount has more than two fractional digits", ErrInvalidInput)
	}
	if strings.TrimSpace(purpose) == "" {
		return fmt.Errorf("%w: purpose is required", ErrInvalidInput)
	}
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("%w: destination account or phone is required", ErrInvalidInput)
	}
	switch method {
	case WithdrawalMethodMobile, WithdrawalMethodBank:
	default:
		return fmt.Errorf("%w: unknown withdrawal method %q", ErrInvalidInput, method)
	}
	return nil
}
