package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusDeposited BatchStatus = "deposited"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// BatchPayment groups many pending payments behind one external charge.
// Amount is always recomputed from members, never trusted from input.
type BatchPayment struct {
	BatchID     uuid.UUID       `json:"batch_id"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	MemberCount int             `json:"member_count"`
	Status      BatchStatus     `json:"status"`
	Provider    PaymentProvider `json:"provider"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func ValidateCreateBatchInput(name string, memberCount int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: batch name is required", ErrInvalidInput)
	}
	if memberCount == 0 {
		return fmt.Errorf("%w: batch requires at least one member", ErrInvalidInput)
	}
	return nil
}

// SumMembers recomputes the batch aggregate from non-cancelled members.
func SumMembers(members []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range members {
		if m.Status == PaymentStatusCancelled {
			continue
		}
		sum = sum.Add(m.Amount)
	}
	return sum
}

// BatchMemberResult is one member's outcome from a batch completion run.
// Partial failure is data, not an error: siblings are never rolled back.
type BatchMemberResult struct {
	PaymentID uuid.UUID     `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// BatchCompletionReport aggregates member outcomes for one completion pass.
type BatchCompletionReport struct {
	BatchID         uuid.UUID           `json:"batch_id"`
	Completed       int                 `json:"completed"`
	Failed          int                 `json:"failed"`
	AlreadyTerminal int                 `json:"already_terminal"`
	BatchCompleted  bool                `json:"batch_completed"`
	Members         []BatchMemberResult `json:"members"`
}
