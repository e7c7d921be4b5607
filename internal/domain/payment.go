package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string
type PaymentType string
type PaymentProvider string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

const (
	PaymentTypeContribution PaymentType = "contribution"
	PaymentTypeExpense      PaymentType = "expense"
)

const (
	ProviderMpesa PaymentProvider = "mpesa"
	ProviderCard  PaymentProvider = "card"
	// ProviderInternal marks payments created by the service itself, e.g. the
	// completed expense record written when a withdrawal is processed.
	ProviderInternal PaymentProvider = "internal"
)

// DistributionLine is one leg of a contribution fanned out across wallets.
type DistributionLine struct {
	Designation Designation     `json:"designation"`
	SubCategory string          `json:"sub_category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// Payment is one monetary movement. A contribution credits one wallet, or
// many via Distribution; an expense debits one wallet. Once terminal it is
// immutable except for the reconciliation link stamp.
type Payment struct {
	PaymentID             uuid.UUID          `json:"payment_id"`
	PayerID               string             `json:"payer_id,omitempty"`
	Type                  PaymentType        `json:"type"`
	Amount                decimal.Decimal    `json:"amount"`
	Category              Designation        `json:"category"`
	SubCategory           string             `json:"sub_category,omitempty"`
	Distribution          []DistributionLine `json:"distribution,omitempty"`
	Provider              PaymentProvider    `json:"provider"`
	ProviderRef           string             `json:"provider_ref,omitempty"`
	ProviderTransactionID string             `json:"provider_transaction_id,omitempty"`
	ReceiptNumber         string             `json:"receipt_number,omitempty"`
	Status                PaymentStatus      `json:"status"`
	FailureReason         string             `json:"failure_reason,omitempty"`
	BatchID               *uuid.UUID         `json:"batch_id,omitempty"`
	SyncID                *uuid.UUID         `json:"sync_id,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
	CompletedAt           *time.Time         `json:"completed_at,omitempty"`
}

func (p Payment) Terminal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

func ValidateCreatePaymentInput(payerID string, provider PaymentProvider, amount decimal.Decimal, category Designation) error {
	if strings.TrimSpace(payerID) == "" {
		return fmt.Errorf("%w: payer is required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("%w: amount has more than two fractional digits", ErrInvalidInput)
	}
	switch provider {
	case ProviderMpesa, ProviderCard:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, provider)
	}
	if !ValidDesignation(category) {
		return fmt.Errorf("%w: unknown designation %q", ErrInvalidInput, category)
	}
	return nil
}

// ValidateDistribution checks that the per-designation split sums to the
// payment amount within tolerance. A payment with no distribution targets its
// single category wallet and always passes.
func ValidateDistribution(amount decimal.Decimal, lines []DistributionLine, tolerance decimal.Decimal) error {
	if len(lines) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, line := range lines {
		if !ValidDesignation(line.Designation) {
			return fmt.Errorf("%w: unknown designation %q in distribution", ErrInvalidInput, line.Designation)
		}
		if !line.Amount.IsPositive() {
			return fmt.Errorf("%w: distribution amount for %q must be positive", ErrInvalidInput, line.Designation)
		}
		sum = sum.Add(line.Amount)
	}
	if sum.Sub(amount).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: distribution sums to %s, payment amount is %s", ErrInvalidInput, sum, amount)
	}
	return nil
}

// GatewayCallback is the normalized inbound completion callback, covering
// either provider. ResultCode zero denotes success.
type GatewayCallback struct {
	ProviderRequestID string
	CheckoutID        string
	ResultCode        int
	ResultDescription string
	ReceiptNumber     string
	SettledAt         *time.Time
}

func (c GatewayCallback) Success() bool { return c.ResultCode == 0 }

func ValidateGatewayCallback(c GatewayCallback) error {
	if strings.TrimSpace(c.ProviderRequestID) == "" {
		return fmt.Errorf("%w: callback missing provider request id", ErrInvalidInput)
	}
	return nil
}
