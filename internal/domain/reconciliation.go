package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SyncStatus string

const (
	SyncStatusUnlinked SyncStatus = "unlinked"
	SyncStatusLinked   SyncStatus = "linked"
	SyncStatusIgnored  SyncStatus = "ignored"
)

// BankTransactionSync mirrors one transaction from the external bank feed.
// BankTransactionID is unique; re-importing an existing id is a no-op.
type BankTransactionSync struct {
	SyncID            uuid.UUID       `json:"sync_id"`
	BankTransactionID string          `json:"bank_transaction_id"`
	BankReference     string          `json:"bank_reference,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionDate   time.Time       `json:"transaction_date"`
	Description       string          `json:"description,omitempty"`
	Direction         EntryDirection  `json:"direction"`
	Status            SyncStatus      `json:"status"`
	LinkedPaymentID   *uuid.UUID      `json:"linked_payment_id,omitempty"`
	IgnoreReason      string          `json:"ignore_reason,omitempty"`
	ImportedAt        time.Time       `json:"imported_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func ValidateFeedRecord(rec BankTransactionSync) error {
	if strings.TrimSpace(rec.BankTransactionID) == "" {
		return fmt.Errorf("%w: feed record missing bank transaction id", ErrInvalidInput)
	}
	if !rec.Amount.IsPositive() {
		return fmt.Errorf("%w: feed record amount must be positive", ErrInvalidInput)
	}
	switch rec.Direction {
	case DirectionCredit, DirectionDebit:
	default:
		return fmt.Errorf("%w: feed record direction %q", ErrInvalidInput, rec.Direction)
	}
	return nil
}

// MatchCandidates filters completed, unlinked payments whose amount equals
// the sync record's and whose completion date falls within the window. It is
// a pure function returning zero, one or many candidates; the caller links
// only on an exact single match and never resolves ambiguity automatically.
func MatchCandidates(rec BankTransactionSync, payments []Payment, window time.Duration) []Payment {
	out := make([]Payment, 0, 1)
	for _, p := range payments {
		if p.Status != PaymentStatusCompleted || p.SyncID != nil {
			continue
		}
		if !p.Amount.Equal(rec.Amount) {
			continue
		}
		at := p.CreatedAt
		if p.CompletedAt != nil {
			at = *p.CompletedAt
		}
		diff := rec.TransactionDate.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if diff > window {
			continue
		}
		out = append(out, p)
	}
	return out
}

// WithinTolerance reports whether a manual link's amounts agree closely
// enough to commit the link.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
