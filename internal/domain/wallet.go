package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Designation is the closed set of fund sub-account categories. New
// designations are added here, never invented at request time.
type Designation string

const (
	DesignationTithe         Designation = "tithe"
	DesignationOffering      Designation = "offering"
	DesignationWelfare       Designation = "welfare"
	DesignationThanksgiving  Designation = "thanksgiving"
	DesignationStationFund   Designation = "station_fund"
	DesignationCampMeeting   Designation = "camp_meeting_expenses"
	DesignationMediaMinistry Designation = "media_ministry"
	DesignationDevelopment   Designation = "development"
	DesignationSpecial       Designation = "special"
)

func ValidDesignation(d Designation) bool {
	switch d {
	case DesignationTithe, DesignationOffering, DesignationWelfare,
		DesignationThanksgiving, DesignationStationFund, DesignationCampMeeting,
		DesignationMediaMinistry, DesignationDevelopment, DesignationSpecial:
		return true
	default:
		return false
	}
}

// Wallet is one fund sub-account. Balances are mutated only by the ledger
// transaction methods in the persistence layer; everything else reads.
type Wallet struct {
	WalletID         uuid.UUID       `json:"wallet_id"`
	Category         Designation     `json:"category"`
	SubCategory      string          `json:"sub_category,omitempty"`
	Balance          decimal.Decimal `json:"balance"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CheckInvariant verifies balance == deposits - withdrawals and non-negativity.
func (w Wallet) CheckInvariant() error {
	if !w.Balance.Equal(w.TotalDeposits.Sub(w.TotalWithdrawals)) {
		return fmt.Errorf("%w: wallet %s balance %s != %s - %s",
			ErrLedgerInvariant, w.WalletID, w.Balance, w.TotalDeposits, w.TotalWithdrawals)
	}
	if w.Balance.IsNegative() {
		return fmt.Errorf("%w: wallet %s balance negative", ErrLedgerInvariant, w.WalletID)
	}
	return nil
}

func ValidateCreateWalletInput(category Designation, subCategory string) error {
	if !ValidDesignation(category) {
		return fmt.Errorf("%w: unknown designation %q", ErrInvalidInput, category)
	}
	if len(strings.TrimSpace(subCategory)) > 120 {
		return fmt.Errorf("%w: sub_category too long", ErrInvalidInput)
	}
	return nil
}

// EntryDirection is the ledger-entry direction for a wallet delta.
type EntryDirection string

const (
	DirectionCredit EntryDirection = "credit"
	DirectionDebit  EntryDirection = "debit"
)

// LedgerEntry records one applied wallet delta together with its cause, so
// every balance movement can be traced back to a payment or withdrawal.
type LedgerEntry struct {
	EntryID   uuid.UUID       `json:"entry_id"`
	WalletID  uuid.UUID       `json:"wallet_id"`
	Amount    decimal.Decimal `json:"amount"`
	Direction EntryDirection  `json:"direction"`
	CauseType string          `json:"cause_type"`
	CauseID   uuid.UUID       `json:"cause_id"`
	CreatedAt time.Time       `json:"created_at"`
}
