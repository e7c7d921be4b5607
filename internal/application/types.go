package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
)

type LoginResponse struct {
	Token     string      `json:"token"`
	Role      domain.Role `json:"role"`
	ExpiresIn int64       `json:"expires_in"`
}

type CreateApproverRequest struct {
	Username       string      `json:"username"`
	FullName       string      `json:"full_name"`
	Role           domain.Role `json:"role"`
	Password       string      `json:"password"`
	ApprovalSecret string      `json:"approval_secret"`
}

type CreateWalletRequest struct {
	Category    domain.Designation `json:"category"`
	SubCategory string             `json:"sub_category"`
}

type InitiatePaymentRequest struct {
	PayerID        string                    `json:"payer_id"`
	Provider       domain.PaymentProvider    `json:"provider"`
	Amount         decimal.Decimal           `json:"amount"`
	Category       domain.Designation        `json:"category"`
	SubCategory    string                    `json:"sub_category"`
	Distribution   []domain.DistributionLine `json:"distribution"`
	PhoneOrAccount string                    `json:"phone_or_account"`
	Description    string                    `json:"description"`
}

// CallbackAck is returned for every inbound gateway callback. Replays are
// acknowledged without side effects, so Duplicate means "already handled".
type CallbackAck struct {
	Duplicate bool       `json:"duplicate"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
	BatchID   *uuid.UUID `json:"batch_id,omitempty"`
}

type BatchMemberInput struct {
	PayerID     string             `json:"payer_id"`
	Amount      decimal.Decimal    `json:"amount"`
	Category    domain.Designation `json:"category"`
	SubCategory string             `json:"sub_category"`
}

type CreateBatchRequest struct {
	Name     string                 `json:"name"`
	Provider domain.PaymentProvider `json:"provider"`
	Members  []BatchMemberInput     `json:"members"`
}

type ChargeBatchRequest struct {
	PhoneOrAccount string `json:"phone_or_account"`
	Description    string `json:"description"`
}

type RequestWithdrawalInput struct {
	WalletID    uuid.UUID               `json:"wallet_id"`
	Amount      decimal.Decimal         `json:"amount"`
	Purpose     string                  `json:"purpose"`
	Description string                  `json:"description"`
	Method      domain.WithdrawalMethod `json:"method"`
	Destination string                  `json:"destination"`
}

type ApproveWithdrawalInput struct {
	Secret  string `json:"password"`
	Comment string `json:"comment"`
}

type ImportFeedReport struct {
	Fetched  int `json:"fetched"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

type AutoLinkReport struct {
	Examined  int `json:"examined"`
	Linked    int `json:"linked"`
	Ambiguous int `json:"ambiguous"`
	NoMatch   int `json:"no_match"`
}

// WalletSummary is the read-model for the wallet listing endpoint.
type WalletSummary struct {
	Wallets          []domain.Wallet `json:"wallets"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	AsOf             time.Time       `json:"as_of"`
}
