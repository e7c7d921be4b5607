package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type walletModel struct {
	WalletID         uuid.UUID       `gorm:"column:wallet_id;type:uuid;primaryKey"`
	Category         string          `gorm:"column:category"`
	SubCategory      string          `gorm:"column:sub_category"`
	Balance          decimal.Decimal `gorm:"column:balance;type:numeric(14,2)"`
	TotalDeposits    decimal.Decimal `gorm:"column:total_deposits;type:numeric(14,2)"`
	TotalWithdrawals decimal.Decimal `gorm:"column:total_withdrawals;type:numeric(14,2)"`
	IsActive         bool            `gorm:"column:is_active"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (walletModel) TableName() string { return "wallets" }

type ledgerEntryModel struct {
	EntryID   uuid.UUID       `gorm:"column:entry_id;type:uuid;primaryKey"`
	WalletID  uuid.UUID       `gorm:"column:wallet_id;type:uuid"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	Direction string          `gorm:"column:direction"`
	CauseType string          `gorm:"column:cause_type"`
	CauseID   uuid.UUID       `gorm:"column:cause_id;type:uuid"`
	CreatedAt time.Time       `gorm:"column:created_at"`
}

func (ledgerEntryModel) TableName() string { return "ledger_entries" }

type paymentModel struct {
	PaymentID             uuid.UUID       `gorm:"column:payment_id;type:uuid;primaryKey"`
	PayerID               string          `gorm:"column:payer_id"`
	Type                  string          `gorm:"column:type"`
	Amount                decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	Category              string          `gorm:"column:category"`
	SubCategory           string          `gorm:"column:sub_category"`
	Distribution          *string         `gorm:"column:distribution;type:jsonb"`
	Provider              string          `gorm:"column:provider"`
	ProviderRef           *string         `gorm:"column:provider_ref"`
	ProviderTransactionID *string         `gorm:"column:provider_transaction_id"`
	ReceiptNumber         *string         `gorm:"column:receipt_number"`
	Status                string          `gorm:"column:status"`
	FailureReason         *string         `gorm:"column:failure_reason"`
	BatchID               *uuid.UUID      `gorm:"column:batch_id;type:uuid"`
	SyncID                *uuid.UUID      `gorm:"column:sync_id;type:uuid"`
	CreatedAt             time.Time       `gorm:"column:created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at"`
	CompletedAt           *time.Time      `gorm:"column:completed_at"`
}

func (paymentModel) TableName() string { return "payments" }

type receiptModel struct {
	ReceiptID uuid.UUID       `gorm:"column:receipt_id;type:uuid;primaryKey"`
	ReceiptNo int64           `gorm:"column:receipt_no;->"`
	PaymentID uuid.UUID       `gorm:"column:payment_id;type:uuid"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	IssuedAt  time.Time       `gorm:"column:issued_at"`
}

func (receiptModel) TableName() string { return "receipts" }

type batchModel struct {
	BatchID     uuid.UUID       `gorm:"column:batch_id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	MemberCount int             `gorm:"column:member_count"`
	Status      string          `gorm:"column:status"`
	Provider    string          `gorm:"column:provider"`
	ProviderRef *string         `gorm:"column:provider_ref"`
	CreatedBy   string          `gorm:"column:created_by"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (batchModel) TableName() string { return "batch_payments" }

type withdrawalModel struct {
	RequestID         uuid.UUID       `gorm:"column:request_id;type:uuid;primaryKey"`
	WalletID          uuid.UUID       `gorm:"column:wallet_id;type:uuid"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	Purpose           string          `gorm:"column:purpose"`
	Description       string          `gorm:"column:description"`
	Method            string          `gorm:"column:method"`
	Destination       string          `gorm:"column:destination"`
	RequiredApprovals int             `gorm:"column:required_approvals"`
	ApprovalCount     int             `gorm:"column:approval_count"`
	Status            string          `gorm:"column:status"`
	RejectionReason   *string         `gorm:"column:rejection_reason"`
	RequestedBy       uuid.UUID       `gorm:"column:requested_by;type:uuid"`
	PaymentID         *uuid.UUID      `gorm:"column:payment_id;type:uuid"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
	ProcessedAt       *time.Time      `gorm:"column:processed_at"`
}

func (withdrawalModel) TableName() string { return "withdrawal_requests" }

type approvalModel struct {
	ApprovalID uuid.UUID `gorm:"column:approval_id;type:uuid;primaryKey"`
	RequestID  uuid.UUID `gorm:"column:request_id;type:uuid"`
	ApproverID uuid.UUID `gorm:"column:approver_id;type:uuid"`
	Comment    string    `gorm:"column:comment"`
	ApprovedAt time.Time `gorm:"column:approved_at"`
}

func (approvalModel) TableName() string { return "withdrawal_approvals" }

type approverModel struct {
	ApproverID         uuid.UUID `gorm:"column:approver_id;type:uuid;primaryKey"`
	Username           string    `gorm:"column:username"`
	FullName           string    `gorm:"column:full_name"`
	Role               string    `gorm:"column:role"`
	PasswordHash       string    `gorm:"column:password_hash"`
	ApprovalSecretHash *string   `gorm:"column:approval_secret_hash"`
	IsActive           bool      `gorm:"column:is_active"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (approverModel) TableName() string { return "approvers" }

type syncModel struct {
	SyncID            uuid.UUID       `gorm:"column:sync_id;type:uuid;primaryKey"`
	BankTransactionID string          `gorm:"column:bank_transaction_id"`
	BankReference     string          `gorm:"column:bank_reference"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	TransactionDate   time.Time       `gorm:"column:transaction_date"`
	Description       string          `gorm:"column:description"`
	Direction         string          `gorm:"column:direction"`
	Status            string          `gorm:"column:status"`
	LinkedPaymentID   *uuid.UUID      `gorm:"column:linked_payment_id;type:uuid"`
	IgnoreReason      *string         `gorm:"column:ignore_reason"`
	ImportedAt        time.Time       `gorm:"column:imported_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

func (syncModel) TableName() string { return "bank_transaction_syncs" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "treasury_outbox" }
