package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
)

// LedgerDelta is one wallet balance movement to apply inside a transaction.
// The persistence layer is the only ledger writer: it applies deltas, records
// a ledger entry per delta, and rejects any debit that would go negative.
type LedgerDelta struct {
	WalletID  uuid.UUID
	Amount    decimal.Decimal
	Direction domain.EntryDirection
	CauseType string
	CauseID   uuid.UUID
}

// OutboxEvent is a post-commit notification enqueued in the same transaction
// as the state change it describes.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type WalletRepository interface {
	Create(ctx context.Context, wallet domain.Wallet) error
	GetByID(ctx context.Context, walletID uuid.UUID) (domain.Wallet, error)
	GetByCategory(ctx context.Context, category domain.Designation, subCategory string) (domain.Wallet, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Wallet, error)
	Deactivate(ctx context.Context, walletID uuid.UUID, at time.Time) error
}

type PaymentListQuery struct {
	PayerID string
	Status  domain.PaymentStatus
	Limit   int
	Offset  int
}

// CompletePaymentTxParams carries everything the atomic completion needs.
// The repository re-checks the payment is still pending inside the
// transaction; a replayed completion returns domain.ErrConflict with no
// ledger effect. The receipt number is assigned inside the transaction.
type CompletePaymentTxParams struct {
	PaymentID             uuid.UUID
	ProviderTransactionID string
	CompletedAt           time.Time
	Deltas                []LedgerDelta
	Event                 OutboxEvent
}

type FailPaymentTxParams struct {
	PaymentID uuid.UUID
	Reason    string
	FailedAt  time.Time
	Event     OutboxEvent
}

type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) error
	GetByID(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error)
	GetByProviderRef(ctx context.Context, providerRef string) (domain.Payment, error)
	// SetProviderRef stores the gateway-issued request id on a pending
	// payment once the charge has been accepted.
	SetProviderRef(ctx context.Context, paymentID uuid.UUID, providerRef string, at time.Time) error
	List(ctx context.Context, query PaymentListQuery) ([]domain.Payment, int, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Payment, error)
	// ListCompletedUnlinked returns completed payments without a
	// reconciliation link whose amount matches and whose completion time
	// falls inside [from, to]. Read-only; candidate selection happens
	// outside any writing transaction.
	ListCompletedUnlinked(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]domain.Payment, error)
	CompletePendingTx(ctx context.Context, params CompletePaymentTxParams) (domain.Payment, error)
	FailPendingTx(ctx context.Context, params FailPaymentTxParams) (domain.Payment, error)
	CancelPending(ctx context.Context, paymentID uuid.UUID, at time.Time) error
}

type BatchRepository interface {
	// CreateWithMembersTx persists the batch and all members atomically.
	// The stored aggregate is recomputed from the members.
	CreateWithMembersTx(ctx context.Context, batch domain.BatchPayment, members []domain.Payment) error
	// AppendMembersTx inserts members and recomputes the aggregate in one
	// transaction; fails with domain.ErrConflict unless the batch is pending.
	AppendMembersTx(ctx context.Context, batchID uuid.UUID, members []domain.Payment, at time.Time) (domain.BatchPayment, error)
	GetByID(ctx context.Context, batchID uuid.UUID) (domain.BatchPayment, error)
	GetByProviderRef(ctx context.Context, providerRef string) (domain.BatchPayment, error)
	List(ctx context.Context, limit, offset int) ([]domain.BatchPayment, int, error)
	// MarkDeposited moves pending -> deposited and stores the gateway ref.
	MarkDeposited(ctx context.Context, batchID uuid.UUID, providerRef string, at time.Time) error
	// MarkCompleted moves deposited -> completed.
	MarkCompleted(ctx context.Context, batchID uuid.UUID, at time.Time) error
	// CancelTx cancels the batch and its still-pending members atomically.
	// Valid only from pending or deposited; completed members are untouched.
	CancelTx(ctx context.Context, batchID uuid.UUID, at time.Time) (domain.BatchPayment, error)
}

// ApproveWithdrawalTxParams describes one approval. When the approval reaches
// the required count, the same transaction debits the wallet, writes the
// mirror expense payment and marks the request processed.
type ApproveWithdrawalTxParams struct {
	RequestID      uuid.UUID
	ApproverID     uuid.UUID
	Comment        string
	ApprovedAt     time.Time
	ExpensePayment domain.Payment
	Event          OutboxEvent
}

type WithdrawalRepository interface {
	Create(ctx context.Context, request domain.WithdrawalRequest) error
	GetByID(ctx context.Context, requestID uuid.UUID) (domain.WithdrawalRequest, error)
	List(ctx context.Context, status domain.WithdrawalStatus, limit, offset int) ([]domain.WithdrawalRequest, int, error)
	ListApprovals(ctx context.Context, requestID uuid.UUID) ([]domain.WithdrawalApproval, error)
	// ApproveTx atomically records the approval, increments the counter and,
	// at quorum, re-checks the wallet balance and executes the debit.
	// Returns domain.ErrConflict on a duplicate approver and
	// domain.ErrInsufficientFunds when the quorum-time balance check fails.
	ApproveTx(ctx context.Context, params ApproveWithdrawalTxParams) (domain.WithdrawalRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, reason string, at time.Time) error
	Cancel(ctx context.Context, requestID uuid.UUID, at time.Time) error
}

// LinkSyncTxParams commits a reconciliation link: the sync record moves
// unlinked -> linked and the payment is stamped, in one transaction.
type LinkSyncTxParams struct {
	SyncID    uuid.UUID
	PaymentID uuid.UUID
	LinkedAt  time.Time
	Event     OutboxEvent
}

type SyncRepository interface {
	// CreateIfAbsent inserts the record unless its bank transaction id is
	// already present; reports whether a row was created.
	CreateIfAbsent(ctx context.Context, rec domain.BankTransactionSync) (bool, error)
	GetByID(ctx context.Context, syncID uuid.UUID) (domain.BankTransactionSync, error)
	ListByStatus(ctx context.Context, status domain.SyncStatus, limit, offset int) ([]domain.BankTransactionSync, int, error)
	LinkTx(ctx context.Context, params LinkSyncTxParams) (domain.BankTransactionSync, error)
	Ignore(ctx context.Context, syncID uuid.UUID, reason string, at time.Time) error
	// Unlink reopens a linked record and clears the payment stamp. This is
	// the only path back to unlinked and requires an explicit operator call.
	Unlink(ctx context.Context, syncID uuid.UUID, at time.Time) error
}

type ApproverRepository interface {
	Create(ctx context.Context, approver domain.Approver) error
	GetByID(ctx context.Context, approverID uuid.UUID) (domain.Approver, error)
	GetByUsername(ctx context.Context, username string) (domain.Approver, error)
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken string, reason string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken string, reason string, at time.Time) error
}
