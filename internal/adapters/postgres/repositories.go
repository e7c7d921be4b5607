package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type Repositories struct {
	Wallets     ports.WalletRepository
	Payments    ports.PaymentRepository
	Batches     ports.BatchRepository
	Withdrawals ports.WithdrawalRepository
	Syncs       ports.SyncRepository
	Approvers   ports.ApproverRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Wallets:     &walletRepository{db: db},
		Payments:    &paymentRepository{db: db},
		Batches:     &batchRepository{db: db},
		Withdrawals: &withdrawalRepository{db: db},
		Syncs:       &syncRepository{db: db},
		Approvers:   &approverRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}

// applyLedgerDeltas executes wallet balance movements inside the caller's
// transaction and records one ledger entry per movement. A debit is guarded
// by the balance in the same UPDATE, so a concurrent debit can never push a
// wallet negative.
func applyLedgerDeltas(tx *gorm.DB, deltas []ports.LedgerDelta, at time.Time) error {
	for _, d := range deltas {
		var res *gorm.DB
		switch d.Direction {
		case domain.DirectionCredit:
			res = tx.Exec(`UPDATE wallets
				SET balance = balance + ?, total_deposits = total_deposits + ?, updated_at = ?
				WHERE wallet_id = ? AND is_active`,
				d.Amount, d.Amount, at, d.WalletID)
		case domain.DirectionDebit:
			res = tx.Exec(`UPDATE wallets
				SET balance = balance - ?, total_withdrawals = total_withdrawals + ?, updated_at = ?
				WHERE wallet_id = ? AND is_active AND balance >= ?`,
				d.Amount, d.Amount, at, d.WalletID, d.Amount)
		default:
			return fmt.Errorf("%w: ledger direction %q", domain.ErrInvalidInput, d.Direction)
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if d.Direction == domain.DirectionDebit {
				return fmt.Errorf("%w: wallet %s", domain.ErrInsufficientFunds, d.WalletID)
			}
			return fmt.Errorf("%w: wallet %s", domain.ErrWalletInactive, d.WalletID)
		}

		entry := ledgerEntryModel{
			EntryID:   uuid.New(),
			WalletID:  d.WalletID,
			Amount:    d.Amount,
			Direction: string(d.Direction),
			CauseType: d.CauseType,
			CauseID:   d.CauseID,
			CreatedAt: at,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}

// insertOutbox enqueues an event in the caller's transaction so the
// notification commits or rolls back with the state change it describes.
func insertOutbox(tx *gorm.DB, event ports.OutboxEvent) error {
	rec := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    event.OccurredAt,
	}
	return tx.Create(&rec).Error
}
