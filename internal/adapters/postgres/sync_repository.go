package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type syncRepository struct {
	db *gorm.DB
}

// CreateIfAbsent relies on the unique bank_transaction_id index: a conflict
// inserts nothing, which makes feed re-imports naturally idempotent.
func (r *syncRepository) CreateIfAbsent(ctx context.Context, rec domain.BankTransactionSync) (bool, error) {
	row := syncModel{
		SyncID:            rec.SyncID,
		BankTransactionID: rec.BankTransactionID,
		BankReference:     rec.BankReference,
		Amount:            rec.Amount,
		TransactionDate:   rec.TransactionDate,
		Description:       rec.Description,
		Direction:         string(rec.Direction),
		Status:            string(rec.Status),
		ImportedAt:        rec.ImportedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bank_transaction_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *syncRepository) GetByID(ctx context.Context, syncID uuid.UUID) (domain.BankTransactionSync, error) {
	var row syncModel
	if err := r.db.WithContext(ctx).Where("sync_id = ?", syncID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.BankTransactionSync{}, fmt.Errorf("%w: sync record %s", domain.ErrNotFound, syncID)
		}
		return domain.BankTransactionSync{}, err
	}
	return toDomainSync(row), nil
}

func (r *syncRepository) ListByStatus(ctx context.Context, status domain.SyncStatus, limit, offset int) ([]domain.BankTransactionSync, int, error) {
	q := r.db.WithContext(ctx).Model(&syncModel{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []syncModel
	if err := q.Order("transaction_date ASC, sync_id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.BankTransactionSync, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainSync(row))
	}
	return out, int(total), nil
}

// LinkTx commits a link in one transaction: the sync record moves
// unlinked -> linked and the payment is stamped. Both sides are guarded
// with compare-and-swap updates, so racing auto and manual links resolve
// to exactly one winner and the loser gets domain.ErrConflict.
func (r *syncRepository) LinkTx(ctx context.Context, params ports.LinkSyncTxParams) (domain.BankTransactionSync, error) {
	var row syncModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&syncModel{}).
			Where("sync_id = ? AND status = ?", params.SyncID, string(domain.SyncStatusUnlinked)).
			Updates(map[string]any{
				"status":            string(domain.SyncStatusLinked),
				"linked_payment_id": params.PaymentID,
				"updated_at":        params.LinkedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: sync record %s is not unlinked", domain.ErrConflict, params.SyncID)
		}

		res = tx.Model(&paymentModel{}).
			Where("payment_id = ? AND status = ? AND sync_id IS NULL",
				params.PaymentID, string(domain.PaymentStatusCompleted)).
			Updates(map[string]any{
				"sync_id":    params.SyncID,
				"updated_at": params.LinkedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: payment %s is not completed and unlinked", domain.ErrConflict, params.PaymentID)
		}

		if err := tx.Where("sync_id = ?", params.SyncID).Take(&row).Error; err != nil {
			return err
		}
		return insertOutbox(tx, params.Event)
	})
	if err != nil {
		return domain.BankTransactionSync{}, err
	}
	return toDomainSync(row), nil
}

func (r *syncRepository) Ignore(ctx context.Context, syncID uuid.UUID, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&syncModel{}).
		Where("sync_id = ? AND status = ?", syncID, string(domain.SyncStatusUnlinked)).
		Updates(map[string]any{
			"status":        string(domain.SyncStatusIgnored),
			"ignore_reason": reason,
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: sync record %s is not unlinked", domain.ErrConflict, syncID)
	}
	return nil
}

// Unlink reopens a linked record and clears the payment stamp in the same
// transaction, so the pair never disagrees about the link.
func (r *syncRepository) Unlink(ctx context.Context, syncID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&syncModel{}).
			Where("sync_id = ? AND status = ?", syncID, string(domain.SyncStatusLinked)).
			Updates(map[string]any{
				"status":            string(domain.SyncStatusUnlinked),
				"linked_payment_id": nil,
				"updated_at":        at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: sync record %s is not linked", domain.ErrConflict, syncID)
		}
		return tx.Model(&paymentModel{}).
			Where("sync_id = ?", syncID).
			Updates(map[string]any{
				"sync_id":    nil,
				"updated_at": at,
			}).Error
	})
}
