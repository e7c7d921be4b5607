package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type paymentRepository struct {
	db *gorm.DB
}

func (r *paymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	row := toModelPayment(payment)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment %s already exists", domain.ErrConflict, payment.PaymentID)
		}
		return err
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	var row paymentModel
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.Payment{}, fmt.Errorf("%w: payment %s", domain.ErrNotFound, paymentID)
		}
		return domain.Payment{}, err
	}
	return toDomainPayment(row)
}

func (r *paymentRepository) GetByProviderRef(ctx context.Context, providerRef string) (domain.Payment, error) {
	var row paymentModel
	if err := r.db.WithContext(ctx).Where("provider_ref = ?", providerRef).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.Payment{}, fmt.Errorf("%w: payment for provider ref %q", domain.ErrNotFound, providerRef)
		}
		return domain.Payment{}, err
	}
	return toDomainPayment(row)
}

func (r *paymentRepository) SetProviderRef(ctx context.Context, paymentID uuid.UUID, providerRef string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("payment_id = ? AND status = ?", paymentID, string(domain.PaymentStatusPending)).
		Updates(map[string]any{
			"provider_ref": providerRef,
			"updated_at":   at,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("%w: provider ref %q already assigned", domain.ErrConflict, providerRef)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, paymentID)
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, query ports.PaymentListQuery) ([]domain.Payment, int, error) {
	q := r.db.WithContext(ctx).Model(&paymentModel{})
	if query.PayerID != "" {
		q = q.Where("payer_id = ?", query.PayerID)
	}
	if query.Status != "" {
		q = q.Where("status = ?", string(query.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows []paymentModel
	if err := q.Order("created_at DESC").Limit(limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		p, err := toDomainPayment(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, int(total), nil
}

func (r *paymentRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Payment, error) {
	var rows []paymentModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		p, err := toDomainPayment(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepository) ListCompletedUnlinked(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]domain.Payment, error) {
	var rows []paymentModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.PaymentStatusCompleted)).
		Where("sync_id IS NULL").
		Where("amount = ?", amount).
		Where("COALESCE(completed_at, created_at) BETWEEN ? AND ?", from, to).
		Order("completed_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		p, err := toDomainPayment(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CompletePendingTx flips one pending payment to completed, applies its
// wallet credits, issues the receipt and enqueues the outbox event, all in
// one transaction. The WHERE status = 'pending' clause is the idempotency
// guard: a replayed completion updates zero rows and rolls back with
// domain.ErrConflict.
func (r *paymentRepository) CompletePendingTx(ctx context.Context, params ports.CompletePaymentTxParams) (domain.Payment, error) {
	var row paymentModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&paymentModel{}).
			Where("payment_id = ? AND status = ?", params.PaymentID, string(domain.PaymentStatusPending)).
			Updates(map[string]any{
				"status":                  string(domain.PaymentStatusCompleted),
				"provider_transaction_id": nullableString(params.ProviderTransactionID),
				"completed_at":            params.CompletedAt,
				"updated_at":              params.CompletedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, params.PaymentID)
		}

		if err := applyLedgerDeltas(tx, params.Deltas, params.CompletedAt); err != nil {
			return err
		}

		if err := tx.Where("payment_id = ?", params.PaymentID).Take(&row).Error; err != nil {
			return err
		}

		var receiptNo int64
		if err := tx.Raw(`INSERT INTO receipts (receipt_id, payment_id, amount, issued_at)
			VALUES (?, ?, ?, ?) RETURNING receipt_no`,
			uuid.New(), params.PaymentID, row.Amount, params.CompletedAt).Scan(&receiptNo).Error; err != nil {
			return err
		}
		receiptNumber := fmt.Sprintf("RCT-%06d", receiptNo)
		if err := tx.Model(&paymentModel{}).
			Where("payment_id = ?", params.PaymentID).
			Update("receipt_number", receiptNumber).Error; err != nil {
			return err
		}
		row.ReceiptNumber = &receiptNumber

		return insertOutbox(tx, params.Event)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return toDomainPayment(row)
}

func (r *paymentRepository) FailPendingTx(ctx context.Context, params ports.FailPaymentTxParams) (domain.Payment, error) {
	var row paymentModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&paymentModel{}).
			Where("payment_id = ? AND status = ?", params.PaymentID, string(domain.PaymentStatusPending)).
			Updates(map[string]any{
				"status":         string(domain.PaymentStatusFailed),
				"failure_reason": nullableString(params.Reason),
				"updated_at":     params.FailedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, params.PaymentID)
		}
		if err := tx.Where("payment_id = ?", params.PaymentID).Take(&row).Error; err != nil {
			return err
		}
		return insertOutbox(tx, params.Event)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return toDomainPayment(row)
}

func (r *paymentRepository) CancelPending(ctx context.Context, paymentID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("payment_id = ? AND status = ?", paymentID, string(domain.PaymentStatusPending)).
		Updates(map[string]any{
			"status":     string(domain.PaymentStatusCancelled),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment %s is not pending", domain.ErrConflict, paymentID)
	}
	return nil
}
