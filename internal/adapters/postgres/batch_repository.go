package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/treasury/internal/domain"
)

type batchRepository struct {
	db *gorm.DB
}

func (r *batchRepository) CreateWithMembersTx(ctx context.Context, batch domain.BatchPayment, members []domain.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := batchModel{
			BatchID:     batch.BatchID,
			Name:        batch.Name,
			Amount:      domain.SumMembers(members),
			MemberCount: len(members),
			Status:      string(batch.Status),
			Provider:    string(batch.Provider),
			ProviderRef: nullableString(batch.ProviderRef),
			CreatedBy:   batch.CreatedBy,
			CreatedAt:   batch.CreatedAt,
			UpdatedAt:   batch.UpdatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: batch %s already exists", domain.ErrConflict, batch.BatchID)
			}
			return err
		}
		for _, member := range members {
			memberRow := toModelPayment(member)
			if err := tx.Create(&memberRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *batchRepository) AppendMembersTx(ctx context.Context, batchID uuid.UUID, members []domain.Payment, at time.Time) (domain.BatchPayment, error) {
	var row batchModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("batch_id = ?", batchID).
			Take(&row).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
			}
			return err
		}
		if row.Status != string(domain.BatchStatusPending) {
			return fmt.Errorf("%w: batch is %s, expected pending", domain.ErrConflict, row.Status)
		}

		for _, member := range members {
			memberRow := toModelPayment(member)
			if err := tx.Create(&memberRow).Error; err != nil {
				return err
			}
		}
		return recomputeAggregate(tx, &row, at)
	})
	if err != nil {
		return domain.BatchPayment{}, err
	}
	return toDomainBatch(row), nil
}

func (r *batchRepository) GetByID(ctx context.Context, batchID uuid.UUID) (domain.BatchPayment, error) {
	var row batchModel
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.BatchPayment{}, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
		}
		return domain.BatchPayment{}, err
	}
	return toDomainBatch(row), nil
}

func (r *batchRepository) GetByProviderRef(ctx context.Context, providerRef string) (domain.BatchPayment, error) {
	var row batchModel
	if err := r.db.WithContext(ctx).Where("provider_ref = ?", providerRef).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.BatchPayment{}, fmt.Errorf("%w: batch for provider ref %q", domain.ErrNotFound, providerRef)
		}
		return domain.BatchPayment{}, err
	}
	return toDomainBatch(row), nil
}

func (r *batchRepository) List(ctx context.Context, limit, offset int) ([]domain.BatchPayment, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&batchModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []batchModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.BatchPayment, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainBatch(row))
	}
	return out, int(total), nil
}

func (r *batchRepository) MarkDeposited(ctx context.Context, batchID uuid.UUID, providerRef string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&batchModel{}).
		Where("batch_id = ? AND status = ?", batchID, string(domain.BatchStatusPending)).
		Updates(map[string]any{
			"status":       string(domain.BatchStatusDeposited),
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
		return fmt.Errorf("%w: batch %s is not pending", domain.ErrConflict, batchID)
	}
	return nil
}

func (r *batchRepository) MarkCompleted(ctx context.Context, batchID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&batchModel{}).
		Where("batch_id = ? AND status = ?", batchID, string(domain.BatchStatusDeposited)).
		Updates(map[string]any{
			"status":     string(domain.BatchStatusCompleted),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s is not deposited", domain.ErrConflict, batchID)
	}
	return nil
}

// CancelTx cancels the batch together with every member still pending.
// Members already terminal keep their status; the aggregate is recomputed
// from the survivors so the stored amount reflects what actually moved.
func (r *batchRepository) CancelTx(ctx context.Context, batchID uuid.UUID, at time.Time) (domain.BatchPayment, error) {
	var row batchModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("batch_id = ?", batchID).
			Take(&row).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
			}
			return err
		}
		switch row.Status {
		case string(domain.BatchStatusPending), string(domain.BatchStatusDeposited):
		default:
			return fmt.Errorf("%w: batch is %s", domain.ErrConflict, row.Status)
		}

		if err := tx.Model(&paymentModel{}).
			Where("batch_id = ? AND status = ?", batchID, string(domain.PaymentStatusPending)).
			Updates(map[string]any{
				"status":     string(domain.PaymentStatusCancelled),
				"updated_at": at,
			}).Error; err != nil {
			return err
		}

		row.Status = string(domain.BatchStatusCancelled)
		return recomputeAggregate(tx, &row, at)
	})
	if err != nil {
		return domain.BatchPayment{}, err
	}
	return toDomainBatch(row), nil
}

// recomputeAggregate refreshes the stored amount and member count from the
// member rows and writes the batch back. Cancelled members never count.
func recomputeAggregate(tx *gorm.DB, row *batchModel, at time.Time) error {
	var agg struct {
		Total   decimal.Decimal
		Members int64
	}
	if err := tx.Raw(`SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS members
		FROM payments WHERE batch_id = ? AND status <> ?`,
		row.BatchID, string(domain.PaymentStatusCancelled)).Scan(&agg).Error; err != nil {
		return err
	}
	row.Amount = agg.Total
	row.MemberCount = int(agg.Members)
	row.UpdatedAt = at
	return tx.Model(&batchModel{}).
		Where("batch_id = ?", row.BatchID).
		Updates(map[string]any{
			"amount":       row.Amount,
			"member_count": row.MemberCount,
			"status":       row.Status,
			"updated_at":   at,
		}).Error
}
