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

type withdrawalRepository struct {
	db *gorm.DB
}

func (r *withdrawalRepository) Create(ctx context.Context, request domain.WithdrawalRequest) error {
	row := withdrawalModel{
		RequestID:         request.RequestID,
		WalletID:          request.WalletID,
		Amount:            request.Amount,
		Purpose:           request.Purpose,
		Description:       request.Description,
		Method:            string(request.Method),
		Destination:       request.Destination,
		RequiredApprovals: request.RequiredApprovals,
		ApprovalCount:     request.ApprovalCount,
		Status:            string(request.Status),
		RequestedBy:       request.RequestedBy,
		CreatedAt:         request.CreatedAt,
		UpdatedAt:         request.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request %s already exists", domain.ErrConflict, request.RequestID)
		}
		return err
	}
	return nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, requestID uuid.UUID) (domain.WithdrawalRequest, error) {
	var row withdrawalModel
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal request %s", domain.ErrNotFound, requestID)
		}
		return domain.WithdrawalRequest{}, err
	}
	return toDomainWithdrawal(row), nil
}

func (r *withdrawalRepository) List(ctx context.Context, status domain.WithdrawalStatus, limit, offset int) ([]domain.WithdrawalRequest, int, error) {
	q := r.db.WithContext(ctx).Model(&withdrawalModel{})
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
	var rows []withdrawalModel
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.WithdrawalRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainWithdrawal(row))
	}
	return out, int(total), nil
}

func (r *withdrawalRepository) ListApprovals(ctx context.Context, requestID uuid.UUID) ([]domain.WithdrawalApproval, error) {
	var rows []approvalModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("approved_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.WithdrawalApproval, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainApproval(row))
	}
	return out, nil
}

// ApproveTx records one approval and, when the quorum is reached in the same
// transaction, debits the wallet, writes the mirror expense payment and
// marks the request processed. The request row is locked first, so two
// concurrent final approvals serialize and the second sees a non-pending
// request. A quorum-time balance failure rolls back the approval itself:
// the request stays pending and retryable once funds exist.
func (r *withdrawalRepository) ApproveTx(ctx context.Context, params ports.ApproveWithdrawalTxParams) (domain.WithdrawalRequest, error) {
	var row withdrawalModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("request_id = ?", params.RequestID).
			Take(&row).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: withdrawal request %s", domain.ErrNotFound, params.RequestID)
			}
			return err
		}
		if row.Status != string(domain.WithdrawalStatusPending) {
			return fmt.Errorf("%w: request is %s", domain.ErrConflict, row.Status)
		}

		approval := approvalModel{
			ApprovalID: uuid.New(),
			RequestID:  params.RequestID,
			ApproverID: params.ApproverID,
			Comment:    params.Comment,
			ApprovedAt: params.ApprovedAt,
		}
		if err := tx.Create(&approval).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: approver %s already approved request %s",
					domain.ErrConflict, params.ApproverID, params.RequestID)
			}
			return err
		}

		row.ApprovalCount++
		row.UpdatedAt = params.ApprovedAt
		if row.ApprovalCount < row.RequiredApprovals {
			return tx.Model(&withdrawalModel{}).
				Where("request_id = ?", params.RequestID).
				Updates(map[string]any{
					"approval_count": row.ApprovalCount,
					"updated_at":     params.ApprovedAt,
				}).Error
		}

		debit := []ports.LedgerDelta{{
			WalletID:  row.WalletID,
			Amount:    row.Amount,
			Direction: domain.DirectionDebit,
			CauseType: "withdrawal",
			CauseID:   row.RequestID,
		}}
		if err := applyLedgerDeltas(tx, debit, params.ApprovedAt); err != nil {
			return err
		}

		expense := toModelPayment(params.ExpensePayment)
		if err := tx.Create(&expense).Error; err != nil {
			return err
		}

		row.Status = string(domain.WithdrawalStatusProcessed)
		row.PaymentID = &expense.PaymentID
		processedAt := params.ApprovedAt
		row.ProcessedAt = &processedAt
		if err := tx.Model(&withdrawalModel{}).
			Where("request_id = ?", params.RequestID).
			Updates(map[string]any{
				"approval_count": row.ApprovalCount,
				"status":         row.Status,
				"payment_id":     expense.PaymentID,
				"processed_at":   processedAt,
				"updated_at":     params.ApprovedAt,
			}).Error; err != nil {
			return err
		}
		return insertOutbox(tx, params.Event)
	})
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}
	return toDomainWithdrawal(row), nil
}

func (r *withdrawalRepository) Reject(ctx context.Context, requestID uuid.UUID, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&withdrawalModel{}).
		Where("request_id = ? AND status = ?", requestID, string(domain.WithdrawalStatusPending)).
		Updates(map[string]any{
			"status":           string(domain.WithdrawalStatusRejected),
			"rejection_reason": reason,
			"updated_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: request %s is not pending", domain.ErrConflict, requestID)
	}
	return nil
}

func (r *withdrawalRepository) Cancel(ctx context.Context, requestID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&withdrawalModel{}).
		Where("request_id = ? AND status = ?", requestID, string(domain.WithdrawalStatusPending)).
		Updates(map[string]any{
			"status":     string(domain.WithdrawalStatusCancelled),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: request %s is not pending", domain.ErrConflict, requestID)
	}
	return nil
}
