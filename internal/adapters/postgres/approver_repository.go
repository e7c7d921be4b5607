package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/treasury/internal/domain"
)

type approverRepository struct {
	db *gorm.DB
}

func (r *approverRepository) Create(ctx context.Context, approver domain.Approver) error {
	row := approverModel{
		ApproverID:         approver.ApproverID,
		Username:           approver.Username,
		FullName:           approver.FullName,
		Role:               string(approver.Role),
		PasswordHash:       approver.PasswordHash,
		ApprovalSecretHash: nullableString(approver.ApprovalSecretHash),
		IsActive:           approver.IsActive,
		CreatedAt:          approver.CreatedAt,
		UpdatedAt:          approver.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q already taken", domain.ErrConflict, approver.Username)
		}
		return err
	}
	return nil
}

func (r *approverRepository) GetByID(ctx context.Context, approverID uuid.UUID) (domain.Approver, error) {
	var row approverModel
	if err := r.db.WithContext(ctx).Where("approver_id = ?", approverID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.Approver{}, fmt.Errorf("%w: approver %s", domain.ErrNotFound, approverID)
		}
		return domain.Approver{}, err
	}
	return toDomainApprover(row), nil
}

func (r *approverRepository) GetByUsername(ctx context.Context, username string) (domain.Approver, error) {
	var row approverModel
	if err := r.db.WithContext(ctx).Where("lower(username) = lower(?)", username).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.Approver{}, fmt.Errorf("%w: approver %q", domain.ErrNotFound, username)
		}
		return domain.Approver{}, err
	}
	return toDomainApprover(row), nil
}
