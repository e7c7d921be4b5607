package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/treasury/internal/domain"
)

type walletRepository struct {
	db *gorm.DB
}

func (r *walletRepository) Create(ctx context.Context, wallet domain.Wallet) error {
	row := walletModel{
		WalletID:         wallet.WalletID,
		Category:         string(wallet.Category),
		SubCategory:      wallet.SubCategory,
		Balance:          wallet.Balance,
		TotalDeposits:    wallet.TotalDeposits,
		TotalWithdrawals: wallet.TotalWithdrawals,
		IsActive:         wallet.IsActive,
		CreatedAt:        wallet.CreatedAt,
		UpdatedAt:        wallet.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: wallet (%s, %s) already exists",
				domain.ErrConflict, wallet.Category, wallet.SubCategory)
		}
		return err
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, walletID uuid.UUID) (domain.Wallet, error) {
	var row walletModel
	if err := r.db.WithContext(ctx).Where("wallet_id = ?", walletID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.Wallet{}, fmt.Errorf("%w: wallet %s", domain.ErrNotFound, walletID)
		}
		return domain.Wallet{}, err
	}
	return toDomainWallet(row), nil
}

func (r *walletRepository) GetByCategory(ctx context.Context, category domain.Designation, subCategory string) (domain.Wallet, error) {
	var row walletModel
	if err := r.db.WithContext(ctx).
		Where("category = ? AND sub_category = ?", string(category), subCategory).
		Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.Wallet{}, fmt.Errorf("%w: wallet (%s, %s)", domain.ErrNotFound, category, subCategory)
		}
		return domain.Wallet{}, err
	}
	return toDomainWallet(row), nil
}

func (r *walletRepository) List(ctx context.Context, activeOnly bool) ([]domain.Wallet, error) {
	q := r.db.WithContext(ctx).Model(&walletModel{})
	if activeOnly {
		q = q.Where("is_active")
	}
	var rows []walletModel
	if err := q.Order("category ASC, sub_category ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Wallet, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainWallet(row))
	}
	return out, nil
}

func (r *walletRepository) Deactivate(ctx context.Context, walletID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&walletModel{}).
		Where("wallet_id = ? AND is_active", walletID).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: wallet %s not found or already inactive", domain.ErrNotFound, walletID)
	}
	return nil
}
