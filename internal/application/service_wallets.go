package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

func (s *Service) CreateWallet(ctx context.Context, actor ports.AuthClaims, req CreateWalletRequest) (domain.Wallet, error) {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleTreasurer {
		return domain.Wallet{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateCreateWalletInput(req.Category, req.SubCategory); err != nil {
		return domain.Wallet{}, err
	}
	if _, err := s.wallets.GetByCategory(ctx, req.Category, req.SubCategory); err == nil {
		return domain.Wallet{}, fmt.Errorf("%w: wallet already exists for (%s, %s)", domain.ErrConflict, req.Category, req.SubCategory)
	}

	now := s.nowFn()
	wallet := domain.Wallet{
		WalletID:         uuid.New(),
		Category:         req.Category,
		SubCategory:      req.SubCategory,
		Balance:          decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return domain.Wallet{}, err
	}
	return wallet, nil
}

func (s *Service) GetWallet(ctx context.Context, walletID uuid.UUID) (domain.Wallet, error) {
	return s.wallets.GetByID(ctx, walletID)
}

func (s *Service) ListWallets(ctx context.Context, activeOnly bool) (WalletSummary, error) {
	wallets, err := s.wallets.List(ctx, activeOnly)
	if err != nil {
		return WalletSummary{}, err
	}
	summary := WalletSummary{
		Wallets:          wallets,
		TotalBalance:     decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		AsOf:             s.nowFn(),
	}
	for _, w := range wallets {
		summary.TotalBalance = summary.TotalBalance.Add(w.Balance)
		summary.TotalDeposits = summary.TotalDeposits.Add(w.TotalDeposits)
		summary.TotalWithdrawals = summary.TotalWithdrawals.Add(w.TotalWithdrawals)
	}
	return summary, nil
}

// DeactivateWallet retires a wallet. Wallets are never deleted.
func (s *Service) DeactivateWallet(ctx context.Context, actor ports.AuthClaims, walletID uuid.UUID) error {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleTreasurer {
		return domain.ErrUnauthorized
	}
	return s.wallets.Deactivate(ctx, walletID, s.nowFn())
}

// VerifyLedger re-checks balance == deposits - withdrawals for every wallet.
func (s *Service) VerifyLedger(ctx context.Context) error {
	wallets, err := s.wallets.List(ctx, false)
	if err != nil {
		return err
	}
	for _, w := range wallets {
		if err := w.CheckInvariant(); err != nil {
			return err
		}
	}
	return nil
}

// ensureWallet resolves the wallet for a designation, creating it lazily when
// absent. An existing-but-inactive wallet is never a valid target.
func (s *Service) ensureWallet(ctx context.Context, category domain.Designation, subCategory string) (domain.Wallet, error) {
	wallet, err := s.wallets.GetByCategory(ctx, category, subCategory)
	if err == nil {
		if !wallet.IsActive {
			return domain.Wallet{}, fmt.Errorf("%w: (%s, %s)", domain.ErrWalletInactive, category, subCategory)
		}
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Wallet{}, err
	}

	now := s.nowFn()
	wallet = domain.Wallet{
		WalletID:         uuid.New(),
		Category:         category,
		SubCategory:      subCategory,
		Balance:          decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.wallets.GetByCategory(ctx, category, subCategory)
		}
		return domain.Wallet{}, err
	}
	return wallet, nil
}

// creditPlan builds the ledger deltas for a completing contribution: one
// credit per distribution line, or a single credit to the category wallet.
// The distribution is re-validated so the per-wallet credits always sum to
// the payment amount within tolerance.
func (s *Service) creditPlan(ctx context.Context, p domain.Payment) ([]ports.LedgerDelta, error) {
	if err := domain.ValidateDistribution(p.Amount, p.Distribution, s.cfg.DistributionTolerance); err != nil {
		return nil, err
	}
	if len(p.Distribution) == 0 {
		wallet, err := s.ensureWallet(ctx, p.Category, p.SubCategory)
		if err != nil {
			return nil, err
		}
		return []ports.LedgerDelta{{
			WalletID:  wallet.WalletID,
			Amount:    p.Amount,
			Direction: domain.DirectionCredit,
			CauseType: "payment",
			CauseID:   p.PaymentID,
		}}, nil
	}

	deltas := make([]ports.LedgerDelta, 0, len(p.Distribution))
	for _, line := range p.Distribution {
		wallet, err := s.ensureWallet(ctx, line.Designation, line.SubCategory)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, ports.LedgerDelta{
			WalletID:  wallet.WalletID,
			Amount:    line.Amount,
			Direction: domain.DirectionCredit,
			CauseType: "payment",
			CauseID:   p.PaymentID,
		})
	}
	return deltas, nil
}
