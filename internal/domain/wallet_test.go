package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestWalletCheckInvariant(t *testing.T) {
	t.Parallel()

	w := Wallet{
		WalletID:         uuid.New(),
		Balance:          decimal.RequireFromString("700.00"),
		TotalDeposits:    decimal.RequireFromString("1000.00"),
		TotalWithdrawals: decimal.RequireFromString("300.00"),
	}
	if err := w.CheckInvariant(); err != nil {
		t.Fatalf("consistent wallet flagged: %v", err)
	}

	w.Balance = decimal.RequireFromString("699.99")
	if err := w.CheckInvariant(); !errors.Is(err, ErrLedgerInvariant) {
		t.Fatalf("expected ErrLedgerInvariant, got %v", err)
	}
}

func TestSumMembersSkipsCancelled(t *testing.T) {
	t.Parallel()

	members := []Payment{
		{Amount: decimal.NewFromInt(1000), Status: PaymentStatusPending},
		{Amount: decimal.NewFromInt(500), Status: PaymentStatusCancelled},
		{Amount: decimal.NewFromInt(1500), Status: PaymentStatusCompleted},
	}
	if got := SumMembers(members); !got.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected 2500, got %s", got)
	}
}
