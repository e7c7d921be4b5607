package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func completedPayment(amount string, completedAt time.Time) Payment {
	at := completedAt
	return Payment{
		PaymentID:   uuid.New(),
		Amount:      decimal.RequireFromString(amount),
		Status:      PaymentStatusCompleted,
		CompletedAt: &at,
	}
}

func TestMatchCandidates(t *testing.T) {
	t.Parallel()

	window := 24 * time.Hour
	bankDate := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rec := BankTransactionSync{
		SyncID:          uuid.New(),
		Amount:          decimal.RequireFromString("1500.00"),
		TransactionDate: bankDate,
		Direction:       DirectionCredit,
	}

	dayBefore := completedPayment("1500.00", bankDate.Add(-20*time.Hour))
	sameDay := completedPayment("1500.00", bankDate.Add(2*time.Hour))
	tooOld := completedPayment("1500.00", bankDate.Add(-30*time.Hour))
	wrongAmount := completedPayment("1500.50", bankDate)
	linkedID := uuid.New()
	alreadyLinked := completedPayment("1500.00", bankDate)
	alreadyLinked.SyncID = &linkedID
	stillPending := Payment{PaymentID: uuid.New(), Amount: rec.Amount, Status: PaymentStatusPending, CreatedAt: bankDate}

	got := MatchCandidates(rec, []Payment{dayBefore, tooOld, wrongAmount, alreadyLinked, stillPending}, window)
	if len(got) != 1 || got[0].PaymentID != dayBefore.PaymentID {
		t.Fatalf("expected single day-before candidate, got %d", len(got))
	}

	got = MatchCandidates(rec, []Payment{dayBefore, sameDay}, window)
	if len(got) != 2 {
		t.Fatalf("expected both in-window candidates, got %d", len(got))
	}

	got = MatchCandidates(rec, []Payment{tooOld, wrongAmount}, window)
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}

func TestValidateFeedRecord(t *testing.T) {
	t.Parallel()

	good := BankTransactionSync{
		BankTransactionID: "FT26069ABCD",
		Amount:            decimal.RequireFromString("900.00"),
		Direction:         DirectionCredit,
	}
	if err := ValidateFeedRecord(good); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	missingID := good
	missingID.BankTransactionID = "  "
	if err := ValidateFeedRecord(missingID); err == nil {
		t.Fatal("expected error for missing bank transaction id")
	}

	zeroAmount := good
	zeroAmount.Amount = decimal.Zero
	if err := ValidateFeedRecord(zeroAmount); err == nil {
		t.Fatal("expected error for zero amount")
	}

	badDirection := good
	badDirection.Direction = "sideways"
	if err := ValidateFeedRecord(badDirection); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}

func TestWithinTolerance(t *testing.T) {
	t.Parallel()

	tol := decimal.New(1, -2)
	if !WithinTolerance(decimal.RequireFromString("100.00"), decimal.RequireFromString("100.01"), tol) {
		t.Fatal("one cent apart should be within tolerance")
	}
	if WithinTolerance(decimal.RequireFromString("100.00"), decimal.RequireFromString("100.02"), tol) {
		t.Fatal("two cents apart should exceed tolerance")
	}
}
