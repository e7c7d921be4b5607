package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/domain"
)

func TestDuplicateCallbackCreditsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.svc.InitiatePayment(ctx, clerkActor(), application.InitiatePaymentRequest{
		PayerID:        "member-44",
		Provider:       domain.ProviderMpesa,
		Amount:         decimal.RequireFromString("1500.00"),
		Category:       domain.DesignationTithe,
		PhoneOrAccount: "254700000044",
	})
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}

	cb := domain.GatewayCallback{
		ProviderRequestID: payment.ProviderRef,
		ResultCode:        0,
		ReceiptNumber:     "NLJ7RT61SV",
	}
	first, err := f.svc.HandleGatewayCallback(ctx, cb)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first callback flagged as duplicate")
	}

	// Replay must acknowledge without touching balances again.
	second, err := f.svc.HandleGatewayCallback(ctx, cb)
	if err != nil {
		t.Fatalf("replayed callback: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("replayed callback not flagged as duplicate")
	}

	if got := f.walletBalance(t, domain.DesignationTithe, ""); !got.Equal(decimal.RequireFromString("1500.00")) {
		t.Fatalf("expected balance 1500.00, got %s", got)
	}
	if entries := f.repos.Wallets.LedgerEntries(); len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}

	completed, err := f.svc.GetPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if completed.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if !strings.HasPrefix(completed.ReceiptNumber, "RCT-") {
		t.Fatalf("expected receipt number, got %q", completed.ReceiptNumber)
	}
	if completed.ProviderTransactionID != "NLJ7RT61SV" {
		t.Fatalf("expected provider transaction id stamped, got %q", completed.ProviderTransactionID)
	}
}

func TestDistributionFansOutAcrossWallets(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.svc.InitiatePayment(ctx, clerkActor(), application.InitiatePaymentRequest{
		PayerID:  "member-9",
		Provider: domain.ProviderMpesa,
		Amount:   decimal.NewFromInt(3000),
		Category: domain.DesignationSpecial,
		Distribution: []domain.DistributionLine{
			{Designation: domain.DesignationTithe, Amount: decimal.NewFromInt(1000)},
			{Designation: domain.DesignationOffering, Amount: decimal.NewFromInt(500)},
			{Designation: domain.DesignationWelfare, Amount: decimal.NewFromInt(500)},
			{Designation: domain.DesignationDevelopment, Amount: decimal.NewFromInt(700)},
			{Designation: domain.DesignationMediaMinistry, Amount: decimal.NewFromInt(300)},
		},
		PhoneOrAccount: "254700000009",
	})
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}
	if _, err := f.svc.HandleGatewayCallback(ctx, domain.GatewayCallback{
		ProviderRequestID: payment.ProviderRef,
		ResultCode:        0,
		ReceiptNumber:     "QWE123",
	}); err != nil {
		t.Fatalf("callback: %v", err)
	}

	expected := map[domain.Designation]string{
		domain.DesignationTithe:         "1000",
		domain.DesignationOffering:      "500",
		domain.DesignationWelfare:       "500",
		domain.DesignationDevelopment:   "700",
		domain.DesignationMediaMinistry: "300",
	}
	total := decimal.Zero
	for designation, want := range expected {
		got := f.walletBalance(t, designation, "")
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("wallet %s: expected %s, got %s", designation, want, got)
		}
		total = total.Add(got)
	}
	if !total.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected credits to sum to 3000, got %s", total)
	}
	if entries := f.repos.Wallets.LedgerEntries(); len(entries) != 5 {
		t.Fatalf("expected 5 ledger entries, got %d", len(entries))
	}
}

func TestFailureCallbackMarksPaymentFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment, err := f.svc.InitiatePayment(ctx, clerkActor(), application.InitiatePaymentRequest{
		PayerID:        "member-3",
		Provider:       domain.ProviderMpesa,
		Amount:         decimal.RequireFromString("600.00"),
		Category:       domain.DesignationOffering,
		PhoneOrAccount: "254700000003",
	})
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}

	ack, err := f.svc.HandleGatewayCallback(ctx, domain.GatewayCallback{
		ProviderRequestID: payment.ProviderRef,
		ResultCode:        1032,
		ResultDescription: "Request cancelled by user",
	})
	if err != nil {
		t.Fatalf("failure callback: %v", err)
	}
	if ack.Duplicate {
		t.Fatal("failure callback flagged as duplicate")
	}

	failed, err := f.svc.GetPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if failed.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.FailureReason == "" {
		t.Fatal("expected a failure reason")
	}
	if entries := f.repos.Wallets.LedgerEntries(); len(entries) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(entries))
	}
}

func TestUnmatchedCallbackAcknowledged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ack, err := f.svc.HandleGatewayCallback(context.Background(), domain.GatewayCallback{
		ProviderRequestID: "ws_CO_never_issued",
		ResultCode:        0,
	})
	if err != nil {
		t.Fatalf("unmatched callback should ack, got error: %v", err)
	}
	if !ack.Duplicate {
		t.Fatal("unmatched callback should be reported as already handled")
	}
}

func TestGatewayFailureLeavesPaymentPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.mpesa.chargeErr = errors.New("daraja timeout")

	payment, err := f.svc.InitiatePayment(context.Background(), clerkActor(), application.InitiatePaymentRequest{
		PayerID:        "member-12",
		Provider:       domain.ProviderMpesa,
		Amount:         decimal.RequireFromString("250.00"),
		Category:       domain.DesignationTithe,
		PhoneOrAccount: "254700000012",
	})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}

	stored, err := f.svc.GetPayment(context.Background(), payment.PaymentID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if stored.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending after gateway failure, got %s", stored.Status)
	}
}

func TestInitiatePaymentRejectsInactiveWallet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	wallet, err := f.svc.CreateWallet(ctx, adminActor(), application.CreateWalletRequest{Category: domain.DesignationStationFund})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if err := f.svc.DeactivateWallet(ctx, adminActor(), wallet.WalletID); err != nil {
		t.Fatalf("deactivate wallet: %v", err)
	}

	_, err = f.svc.InitiatePayment(ctx, clerkActor(), application.InitiatePaymentRequest{
		PayerID:        "member-5",
		Provider:       domain.ProviderMpesa,
		Amount:         decimal.RequireFromString("100.00"),
		Category:       domain.DesignationStationFund,
		PhoneOrAccount: "254700000005",
	})
	if !errors.Is(err, domain.ErrWalletInactive) {
		t.Fatalf("expected ErrWalletInactive, got %v", err)
	}
}
