package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

func (f *fixture) pendingWithdrawal(t *testing.T, actor ports.AuthClaims, category domain.Designation, amount string) domain.WithdrawalRequest {
	t.Helper()
	wallet, err := f.repos.Wallets.GetByCategory(context.Background(), category, "")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	request, err := f.svc.RequestWithdrawal(context.Background(), actor, application.RequestWithdrawalInput{
		WalletID:    wallet.WalletID,
		Amount:      decimal.RequireFromString(amount),
		Purpose:     "generator fuel",
		Method:      domain.WithdrawalMethodMobile,
		Destination: "254711000111",
	})
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	return request
}

func TestWithdrawalQuorumDebitsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.completedContribution(t, "member-1", "5000.00", domain.DesignationTithe, "")

	first := f.newApprover(t, domain.RoleApprover, "secret-one")
	second := f.newApprover(t, domain.RoleApprover, "secret-two")
	third := f.newApprover(t, domain.RoleApprover, "secret-three")

	request := f.pendingWithdrawal(t, first, domain.DesignationTithe, "2000.00")

	after1, err := f.svc.ApproveWithdrawal(ctx, first, request.RequestID, application.ApproveWithdrawalInput{Secret: "secret-one"})
	if err != nil {
		t.Fatalf("first approval: %v", err)
	}
	after2, err := f.svc.ApproveWithdrawal(ctx, second, request.RequestID, application.ApproveWithdrawalInput{Secret: "secret-two"})
	if err != nil {
		t.Fatalf("second approval: %v", err)
	}
	if after1.Status != domain.WithdrawalStatusPending || after2.Status != domain.WithdrawalStatusPending {
		t.Fatal("request should stay pending before quorum")
	}
	if got := f.walletBalance(t, domain.DesignationTithe, ""); !got.Equal(decimal.RequireFromString("5000.00")) {
		t.Fatalf("balance moved before quorum: %s", got)
	}

	processed, err := f.svc.ApproveWithdrawal(ctx, third, request.RequestID, application.ApproveWithdrawalInput{Secret: "secret-three"})
	if err != nil {
		t.Fatalf("final approval: %v", err)
	}
	if processed.Status != domain.WithdrawalStatusProcessed {
		t.Fatalf("expected processed, got %s", processed.Status)
	}
	if processed.PaymentID == nil {
		t.Fatal("expected mirror expense payment id")
	}
	if got := f.walletBalance(t, domain.DesignationTithe, ""); !got.Equal(decimal.RequireFromString("3000.00")) {
		t.Fatalf("expected balance 3000.00 after debit, got %s", got)
	}

	expense, err := f.svc.GetPayment(ctx, *processed.PaymentID)
	if err != nil {
		t.Fatalf("get expense payment: %v", err)
	}
	if expense.Type != domain.PaymentTypeExpense || expense.Status != domain.PaymentStatusCompleted {
		t.Fatalf("unexpected expense payment: type=%s status=%s", expense.Type, expense.Status)
	}

	if len(f.mpesa.payouts) != 1 {
		t.Fatalf("expected one payout, got %d", len(f.mpesa.payouts))
	}
	if err := f.svc.VerifyLedger(ctx); err != nil {
		t.Fatalf("ledger inconsistent after withdrawal: %v", err)
	}
}

func TestApproverCannotApproveTwice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.completedContribution(t, "member-1", "3000.00", domain.DesignationWelfare, "")

	approver := f.newApprover(t, domain.RoleApprover, "secret-one")
	request := f.pendingWithdrawal(t, approver, domain.DesignationWelfare, "1000.00")

	if _, err := f.svc.ApproveWithdrawal(ctx, approver, request.RequestID, application.ApproveWithdrawalInput{Secret: "secret-one"}); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	_, err := f.svc.ApproveWithdrawal(ctx, approver, request.RequestID, application.ApproveWithdrawalInput{Secret: "secret-one"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for repeat approval, got %v", err)
	}
}

func TestApprovalRequiresCorrectSecret(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.completedContribution(t, "member-1", "3000.00", domain.DesignationTithe, "")

	approver := f.newApprover(t, domain.RoleApprover, "secret-one")
	request := f.pendingWithdrawal(t, approver, domain.DesignationTithe, "1000.00")

	_, err := f.svc.ApproveWithdrawal(ctx, approver, request.RequestID, application.ApproveWithdrawalInput{Secret: "guess"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// A clerk has no approval authority regardless of secret.
	clerk := f.newApprover(t, domain.RoleClerk, "")
	_, err = f.svc.ApproveWithdrawal(ctx, clerk, request.RequestID, application.ApproveWithdrawalInput{Secret: "anything"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for clerk, got %v", err)
	}

	stored, _, err := f.svc.GetWithdrawal(ctx, request.RequestID)
	if err != nil {
		t.Fatalf("get withdrawal: %v", err)
	}
	if stored.ApprovalCount != 0 {
		t.Fatalf("expected no approvals recorded, got %d", stored.ApprovalCount)
	}
}

func TestCompetingWithdrawalsCannotOverdraw(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.completedContribution(t, "member-1", "1000.00", domain.DesignationDevelopment, "")

	first := f.newApprover(t, domain.RoleApprover, "secret-one")
	second := f.newApprover(t, domain.RoleApprover, "secret-two")
	third := f.newApprover(t, domain.RoleApprover, "secret-three")

	// Both requests individually pass the advisory balance check.
	reqA := f.pendingWithdrawal(t, first, domain.DesignationDevelopment, "800.00")
	reqB := f.pendingWithdrawal(t, first, domain.DesignationDevelopment, "800.00")

	approvals := []struct {
		actor  ports.AuthClaims
		secret string
	}{
		{first, "secret-one"},
		{second, "secret-two"},
		{third, "secret-three"},
	}
	for _, a := range approvals {
		if _, err := f.svc.ApproveWithdrawal(ctx, a.actor, reqA.RequestID, application.ApproveWithdrawalInput{Secret: a.secret}); err != nil {
			t.Fatalf("approve request A: %v", err)
		}
	}

	for i, a := range approvals {
		_, err := f.svc.ApproveWithdrawal(ctx, a.actor, reqB.RequestID, application.ApproveWithdrawalInput{Secret: a.secret})
		if i < 2 && err != nil {
			t.Fatalf("non-final approval of request B: %v", err)
		}
		if i == 2 && !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds on final approval, got %v", err)
		}
	}

	if got := f.walletBalance(t, domain.DesignationDevelopment, ""); !got.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("expected balance 200.00, got %s", got)
	}
	storedB, _, err := f.svc.GetWithdrawal(ctx, reqB.RequestID)
	if err != nil {
		t.Fatalf("get request B: %v", err)
	}
	if storedB.Status != domain.WithdrawalStatusPending {
		t.Fatalf("request B should stay pending, got %s", storedB.Status)
	}
	if err := f.svc.VerifyLedger(ctx); err != nil {
		t.Fatalf("ledger inconsistent: %v", err)
	}
}

func TestRejectAndCancelWithdrawal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.completedContribution(t, "member-1", "2000.00", domain.DesignationOffering, "")

	requester := f.newApprover(t, domain.RoleApprover, "secret-one")
	toReject := f.pendingWithdrawal(t, requester, domain.DesignationOffering, "500.00")
	toCancel := f.pendingWithdrawal(t, requester, domain.DesignationOffering, "500.00")

	if err := f.svc.RejectWithdrawal(ctx, requester, toReject.RequestID, "insufficient documentation"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	rejected, _, err := f.svc.GetWithdrawal(ctx, toReject.RequestID)
	if err != nil {
		t.Fatalf("get rejected: %v", err)
	}
	if rejected.Status != domain.WithdrawalStatusRejected || rejected.RejectionReason == "" {
		t.Fatalf("unexpected rejected state: %+v", rejected)
	}

	// Only the initiator or an admin may cancel.
	other := f.newApprover(t, domain.RoleApprover, "secret-two")
	if err := f.svc.CancelWithdrawal(ctx, other, toCancel.RequestID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-initiator cancel, got %v", err)
	}
	if err := f.svc.CancelWithdrawal(ctx, requester, toCancel.RequestID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := f.walletBalance(t, domain.DesignationOffering, ""); !got.Equal(decimal.RequireFromString("2000.00")) {
		t.Fatalf("terminal requests must not move funds, balance %s", got)
	}
}
