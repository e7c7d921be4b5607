package application_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/domain"
)

func threeMemberBatch(t *testing.T, f *fixture) domain.BatchPayment {
	t.Helper()
	batch, err := f.svc.CreateBatch(context.Background(), clerkActor(), application.CreateBatchRequest{
		Name:     "sabbath collections",
		Provider: domain.ProviderMpesa,
		Members: []application.BatchMemberInput{
			{PayerID: "member-1", Amount: decimal.NewFromInt(1000), Category: domain.DesignationTithe},
			{PayerID: "member-2", Amount: decimal.NewFromInt(500), Category: domain.DesignationOffering},
			{PayerID: "member-3", Amount: decimal.NewFromInt(1500), Category: domain.DesignationWelfare},
		},
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return batch
}

func TestBatchLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	batch := threeMemberBatch(t, f)

	if !batch.Amount.Equal(decimal.NewFromInt(3000)) || batch.MemberCount != 3 {
		t.Fatalf("aggregate mismatch: amount=%s members=%d", batch.Amount, batch.MemberCount)
	}
	if batch.Status != domain.BatchStatusPending {
		t.Fatalf("expected pending, got %s", batch.Status)
	}

	charged, err := f.svc.ChargeBatch(ctx, clerkActor(), batch.BatchID, application.ChargeBatchRequest{
		PhoneOrAccount: "254722000222",
	})
	if err != nil {
		t.Fatalf("charge batch: %v", err)
	}
	if charged.Status != domain.BatchStatusDeposited || charged.ProviderRef == "" {
		t.Fatalf("expected deposited with provider ref, got %+v", charged)
	}
	if len(f.mpesa.charges) != 1 || !f.mpesa.charges[0].Amount.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected one aggregate charge of 3000")
	}

	ack, err := f.svc.HandleGatewayCallback(ctx, domain.GatewayCallback{
		ProviderRequestID: charged.ProviderRef,
		ResultCode:        0,
		ReceiptNumber:     "BATCH-RCPT-1",
	})
	if err != nil {
		t.Fatalf("batch callback: %v", err)
	}
	if ack.BatchID == nil || *ack.BatchID != batch.BatchID {
		t.Fatalf("ack should carry the batch id: %+v", ack)
	}

	done, members, err := f.svc.GetBatch(ctx, batch.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if done.Status != domain.BatchStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	for _, m := range members {
		if m.Status != domain.PaymentStatusCompleted {
			t.Fatalf("member %s not completed: %s", m.PaymentID, m.Status)
		}
		if m.ReceiptNumber == "" {
			t.Fatalf("member %s missing receipt", m.PaymentID)
		}
	}

	if got := f.walletBalance(t, domain.DesignationTithe, ""); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("tithe balance %s", got)
	}
	if got := f.walletBalance(t, domain.DesignationOffering, ""); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("offering balance %s", got)
	}
	if got := f.walletBalance(t, domain.DesignationWelfare, ""); !got.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("welfare balance %s", got)
	}
}

func TestBatchMemberFailureDoesNotRollBackSiblings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	batch := threeMemberBatch(t, f)

	charged, err := f.svc.ChargeBatch(ctx, clerkActor(), batch.BatchID, application.ChargeBatchRequest{
		PhoneOrAccount: "254722000222",
	})
	if err != nil {
		t.Fatalf("charge batch: %v", err)
	}

	// Retire the offering wallet between charge and settlement so that one
	// member cannot be credited.
	offering, err := f.svc.CreateWallet(ctx, adminActor(), application.CreateWalletRequest{Category: domain.DesignationOffering})
	if err != nil {
		t.Fatalf("create offering wallet: %v", err)
	}
	if err := f.svc.DeactivateWallet(ctx, adminActor(), offering.WalletID); err != nil {
		t.Fatalf("deactivate offering wallet: %v", err)
	}

	if _, err := f.svc.HandleGatewayCallback(ctx, domain.GatewayCallback{
		ProviderRequestID: charged.ProviderRef,
		ResultCode:        0,
		ReceiptNumber:     "BATCH-RCPT-2",
	}); err != nil {
		t.Fatalf("batch callback: %v", err)
	}

	stored, members, err := f.svc.GetBatch(ctx, batch.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if stored.Status != domain.BatchStatusDeposited {
		t.Fatalf("batch with a failed member should stay deposited, got %s", stored.Status)
	}

	completed, pending := 0, 0
	for _, m := range members {
		switch m.Status {
		case domain.PaymentStatusCompleted:
			completed++
		case domain.PaymentStatusPending:
			pending++
		}
	}
	if completed != 2 || pending != 1 {
		t.Fatalf("expected 2 completed and 1 pending member, got %d/%d", completed, pending)
	}

	if got := f.walletBalance(t, domain.DesignationTithe, ""); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("tithe sibling should be credited, balance %s", got)
	}
	if got := f.walletBalance(t, domain.DesignationWelfare, ""); !got.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("welfare sibling should be credited, balance %s", got)
	}
}

func TestCancelBatchCancelsPendingMembers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	batch := threeMemberBatch(t, f)

	cancelled, err := f.svc.CancelBatch(ctx, clerkActor(), batch.BatchID)
	if err != nil {
		t.Fatalf("cancel batch: %v", err)
	}
	if cancelled.Status != domain.BatchStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if !cancelled.Amount.Equal(decimal.Zero) || cancelled.MemberCount != 0 {
		t.Fatalf("cancelled batch should aggregate to zero, got amount=%s members=%d", cancelled.Amount, cancelled.MemberCount)
	}

	_, members, err := f.svc.GetBatch(ctx, batch.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	for _, m := range members {
		if m.Status != domain.PaymentStatusCancelled {
			t.Fatalf("member %s should be cancelled, got %s", m.PaymentID, m.Status)
		}
	}
}

func TestAppendMembersRecomputesAggregate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	batch := threeMemberBatch(t, f)

	updated, err := f.svc.AppendBatchMembers(ctx, clerkActor(), batch.BatchID, []application.BatchMemberInput{
		{PayerID: "member-4", Amount: decimal.NewFromInt(250), Category: domain.DesignationThanksgiving},
	})
	if err != nil {
		t.Fatalf("append members: %v", err)
	}
	if !updated.Amount.Equal(decimal.NewFromInt(3250)) || updated.MemberCount != 4 {
		t.Fatalf("aggregate not recomputed: amount=%s members=%d", updated.Amount, updated.MemberCount)
	}

	// Once charged, the member list is frozen.
	if _, err := f.svc.ChargeBatch(ctx, clerkActor(), batch.BatchID, application.ChargeBatchRequest{PhoneOrAccount: "254722000222"}); err != nil {
		t.Fatalf("charge batch: %v", err)
	}
	_, err = f.svc.AppendBatchMembers(ctx, clerkActor(), batch.BatchID, []application.BatchMemberInput{
		{PayerID: "member-5", Amount: decimal.NewFromInt(100), Category: domain.DesignationTithe},
	})
	if err == nil {
		t.Fatal("expected append to fail on a deposited batch")
	}
}
