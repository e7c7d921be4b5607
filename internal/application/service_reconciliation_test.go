package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
)

func feedRecord(txnID, amount string, at time.Time) domain.BankTransactionSync {
	return domain.BankTransactionSync{
		BankTransactionID: txnID,
		BankReference:     "REF-" + txnID,
		Amount:            decimal.RequireFromString(amount),
		TransactionDate:   at,
		Description:       "MPESA settlement",
		Direction:         domain.DirectionCredit,
	}
}

func TestImportBankFeedIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	invalid := feedRecord("FT-BAD", "100.00", now)
	invalid.Amount = decimal.Zero
	f.feed.records = []domain.BankTransactionSync{
		feedRecord("FT-001", "1500.00", now),
		feedRecord("FT-002", "900.00", now),
		invalid,
	}

	first, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Fetched != 3 || first.Imported != 2 || first.Invalid != 1 || first.Skipped != 0 {
		t.Fatalf("unexpected first report: %+v", first)
	}

	second, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.Imported != 0 || second.Skipped != 2 {
		t.Fatalf("re-import should skip existing records: %+v", second)
	}

	records, total, err := f.svc.ListSyncs(ctx, domain.SyncStatusUnlinked, 50, 0)
	if err != nil {
		t.Fatalf("list syncs: %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("expected 2 unlinked records, got %d", total)
	}
}

func TestAutoLinkMatchesDayBeforeSettlement(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.completedContribution(t, "member-1", "1500.00", domain.DesignationTithe, "")

	// The bank posts the settlement late; the internal completion sits just
	// inside the matching window.
	f.feed.records = []domain.BankTransactionSync{
		feedRecord("FT-101", "1500.00", time.Now().UTC().Add(20*time.Hour)),
	}
	now := time.Now().UTC()
	if _, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now.Add(24*time.Hour)); err != nil {
		t.Fatalf("import: %v", err)
	}

	report, err := f.svc.AutoLink(ctx)
	if err != nil {
		t.Fatalf("auto link: %v", err)
	}
	if report.Linked != 1 || report.Ambiguous != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	linked, total, err := f.svc.ListSyncs(ctx, domain.SyncStatusLinked, 50, 0)
	if err != nil {
		t.Fatalf("list linked: %v", err)
	}
	if total != 1 || linked[0].LinkedPaymentID == nil || *linked[0].LinkedPaymentID != payment.PaymentID {
		t.Fatalf("record not linked to the payment: %+v", linked)
	}

	stamped, err := f.svc.GetPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if stamped.SyncID == nil {
		t.Fatal("payment missing sync stamp")
	}
}

func TestAutoLinkLeavesAmbiguousUnlinked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.completedContribution(t, "member-1", "1000.00", domain.DesignationTithe, "")
	f.completedContribution(t, "member-2", "1000.00", domain.DesignationOffering, "")

	now := time.Now().UTC()
	f.feed.records = []domain.BankTransactionSync{feedRecord("FT-201", "1000.00", now)}
	if _, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now.Add(time.Hour)); err != nil {
		t.Fatalf("import: %v", err)
	}

	report, err := f.svc.AutoLink(ctx)
	if err != nil {
		t.Fatalf("auto link: %v", err)
	}
	if report.Ambiguous != 1 || report.Linked != 0 {
		t.Fatalf("ambiguity must never auto-link: %+v", report)
	}

	_, total, err := f.svc.ListSyncs(ctx, domain.SyncStatusUnlinked, 50, 0)
	if err != nil {
		t.Fatalf("list unlinked: %v", err)
	}
	if total != 1 {
		t.Fatalf("record should stay unlinked, got %d unlinked", total)
	}
}

func TestAutoLinkDrainsMoreThanOnePage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// One more record than a single page holds; unique amounts make every
	// record uniquely matchable. Linking shrinks the unlinked set while it is
	// being paged, so a single pass must still examine all of them.
	const count = 201
	feed := make([]domain.BankTransactionSync, 0, count)
	for i := 0; i < count; i++ {
		amount := fmt.Sprintf("%d.00", 1000+i)
		f.completedContribution(t, fmt.Sprintf("member-%d", i), amount, domain.DesignationTithe, "")
		feed = append(feed, feedRecord(fmt.Sprintf("FT-%04d", i), amount, now))
	}
	f.feed.records = feed
	if _, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now.Add(time.Hour)); err != nil {
		t.Fatalf("import: %v", err)
	}

	report, err := f.svc.AutoLink(ctx)
	if err != nil {
		t.Fatalf("auto link: %v", err)
	}
	if report.Linked != count {
		t.Fatalf("expected all %d records linked in one pass, got %+v", count, report)
	}
	if _, total, err := f.svc.ListSyncs(ctx, domain.SyncStatusUnlinked, 10, 0); err != nil || total != 0 {
		t.Fatalf("expected no unlinked records left: %v (%d remaining)", err, total)
	}
}

func TestManualLinkValidatesAmount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.completedContribution(t, "member-1", "1200.00", domain.DesignationWelfare, "")

	now := time.Now().UTC()
	f.feed.records = []domain.BankTransactionSync{feedRecord("FT-301", "1199.50", now)}
	if _, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now.Add(time.Hour)); err != nil {
		t.Fatalf("import: %v", err)
	}
	records, _, err := f.svc.ListSyncs(ctx, domain.SyncStatusUnlinked, 50, 0)
	if err != nil || len(records) != 1 {
		t.Fatalf("list unlinked: %v (%d records)", err, len(records))
	}

	_, err = f.svc.ManualLink(ctx, adminActor(), records[0].SyncID, payment.PaymentID)
	if !errors.Is(err, domain.ErrReconciliationMismatch) {
		t.Fatalf("expected ErrReconciliationMismatch, got %v", err)
	}
}

func TestManualLinkAndUnlink(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	payment := f.completedContribution(t, "member-1", "750.00", domain.DesignationOffering, "")

	now := time.Now().UTC()
	f.feed.records = []domain.BankTransactionSync{feedRecord("FT-401", "750.00", now)}
	if _, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now.Add(time.Hour)); err != nil {
		t.Fatalf("import: %v", err)
	}
	records, _, err := f.svc.ListSyncs(ctx, domain.SyncStatusUnlinked, 50, 0)
	if err != nil || len(records) != 1 {
		t.Fatalf("list unlinked: %v (%d records)", err, len(records))
	}
	syncID := records[0].SyncID

	linked, err := f.svc.ManualLink(ctx, adminActor(), syncID, payment.PaymentID)
	if err != nil {
		t.Fatalf("manual link: %v", err)
	}
	if linked.Status != domain.SyncStatusLinked {
		t.Fatalf("expected linked, got %s", linked.Status)
	}

	// A second link attempt must refuse: the payment is already claimed.
	if _, err := f.svc.ManualLink(ctx, adminActor(), syncID, payment.PaymentID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on relink, got %v", err)
	}

	if err := f.svc.UnlinkSync(ctx, adminActor(), syncID); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	unstamped, err := f.svc.GetPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if unstamped.SyncID != nil {
		t.Fatal("unlink should clear the payment stamp")
	}
}

func TestIgnoreSyncRequiresReason(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.feed.records = []domain.BankTransactionSync{feedRecord("FT-501", "50.00", now)}
	if _, err := f.svc.ImportBankFeed(ctx, now.Add(-48*time.Hour), now.Add(time.Hour)); err != nil {
		t.Fatalf("import: %v", err)
	}
	records, _, err := f.svc.ListSyncs(ctx, domain.SyncStatusUnlinked, 50, 0)
	if err != nil || len(records) != 1 {
		t.Fatalf("list unlinked: %v", err)
	}

	if err := f.svc.IgnoreSync(ctx, adminActor(), records[0].SyncID, " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank reason, got %v", err)
	}
	if err := f.svc.IgnoreSync(ctx, adminActor(), records[0].SyncID, "bank interest posting"); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	_, total, err := f.svc.ListSyncs(ctx, domain.SyncStatusIgnored, 50, 0)
	if err != nil || total != 1 {
		t.Fatalf("expected 1 ignored record: %v (%d)", err, total)
	}
}
