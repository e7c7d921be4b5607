package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/adapters/memory"
	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type stubGateway struct {
	provider  domain.PaymentProvider
	chargeErr error
	payoutErr error
	charges   []ports.ChargeRequest
	payouts   []ports.PayoutRequest
}

func (g *stubGateway) Provider() domain.PaymentProvider { return g.provider }

func (g *stubGateway) Charge(_ context.Context, req ports.ChargeRequest) (ports.ChargeResponse, error) {
	if g.chargeErr != nil {
		return ports.ChargeResponse{}, g.chargeErr
	}
	g.charges = append(g.charges, req)
	return ports.ChargeResponse{
		Reference:         req.Reference,
		ProviderRequestID: "stk-" + req.Reference,
	}, nil
}

func (g *stubGateway) Payout(_ context.Context, req ports.PayoutRequest) (ports.PayoutResponse, error) {
	if g.payoutErr != nil {
		return ports.PayoutResponse{}, g.payoutErr
	}
	g.payouts = append(g.payouts, req)
	return ports.PayoutResponse{
		Reference:         req.Reference,
		ProviderRequestID: "b2c-" + req.Reference,
	}, nil
}

type stubFeed struct {
	records []domain.BankTransactionSync
	err     error
}

func (f *stubFeed) FetchTransactions(_ context.Context, _, _ time.Time) ([]domain.BankTransactionSync, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// plainHasher keeps secrets readable in fixtures; production wiring uses bcrypt.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "hashed:" + secret, nil }

func (plainHasher) Compare(hash, secret string) error {
	if hash != "hashed:"+secret {
		return errors.New("secret mismatch")
	}
	return nil
}

type staticSigner struct{}

func (staticSigner) Sign(ports.AuthClaims) (string, error) { return "test-token", nil }

func (staticSigner) ParseAndValidate(string) (ports.AuthClaims, error) {
	return ports.AuthClaims{}, errors.New("not implemented")
}

type fixture struct {
	svc   *application.Service
	repos *memory.Repositories
	mpesa *stubGateway
	feed  *stubFeed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewRepositories()
	mpesa := &stubGateway{provider: domain.ProviderMpesa}
	card := &stubGateway{provider: domain.ProviderCard}
	feed := &stubFeed{}
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			RequiredApprovals:     3,
			DistributionTolerance: decimal.New(1, -2),
			ReconciliationWindow:  24 * time.Hour,
			CallbackBaseURL:       "http://localhost:8080/treasury/v1",
		},
		Wallets:     repos.Wallets,
		Payments:    repos.Payments,
		Batches:     repos.Batches,
		Withdrawals: repos.Withdrawals,
		Syncs:       repos.Syncs,
		Approvers:   repos.Approvers,
		Outbox:      repos.Outbox,
		Gateways: map[domain.PaymentProvider]ports.PaymentGateway{
			domain.ProviderMpesa: mpesa,
			domain.ProviderCard:  card,
		},
		Payouts:     mpesa,
		BankFeed:    feed,
		Hasher:      plainHasher{},
		TokenSigner: staticSigner{},
	})
	return &fixture{svc: svc, repos: repos, mpesa: mpesa, feed: feed}
}

func adminActor() ports.AuthClaims {
	return ports.AuthClaims{ApproverID: uuid.New(), Username: "admin", Role: domain.RoleAdmin}
}

func clerkActor() ports.AuthClaims {
	return ports.AuthClaims{ApproverID: uuid.New(), Username: "clerk", Role: domain.RoleClerk}
}

// newApprover registers an identity and returns claims that act as it.
func (f *fixture) newApprover(t *testing.T, role domain.Role, secret string) ports.AuthClaims {
	t.Helper()
	approver, err := f.svc.CreateApprover(context.Background(), adminActor(), application.CreateApproverRequest{
		Username:       "user-" + uuid.NewString(),
		FullName:       "Test Approver",
		Role:           role,
		Password:       "password-123",
		ApprovalSecret: secret,
	})
	if err != nil {
		t.Fatalf("create approver: %v", err)
	}
	return ports.AuthClaims{ApproverID: approver.ApproverID, Username: approver.Username, Role: approver.Role}
}

// completedContribution funds a wallet by running the full initiate-then-callback flow.
func (f *fixture) completedContribution(t *testing.T, payer, amount string, category domain.Designation, subCategory string) domain.Payment {
	t.Helper()
	ctx := context.Background()
	payment, err := f.svc.InitiatePayment(ctx, clerkActor(), application.InitiatePaymentRequest{
		PayerID:        payer,
		Provider:       domain.ProviderMpesa,
		Amount:         decimal.RequireFromString(amount),
		Category:       category,
		SubCategory:    subCategory,
		PhoneOrAccount: "254700000001",
	})
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}
	ack, err := f.svc.HandleGatewayCallback(ctx, domain.GatewayCallback{
		ProviderRequestID: payment.ProviderRef,
		ResultCode:        0,
		ReceiptNumber:     "NLJ" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if ack.Duplicate {
		t.Fatal("first callback flagged as duplicate")
	}
	completed, err := f.svc.GetPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	return completed
}

func (f *fixture) walletBalance(t *testing.T, category domain.Designation, subCategory string) decimal.Decimal {
	t.Helper()
	wallet, err := f.repos.Wallets.GetByCategory(context.Background(), category, subCategory)
	if err != nil {
		t.Fatalf("get wallet (%s, %s): %v", category, subCategory, err)
	}
	return wallet.Balance
}

func TestLoginVerifiesPassword(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	approver, err := f.svc.CreateApprover(ctx, adminActor(), application.CreateApproverRequest{
		Username:       "Treasurer.One",
		FullName:       "Treasurer One",
		Role:           domain.RoleTreasurer,
		Password:       "correct-horse-1",
		ApprovalSecret: "",
	})
	if err != nil {
		t.Fatalf("create approver: %v", err)
	}
	if approver.Username != "treasurer.one" {
		t.Fatalf("expected lowercased username, got %q", approver.Username)
	}

	res, err := f.svc.Login(ctx, "Treasurer.One", "correct-horse-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.Role != domain.RoleTreasurer {
		t.Fatalf("unexpected login response: %+v", res)
	}

	if _, err := f.svc.Login(ctx, "treasurer.one", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateApproverRequiresAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.CreateApprover(context.Background(), clerkActor(), application.CreateApproverRequest{
		Username: "someone",
		Role:     domain.RoleClerk,
		Password: "password-123",
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateWalletRejectsDuplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	req := application.CreateWalletRequest{Category: domain.DesignationWelfare, SubCategory: "benevolence"}
	if _, err := f.svc.CreateWallet(ctx, adminActor(), req); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := f.svc.CreateWallet(ctx, adminActor(), req); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestVerifyLedgerAfterTraffic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.completedContribution(t, "member-1", "1200.00", domain.DesignationTithe, "")
	f.completedContribution(t, "member-2", "800.00", domain.DesignationOffering, "")
	if err := f.svc.VerifyLedger(context.Background()); err != nil {
		t.Fatalf("ledger inconsistent: %v", err)
	}
}
