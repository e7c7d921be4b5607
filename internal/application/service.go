package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

// Config carries the tunable treasury policies. Tolerances and the
// reconciliation window are configuration, not constants in domain logic.
type Config struct {
	RequiredApprovals     int
	DistributionTolerance decimal.Decimal
	ReconciliationWindow  time.Duration
	CallbackDedupTTL      time.Duration
	CallbackBaseURL       string
	TokenTTL              time.Duration
}

type Service struct {
	cfg         Config
	wallets     ports.WalletRepository
	payments    ports.PaymentRepository
	batches     ports.BatchRepository
	withdrawals ports.WithdrawalRepository
	syncs       ports.SyncRepository
	approvers   ports.ApproverRepository
	outbox      ports.OutboxRepository
	gateways    map[domain.PaymentProvider]ports.PaymentGateway
	payouts     ports.PayoutGateway
	bankFeed    ports.BankFeed
	dedup       ports.CallbackDedupStore
	hasher      ports.SecretHasher
	tokenSigner ports.TokenSigner
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Wallets     ports.WalletRepository
	Payments    ports.PaymentRepository
	Batches     ports.BatchRepository
	Withdrawals ports.WithdrawalRepository
	Syncs       ports.SyncRepository
	Approvers   ports.ApproverRepository
	Outbox      ports.OutboxRepository
	Gateways    map[domain.PaymentProvider]ports.PaymentGateway
	Payouts     ports.PayoutGateway
	BankFeed    ports.BankFeed
	Dedup       ports.CallbackDedupStore
	Hasher      ports.SecretHasher
	TokenSigner ports.TokenSigner
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.RequiredApprovals <= 0 {
		cfg.RequiredApprovals = 3
	}
	if cfg.DistributionTolerance.IsZero() {
		cfg.DistributionTolerance = decimal.New(1, -2)
	}
	if cfg.ReconciliationWindow <= 0 {
		cfg.ReconciliationWindow = 24 * time.Hour
	}
	if cfg.CallbackDedupTTL <= 0 {
		cfg.CallbackDedupTTL = 24 * time.Hour
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{
		cfg:         cfg,
		wallets:     deps.Wallets,
		payments:    deps.Payments,
		batches:     deps.Batches,
		withdrawals: deps.Withdrawals,
		syncs:       deps.Syncs,
		approvers:   deps.Approvers,
		outbox:      deps.Outbox,
		gateways:    deps.Gateways,
		payouts:     deps.Payouts,
		bankFeed:    deps.BankFeed,
		dedup:       deps.Dedup,
		hasher:      deps.Hasher,
		tokenSigner: deps.TokenSigner,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates an approver by username/password and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return LoginResponse{}, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	approver, err := s.approvers.GetByUsername(ctx, username)
	if err != nil {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if !approver.IsActive {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(approver.PasswordHash, password); err != nil {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	now := s.nowFn()
	token, err := s.tokenSigner.Sign(ports.AuthClaims{
		ApproverID: approver.ApproverID,
		Username:   approver.Username,
		Role:       approver.Role,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.cfg.TokenTTL),
	})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return LoginResponse{
		Token:     token,
		Role:      approver.Role,
		ExpiresIn: int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

// CreateApprover registers an identity with role, password and a distinct
// approval secret. Admin only.
func (s *Service) CreateApprover(ctx context.Context, actor ports.AuthClaims, req CreateApproverRequest) (domain.Approver, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Approver{}, domain.ErrUnauthorized
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return domain.Approver{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	switch req.Role {
	case domain.RoleAdmin, domain.RoleTreasurer, domain.RoleApprover, domain.RoleClerk:
	default:
		return domain.Approver{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, req.Role)
	}
	if len(req.Password) < 8 {
		return domain.Approver{}, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	if req.Role.CanApprove() && len(req.ApprovalSecret) < 8 {
		return domain.Approver{}, fmt.Errorf("%w: approval secret must be at least 8 characters", domain.ErrInvalidInput)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return domain.Approver{}, fmt.Errorf("hash password: %w", err)
	}
	secretHash := ""
	if req.ApprovalSecret != "" {
		secretHash, err = s.hasher.Hash(req.ApprovalSecret)
		if err != nil {
			return domain.Approver{}, fmt.Errorf("hash approval secret: %w", err)
		}
	}

	now := s.nowFn()
	approver := domain.Approver{
		ApproverID:         uuid.New(),
		Username:           username,
		FullName:           strings.TrimSpace(req.FullName),
		Role:               req.Role,
		PasswordHash:       passwordHash,
		ApprovalSecretHash: secretHash,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.approvers.Create(ctx, approver); err != nil {
		return domain.Approver{}, err
	}
	return approver, nil
}

func (s *Service) newOutboxEvent(eventType, partitionKey string, payload []byte) ports.OutboxEvent {
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		OccurredAt:   s.nowFn(),
	}
}
