package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/treasury/internal/adapters/cache"
	eventadapter "github.com/viralforge/treasury/internal/adapters/events"
	"github.com/viralforge/treasury/internal/adapters/gateway"
	httpadapter "github.com/viralforge/treasury/internal/adapters/http"
	"github.com/viralforge/treasury/internal/adapters/postgres"
	"github.com/viralforge/treasury/internal/adapters/security"
	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	recon      *eventadapter.ReconWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping treasury service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxOpenConns: int(cfg.MaxDBConns)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("configure redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(db)

	tokenSigner, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokenSigner, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	mpesa := gateway.NewMpesaGateway(gateway.MpesaConfig{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.MpesaShortCode,
		Passkey:        cfg.MpesaPasskey,
		InitiatorName:  cfg.MpesaInitiatorName,
	})
	card := gateway.NewCardGateway(gateway.CardConfig{
		BaseURL: cfg.CardBaseURL,
		APIKey:  cfg.CardAPIKey,
	})
	bankFeed := gateway.NewKCBFeed(gateway.KCBConfig{
		BaseURL:       cfg.KCBBaseURL,
		APIKey:        cfg.KCBAPIKey,
		AccountNumber: cfg.KCBAccountNumber,
	})

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			RequiredApprovals:     cfg.RequiredApprovals,
			DistributionTolerance: cfg.DistributionTolerance,
			ReconciliationWindow:  cfg.ReconciliationWindow,
			CallbackDedupTTL:      cfg.CallbackDedupTTL,
			CallbackBaseURL:       cfg.CallbackBaseURL,
			TokenTTL:              cfg.TokenTTL,
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
		BankFeed:    bankFeed,
		Dedup:       cacheadapter.NewRedisCallbackDedupStore(redisClient),
		Hasher:      security.NewBcryptHasher(cfg.BcryptCost),
		TokenSigner: tokenSigner,
	})

	handler := httpadapter.NewHandler(svc, tokenSigner)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	publisher, publisherCleanup, err := newPublisher(logger, cfg)
	if err != nil {
		_ = lis.Close()
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, err
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)
	recon := eventadapter.NewReconWorker(logger, svc, cfg.ReconInterval, cfg.ReconLookback)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		recon:      recon,
		cleanupFn: func(ctx context.Context) {
			publisherCleanup()
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// newPublisher selects the broker-backed publisher when brokers are
// configured and falls back to structured log delivery otherwise.
func newPublisher(logger *slog.Logger, cfg Config) (ports.EventPublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("no kafka brokers configured; events will be logged only")
		return eventadapter.NewLoggingPublisher(logger), func() {}, nil
	}
	kafkaPub, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
		"payment.completed":        "treasury.payments",
		"payment.failed":           "treasury.payments",
		"batch.completed":          "treasury.batches",
		"withdrawal.processed":     "treasury.withdrawals",
		"withdrawal.payout_failed": "treasury.withdrawals",
		"reconciliation.linked":    "treasury.reconciliation",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return kafkaPub, func() { _ = kafkaPub.Close() }, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker hosts the outbox publisher and the periodic reconciliation pass
// in one process so deployments that split API and background work can.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("outbox worker started")
		if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("outbox worker: %w", err)
		}
	}()
	go func() {
		r.logger.Info("reconciliation worker started")
		if err := r.recon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("reconciliation worker: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("worker failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return runErr
}
