package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the treasury service.
// It merges file defaults and environment overrides to support both local
// and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost int
	TokenTTL   time.Duration

	RequiredApprovals     int
	DistributionTolerance decimal.Decimal
	ReconciliationWindow  time.Duration
	CallbackDedupTTL      time.Duration
	CallbackBaseURL       string

	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortCode      string
	MpesaPasskey        string
	MpesaInitiatorName  string

	CardBaseURL string
	CardAPIKey  string

	KCBBaseURL       string
	KCBAPIKey        string
	KCBAccountNumber string

	KafkaBrokers []string

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
	ReconInterval      time.Duration
	ReconLookback      time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Treasury struct {
		RequiredApprovals         int    `yaml:"required_approvals"`
		DistributionTolerance     string `yaml:"distribution_tolerance"`
		ReconciliationWindowHours int    `yaml:"reconciliation_window_hours"`
		CallbackBaseURL           string `yaml:"callback_base_url"`
	} `yaml:"treasury"`
	Gateways struct {
		Mpesa struct {
			BaseURL        string `yaml:"base_url"`
			ConsumerKey    string `yaml:"consumer_key"`
			ConsumerSecret string `yaml:"consumer_secret"`
			ShortCode      string `yaml:"short_code"`
			Passkey        string `yaml:"passkey"`
			InitiatorName  string `yaml:"initiator_name"`
		} `yaml:"mpesa"`
		Card struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"card"`
		KCB struct {
			BaseURL       string `yaml:"base_url"`
			APIKey        string `yaml:"api_key"`
			AccountNumber string `yaml:"account_number"`
		} `yaml:"kcb"`
	} `yaml:"gateways"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:             "treasury-service",
		HTTPPort:              8080,
		GRPCPort:              9090,
		JWTKeyID:              "treasury-key-1",
		AllowEphemeralJWT:     true,
		BcryptCost:            12,
		TokenTTL:              24 * time.Hour,
		RequiredApprovals:     3,
		DistributionTolerance: decimal.New(1, -2),
		ReconciliationWindow:  24 * time.Hour,
		CallbackDedupTTL:      24 * time.Hour,
		MpesaBaseURL:          "https://sandbox.safaricom.co.ke",
		MaxDBConns:            20,
		OutboxPollInterval:    2 * time.Second,
		OutboxBatchSize:       100,
		OutboxClaimTTL:        30 * time.Second,
		OutboxMaxRetries:      5,
		ReconInterval:         15 * time.Minute,
		ReconLookback:         48 * time.Hour,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Treasury.RequiredApprovals > 0 {
			cfg.RequiredApprovals = f.Treasury.RequiredApprovals
		}
		if f.Treasury.DistributionTolerance != "" {
			tol, parseErr := decimal.NewFromString(f.Treasury.DistributionTolerance)
			if parseErr != nil {
				return Config{}, fmt.Errorf("parse distribution_tolerance: %w", parseErr)
			}
			cfg.DistributionTolerance = tol
		}
		if f.Treasury.ReconciliationWindowHours > 0 {
			cfg.ReconciliationWindow = time.Duration(f.Treasury.ReconciliationWindowHours) * time.Hour
		}
		if f.Treasury.CallbackBaseURL != "" {
			cfg.CallbackBaseURL = f.Treasury.CallbackBaseURL
		}
		if f.Gateways.Mpesa.BaseURL != "" {
			cfg.MpesaBaseURL = f.Gateways.Mpesa.BaseURL
		}
		cfg.MpesaConsumerKey = f.Gateways.Mpesa.ConsumerKey
		cfg.MpesaConsumerSecret = f.Gateways.Mpesa.ConsumerSecret
		cfg.MpesaShortCode = f.Gateways.Mpesa.ShortCode
		cfg.MpesaPasskey = f.Gateways.Mpesa.Passkey
		cfg.MpesaInitiatorName = f.Gateways.Mpesa.InitiatorName
		cfg.CardBaseURL = f.Gateways.Card.BaseURL
		cfg.CardAPIKey = f.Gateways.Card.APIKey
		cfg.KCBBaseURL = f.Gateways.KCB.BaseURL
		cfg.KCBAPIKey = f.Gateways.KCB.APIKey
		cfg.KCBAccountNumber = f.Gateways.KCB.AccountNumber
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.CallbackBaseURL = envOrDefault("CALLBACK_BASE_URL", cfg.CallbackBaseURL)

	cfg.MpesaBaseURL = envOrDefault("MPESA_BASE_URL", cfg.MpesaBaseURL)
	cfg.MpesaConsumerKey = envOrDefault("MPESA_CONSUMER_KEY", cfg.MpesaConsumerKey)
	cfg.MpesaConsumerSecret = envOrDefault("MPESA_CONSUMER_SECRET", cfg.MpesaConsumerSecret)
	cfg.MpesaShortCode = envOrDefault("MPESA_SHORT_CODE", cfg.MpesaShortCode)
	cfg.MpesaPasskey = envOrDefault("MPESA_PASSKEY", cfg.MpesaPasskey)
	cfg.MpesaInitiatorName = envOrDefault("MPESA_INITIATOR_NAME", cfg.MpesaInitiatorName)
	cfg.CardBaseURL = envOrDefault("CARD_BASE_URL", cfg.CardBaseURL)
	cfg.CardAPIKey = envOrDefault("CARD_API_KEY", cfg.CardAPIKey)
	cfg.KCBBaseURL = envOrDefault("KCB_BASE_URL", cfg.KCBBaseURL)
	cfg.KCBAPIKey = envOrDefault("KCB_API_KEY", cfg.KCBAPIKey)
	cfg.KCBAccountNumber = envOrDefault("KCB_ACCOUNT_NUMBER", cfg.KCBAccountNumber)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.RequiredApprovals = envInt("REQUIRED_APPROVALS", cfg.RequiredApprovals)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	if raw := os.Getenv("DISTRIBUTION_TOLERANCE"); raw != "" {
		tol, parseErr := decimal.NewFromString(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("parse DISTRIBUTION_TOLERANCE: %w", parseErr)
		}
		cfg.DistributionTolerance = tol
	}

	cfg.TokenTTL = time.Duration(envInt("TOKEN_EXPIRY_HOURS", int(cfg.TokenTTL.Hours()))) * time.Hour
	cfg.ReconciliationWindow = time.Duration(envInt("RECONCILIATION_WINDOW_HOURS", int(cfg.ReconciliationWindow.Hours()))) * time.Hour
	cfg.CallbackDedupTTL = time.Duration(envInt("CALLBACK_DEDUP_TTL_HOURS", int(cfg.CallbackDedupTTL.Hours()))) * time.Hour
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ReconInterval = time.Duration(envInt("RECON_INTERVAL_MINUTES", int(cfg.ReconInterval.Minutes()))) * time.Minute
	cfg.ReconLookback = time.Duration(envInt("RECON_LOOKBACK_HOURS", int(cfg.ReconLookback.Hours()))) * time.Hour

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
