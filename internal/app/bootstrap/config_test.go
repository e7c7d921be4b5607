package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadConfigDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")
	raw := `
service:
  id: treasury-test
  http_port: 18080
dependencies:
  postgres_url: postgres://localhost:5432/treasury_test
  redis_url: redis://localhost:6379/1
treasury:
  required_approvals: 2
  distribution_tolerance: "0.05"
  reconciliation_window_hours: 48
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceID != "treasury-test" || cfg.HTTPPort != 18080 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.GRPCPort != 9090 {
		t.Fatalf("default grpc port expected, got %d", cfg.GRPCPort)
	}
	if cfg.RequiredApprovals != 2 {
		t.Fatalf("required approvals: %d", cfg.RequiredApprovals)
	}
	if !cfg.DistributionTolerance.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("tolerance: %s", cfg.DistributionTolerance)
	}
	if cfg.ReconciliationWindow != 48*time.Hour {
		t.Fatalf("window: %s", cfg.ReconciliationWindow)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")
	raw := `
dependencies:
  postgres_url: postgres://localhost:5432/from_file
  redis_url: redis://localhost:6379/0
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DB_URL", "postgres://localhost:5432/from_env")
	t.Setenv("REQUIRED_APPROVALS", "5")
	t.Setenv("RECONCILIATION_WINDOW_HOURS", "12")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/from_env" {
		t.Fatalf("env should win: %s", cfg.DatabaseURL)
	}
	if cfg.RequiredApprovals != 5 {
		t.Fatalf("required approvals: %d", cfg.RequiredApprovals)
	}
	if cfg.ReconciliationWindow != 12*time.Hour {
		t.Fatalf("window: %s", cfg.ReconciliationWindow)
	}
}

func TestLoadConfigRequiresDatabase(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("REDIS_URL", "")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error when no database url is configured")
	}
}
