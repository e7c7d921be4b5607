package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PoolOptions bounds the treasury connection pool. Zero values fall back to
// defaults suited to the api and worker processes sharing one database.
type PoolOptions struct {
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Connect opens and validates a Postgres-backed GORM connection pool.
func Connect(ctx context.Context, databaseURL string, opts PoolOptions) (*gorm.DB, error) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 20
	}
	if opts.ConnMaxIdleTime <= 0 {
		opts.ConnMaxIdleTime = 15 * time.Minute
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = time.Hour
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns / 2)
	sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Default().InfoContext(ctx, "postgres pool ready",
		"module", "postgres",
		"layer", "adapter",
		"operation", "connect",
		"outcome", "success",
		"max_open_conns", opts.MaxOpenConns,
	)
	return db, nil
}

const migrationLedgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL
)`

// RunMigrations applies embedded SQL migrations in lexical order, recording
// each applied file in schema_migrations so api and worker can both run this
// at startup without replaying schema changes.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if err := db.WithContext(ctx).Exec(migrationLedgerDDL).Error; err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	var appliedNames []string
	if err := db.WithContext(ctx).Raw(`SELECT name FROM schema_migrations`).Scan(&appliedNames).Error; err != nil {
		return fmt.Errorf("read migration ledger: %w", err)
	}
	applied := make(map[string]bool, len(appliedNames))
	for _, n := range appliedNames {
		applied[n] = true
	}

	ranCount := 0
	for _, name := range names {
		if applied[name] {
			continue
		}
		raw, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := db.WithContext(ctx).Exec(string(raw)).Error; err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, now())`, name,
		).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		ranCount++
		slog.Default().InfoContext(ctx, "migration applied",
			"module", "postgres",
			"layer", "adapter",
			"operation", "apply_migration",
			"outcome", "success",
			"migration", name,
		)
	}
	slog.Default().InfoContext(ctx, "postgres migrations up to date",
		"module", "postgres",
		"layer", "adapter",
		"operation", "run_migrations",
		"outcome", "success",
		"applied_count", ranCount,
		"skipped_count", len(names)-ranCount,
	)
	return nil
}
