package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/treasury/internal/application"
)

// ReconWorker periodically imports the bank feed and runs the auto-linker.
// Linking decisions live in the application layer; this loop only provides
// the cadence and the import range.
type ReconWorker struct {
	logger   *slog.Logger
	service  *application.Service
	interval time.Duration
	lookback time.Duration
}

func NewReconWorker(logger *slog.Logger, service *application.Service, interval, lookback time.Duration) *ReconWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if lookback <= 0 {
		lookback = 48 * time.Hour
	}
	return &ReconWorker{
		logger:   logger,
		service:  service,
		interval: interval,
		lookback: lookback,
	}
}

// Run executes the periodic reconciliation loop until context cancellation.
func (w *ReconWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReconWorker) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	imported, err := w.service.ImportBankFeed(ctx, now.Add(-w.lookback), now)
	if err != nil {
		w.logger.ErrorContext(ctx, "bank feed import failed",
			"module", "events.recon_worker",
			"layer", "adapter",
			"operation", "import_bank_feed",
			"outcome", "failure",
			"error", err,
		)
		return
	}

	linked, err := w.service.AutoLink(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "auto link failed",
			"module", "events.recon_worker",
			"layer", "adapter",
			"operation", "auto_link",
			"outcome", "failure",
			"error", err,
		)
		return
	}

	w.logger.InfoContext(ctx, "reconciliation pass completed",
		"module", "events.recon_worker",
		"layer", "adapter",
		"operation", "recon_run_once",
		"outcome", "success",
		"fetched", imported.Fetched,
		"imported", imported.Imported,
		"skipped", imported.Skipped,
		"invalid", imported.Invalid,
		"examined", linked.Examined,
		"linked", linked.Linked,
		"ambiguous", linked.Ambiguous,
		"no_match", linked.NoMatch,
	)
}
