package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/ports"
)

// OutboxWorker drains the treasury outbox: payment, batch, withdrawal and
// reconciliation events are written in the same transaction as the money
// movement they describe, then published from here.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run executes the periodic outbox publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.drainOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox drain failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_drain",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) drainOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	published := 0
	retried := 0
	deadLettered := 0
	byType := make(map[string]int, 4)
	for _, rec := range records {
		byType[rec.EventType]++
		switch w.deliver(ctx, claimToken, rec, now) {
		case deliveryPublished:
			published++
		case deliveryRetryScheduled:
			retried++
		case deliveryDeadLettered:
			deadLettered++
		}
	}
	w.logger.InfoContext(ctx, "outbox batch drained",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "outbox_drain",
		"outcome", "success",
		"batch_size", len(records),
		"published_count", published,
		"retry_count", retried,
		"dead_lettered_count", deadLettered,
		"event_types", byType,
	)
	return nil
}

type deliveryOutcome int

const (
	deliveryPublished deliveryOutcome = iota
	deliveryRetryScheduled
	deliveryDeadLettered
)

func (w *OutboxWorker) deliver(ctx context.Context, claimToken string, rec ports.OutboxRecord, now time.Time) deliveryOutcome {
	if rec.RetryCount >= w.maxRetries {
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now)
		return deliveryDeadLettered
	}

	err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
	if err == nil {
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
		return deliveryPublished
	}

	retriesAfterFailure := rec.RetryCount + 1
	fields := []any{
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "publish_event",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"partition_key", rec.PartitionKey,
		"retry_count", retriesAfterFailure,
		"error", err,
	}
	if retriesAfterFailure >= w.maxRetries {
		w.logger.ErrorContext(ctx, "outbox event moved to dlq", fields...)
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
		return deliveryDeadLettered
	}
	w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled", fields...)
	_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
	return deliveryRetryScheduled
}
