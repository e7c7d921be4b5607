package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/adapters/memory"
	"github.com/viralforge/treasury/internal/ports"
)

type flakyPublisher struct {
	failType string
	sent     []string
}

func (p *flakyPublisher) Publish(_ context.Context, eventType string, _ []byte, _ string) error {
	if eventType == p.failType {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, eventType)
	return nil
}

func TestOutboxWorkerDrainPublishesAndSchedulesRetry(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	pub := &flakyPublisher{failType: "payment.failed"}
	worker := NewOutboxWorker(slog.Default(), repos.Outbox, pub, time.Second, 10, time.Minute, 5)

	ctx := context.Background()
	enqueue := func(eventType string) uuid.UUID {
		id := uuid.New()
		if err := repos.Outbox.Enqueue(ctx, ports.OutboxEvent{
			EventID:      id,
			EventType:    eventType,
			PartitionKey: id.String(),
			Payload:      []byte(`{}`),
			OccurredAt:   time.Now().UTC(),
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		return id
	}
	okID := enqueue("payment.completed")
	failID := enqueue("payment.failed")

	if err := worker.drainOnce(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pub.sent) != 1 || pub.sent[0] != "payment.completed" {
		t.Fatalf("unexpected publishes: %v", pub.sent)
	}

	for _, rec := range repos.Outbox.Events() {
		switch rec.OutboxID {
		case okID:
			if rec.PublishedAt == nil {
				t.Fatal("delivered event should be marked published")
			}
		case failID:
			if rec.PublishedAt != nil || rec.RetryCount != 1 {
				t.Fatalf("undelivered event should be scheduled for retry: %+v", rec)
			}
		}
	}
}
