package ports

import (
	"context"
	"time"
)

// CallbackDedupStore short-circuits replayed gateway callbacks before they
// reach the database. It is a fast path only: the authoritative idempotency
// guard is the pending-status compare-and-swap in the completion transaction.
type CallbackDedupStore interface {
	Seen(ctx context.Context, callbackID string) (bool, error)
	MarkSeen(ctx context.Context, callbackID string, ttl time.Duration) error
}
