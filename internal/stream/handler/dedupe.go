package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/redis"
)

// ClaimStore is the key-value surface the duplicate guard needs.
// *redis.Client satisfies it; tests substitute an in-memory store.
type ClaimStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

var _ ClaimStore = (*redis.Client)(nil)

// DuplicateGuard suppresses repeated webhook deliveries of the same record.
// Webhook senders deliver at-least-once, so retried deliveries of an
// already-accepted record are common; the guard claims each record id in
// Redis with a TTL and short-circuits later deliveries. A claim is released
// again when the record does not reach Delivered, so the sender's retry of
// a failed ingestion is processed instead of being reported as a duplicate.
// Best effort: if Redis is unavailable the record is processed normally.
type DuplicateGuard struct {
	store  ClaimStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewDuplicateGuard creates a guard over the given claim store.
func NewDuplicateGuard(store ClaimStore, ttl time.Duration) *DuplicateGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DuplicateGuard{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "duplicate-guard"),
	}
}

// Claim marks recordID as seen and reports whether this is its first
// delivery. Errors are logged and treated as first delivery so Redis
// downtime never blocks ingestion.
func (g *DuplicateGuard) Claim(ctx context.Context, recordID string) bool {
	claimed, err := g.store.SetNX(ctx, claimKey(recordID), 1, g.ttl)
	if err != nil {
		g.logger.Warn("duplicate guard unavailable, processing record", "record_id", recordID, "error", err)
		return true
	}
	return claimed
}

// Release drops the claim on recordID so the sender's retry is processed.
// Called when the record did not reach Delivered. A failed release only
// risks suppressing a retry, so it is logged and not propagated.
func (g *DuplicateGuard) Release(ctx context.Context, recordID string) {
	if err := g.store.Del(ctx, claimKey(recordID)); err != nil {
		g.logger.Warn("failed to release duplicate claim", "record_id", recordID, "error", err)
	}
}

func claimKey(recordID string) string {
	return "ingest:seen:" + recordID
}
