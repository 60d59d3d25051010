// Package cache provides the set-backed store the engine uses to
// record which ledgers have accepted a global id, and which ids the
// consumer has already been notified about.
package cache

import (
	"context"
	"fmt"
)

// Cache is the contract every backend (Redis, in-memory) satisfies.
// All operations map directly to set membership primitives; no
// compound transactions are required. Implementations must tolerate
// concurrent writes from sibling engine instances sharing the same
// backing store.
type Cache interface {
	// MarkPublished records that chainID accepted globalID. Idempotent:
	// re-adding an existing id is a no-op, not an error.
	MarkPublished(ctx context.Context, chainID, globalID string) error

	// IsOnChain reports whether globalID is recorded as published on
	// chainID.
	IsOnChain(ctx context.Context, chainID, globalID string) (bool, error)

	// MissingChains returns every chain id in allChainIDs for which
	// IsOnChain(chainID, globalID) is false.
	MissingChains(ctx context.Context, globalID string, allChainIDs []string) ([]string, error)

	// MarkNotified records that the consumer was invoked for globalID
	// at least once.
	MarkNotified(ctx context.Context, globalID string) error

	// IsNotified reports whether the consumer was already notified for
	// globalID.
	IsNotified(ctx context.Context, globalID string) (bool, error)

	// Stats returns per-chain cardinalities and the size of the
	// notified-events set.
	Stats(ctx context.Context, chainIDs []string) (Stats, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}

// Stats is the snapshot backing GET /stats.
type Stats struct {
	PublishedByChain map[string]int64
	NotifiedCount    int64
}

func publishedKey(chainID string) string {
	return fmt.Sprintf("publishedEvents:%s", chainID)
}

const notifiedKey = "notifiedEvents"
