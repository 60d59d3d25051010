// Package replicator processes inbound notifications from adapters:
// it marks the source chain, waits out the propagation-delay window,
// computes the set of chains still missing the event, and fans out to
// them.
package replicator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ied-systems/ied/internal/core/domain"
	"github.com/ied-systems/ied/internal/engine/adapterport"
	"github.com/ied-systems/ied/internal/infra/cache"
)

// Replicator owns the propagation-delay wait and the missing-chain
// fan-out. State (Observed → Waiting → Checking → Dispatching →
// Complete) lives only in the call stack of HandleIncoming; nothing is
// persisted, so an abandoned wait (process shutdown) simply means the
// next notification from any ledger resumes replication.
type Replicator struct {
	targets map[string]adapterport.Target // keyed by chain id
	cache   cache.Cache
	delay   time.Duration
	log     *slog.Logger
}

// New builds a Replicator over every configured adapter target and
// the fixed propagation-delay window. delay may be zero — used by
// tests — without special-casing: a zero duration still goes through
// the same timer path.
func New(targets []adapterport.Target, c cache.Cache, delay time.Duration, log *slog.Logger) *Replicator {
	byChain := make(map[string]adapterport.Target, len(targets))
	for _, t := range targets {
		byChain[t.ChainID] = t
	}
	return &Replicator{targets: byChain, cache: c, delay: delay, log: log}
}

// HandleIncoming is invoked once per adapter notification. It marks
// the source chain, waits, and republishes to every chain that still
// lacks the event. Each invocation starts its own independent timer:
// concurrent events do not interfere with one another.
func (r *Replicator) HandleIncoming(ctx context.Context, event domain.Event, sourceChainID string) {
	globalID, err := domain.ExtractGlobalID(event.DataLocation)
	if err != nil {
		r.log.Warn("dropping inbound notification with no global id", "source", sourceChainID, "error", err)
		return
	}

	if err := r.cache.MarkPublished(ctx, sourceChainID, globalID); err != nil {
		r.log.Error("failed to mark source chain published", "chain", sourceChainID, "globalId", globalID, "error", err)
	}

	// ctx here is never the originating webhook request's context (that
	// request already returned 200 before this runs); the HTTP handler
	// passes context.Background(), so the wait ends only when the timer
	// fires or the process exits. A caller-supplied ctx that is
	// cancelled abandons the wait; the next incoming notification from
	// any ledger will observe the still-missing chains and retry.
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return
	}

	allChainIDs := make([]string, 0, len(r.targets))
	for chainID := range r.targets {
		if chainID == sourceChainID {
			continue
		}
		allChainIDs = append(allChainIDs, chainID)
	}

	targetChainIDs, err := r.cache.MissingChains(ctx, globalID, allChainIDs)
	if err != nil {
		r.log.Error("aborting replication: missing-chain computation failed", "globalId", globalID, "error", err)
		return
	}
	if len(targetChainIDs) == 0 {
		r.log.Info("replication complete, no missing chains", "globalId", globalID, "source", sourceChainID)
		return
	}

	publishReq := domain.PublishRequestFromEvent(event)

	var g errgroup.Group
	for _, chainID := range targetChainIDs {
		chainID := chainID
		target, ok := r.targets[chainID]
		if !ok {
			continue
		}
		g.Go(func() error {
			r.replicateOne(ctx, target, publishReq, globalID)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Replicator) replicateOne(ctx context.Context, target adapterport.Target, req domain.PublishRequest, globalID string) {
	_, err := target.Invoker.Publish(ctx, req)
	if err != nil {
		// Per-target failures are abandoned here: the next incoming
		// notification from any ledger will observe the still-missing
		// chain and retry.
		r.log.Warn("replication publish failed", "chain", target.ChainID, "globalId", globalID, "error", err)
		return
	}
	if err := r.cache.MarkPublished(ctx, target.ChainID, globalID); err != nil {
		r.log.Error("failed to mark replicated chain published", "chain", target.ChainID, "globalId", globalID, "error", err)
	}
}
