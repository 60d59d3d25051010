// Package publisher implements the direct fan-out of a consumer's
// publish request to every configured adapter.
package publisher

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ied-systems/ied/internal/core/domain"
	"github.com/ied-systems/ied/internal/engine/adapterport"
	"github.com/ied-systems/ied/internal/infra/cache"
)

// AdapterResult is one adapter's outcome, included verbatim in the
// aggregate response to the consumer.
type AdapterResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Timestamp uint64 `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Response is the aggregate outcome of PublishToAll. Success is true
// if at least one adapter succeeded — partial-success semantics: the
// replicator repairs the remaining ledgers later.
type Response struct {
	GlobalID  string          `json:"globalId"`
	Timestamp uint64          `json:"timestamp"`
	Adapters  []AdapterResult `json:"adapters"`
	Success   bool            `json:"success"`
}

// Publisher fans a publish request out to every adapter in targets
// concurrently and marks the cache for each adapter that accepted it.
type Publisher struct {
	targets []adapterport.Target
	cache   cache.Cache
	log     *slog.Logger
}

// New builds a Publisher over a fixed snapshot of targets — the
// registry is read-only after startup, so the snapshot never goes
// stale.
func New(targets []adapterport.Target, c cache.Cache, log *slog.Logger) *Publisher {
	return &Publisher{targets: targets, cache: c, log: log}
}

// PublishToAll validates req, extracts the global id from
// req.DataLocation, then invokes Publish on every adapter
// concurrently, awaiting all results before returning — it never
// short-circuits on the first failure.
func (p *Publisher) PublishToAll(ctx context.Context, req domain.PublishRequest) (Response, error) {
	if req.EventType == "" {
		return Response{}, &domain.ValidationError{Field: "eventType", Message: "must not be empty"}
	}
	if err := domain.ValidateBytes32Hex("entityId", req.EntityID); err != nil {
		return Response{}, err
	}
	if err := domain.ValidateBytes32Hex("previousEntityHash", req.PreviousEntityHash); err != nil {
		return Response{}, err
	}

	globalID, err := domain.ExtractGlobalID(req.DataLocation)
	if err != nil {
		return Response{}, err
	}

	results := make([]AdapterResult, len(p.targets))
	var g errgroup.Group
	for i, target := range p.targets {
		i, target := i, target
		g.Go(func() error {
			// Each adapter's outcome is written to its own slot; the
			// group is used only to join the goroutines, never to
			// short-circuit on the first failure.
			results[i] = p.publishOne(ctx, target, req, globalID)
			return nil
		})
	}
	_ = g.Wait()

	resp := Response{GlobalID: globalID, Adapters: results}
	for _, r := range results {
		if r.Success {
			resp.Success = true
			resp.Timestamp = r.Timestamp
		}
	}
	return resp, nil
}

func (p *Publisher) publishOne(ctx context.Context, target adapterport.Target, req domain.PublishRequest, globalID string) AdapterResult {
	ts, err := target.Invoker.Publish(ctx, req)
	if err != nil {
		p.log.Warn("adapter publish failed", "adapter", target.Invoker.Name(), "error", err)
		return AdapterResult{Name: target.Invoker.Name(), Success: false, Error: err.Error()}
	}

	if err := p.cache.MarkPublished(ctx, target.ChainID, globalID); err != nil {
		// Cache drift here is tolerable: the next replication pass that
		// observes this chain will re-mark it. The adapter call already
		// succeeded, so the per-adapter result still reports success.
		p.log.Warn("failed to mark published in cache", "chain", target.ChainID, "globalId", globalID, "error", err)
	}

	return AdapterResult{Name: target.Invoker.Name(), Success: true, Timestamp: ts}
}
