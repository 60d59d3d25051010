// Package adapterport defines the boundary between the engine
// (publisher, replicator, bootstrap) and the concrete adapter client,
// so the engine depends on behavior rather than the HTTP
// implementation.
package adapterport

import (
	"context"

	"github.com/ied-systems/ied/internal/core/domain"
	"github.com/ied-systems/ied/internal/infra/adapterclient"
)

// Invoker is everything the engine needs from a single adapter.
type Invoker interface {
	Name() string
	HealthCheck(ctx context.Context) bool
	Publish(ctx context.Context, req domain.PublishRequest) (uint64, error)
	Subscribe(ctx context.Context, req adapterclient.SubscribeParams) error
	ListSubscriptions(ctx context.Context) ([]adapterclient.SubscriptionInfo, error)
	Close() error
}

// Target pairs an Invoker with the chain id the engine's cache keys
// its publications by.
type Target struct {
	ChainID string
	Invoker Invoker
}
