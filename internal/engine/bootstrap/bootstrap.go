// Package bootstrap wires the engine's adapter targets together at
// startup: it health-checks every configured adapter and installs the
// distributor's own internal wildcard subscription on each of them,
// so every published event flows back through the replicator.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ied-systems/ied/internal/engine/adapterport"
	"github.com/ied-systems/ied/internal/infra/adapterclient"
)

// Config controls bootstrap behavior.
type Config struct {
	// InternalEventTypes is the event-type filter installed on every
	// adapter's internal subscription. Empty or containing "*" means
	// every event type.
	InternalEventTypes []string
	// InternalMetadata tags the internal subscription with the
	// deployment's environment (e.g. "sbx"), per adapter's metadata
	// field.
	InternalMetadata []string
	// InternalCallbackURL is this engine's own eventNotification
	// endpoint as a format string with one %s, which Run fills with
	// each adapter's name.
	InternalCallbackURL string
}

// Result reports which adapters bootstrap actually brought up.
type Result struct {
	Healthy  []string
	Degraded []string
}

// Run health-checks every target and installs the internal wildcard
// subscription on each one that passes. A single unhealthy or
// rejecting adapter never aborts the run — partial availability is a
// normal outcome here, not a failure; every other adapter still gets
// bootstrapped. It is the caller's job to decide whether the resulting
// Result.Healthy is large enough to proceed (see engine.Start, which
// fails only when it is empty).
func Run(ctx context.Context, targets []adapterport.Target, cfg Config, log *slog.Logger) (Result, error) {
	var (
		res Result
		g   errgroup.Group
		mu  sync.Mutex
	)

	record := func(name string, healthy bool) {
		mu.Lock()
		defer mu.Unlock()
		if healthy {
			res.Healthy = append(res.Healthy, name)
		} else {
			res.Degraded = append(res.Degraded, name)
		}
	}

	for _, target := range targets {
		target := target
		g.Go(func() error {
			name := target.Invoker.Name()

			if !target.Invoker.HealthCheck(ctx) {
				record(name, false)
				log.Warn("adapter unhealthy at bootstrap, continuing in degraded mode", "adapter", name)
				return nil
			}

			err := target.Invoker.Subscribe(ctx, adapterclient.SubscribeParams{
				EventTypes:           cfg.InternalEventTypes,
				NotificationEndpoint: fmt.Sprintf(cfg.InternalCallbackURL, name),
				Metadata:             cfg.InternalMetadata,
			})
			if err != nil {
				record(name, false)
				log.Warn("adapter rejected internal subscription, continuing in degraded mode", "adapter", name, "error", err)
				return nil
			}

			record(name, true)
			log.Info("adapter bootstrapped", "adapter", name)
			return nil
		})
	}

	_ = g.Wait()
	return res, nil
}
