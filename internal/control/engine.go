// Package control is the composition root: it builds every component
// of the distributor from configuration, runs bootstrap, and owns the
// process-wide start/stop lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ied-systems/ied/internal/core/config"
	"github.com/ied-systems/ied/internal/core/domain"
	"github.com/ied-systems/ied/internal/engine/adapterport"
	"github.com/ied-systems/ied/internal/engine/bootstrap"
	"github.com/ied-systems/ied/internal/engine/publisher"
	"github.com/ied-systems/ied/internal/engine/replicator"
	"github.com/ied-systems/ied/internal/engine/subscription"
	"github.com/ied-systems/ied/internal/infra/adapterclient"
	"github.com/ied-systems/ied/internal/infra/cache"
	"github.com/ied-systems/ied/internal/infra/registry"
	transporthttp "github.com/ied-systems/ied/internal/transport/http"
)

// shutdownTimeout bounds how long Stop waits for the HTTP server to
// drain in-flight requests before giving up.
const shutdownTimeout = 10 * time.Second

// Engine holds every long-lived component the distributor needs:
// cache, adapter registry and clients, the publisher, replicator, and
// subscription registry, and the HTTP server fronting them.
type Engine struct {
	cfg *config.AppConfig
	log *slog.Logger

	cache     cache.Cache
	registry  *registry.Registry
	clients   []*adapterclient.Client
	targets   []adapterport.Target
	publisher *publisher.Publisher
	replic    *replicator.Replicator
	subs      *subscription.Registry
	server    *transporthttp.Server

	degraded  atomic.Bool
	startedAt time.Time
}

// NewEngine wires every component from cfg. A Redis connection
// failure is fatal in production (cfg.Env == "production") per the
// fail-to-start policy; in development or test it falls back to an
// in-memory cache and the engine starts degraded.
func NewEngine(cfg *config.AppConfig, log *slog.Logger) (*Engine, error) {
	var c cache.Cache
	rc, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	c = rc
	degraded := false
	if err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("cache unavailable at startup: %w", err)
		}
		log.Error("cache unavailable at startup, starting in degraded mode", "error", err)
		c = cache.NewMemoryCache()
		degraded = true
	}

	e, err := newEngine(cfg, log, c)
	if err != nil {
		return nil, err
	}
	e.degraded.Store(degraded)
	return e, nil
}

func newEngine(cfg *config.AppConfig, log *slog.Logger, c cache.Cache) (*Engine, error) {
	descriptors := make([]domain.AdapterDescriptor, len(cfg.Adapters))
	for i, a := range cfg.Adapters {
		descriptors[i] = domain.AdapterDescriptor{
			Name:          a.Name,
			BaseURL:       a.BaseURL,
			ChainID:       a.ChainID,
			PublishPath:   a.PublishPath,
			SubscribePath: a.SubscribePath,
			HealthPath:    a.HealthPath,
		}
	}

	reg, err := registry.New(descriptors, log)
	if err != nil {
		return nil, fmt.Errorf("build adapter registry: %w", err)
	}

	retryCfg := adapterclient.RetryConfig{
		MaxAttempts: cfg.Replication.MaxRetryAttempts,
		RetryDelay:  cfg.Replication.RetryDelay,
	}

	clients := make([]*adapterclient.Client, 0, reg.Len())
	targets := make([]adapterport.Target, 0, reg.Len())
	for _, d := range reg.All() {
		client := adapterclient.New(d, cfg.Replication.AdapterTimeout, retryCfg)
		clients = append(clients, client)
		targets = append(targets, adapterport.Target{ChainID: d.CacheKey(), Invoker: client})
	}

	pub := publisher.New(targets, c, log)
	repl := replicator.New(targets, c, cfg.Replication.PropagationDelayOrZero(), log)
	subs := subscription.New(targets, c, cfg.Replication.NotificationTimeout, log)

	e := &Engine{
		cfg:       cfg,
		log:       log,
		cache:     c,
		registry:  reg,
		clients:   clients,
		targets:   targets,
		publisher: pub,
		replic:    repl,
		subs:      subs,
		startedAt: time.Now(),
	}

	e.server = transporthttp.NewServer(transporthttp.Deps{
		Publisher:    pub,
		Replicator:   repl,
		Subscription: subs,
		Registry:     reg,
		Targets:      targets,
		Cache:        c,
		BaseURL:      cfg.Server.BaseURL,
		StartedAt:    e.startedAt,
		Degraded:     e.degraded.Load,
	}, cfg.Server.Port, log)

	return e, nil
}

// Start runs bootstrap (adapter health checks and internal
// subscriptions) and then binds the HTTP listener in the background.
// A degraded cache does not block startup; it is surfaced through
// GET /health instead, per the "cattle, not pets" operating model.
func (e *Engine) Start(ctx context.Context) error {
	if !e.degraded.Load() {
		result, err := bootstrap.Run(ctx, e.targets, bootstrap.Config{
			InternalEventTypes:  e.cfg.Internal.EventTypes,
			InternalMetadata:    e.cfg.Internal.Metadata,
			InternalCallbackURL: e.cfg.Server.BaseURL + "/internal/eventNotification/%s",
		}, e.log)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		if len(result.Healthy) == 0 {
			if e.cfg.ShouldFailFast() {
				return domain.ErrNoHealthyAdapters
			}
			e.log.Warn("no healthy adapters at bootstrap, continuing in development mode")
		}
		e.log.Info("bootstrap complete", "healthy", result.Healthy, "degraded", result.Degraded)
	} else {
		e.log.Warn("skipping bootstrap: engine started in degraded mode")
	}

	go func() {
		if err := e.server.Start(); err != nil {
			e.log.Error("http server failed", "error", err)
		}
	}()

	return nil
}

// Stop drains the HTTP listener and releases adapter and cache
// connections. The HTTP drain is bounded by shutdownTimeout or ctx's
// own deadline, whichever comes first.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("stopping engine")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	serverErr := e.server.Stop(shutdownCtx)

	for _, c := range e.clients {
		c.Close()
	}

	if err := e.cache.Close(); err != nil {
		e.log.Warn("failed to close cache", "error", err)
	}

	return serverErr
}

// Degraded reports whether the engine is running without a working
// cache connection.
func (e *Engine) Degraded() bool {
	return e.degraded.Load()
}
