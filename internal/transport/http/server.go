// Package http is the distributor's HTTP entry point: a thin
// net/http.ServeMux router over the engine's publisher, replicator,
// and subscription registry. No auth or routing middleware beyond the
// field-level validation the handlers themselves perform.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/ied-systems/ied/internal/core/domain"
	"github.com/ied-systems/ied/internal/engine/adapterport"
	"github.com/ied-systems/ied/internal/engine/publisher"
	"github.com/ied-systems/ied/internal/engine/replicator"
	"github.com/ied-systems/ied/internal/engine/subscription"
	"github.com/ied-systems/ied/internal/infra/cache"
	"github.com/ied-systems/ied/internal/infra/registry"
)

// Deps is everything the router needs to serve requests. A Server
// does not own the lifecycle of any of these; the composition root
// does.
type Deps struct {
	Publisher    *publisher.Publisher
	Replicator   *replicator.Replicator
	Subscription *subscription.Registry
	Registry     *registry.Registry
	Targets      []adapterport.Target
	Cache        cache.Cache
	BaseURL      string
	StartedAt    time.Time
	// Degraded reports whether the engine came up without a working
	// cache connection. While it is true, the publish and subscribe
	// handlers reject requests with CacheUnavailable and GET /health
	// reports redis DOWN. The two notification webhooks and GET /stats
	// do not consult it; they run against whatever cache Deps.Cache is.
	Degraded func() bool
}

// Server wraps an *http.Server bound to the configured port.
type Server struct {
	deps   Deps
	log    *slog.Logger
	server *http.Server
}

// NewServer builds the router and binds it to ":port".
func NewServer(deps Deps, port int, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		deps: deps,
		log:  log,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("POST /api/v1/publishEvent", s.handlePublishEvent)
	mux.HandleFunc("POST /api/v1/subscribe", s.handleSubscribe)
	mux.HandleFunc("POST /internal/eventNotification/{adapterName}", s.handleEventNotification)
	mux.HandleFunc("POST /internal/desmosNotification", s.handleDesmosNotification)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)

	return s
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Degraded != nil && s.deps.Degraded() {
		writeError(w, http.StatusServiceUnavailable, domain.ErrCacheUnavailable)
		return
	}

	var req domain.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.deps.Publisher.PublishToAll(r.Context(), req)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !resp.Success {
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Degraded != nil && s.deps.Degraded() {
		writeError(w, http.StatusServiceUnavailable, domain.ErrCacheUnavailable)
		return
	}

	var req domain.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.deps.Subscription.Subscribe(r.Context(), req, s.deps.BaseURL)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleEventNotification receives an adapter's "your event landed on
// chain X" callback. The source chain is taken from the adapter name
// in the path, never from the event body's network field — the path
// is how the replicator knows the source without trusting the body.
func (s *Server) handleEventNotification(w http.ResponseWriter, r *http.Request) {
	adapterName := r.PathValue("adapterName")

	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	desc, ok := s.deps.Registry.ByName(adapterName)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrAdapterNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	go s.deps.Replicator.HandleIncoming(context.Background(), event, desc.CacheKey())
}

func (s *Server) handleDesmosNotification(w http.ResponseWriter, r *http.Request) {
	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	go func() {
		if err := s.deps.Subscription.HandleConsumerNotification(context.Background(), event); err != nil {
			s.log.Warn("consumer notification dispatch failed", "error", err)
		}
	}()
}

type adapterHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	redisStatus := "UP"
	if s.deps.Degraded != nil && s.deps.Degraded() {
		redisStatus = "DOWN"
	} else if err := s.deps.Cache.Ping(r.Context()); err != nil {
		redisStatus = "DOWN"
	}

	adapters := make([]adapterHealth, len(s.deps.Targets))
	var wg sync.WaitGroup
	for i, target := range s.deps.Targets {
		i, target := i, target
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "DOWN"
			if target.Invoker.HealthCheck(r.Context()) {
				status = "UP"
			}
			adapters[i] = adapterHealth{Name: target.Invoker.Name(), Status: status}
		}()
	}
	wg.Wait()

	anyAdapterUp := len(adapters) == 0
	anyAdapterDown := false
	for _, a := range adapters {
		if a.Status == "UP" {
			anyAdapterUp = true
		} else {
			anyAdapterDown = true
		}
	}

	status := "UP"
	switch {
	case redisStatus == "DOWN" && !anyAdapterUp:
		status = "DOWN"
	case redisStatus == "DOWN" || anyAdapterDown:
		status = "DEGRADED"
	}

	code := http.StatusOK
	if status != "UP" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":        status,
		"redis":         redisStatus,
		"adapters":      adapters,
		"subscriptions": s.deps.Subscription.Count(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Cache.Stats(r.Context(), s.deps.Registry.ChainIDs())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"publishedByChain": stats.PublishedByChain,
		"notifiedCount":    stats.NotifiedCount,
		"subscriptions":    s.deps.Subscription.Count(),
		"memory": map[string]uint64{
			"allocBytes":    mem.Alloc,
			"totalAllocMB":  mem.TotalAlloc / (1024 * 1024),
			"numGoroutines": uint64(runtime.NumGoroutine()),
		},
		"uptimeSeconds": time.Since(s.deps.StartedAt).Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error":     errorKind(err),
		"message":   err.Error(),
		"timestamp": time.Now().UTC(),
	})
}

// errorKind maps an error to the taxonomy name it surfaces to callers.
func errorKind(err error) string {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return "ValidationError"
	case errors.Is(err, domain.ErrMissingGlobalID):
		return "MissingGlobalId"
	case errors.Is(err, domain.ErrCacheUnavailable):
		return "CacheUnavailable"
	case errors.Is(err, domain.ErrAllAdaptersFailed):
		return "AllAdaptersFailed"
	case errors.Is(err, domain.ErrAdapterNotFound):
		return "AdapterNotFound"
	default:
		return "InternalError"
	}
}
