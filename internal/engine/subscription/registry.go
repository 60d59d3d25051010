// Package subscription tracks consumer subscriptions in-process and
// forwards matching events to the consumer's callback with
// at-most-once-per-global-id semantics.
package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ied-systems/ied/internal/core/domain"
	"github.com/ied-systems/ied/internal/engine/adapterport"
	"github.com/ied-systems/ied/internal/infra/adapterclient"
	"github.com/ied-systems/ied/internal/infra/cache"
)

// AdapterResult mirrors publisher.AdapterResult for the subscribe
// response — kept as its own type so this package has no dependency
// on publisher.
type AdapterResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SubscribeResponse is returned to the consumer from Subscribe.
type SubscribeResponse struct {
	SubscriptionID string          `json:"subscriptionId"`
	Message        string          `json:"message"`
	Adapters       []AdapterResult `json:"adapters"`
}

// Registry is the consumer-facing subscription table: a concurrent
// map guarded by its own lock, matching incoming events and
// forwarding them to consumer callbacks with at-most-once delivery per
// global id.
type Registry struct {
	mu            sync.RWMutex
	subscriptions map[string]domain.Subscription

	targets             []adapterport.Target
	cache               cache.Cache
	notificationTimeout time.Duration
	httpClient          *http.Client
	log                 *slog.Logger
}

// New builds an empty Registry. targets is the snapshot of adapters a
// new consumer subscription installs internal-to-that-consumer
// callbacks onto.
func New(targets []adapterport.Target, c cache.Cache, notificationTimeout time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		subscriptions:       make(map[string]domain.Subscription),
		targets:             targets,
		cache:               c,
		notificationTimeout: notificationTimeout,
		httpClient:          &http.Client{Timeout: notificationTimeout},
		log:                 log,
	}
}

// Subscribe generates a fresh subscription id, installs an adapter
// subscription on every configured chain whose callback is this
// engine's own consumer-notification webhook, and stores the
// subscription record if at least one adapter accepted it.
func (r *Registry) Subscribe(ctx context.Context, req domain.SubscribeRequest, engineBaseURL string) (SubscribeResponse, error) {
	if len(req.EventTypes) == 0 {
		return SubscribeResponse{}, &domain.ValidationError{Field: "eventTypes", Message: "must contain at least one entry"}
	}
	if _, err := url.ParseRequestURI(req.NotificationEndpoint); err != nil {
		return SubscribeResponse{}, &domain.ValidationError{Field: "notificationEndpoint", Message: "must be a valid URL"}
	}

	id := uuid.New().String()

	results := make([]AdapterResult, len(r.targets))
	var g errgroup.Group
	for i, target := range r.targets {
		i, target := i, target
		g.Go(func() error {
			err := target.Invoker.Subscribe(ctx, adapterclient.SubscribeParams{
				EventTypes:           req.EventTypes,
				NotificationEndpoint: engineBaseURL + "/internal/desmosNotification",
			})
			if err != nil {
				r.log.Warn("adapter subscribe failed", "adapter", target.Invoker.Name(), "error", err)
				results[i] = AdapterResult{Name: target.Invoker.Name(), Success: false, Error: err.Error()}
				return nil
			}
			results[i] = AdapterResult{Name: target.Invoker.Name(), Success: true}
			return nil
		})
	}
	_ = g.Wait()

	anySuccess := false
	for _, r := range results {
		if r.Success {
			anySuccess = true
			break
		}
	}

	if !anySuccess {
		return SubscribeResponse{}, domain.ErrAllAdaptersFailed
	}

	r.mu.Lock()
	r.subscriptions[id] = domain.Subscription{
		ID:          id,
		EventTypes:  req.EventTypes,
		CallbackURL: req.NotificationEndpoint,
		CreatedAt:   time.Now(),
	}
	r.mu.Unlock()

	return SubscribeResponse{SubscriptionID: id, Message: "subscribed", Adapters: results}, nil
}

// HandleConsumerNotification is the consumer-notification webhook
// handler. It deduplicates by global id, matches against stored
// subscriptions, and forwards the event to every matching callback.
// It awaits every outbound POST to settle before marking the global
// id notified, regardless of outcome — this is a deliberate pin: the
// alternative (mark-then-fire) would let a crash between mark and send
// silently drop the notification.
func (r *Registry) HandleConsumerNotification(ctx context.Context, event domain.Event) error {
	globalID, err := domain.ExtractGlobalID(event.DataLocation)
	if err != nil {
		return err
	}

	notified, err := r.cache.IsNotified(ctx, globalID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	if notified {
		return nil
	}

	matches := r.matchingSubscriptions(event.EventType)
	if len(matches) == 0 {
		return nil
	}

	outbound := domain.StripNetwork(event)

	var g errgroup.Group
	for _, sub := range matches {
		sub := sub
		g.Go(func() error {
			if err := r.deliver(ctx, sub, outbound); err != nil {
				r.log.Warn("consumer callback failed", "subscription", sub.ID, "callback", sub.CallbackURL, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := r.cache.MarkNotified(ctx, globalID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (r *Registry) matchingSubscriptions(eventType string) []domain.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.MatchesEventType(eventType) {
			matches = append(matches, sub)
		}
	}
	return matches
}

func (r *Registry) deliver(ctx context.Context, sub domain.Subscription, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.notificationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned http %d", resp.StatusCode)
	}
	return nil
}

// Count returns the number of active subscriptions, for GET /stats.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}
