package subscription

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ied-systems/ied/internal/core/domain"
	"github.com/ied-systems/ied/internal/engine/adapterport"
	"github.com/ied-systems/ied/internal/infra/adapterclient"
	"github.com/ied-systems/ied/internal/infra/cache"
)

type stubInvoker struct {
	name          string
	subscribeErr  error
	subscribeCall int32
}

func (f *stubInvoker) Name() string                     { return f.name }
func (f *stubInvoker) HealthCheck(context.Context) bool { return true }
func (f *stubInvoker) Publish(context.Context, domain.PublishRequest) (uint64, error) {
	return 0, nil
}
func (f *stubInvoker) Subscribe(context.Context, adapterclient.SubscribeParams) error {
	f.subscribeCall++
	return f.subscribeErr
}
func (f *stubInvoker) ListSubscriptions(context.Context) ([]adapterclient.SubscriptionInfo, error) {
	return nil, nil
}
func (f *stubInvoker) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_SubscribeTwiceYieldsTwoIndependentIDs(t *testing.T) {
	targets := []adapterport.Target{{ChainID: "1", Invoker: &stubInvoker{name: "hashnet"}}}
	c := cache.NewMemoryCache()
	r := New(targets, c, time.Second, discardLogger())

	req := domain.SubscribeRequest{EventTypes: []string{"document.created"}, NotificationEndpoint: "https://consumer.example/hook"}

	first, err := r.Subscribe(context.Background(), req, "https://ied.example")
	if err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	second, err := r.Subscribe(context.Background(), req, "https://ied.example")
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	if first.SubscriptionID == second.SubscriptionID {
		t.Fatal("expected two independent subscription ids")
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 stored subscriptions, got %d", r.Count())
	}
}

func TestRegistry_SubscribeFailsWhenAllAdaptersReject(t *testing.T) {
	targets := []adapterport.Target{
		{ChainID: "1", Invoker: &stubInvoker{name: "hashnet", subscribeErr: context.DeadlineExceeded}},
	}
	c := cache.NewMemoryCache()
	r := New(targets, c, time.Second, discardLogger())

	_, err := r.Subscribe(context.Background(), domain.SubscribeRequest{EventTypes: []string{"*"}, NotificationEndpoint: "https://consumer.example/hook"}, "https://ied.example")
	if err != domain.ErrAllAdaptersFailed {
		t.Fatalf("expected ErrAllAdaptersFailed, got %v", err)
	}
}

func TestRegistry_ConsumerNotificationDeduplication(t *testing.T) {
	var deliveries atomic.Int32
	var lastBody domain.Event

	consumer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		deliveries.Add(1)
		_ = json.NewDecoder(req.Body).Decode(&lastBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer consumer.Close()

	targets := []adapterport.Target{{ChainID: "1", Invoker: &stubInvoker{name: "hashnet"}}}
	c := cache.NewMemoryCache()
	r := New(targets, c, time.Second, discardLogger())

	req := domain.SubscribeRequest{EventTypes: []string{"document.created"}, NotificationEndpoint: consumer.URL}
	if _, err := r.Subscribe(context.Background(), req, "https://ied.example"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	event := domain.Event{
		EventType:    "document.created",
		DataLocation: "https://x/y?hl=0xbbb",
		Network:      "hashnet",
	}

	for i := 0; i < 3; i++ {
		if err := r.HandleConsumerNotification(context.Background(), event); err != nil {
			t.Fatalf("HandleConsumerNotification (call %d): %v", i, err)
		}
	}

	if deliveries.Load() != 1 {
		t.Fatalf("expected exactly 1 outbound delivery across 3 identical notifications, got %d", deliveries.Load())
	}
	if lastBody.Network != "" {
		t.Fatal("expected network stripped from outbound payload")
	}

	notified, err := c.IsNotified(context.Background(), "0xbbb")
	if err != nil {
		t.Fatalf("IsNotified: %v", err)
	}
	if !notified {
		t.Fatal("expected 0xbbb recorded as notified")
	}
}

func TestRegistry_ConsumerNotificationSkipsNonMatchingSubscriptions(t *testing.T) {
	var deliveries atomic.Int32
	consumer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		deliveries.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer consumer.Close()

	targets := []adapterport.Target{{ChainID: "1", Invoker: &stubInvoker{name: "hashnet"}}}
	c := cache.NewMemoryCache()
	r := New(targets, c, time.Second, discardLogger())

	req := domain.SubscribeRequest{EventTypes: []string{"document.updated"}, NotificationEndpoint: consumer.URL}
	if _, err := r.Subscribe(context.Background(), req, "https://ied.example"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	event := domain.Event{EventType: "document.created", DataLocation: "https://x/y?hl=0xccc"}
	if err := r.HandleConsumerNotification(context.Background(), event); err != nil {
		t.Fatalf("HandleConsumerNotification: %v", err)
	}

	if deliveries.Load() != 0 {
		t.Fatalf("expected no delivery for a non-matching event type, got %d", deliveries.Load())
	}
}
