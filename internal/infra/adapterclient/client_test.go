package adapterclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ied-systems/ied/internal/core/domain"
)

func testDescriptor(url string) domain.AdapterDescriptor {
	return domain.AdapterDescriptor{
		Name:          "hashnet",
		BaseURL:       url,
		ChainID:       "1",
		PublishPath:   "/publish",
		SubscribePath: "/subscribe",
		HealthPath:    "/health",
	}
}

func TestClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "UP"})
	}))
	defer server.Close()

	c := New(testDescriptor(server.URL), time.Second, DefaultRetryConfig)
	if !c.HealthCheck(context.Background()) {
		t.Fatal("expected healthy adapter")
	}
}

func TestClient_HealthCheck_Down(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(testDescriptor(server.URL), time.Second, DefaultRetryConfig)
	if c.HealthCheck(context.Background()) {
		t.Fatal("expected unhealthy adapter")
	}
}

func TestClient_Publish_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.PublishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]uint64{"timestamp": 42})
	}))
	defer server.Close()

	c := New(testDescriptor(server.URL), time.Second, DefaultRetryConfig)
	ts, err := c.Publish(context.Background(), domain.PublishRequest{EventType: "ProductAdded"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ts != 42 {
		t.Fatalf("expected timestamp 42, got %d", ts)
	}
}

func TestClient_Publish_RetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]uint64{"timestamp": 7})
	}))
	defer server.Close()

	c := New(testDescriptor(server.URL), time.Second, RetryConfig{MaxAttempts: 3, RetryDelay: time.Millisecond})
	ts, err := c.Publish(context.Background(), domain.PublishRequest{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ts != 7 {
		t.Fatalf("expected timestamp 7, got %d", ts)
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_Publish_4xxIsTerminal(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(testDescriptor(server.URL), time.Second, RetryConfig{MaxAttempts: 3, RetryDelay: time.Millisecond})
	_, err := c.Publish(context.Background(), domain.PublishRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	failure, ok := err.(*domain.AdapterFailure)
	if !ok {
		t.Fatalf("expected *domain.AdapterFailure, got %T", err)
	}
	if !failure.Terminal {
		t.Fatal("expected terminal failure for 4xx")
	}
	if attempts.Load() != 1 {
		t.Fatalf("expected exactly 1 attempt for a terminal error, got %d", attempts.Load())
	}
}

func TestClient_Publish_ExhaustsRetryBudget(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(testDescriptor(server.URL), time.Second, RetryConfig{MaxAttempts: 3, RetryDelay: time.Millisecond})
	_, err := c.Publish(context.Background(), domain.PublishRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts (retry budget exhausted), got %d", attempts.Load())
	}
}

func TestClient_Subscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := New(testDescriptor(server.URL), time.Second, DefaultRetryConfig)
	err := c.Subscribe(context.Background(), SubscribeParams{EventTypes: []string{"*"}, NotificationEndpoint: "http://ied/internal/eventNotification/hashnet"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
}
