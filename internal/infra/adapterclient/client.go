// Package adapterclient is the typed HTTP client the engine uses to
// talk to a single ledger adapter: publish, subscribe, health, and
// list-subscriptions, wrapped in the retry and timeout policy every
// adapter call goes through.
package adapterclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ied-systems/ied/internal/core/domain"
)

// Client is a typed HTTP client bound to one adapter. It never panics
// or returns a bare error into a caller's publish/replicate control
// flow — Publish reports failures through domain.AdapterFailure.
type Client struct {
	descriptor domain.AdapterDescriptor
	httpClient *http.Client
	retry      RetryConfig
}

// New builds a Client for one adapter. timeout bounds each individual
// HTTP attempt; retryCfg bounds how many attempts the retry wrapper
// makes and how long it waits between them.
func New(descriptor domain.AdapterDescriptor, timeout time.Duration, retryCfg RetryConfig) *Client {
	return &Client{
		descriptor: descriptor,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: retryCfg,
	}
}

// Name returns the adapter's configured name.
func (c *Client) Name() string {
	return c.descriptor.Name
}

// HealthCheck succeeds only if the adapter responds HTTP 200 with body
// status == "UP".
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.descriptor.BaseURL+c.descriptor.HealthPath, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "UP"
}

// Publish POSTs req to the adapter's publish endpoint, making up to
// c.retry.MaxAttempts attempts with linear backoff on transport errors
// and 5xx responses. A 4xx response is terminal: no retry is spent on
// it, and the resulting domain.AdapterFailure has Terminal set.
func (c *Client) Publish(ctx context.Context, req domain.PublishRequest) (uint64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, &domain.AdapterFailure{Adapter: c.descriptor.Name, Err: fmt.Errorf("marshal request: %w", err), Terminal: true}
	}

	var timestamp uint64
	var terminal bool

	backoff := retry.WithMaxRetries(uint64(max(c.retry.MaxAttempts-1, 0)), linearBackoff(c.retry.RetryDelay))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(
			ctx, http.MethodPost, c.descriptor.BaseURL+c.descriptor.PublishPath, bytes.NewReader(body))
		if err != nil {
			terminal = true
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("publish request: %w", err))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read publish response: %w", err))
		}

		if isRetryableStatus(resp.StatusCode) {
			return retry.RetryableError(fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody)))
		}
		if isPermanentStatus(resp.StatusCode) {
			terminal = true
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
		}

		var parsed publishResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			terminal = true
			return fmt.Errorf("parse publish response: %w", err)
		}
		timestamp = parsed.Timestamp
		return nil
	})

	if err != nil {
		return 0, &domain.AdapterFailure{Adapter: c.descriptor.Name, Err: err, Terminal: terminal}
	}
	return timestamp, nil
}

// Subscribe POSTs req to the adapter's subscribe endpoint and reports
// simple success/failure — the caller owns tracking the subscription
// id, if any.
func (c *Client) Subscribe(ctx context.Context, req SubscribeParams) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal subscribe request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.descriptor.BaseURL+c.descriptor.SubscribePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build subscribe request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("subscribe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("subscribe failed: http %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// ListSubscriptions is an optional diagnostic; callers should treat a
// failure as non-fatal.
func (c *Client) ListSubscriptions(ctx context.Context) ([]SubscriptionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.descriptor.BaseURL+c.descriptor.SubscribePath, nil)
	if err != nil {
		return nil, fmt.Errorf("build list-subscriptions request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list-subscriptions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list-subscriptions failed: http %d", resp.StatusCode)
	}

	var subs []SubscriptionInfo
	if err := json.NewDecoder(resp.Body).Decode(&subs); err != nil {
		return nil, fmt.Errorf("parse list-subscriptions response: %w", err)
	}
	return subs, nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
