package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/potooio/ondeath/internal/api"
)

// apiClient is a thin client for the daemon's HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

func newClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	return out, c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out)
}

func (c *apiClient) subscribers(ctx context.Context) (api.SubscribersResponse, error) {
	var out api.SubscribersResponse
	return out, c.do(ctx, http.MethodGet, "/api/v1/subscribers", nil, &out)
}

func (c *apiClient) subscribe(ctx context.Context, name string) (api.SubscribersResponse, error) {
	var out api.SubscribersResponse
	return out, c.do(ctx, http.MethodPost, "/api/v1/subscribe", api.SubscriptionRequest{From: name}, &out)
}

func (c *apiClient) unsubscribe(ctx context.Context, name string) (api.SubscribersResponse, error) {
	var out api.SubscribersResponse
	return out, c.do(ctx, http.MethodPost, "/api/v1/unsubscribe", api.SubscriptionRequest{From: name}, &out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
