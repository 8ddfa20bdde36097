package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"qoed/internal/api"
	"qoed/internal/telemetry"
)

// apiClient talks to a running qoed instance over its HTTP API.
type apiClient struct {
	baseURL string
	client  *http.Client
}

func newAPIClient(bind string) (*apiClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("daemon API address is not configured (set paths.api_bind or pass --api)")
	}
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	return &apiClient{
		baseURL: strings.TrimRight(bind, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *apiClient) Queue(ctx context.Context) (api.QueueResponse, error) {
	var queue api.QueueResponse
	err := c.do(ctx, http.MethodGet, "/api/queue", nil, &queue)
	return queue, err
}

func (c *apiClient) RegisterManifest(ctx context.Context, manifestURL string) (api.ManifestResponse, error) {
	var resp api.ManifestResponse
	err := c.do(ctx, http.MethodPost, "/api/manifest", api.ManifestRequest{ManifestURL: manifestURL}, &resp)
	return resp, err
}

func (c *apiClient) SubmitTelemetry(ctx context.Context, manifestURL string, events []telemetry.Event) (api.TelemetryResponse, error) {
	var resp api.TelemetryResponse
	req := api.TelemetryRequest{ManifestURL: manifestURL, Events: events}
	err := c.do(ctx, http.MethodPost, "/api/telemetry", req, &resp)
	return resp, err
}

func (c *apiClient) Result(ctx context.Context, sessionID int64) (api.ResultResponse, error) {
	var resp api.ResultResponse
	err := c.do(ctx, http.MethodPost, "/api/result", api.ResultRequest{SessionID: sessionID}, &resp)
	return resp, err
}

func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach qoed at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("qoed: %s", apiErr.Error)
		}
		return fmt.Errorf("qoed returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
