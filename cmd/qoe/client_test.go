package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"qoed/internal/api"
	"qoed/internal/telemetry"
)

func newTestClient(t *testing.T, handler http.Handler) *apiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := newAPIClient(server.URL)
	if err != nil {
		t.Fatalf("newAPIClient: %v", err)
	}
	return client
}

func TestClientSubmitTelemetry(t *testing.T) {
	var gotPath string
	var gotReq api.TelemetryRequest

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.TelemetryResponse{SessionID: 7}) //nolint:errcheck
	}))

	events := []telemetry.Event{{Type: telemetry.TypePlaybackStarted, RepresentationID: "v0"}}
	resp, err := client.SubmitTelemetry(context.Background(), "http://cdn/stream.mpd", events)
	if err != nil {
		t.Fatalf("SubmitTelemetry: %v", err)
	}
	if resp.SessionID != 7 {
		t.Errorf("session id = %d, want 7", resp.SessionID)
	}
	if gotPath != "/api/telemetry" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.ManifestURL != "http://cdn/stream.mpd" || len(gotReq.Events) != 1 {
		t.Errorf("unexpected request payload: %+v", gotReq)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Manifest URL is not registered"}) //nolint:errcheck
	}))

	_, err := client.RegisterManifest(context.Background(), "http://cdn/unknown.mpd")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Manifest URL is not registered") {
		t.Errorf("error %q does not carry the API message", err)
	}
}

func TestNewAPIClientNormalizesBind(t *testing.T) {
	client, err := newAPIClient(":8800")
	if err != nil {
		t.Fatalf("newAPIClient: %v", err)
	}
	if client.baseURL != "http://127.0.0.1:8800" {
		t.Errorf("baseURL = %q", client.baseURL)
	}

	if _, err := newAPIClient("  "); err == nil {
		t.Error("expected error for empty bind address")
	}
}
