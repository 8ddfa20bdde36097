package testsupport

import (
	"context"
	"testing"

	"qoed/internal/config"
	"qoed/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewVideo registers a manifest URL for tests using the provided store.
func NewVideo(t testing.TB, st *store.Store, manifestURL string) *store.Video {
	t.Helper()

	video, _, err := st.NewVideo(context.Background(), manifestURL)
	if err != nil {
		t.Fatalf("store.NewVideo: %v", err)
	}
	return video
}

// NewSession creates a playback session for tests using the provided store.
func NewSession(t testing.TB, st *store.Store, videoID int64) *store.Session {
	t.Helper()

	session, err := st.NewSession(context.Background(), videoID)
	if err != nil {
		t.Fatalf("store.NewSession: %v", err)
	}
	return session
}
