// Package ingest owns the submission paths: manifest registration and
// telemetry intake. Both persist through the store and nudge the workflow
// manager rather than doing any pipeline work inline, so callers get an
// answer immediately while downloading, extraction, and scoring happen in
// the background.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"qoed/internal/config"
	"qoed/internal/logging"
	"qoed/internal/manifest"
	"qoed/internal/services"
	"qoed/internal/store"
	"qoed/internal/telemetry"
)

// Waker lets the registry wake the workflow lanes after a submission.
type Waker interface {
	Kick()
}

// Fetcher probes and retrieves a manifest document.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// ErrUnknownManifest is returned when telemetry references a manifest URL
// that was never registered.
var ErrUnknownManifest = services.Wrap(services.ErrNotFound, "ingest", "resolve manifest", "Manifest URL is not registered", nil)

// Registry handles manifest and telemetry submissions.
type Registry struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	waker  Waker
	fetch  Fetcher
}

// NewRegistry constructs a Registry using the default HTTP fetcher.
func NewRegistry(cfg *config.Config, st *store.Store, logger *slog.Logger, waker Waker) *Registry {
	return NewRegistryWithFetcher(cfg, st, logger, waker, manifest.Fetch)
}

// NewRegistryWithFetcher allows injecting the manifest fetcher (used in tests).
func NewRegistryWithFetcher(cfg *config.Config, st *store.Store, logger *slog.Logger, waker Waker, fetch Fetcher) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	if fetch == nil {
		fetch = manifest.Fetch
	}
	return &Registry{
		store:  st,
		cfg:    cfg,
		logger: logger.With(logging.String("component", "ingest")),
		waker:  waker,
		fetch:  fetch,
	}
}

// RegisterManifest registers a manifest URL and returns its video along with
// whether this submission created it. Re-submitting a known URL is a success
// and performs no further work. A new URL is probed first; if the manifest
// cannot be fetched no record is created. The fetched document is saved so
// acquisition does not have to fetch it again.
func (r *Registry) RegisterManifest(ctx context.Context, manifestURL string) (*store.Video, bool, error) {
	logger := logging.WithContext(ctx, r.logger)

	if manifestURL == "" {
		return nil, false, services.Wrap(services.ErrValidation, "ingest", "register manifest", "Manifest URL is empty", nil)
	}

	if existing, err := r.store.GetVideoByManifestURL(ctx, manifestURL); err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "ingest", "register manifest", "Failed to look up manifest", err)
	} else if existing != nil {
		logger.Info("manifest already registered", logging.Int64(logging.FieldVideoID, existing.ID))
		return existing, false, nil
	}

	probeCtx := ctx
	if timeout := r.cfg.ManifestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	body, err := r.fetch(probeCtx, manifestURL)
	if err != nil {
		return nil, false, services.Wrap(services.ErrValidation, "ingest", "probe manifest", "Manifest is unreachable", err)
	}

	video, created, err := r.store.NewVideo(ctx, manifestURL)
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "ingest", "register manifest", "Failed to persist video", err)
	}
	if created {
		if err := r.saveManifest(video, body); err != nil {
			logger.Warn("failed to save probed manifest", logging.Error(err))
		}
		logger.Info("manifest registered", logging.Int64(logging.FieldVideoID, video.ID))
		if r.waker != nil {
			r.waker.Kick()
		}
	}
	return video, created, nil
}

// SubmitTelemetry records a playback session's raw events against a
// registered manifest and returns the new session. The downstream build and
// score work happens asynchronously; callers poll the result endpoint.
func (r *Registry) SubmitTelemetry(ctx context.Context, manifestURL string, events []telemetry.Event) (*store.Session, error) {
	logger := logging.WithContext(ctx, r.logger)

	video, err := r.store.GetVideoByManifestURL(ctx, manifestURL)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "resolve manifest", "Failed to look up manifest", err)
	}
	if video == nil {
		return nil, ErrUnknownManifest
	}
	for i, event := range events {
		if err := event.Validate(); err != nil {
			return nil, services.Wrap(services.ErrValidation, "ingest", "validate telemetry", fmt.Sprintf("Event %d is invalid", i), err)
		}
	}

	session, err := r.store.NewSession(ctx, video.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "submit telemetry", "Failed to persist session", err)
	}
	if err := telemetry.Save(session.EventsPath(r.cfg.SessionsDir()), events); err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "submit telemetry", "Failed to persist telemetry events", err)
	}

	logger.Info(
		"telemetry submitted",
		logging.Int64(logging.FieldSessionID, session.ID),
		logging.Int64(logging.FieldVideoID, video.ID),
		logging.Int("events", len(events)),
	)
	if r.waker != nil {
		r.waker.Kick()
	}
	return session, nil
}

func (r *Registry) saveManifest(video *store.Video, body []byte) error {
	path := video.ManifestPath(r.cfg.VideosDir())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create video dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
