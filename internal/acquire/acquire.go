// Package acquire implements the stage that turns a registered manifest into
// ranked rendition files on disk.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"

	"qoed/internal/config"
	"qoed/internal/fileutil"
	"qoed/internal/logging"
	"qoed/internal/manifest"
	"qoed/internal/media"
	"qoed/internal/media/ffprobe"
	"qoed/internal/services"
	"qoed/internal/services/downloader"
	"qoed/internal/stage"
	"qoed/internal/store"
)

// Downloader fetches every rendition referenced by a manifest.
type Downloader interface {
	Download(ctx context.Context, manifestURL, destDir string) error
}

// Prober inspects a media file, used to measure rendition bitrates.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Fetcher retrieves a manifest document over HTTP.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Acquirer downloads renditions and assigns quality ranks.
type Acquirer struct {
	store      *store.Store
	cfg        *config.Config
	logger     *slog.Logger
	downloader Downloader
	probe      Prober
	fetch      Fetcher
}

// NewAcquirer constructs the acquisition stage handler using default dependencies.
func NewAcquirer(cfg *config.Config, st *store.Store, logger *slog.Logger) *Acquirer {
	return NewAcquirerWithDependencies(cfg, st, logger, downloader.New(cfg.Tools.Downloader), ffprobe.Inspect, manifest.Fetch)
}

// NewAcquirerWithDependencies allows injecting collaborators (used in tests).
func NewAcquirerWithDependencies(cfg *config.Config, st *store.Store, logger *slog.Logger, dl Downloader, probe Prober, fetch Fetcher) *Acquirer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "acquirer"))
	}
	if probe == nil {
		probe = ffprobe.Inspect
	}
	if fetch == nil {
		fetch = manifest.Fetch
	}
	return &Acquirer{store: st, cfg: cfg, logger: stageLogger, downloader: dl, probe: probe, fetch: fetch}
}

// Prepare verifies there is enough free space to hold another video's
// renditions before any network work starts.
func (a *Acquirer) Prepare(ctx context.Context, video *store.Video) error {
	logger := logging.WithContext(ctx, a.logger)
	video.ErrorMessage = ""

	if err := os.MkdirAll(a.cfg.VideosDir(), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "acquiring", "prepare directories", "Failed to create videos directory", err)
	}

	required := uint64(a.cfg.Workflow.MinFreeSpaceGiB) << 30
	free, err := freeSpace(a.cfg.VideosDir())
	if err != nil {
		logger.Warn("free space check failed", logging.Error(err))
		return nil
	}
	if free < required {
		return services.Wrap(
			services.ErrConfiguration,
			"acquiring",
			"check free space",
			fmt.Sprintf("Insufficient disk space: %d GiB free, %d GiB required", free>>30, required>>30),
			nil,
		)
	}
	return nil
}

// Execute fetches the manifest, downloads every referenced rendition, and
// ranks the files by measured bitrate. Rank 1 is the highest quality. The
// resulting representation-to-rank mapping is stored on the video.
func (a *Acquirer) Execute(ctx context.Context, video *store.Video) error {
	logger := logging.WithContext(ctx, a.logger)

	dir := video.Dir(a.cfg.VideosDir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "acquiring", "create video dir", "Failed to create video directory", err)
	}

	body, err := a.loadManifest(ctx, video)
	if err != nil {
		return err
	}
	doc, err := manifest.Parse(body)
	if err != nil {
		return services.Wrap(services.ErrValidation, "acquiring", "parse manifest", "Manifest is not a usable MPD document", err)
	}
	logger.Info("manifest parsed", logging.Int("representations", len(doc.Representations)))

	if err := a.downloader.Download(ctx, video.ManifestURL, dir); err != nil {
		return services.Wrap(services.ErrExternalTool, "acquiring", "download renditions", "Rendition download failed", err)
	}

	files, err := media.ListRenditions(dir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "acquiring", "list renditions", "Failed to enumerate downloaded renditions", err)
	}
	if len(files) == 0 {
		return services.Wrap(services.ErrExternalTool, "acquiring", "list renditions", "Downloader produced no rendition files", nil)
	}
	if len(files) != len(doc.Representations) {
		logger.Warn(
			"rendition count does not match manifest",
			logging.Int("files", len(files)),
			logging.Int("representations", len(doc.Representations)),
		)
	}

	ranked, err := a.rankByBitrate(ctx, files)
	if err != nil {
		return err
	}

	ranks := make(map[string]string, len(doc.Representations))
	for i, rep := range doc.Representations {
		if i >= len(ranked) {
			break
		}
		stem := fmt.Sprintf("%d-%d", video.ID, i+1)
		target := filepath.Join(dir, stem+filepath.Ext(ranked[i]))
		if ranked[i] != target {
			if err := fileutil.MoveFile(ranked[i], target); err != nil {
				return services.Wrap(services.ErrTransient, "acquiring", "rank renditions", "Failed to rename rendition", err)
			}
		}
		ranks[rep.ID] = stem
	}

	video.RepresentationRanks = ranks
	logger.Info("renditions acquired", logging.Int("count", len(ranks)))
	return nil
}

// HealthCheck reports whether acquisition has what it needs to run.
func (a *Acquirer) HealthCheck(ctx context.Context) stage.Health {
	if a.cfg.Tools.Downloader == "" {
		return stage.Unhealthy("acquirer", "downloader binary not configured")
	}
	if err := unix.Access(a.cfg.Paths.DataDir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return stage.Unhealthy("acquirer", fmt.Sprintf("data dir not writable: %v", err))
	}
	return stage.Healthy("acquirer")
}

// loadManifest reuses the saved manifest document when present and fetches
// it otherwise, persisting the body for later resumes.
func (a *Acquirer) loadManifest(ctx context.Context, video *store.Video) ([]byte, error) {
	path := video.ManifestPath(a.cfg.VideosDir())
	if body, err := os.ReadFile(path); err == nil && len(body) > 0 {
		return body, nil
	}

	fetchCtx := ctx
	if timeout := a.cfg.ManifestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	body, err := a.fetch(fetchCtx, video.ManifestURL)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "acquiring", "fetch manifest", "Manifest fetch failed", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransient, "acquiring", "save manifest", "Failed to persist manifest", err)
	}
	return body, nil
}

// rankByBitrate orders rendition files by measured bitrate, highest first.
// The download names renditions after manifest format ids, so measured order
// is what pairs files with the bandwidth-sorted representation list.
func (a *Acquirer) rankByBitrate(ctx context.Context, files []string) ([]string, error) {
	type measured struct {
		path    string
		bitrate int64
	}
	results := make([]measured, 0, len(files))
	for _, file := range files {
		probe, err := a.probe(ctx, a.cfg.Tools.FFprobe, file)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "acquiring", "probe rendition", "ffprobe inspection failed", err)
		}
		results = append(results, measured{path: file, bitrate: probe.BitRate()})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].bitrate > results[j].bitrate
	})
	ranked := make([]string, len(results))
	for i, result := range results {
		ranked[i] = result.path
	}
	return ranked, nil
}

func freeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
