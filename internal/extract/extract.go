// Package extract implements the stage that runs feature extraction over a
// video's downloaded renditions.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"qoed/internal/config"
	"qoed/internal/logging"
	"qoed/internal/media"
	"qoed/internal/services"
	"qoed/internal/services/extractor"
	"qoed/internal/stage"
	"qoed/internal/store"
)

// Analyzer produces a feature report for one rendition file.
type Analyzer interface {
	Extract(ctx context.Context, renditionPath, reportPath string) error
}

// Extractor fans feature extraction out over a video's renditions.
type Extractor struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	analyzer Analyzer
}

// NewExtractor constructs the extraction stage handler using default dependencies.
func NewExtractor(cfg *config.Config, st *store.Store, logger *slog.Logger) *Extractor {
	return NewExtractorWithDependencies(cfg, st, logger, extractor.New(cfg.Tools.Extractor))
}

// NewExtractorWithDependencies allows injecting collaborators (used in tests).
func NewExtractorWithDependencies(cfg *config.Config, st *store.Store, logger *slog.Logger, analyzer Analyzer) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "extractor"))
	}
	return &Extractor{store: st, cfg: cfg, logger: stageLogger, analyzer: analyzer}
}

// Prepare verifies the renditions this stage consumes are actually on disk.
func (e *Extractor) Prepare(ctx context.Context, video *store.Video) error {
	video.ErrorMessage = ""
	if len(video.RepresentationRanks) == 0 {
		return services.Wrap(services.ErrValidation, "extracting", "validate inputs", "Video has no ranked renditions; acquisition must run first", nil)
	}
	if err := os.MkdirAll(video.ReportsDir(e.cfg.VideosDir()), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "extracting", "prepare directories", "Failed to create reports directory", err)
	}
	return nil
}

// Execute runs the extraction tool over every rendition, a bounded number at
// a time. Reports that already exist are kept, so a resumed video only pays
// for the renditions that were still missing. Any failure aborts the stage.
func (e *Extractor) Execute(ctx context.Context, video *store.Video) error {
	logger := logging.WithContext(ctx, e.logger)

	dir := video.Dir(e.cfg.VideosDir())
	reportsDir := video.ReportsDir(e.cfg.VideosDir())
	files, err := media.ListRenditions(dir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "extracting", "list renditions", "Failed to enumerate renditions", err)
	}
	if len(files) == 0 {
		return services.Wrap(services.ErrValidation, "extracting", "list renditions", "No rendition files found for extraction", nil)
	}

	parallelism := e.cfg.Workflow.ExtractParallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	logger.Info("starting feature extraction", logging.Int("renditions", len(files)), logging.Int("parallelism", parallelism))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for _, file := range files {
		group.Go(func() error {
			reportPath := filepath.Join(reportsDir, media.Stem(file)+".json")
			if info, err := os.Stat(reportPath); err == nil && info.Size() > 0 {
				return nil
			}
			if err := e.analyzer.Extract(groupCtx, file, reportPath); err != nil {
				return fmt.Errorf("extract %s: %w", filepath.Base(file), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return services.Wrap(services.ErrExternalTool, "extracting", "analyze renditions", "Feature extraction failed", err)
	}

	logger.Info("feature extraction completed", logging.Int("reports", len(files)))
	return nil
}

// HealthCheck reports whether extraction has what it needs to run.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	if e.cfg.Tools.Extractor == "" {
		return stage.Unhealthy("extractor", "extractor binary not configured")
	}
	return stage.Healthy("extractor")
}
