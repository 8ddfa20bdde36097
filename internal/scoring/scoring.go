// Package scoring implements the stage that runs the quality model over a
// session's assembled input document.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"

	"qoed/internal/config"
	"qoed/internal/fileutil"
	"qoed/internal/logging"
	"qoed/internal/services"
	"qoed/internal/services/scorer"
	"qoed/internal/stage"
	"qoed/internal/store"
)

// Model evaluates a model input document and returns the raw result JSON.
type Model interface {
	Score(ctx context.Context, inputPath string) ([]byte, error)
}

// Scorer runs the quality model and records the session's scores.
type Scorer struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	model  Model
}

// NewScorer constructs the scoring stage handler using default dependencies.
func NewScorer(cfg *config.Config, st *store.Store, logger *slog.Logger) *Scorer {
	return NewScorerWithDependencies(cfg, st, logger, scorer.New(cfg.Tools.Scorer))
}

// NewScorerWithDependencies allows injecting collaborators (used in tests).
func NewScorerWithDependencies(cfg *config.Config, st *store.Store, logger *slog.Logger, model Model) *Scorer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "scorer"))
	}
	return &Scorer{store: st, cfg: cfg, logger: stageLogger, model: model}
}

// Prepare verifies the model input document exists.
func (s *Scorer) Prepare(ctx context.Context, session *store.Session) error {
	session.ErrorMessage = ""
	if _, err := os.Stat(session.InputPath(s.cfg.SessionsDir())); err != nil {
		return services.Wrap(services.ErrValidation, "scoring", "validate inputs", "Model input document is missing; timeline build must run first", err)
	}
	return nil
}

// Execute invokes the quality model, persists the full result document and
// the three-score summary, and deletes the input file to bound storage
// growth. The session's CPU claim is released on every path out of this
// method; scoring is the only stage allowed to release it, and a failure
// that kept the gate held would deadlock the pipeline permanently.
func (s *Scorer) Execute(ctx context.Context, session *store.Session) (err error) {
	logger := logging.WithContext(ctx, s.logger)
	defer func() {
		if releaseErr := s.store.ReleaseCPU(ctx, session.ID); releaseErr != nil {
			logger.Error("failed to release cpu gate", logging.Error(releaseErr))
			if err == nil {
				err = services.Wrap(services.ErrTransient, "scoring", "release cpu", "Failed to release CPU gate", releaseErr)
			}
		}
	}()

	inputPath := session.InputPath(s.cfg.SessionsDir())
	output, err := s.model.Score(ctx, inputPath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "scoring", "run model", "Quality model invocation failed", err)
	}

	var summary store.ScoreSummary
	if err := json.Unmarshal(output, &summary); err != nil {
		return services.Wrap(services.ErrExternalTool, "scoring", "parse result", "Quality model produced unparseable output", err)
	}

	resultPath := session.ResultPath(s.cfg.SessionsDir())
	if err := fileutil.WriteFileAtomic(resultPath, output, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "scoring", "write result", "Failed to persist model result", err)
	}
	session.Result = &summary

	if err := os.Remove(inputPath); err != nil {
		logger.Warn("failed to remove model input", logging.Error(err))
	}

	logger.Info(
		"session scored",
		logging.Float64("o23", summary.O23),
		logging.Float64("o35", summary.O35),
		logging.Float64("o46", summary.O46),
	)
	return nil
}

// HealthCheck reports whether scoring has what it needs to run.
func (s *Scorer) HealthCheck(ctx context.Context) stage.Health {
	if s.cfg.Tools.Scorer == "" {
		return stage.Unhealthy("scorer", "scorer binary not configured")
	}
	if err := os.MkdirAll(s.cfg.SessionsDir(), 0o755); err != nil {
		return stage.Unhealthy("scorer", fmt.Sprintf("sessions dir unavailable: %v", err))
	}
	return stage.Healthy("scorer")
}
