package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"qoed/internal/config"
	"qoed/internal/fileutil"
	"qoed/internal/logging"
	"qoed/internal/services"
	"qoed/internal/stage"
	"qoed/internal/store"
	"qoed/internal/telemetry"
)

// Builder reconstructs a session's playback timeline and writes the model
// input document. The workflow manager holds the CPU gate on the session's
// behalf for the whole execution; the gate is released by the scoring stage.
type Builder struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewBuilder constructs the timeline building stage handler.
func NewBuilder(cfg *config.Config, st *store.Store, logger *slog.Logger) *Builder {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "builder"))
	}
	return &Builder{store: st, cfg: cfg, logger: stageLogger}
}

// Prepare verifies the session's raw telemetry is on disk.
func (b *Builder) Prepare(ctx context.Context, session *store.Session) error {
	session.ErrorMessage = ""
	eventsPath := session.EventsPath(b.cfg.SessionsDir())
	if _, err := os.Stat(eventsPath); err != nil {
		return services.Wrap(services.ErrValidation, "building", "validate inputs", "Session telemetry file is missing", err)
	}
	return nil
}

// Execute derives stalls and quality segments from the session's events,
// resolves each referenced representation to its feature report, slices the
// per-frame statistics to each segment's range, and persists the assembled
// model input document.
func (b *Builder) Execute(ctx context.Context, session *store.Session) error {
	logger := logging.WithContext(ctx, b.logger)

	video, err := b.store.GetVideo(ctx, session.VideoID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "building", "load video", "Failed to load session video", err)
	}
	if video == nil {
		return services.Wrap(services.ErrNotFound, "building", "load video", fmt.Sprintf("Video %d not found", session.VideoID), nil)
	}
	if !video.FeaturesExtracted() {
		return services.Wrap(services.ErrValidation, "building", "check readiness", "Video features are not extracted yet", nil)
	}

	events, err := telemetry.Load(session.EventsPath(b.cfg.SessionsDir()))
	if err != nil {
		return services.Wrap(services.ErrValidation, "building", "load telemetry", "Failed to load session telemetry", err)
	}

	stalls := Stalls(events)
	segments := Segments(QualityMarkers(events))
	logger.Info("timeline reconstructed", logging.Int("stalls", len(stalls)-1), logging.Int("segments", len(segments)))

	input, err := b.assemble(video, segments, stalls)
	if err != nil {
		return err
	}

	data, err := json.Marshal(input)
	if err != nil {
		return services.Wrap(services.ErrTransient, "building", "encode input", "Failed to encode model input", err)
	}
	inputPath := session.InputPath(b.cfg.SessionsDir())
	if err := os.MkdirAll(filepath.Dir(inputPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "building", "prepare directories", "Failed to create session directory", err)
	}
	if err := fileutil.WriteFileAtomic(inputPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "building", "write input", "Failed to persist model input", err)
	}

	logger.Info("model input built", logging.String("path", inputPath), logging.Int("bytes", len(data)))
	return nil
}

// HealthCheck reports whether timeline building has what it needs to run.
func (b *Builder) HealthCheck(ctx context.Context) stage.Health {
	if err := os.MkdirAll(b.cfg.SessionsDir(), 0o755); err != nil {
		return stage.Unhealthy("builder", fmt.Sprintf("sessions dir unavailable: %v", err))
	}
	return stage.Healthy("builder")
}

// assemble builds the model input from reconstructed segments and stalls.
// Each distinct representation's report is loaded at most once. The audio
// and device blocks come from the first referenced report; with no segments
// they stay null and scoring is left to judge the degenerate document.
func (b *Builder) assemble(video *store.Video, segments []Segment, stalls []Stall) (*Input, error) {
	reportsDir := video.ReportsDir(b.cfg.VideosDir())
	reports := make(map[string]*FeatureReport)

	for _, segment := range segments {
		if _, loaded := reports[segment.RepresentationID]; loaded {
			continue
		}
		stem, ok := video.RepresentationRanks[segment.RepresentationID]
		if !ok {
			return nil, services.Wrap(
				services.ErrValidation,
				"building",
				"resolve representation",
				fmt.Sprintf("Representation %q has no ranked rendition", segment.RepresentationID),
				nil,
			)
		}
		report, err := LoadFeatureReport(filepath.Join(reportsDir, stem+".json"))
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "building", "load feature report", fmt.Sprintf("Feature report for %q unavailable", segment.RepresentationID), err)
		}
		reports[segment.RepresentationID] = report
	}

	input := &Input{
		I13: InputVideo{StreamID: inputStreamID, Segments: make([]InputSegment, 0, len(segments))},
		I23: InputStalling{StreamID: inputStreamID, Stalling: stalls},
	}
	for _, segment := range segments {
		source := reports[segment.RepresentationID].I13.Segments[0]
		input.I13.Segments = append(input.I13.Segments, InputSegment{
			Codec:      source.Codec,
			Start:      segment.Start,
			Duration:   segment.Duration(),
			Resolution: source.Resolution,
			Bitrate:    source.Bitrate,
			FPS:        source.FPS,
			Frames:     sliceFrames(source.Frames, segment.Start, segment.End, source.FPS),
		})
	}
	if len(segments) > 0 {
		first := reports[segments[0].RepresentationID]
		input.I11 = first.I11
		input.IGen = first.IGen
	}
	return input, nil
}

// sliceFrames returns the frame records covering [start, end) seconds at the
// given frame rate, clamped to the available range.
func sliceFrames(frames []json.RawMessage, start, end, fps float64) []json.RawMessage {
	lo := int(math.Round(start * fps))
	hi := int(math.Round(end * fps))
	if lo < 0 {
		lo = 0
	}
	if hi > len(frames) {
		hi = len(frames)
	}
	if lo >= hi {
		return []json.RawMessage{}
	}
	return frames[lo:hi]
}
