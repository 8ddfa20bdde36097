package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qoed/internal/logging"
	"qoed/internal/services"
	"qoed/internal/stage"
	"qoed/internal/store"
)

type videoStage struct {
	name             string
	handler          stage.VideoHandler
	startStatus      store.VideoStatus
	processingStatus store.VideoStatus
	doneStatus       store.VideoStatus
}

func (m *Manager) videoStages() []videoStage {
	return []videoStage{
		{
			name:             "acquiring",
			handler:          m.stages.Acquirer,
			startStatus:      store.VideoPending,
			processingStatus: store.VideoAcquiring,
			doneStatus:       store.VideoDownloaded,
		},
		{
			name:             "extracting",
			handler:          m.stages.Extractor,
			startStatus:      store.VideoDownloaded,
			processingStatus: store.VideoExtracting,
			doneStatus:       store.VideoExtracted,
		},
	}
}

func (m *Manager) runVideoLane(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("lane", "video"))

	stages := m.videoStages()
	stageByStart := make(map[store.VideoStatus]videoStage, len(stages))
	startStatuses := make([]store.VideoStatus, 0, len(stages))
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		startStatuses = append(startStatuses, stg.startStatus)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		video, err := m.store.NextVideoForStatuses(ctx, startStatuses...)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to fetch next video", logging.Error(err))
			m.backoff(ctx)
			continue
		}
		if video == nil {
			m.waitForWork(ctx)
			continue
		}

		stg := stageByStart[video.Status]
		if err := m.processVideo(ctx, logger, stg, video); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) processVideo(ctx context.Context, laneLogger *slog.Logger, stg videoStage, video *store.Video) error {
	stageCtx := services.WithVideoID(ctx, video.ID)
	stageCtx = services.WithStage(stageCtx, stg.name)
	stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
	logger := logging.WithContext(stageCtx, laneLogger)

	video.Status = stg.processingStatus
	video.ErrorMessage = ""
	if err := m.store.UpdateVideo(stageCtx, video); err != nil {
		m.setLastError(err)
		logger.Error("failed to transition video to processing", logging.Error(err))
		return err
	}

	start := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := stg.handler.Prepare(stageCtx, video); err != nil {
		m.failVideo(stageCtx, logger, video, err)
		return err
	}
	if err := m.store.UpdateVideo(stageCtx, video); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist stage preparation", logging.Error(err))
		return err
	}

	if err := stg.handler.Execute(stageCtx, video); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return err
		}
		m.failVideo(stageCtx, logger, video, err)
		return err
	}

	video.Status = stg.doneStatus
	if err := m.store.UpdateVideo(stageCtx, video); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist stage result", logging.Error(err))
		return err
	}

	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(video.Status)),
		logging.Duration("stage_duration", time.Since(start)),
	)
	m.Kick()
	return nil
}

func (m *Manager) failVideo(ctx context.Context, logger *slog.Logger, video *store.Video, stageErr error) {
	m.setLastError(stageErr)
	video.SetFailed(stageErr.Error())
	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Bool("permanent", services.IsPermanent(stageErr)),
		logging.Error(stageErr),
	)
	if err := m.store.UpdateVideo(ctx, video); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist video failure")
			return
		}
		logger.Error("failed to persist video failure", logging.Error(err))
	}
}
