package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qoed/internal/logging"
	"qoed/internal/services"
	"qoed/internal/stage"
	"qoed/internal/store"
)

type sessionStage struct {
	name             string
	handler          stage.SessionHandler
	processingStatus store.SessionStatus
	doneStatus       store.SessionStatus
}

func (m *Manager) buildStage() sessionStage {
	return sessionStage{
		name:             "building",
		handler:          m.stages.Builder,
		processingStatus: store.SessionBuilding,
		doneStatus:       store.SessionPrepared,
	}
}

func (m *Manager) scoreStage() sessionStage {
	return sessionStage{
		name:             "scoring",
		handler:          m.stages.Scorer,
		processingStatus: store.SessionScoring,
		doneStatus:       store.SessionCompleted,
	}
}

// runSessionLane drains prepared sessions first so the CPU gate is released
// as soon as possible, then admits at most one waiting session into the
// building stage.
func (m *Manager) runSessionLane(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("lane", "session"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		progressed, err := m.scorePrepared(ctx, logger)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.backoff(ctx)
			continue
		}
		if progressed {
			continue
		}

		progressed, err = m.admitWaiting(ctx, logger)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.backoff(ctx)
			continue
		}
		if !progressed {
			m.waitForWork(ctx)
		}
	}
}

// scorePrepared runs the scoring stage on the oldest prepared session.
func (m *Manager) scorePrepared(ctx context.Context, logger *slog.Logger) (bool, error) {
	session, err := m.store.NextSessionForStatuses(ctx, store.SessionPrepared)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to fetch next prepared session", logging.Error(err))
		return false, err
	}
	if session == nil {
		return false, nil
	}
	err = m.processSession(ctx, logger, m.scoreStage(), session)
	if errors.Is(err, context.Canceled) {
		return false, err
	}
	return true, nil
}

// admitWaiting scans waiting sessions in order and starts building the first
// one whose video is ready, provided the CPU gate can be claimed. Sessions
// whose video failed, or which have waited longer than the configured bound,
// are failed instead of polling forever.
func (m *Manager) admitWaiting(ctx context.Context, logger *slog.Logger) (bool, error) {
	sessions, err := m.store.ListSessions(ctx, store.SessionWaiting)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to list waiting sessions", logging.Error(err))
		return false, err
	}

	maxWait := m.cfg.BuildWaitTimeout()
	for _, session := range sessions {
		video, err := m.store.GetVideo(ctx, session.VideoID)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to load session video", logging.Error(err))
			return false, err
		}

		switch {
		case video == nil:
			m.failSession(ctx, logger, session, services.Wrap(services.ErrNotFound, "building", "load video", fmt.Sprintf("Video %d not found", session.VideoID), nil))
			return true, nil
		case video.Status == store.VideoFailed:
			m.failSession(ctx, logger, session, services.Wrap(services.ErrValidation, "building", "check readiness", "Video pipeline failed; session cannot be built", nil))
			return true, nil
		case maxWait > 0 && time.Since(session.CreatedAt) > maxWait:
			m.failSession(ctx, logger, session, services.Wrap(services.ErrTimeout, "building", "check readiness", fmt.Sprintf("Video not ready after %s", maxWait), nil))
			return true, nil
		case !video.FeaturesExtracted():
			continue
		}

		claimed, err := m.store.ClaimCPU(ctx, session.ID)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to claim cpu gate", logging.Error(err))
			return false, err
		}
		if !claimed {
			// Another session holds the gate; try again on the next tick.
			return false, nil
		}

		err = m.processSession(ctx, logger, m.buildStage(), session)
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		if err != nil {
			// Store write failures inside processSession return without going
			// through failSession, which is the path that normally drops the
			// claim. Release here so a session stuck in waiting can never hold
			// the gate; releasing after failSession already did is a no-op.
			if releaseErr := m.store.ReleaseCPU(ctx, session.ID); releaseErr != nil {
				logger.Error("failed to release cpu gate", logging.Error(releaseErr))
			}
		}
		return true, nil
	}
	return false, nil
}

func (m *Manager) processSession(ctx context.Context, laneLogger *slog.Logger, stg sessionStage, session *store.Session) error {
	stageCtx := services.WithSessionID(ctx, session.ID)
	stageCtx = services.WithVideoID(stageCtx, session.VideoID)
	stageCtx = services.WithStage(stageCtx, stg.name)
	stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
	logger := logging.WithContext(stageCtx, laneLogger)

	session.Status = stg.processingStatus
	session.ErrorMessage = ""
	if err := m.store.UpdateSession(stageCtx, session); err != nil {
		m.setLastError(err)
		logger.Error("failed to transition session to processing", logging.Error(err))
		return err
	}

	start := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := stg.handler.Prepare(stageCtx, session); err != nil {
		m.failSession(stageCtx, logger, session, err)
		return err
	}
	if err := m.store.UpdateSession(stageCtx, session); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist stage preparation", logging.Error(err))
		return err
	}

	if err := stg.handler.Execute(stageCtx, session); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return err
		}
		m.failSession(stageCtx, logger, session, err)
		return err
	}

	session.Status = stg.doneStatus
	if err := m.store.UpdateSession(stageCtx, session); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist stage result", logging.Error(err))
		return err
	}

	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(session.Status)),
		logging.Duration("stage_duration", time.Since(start)),
	)
	m.Kick()
	return nil
}

// failSession persists a session failure and releases any CPU claim it
// holds. Without the release a failed build would hold the gate forever.
func (m *Manager) failSession(ctx context.Context, logger *slog.Logger, session *store.Session, stageErr error) {
	m.setLastError(stageErr)
	session.SetFailed(stageErr.Error())
	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Int64(logging.FieldSessionID, session.ID),
		logging.Bool("permanent", services.IsPermanent(stageErr)),
		logging.Error(stageErr),
	)
	if err := m.store.UpdateSession(ctx, session); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist session failure")
		} else {
			logger.Error("failed to persist session failure", logging.Error(err))
		}
	}
	if err := m.store.ReleaseCPU(ctx, session.ID); err != nil {
		logger.Error("failed to release cpu gate after failure", logging.Error(err))
	}
}
