package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"qoed/internal/config"
	"qoed/internal/logging"
	"qoed/internal/stage"
	"qoed/internal/store"
)

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Acquirer  stage.VideoHandler
	Extractor stage.VideoHandler
	Builder   stage.SessionHandler
	Scorer    stage.SessionHandler
}

// Manager coordinates the video and session lanes.
type Manager struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	stages StageSet

	pollInterval time.Duration
	retryWait    time.Duration

	kick chan struct{}

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, stages StageSet) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		logger:       logger.With(logging.String("component", "workflow")),
		stages:       stages,
		pollInterval: cfg.QueuePollInterval(),
		retryWait:    cfg.ErrorRetryInterval(),
		kick:         make(chan struct{}, 1),
	}
}

// Start begins background processing. Any work left mid-stage by a previous
// run is rolled back to a resumable status first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.stages.Acquirer == nil || m.stages.Extractor == nil || m.stages.Builder == nil || m.stages.Scorer == nil {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	if recovered, err := m.store.RecoverInFlight(runCtx); err != nil {
		m.logger.Error("startup recovery failed", logging.Error(err))
	} else if recovered > 0 {
		m.logger.Info("recovered in-flight work", logging.Int64("rows", recovered))
	}

	go m.runVideoLane(runCtx)
	go m.runSessionLane(runCtx)
	return nil
}

// Stop terminates background processing and waits for the lanes to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the lanes are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Kick wakes the lanes without waiting for the next poll tick. Used by the
// submission paths so fresh work starts immediately.
func (m *Manager) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// LastError returns the most recent lane error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// Health runs every stage's health check and reports the aggregate.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := []stage.Health{
		m.stages.Acquirer.HealthCheck(ctx),
		m.stages.Extractor.HealthCheck(ctx),
		m.stages.Builder.HealthCheck(ctx),
		m.stages.Scorer.HealthCheck(ctx),
	}
	return checks
}

// waitForWork blocks until a kick arrives, the poll interval elapses, or the
// context is cancelled.
func (m *Manager) waitForWork(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.kick:
	case <-time.After(m.pollInterval):
	}
}

// backoff blocks after a lane error so a persistent fault does not spin.
func (m *Manager) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.retryWait):
	}
}
