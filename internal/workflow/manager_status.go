package workflow

import (
	"context"

	"qoed/internal/stage"
	"qoed/internal/store"
)

// StatusSummary aggregates workflow state for status reporting.
type StatusSummary struct {
	Running      bool
	VideoStats   map[store.VideoStatus]int
	SessionStats map[store.SessionStatus]int
	StageHealth  []stage.Health
	LastError    string
}

// StatusSummary captures current workflow state, stage health, and item
// counts per status.
func (m *Manager) StatusSummary(ctx context.Context) StatusSummary {
	summary := StatusSummary{Running: m.Running()}
	if err := m.LastError(); err != nil {
		summary.LastError = err.Error()
	}
	if videoStats, err := m.store.VideoStats(ctx); err == nil {
		summary.VideoStats = videoStats
	}
	if sessionStats, err := m.store.SessionStats(ctx); err == nil {
		summary.SessionStats = sessionStats
	}
	summary.StageHealth = m.Health(ctx)
	return summary
}
