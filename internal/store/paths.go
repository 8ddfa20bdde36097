package store

import (
	"fmt"
	"path/filepath"
)

// Dir returns the per-video working directory rooted at the videos base.
// Renditions, the saved manifest, and feature reports all live under it.
func (v Video) Dir(base string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, fmt.Sprintf("%d", v.ID))
}

// ManifestPath returns where the fetched MPD document is saved.
func (v Video) ManifestPath(base string) string {
	return filepath.Join(v.Dir(base), fmt.Sprintf("%d.mpd", v.ID))
}

// ReportsDir returns where per-rendition feature reports are written.
func (v Video) ReportsDir(base string) string {
	return filepath.Join(v.Dir(base), "reports")
}

// Dir returns the per-session working directory rooted at the sessions base.
func (s Session) Dir(base string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, fmt.Sprintf("%d", s.ID))
}

// EventsPath returns where the raw telemetry events are persisted.
func (s Session) EventsPath(base string) string {
	return filepath.Join(s.Dir(base), fmt.Sprintf("%d-events.json", s.ID))
}

// InputPath returns where the assembled model input document is written.
// The file is removed once scoring succeeds.
func (s Session) InputPath(base string) string {
	return filepath.Join(s.Dir(base), fmt.Sprintf("%d-input.json", s.ID))
}

// ResultPath returns where the full model output is kept after scoring.
func (s Session) ResultPath(base string) string {
	return filepath.Join(s.Dir(base), fmt.Sprintf("%d-result.json", s.ID))
}
