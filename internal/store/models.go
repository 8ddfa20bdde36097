package store

import (
	"strings"
	"time"
)

// VideoStatus represents the lifecycle of a registered manifest.
type VideoStatus string

const (
	VideoPending    VideoStatus = "pending"
	VideoAcquiring  VideoStatus = "acquiring"
	VideoDownloaded VideoStatus = "downloaded"
	VideoExtracting VideoStatus = "extracting"
	VideoExtracted  VideoStatus = "extracted"
	VideoFailed     VideoStatus = "failed"
)

// SessionStatus represents the lifecycle of a submitted playback session.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionBuilding  SessionStatus = "building"
	SessionPrepared  SessionStatus = "prepared"
	SessionScoring   SessionStatus = "scoring"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

var allVideoStatuses = []VideoStatus{
	VideoPending,
	VideoAcquiring,
	VideoDownloaded,
	VideoExtracting,
	VideoExtracted,
	VideoFailed,
}

var allSessionStatuses = []SessionStatus{
	SessionWaiting,
	SessionBuilding,
	SessionPrepared,
	SessionScoring,
	SessionCompleted,
	SessionFailed,
}

var processingVideoStatuses = map[VideoStatus]struct{}{
	VideoAcquiring:  {},
	VideoExtracting: {},
}

var processingSessionStatuses = map[SessionStatus]struct{}{
	SessionBuilding: {},
	SessionScoring:  {},
}

// Video is a registered MPD manifest persisted in SQLite.
type Video struct {
	ID           int64
	ManifestURL  string
	Status       VideoStatus
	// RepresentationRanks maps a manifest representation id to the
	// "{videoID}-{rank}" file stem assigned during acquisition. Empty until
	// the renditions have been downloaded.
	RepresentationRanks map[string]string
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Session is a submitted playback session persisted in SQLite.
type Session struct {
	ID           int64
	VideoID      int64
	Status       SessionStatus
	CPUOwned     bool
	Result       *ScoreSummary
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScoreSummary holds the headline scores produced by the quality model.
type ScoreSummary struct {
	O23 float64 `json:"O23"`
	O35 float64 `json:"O35"`
	O46 float64 `json:"O46"`
}

// HealthSummary describes aggregated counts per key lifecycle states.
type HealthSummary struct {
	Videos     int
	Sessions   int
	Processing int
	Waiting    int
	Completed  int
	Failed     int
}

// AllVideoStatuses returns the ordered list of known video statuses.
func AllVideoStatuses() []VideoStatus {
	cp := make([]VideoStatus, len(allVideoStatuses))
	copy(cp, allVideoStatuses)
	return cp
}

// AllSessionStatuses returns the ordered list of known session statuses.
func AllSessionStatuses() []SessionStatus {
	cp := make([]SessionStatus, len(allSessionStatuses))
	copy(cp, allSessionStatuses)
	return cp
}

// ParseVideoStatus converts a string into a known VideoStatus.
func ParseVideoStatus(value string) (VideoStatus, bool) {
	normalized := VideoStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allVideoStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ParseSessionStatus converts a string into a known SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, bool) {
	normalized := SessionStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allSessionStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Downloaded reports whether every referenced rendition is on disk.
func (v Video) Downloaded() bool {
	switch v.Status {
	case VideoDownloaded, VideoExtracting, VideoExtracted:
		return true
	default:
		return false
	}
}

// FeaturesExtracted reports whether per-rendition feature reports exist.
func (v Video) FeaturesExtracted() bool {
	return v.Status == VideoExtracted
}

// IsProcessing returns true when the video is mid-stage.
func (v Video) IsProcessing() bool {
	_, ok := processingVideoStatuses[v.Status]
	return ok
}

// SetFailed marks the video as failed with the given error message.
func (v *Video) SetFailed(message string) {
	v.Status = VideoFailed
	v.ErrorMessage = message
}

// InputBuilt reports whether the model input document has been assembled.
func (s Session) InputBuilt() bool {
	switch s.Status {
	case SessionPrepared, SessionScoring, SessionCompleted:
		return true
	default:
		return false
	}
}

// ResultReady reports whether scoring finished and a summary is available.
func (s Session) ResultReady() bool {
	return s.Status == SessionCompleted && s.Result != nil
}

// IsProcessing returns true when the session is mid-stage.
func (s Session) IsProcessing() bool {
	_, ok := processingSessionStatuses[s.Status]
	return ok
}

// SetFailed marks the session as failed with the given error message.
func (s *Session) SetFailed(message string) {
	s.Status = SessionFailed
	s.ErrorMessage = message
}
