package api

import "qoed/internal/telemetry"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ManifestRequest registers a DASH manifest for acquisition.
type ManifestRequest struct {
	ManifestURL string `json:"mpd_url"`
}

// ManifestResponse reports the outcome of a manifest registration.
type ManifestResponse struct {
	VideoID int64  `json:"video_id"`
	Created bool   `json:"created"`
	Status  string `json:"status"`
}

// TelemetryRequest submits a playback session's raw events.
type TelemetryRequest struct {
	ManifestURL string            `json:"mpd_url"`
	Events      []telemetry.Event `json:"metrics"`
}

// TelemetryResponse returns the session id assigned to a submission.
type TelemetryResponse struct {
	SessionID int64 `json:"metric_id"`
}

// ResultRequest queries a session's score.
type ResultRequest struct {
	SessionID int64 `json:"metric_id"`
}

// ScoreResult carries the three-score summary of a completed session.
type ScoreResult struct {
	O23 float64 `json:"O23"`
	O35 float64 `json:"O35"`
	O46 float64 `json:"O46"`
}

// ResultResponse reports whether a session's score is ready. Result is null
// until then; Status surfaces pipeline failures that would otherwise leave
// the caller polling forever.
type ResultResponse struct {
	SessionID int64        `json:"metric_id"`
	Ready     bool         `json:"is_result_ready"`
	Result    *ScoreResult `json:"result"`
	Status    string       `json:"status"`
	Error     string       `json:"error,omitempty"`
}

// Video describes a registered manifest in a transport-friendly format.
type Video struct {
	ID                  int64             `json:"id"`
	ManifestURL         string            `json:"manifestUrl"`
	Status              string            `json:"status"`
	RepresentationRanks map[string]string `json:"representationRanks,omitempty"`
	ErrorMessage        string            `json:"errorMessage,omitempty"`
	CreatedAt           string            `json:"createdAt,omitempty"`
	UpdatedAt           string            `json:"updatedAt,omitempty"`
}

// Session describes a playback session in a transport-friendly format.
type Session struct {
	ID           int64        `json:"id"`
	VideoID      int64        `json:"videoId"`
	Status       string       `json:"status"`
	CPUOwned     bool         `json:"cpuOwned"`
	Result       *ScoreResult `json:"result,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	CreatedAt    string       `json:"createdAt,omitempty"`
	UpdatedAt    string       `json:"updatedAt,omitempty"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running      bool           `json:"running"`
	VideoStats   map[string]int `json:"videoStats"`
	SessionStats map[string]int `json:"sessionStats"`
	LastError    string         `json:"lastError,omitempty"`
	StageHealth  []StageHealth  `json:"stageHealth"`
}

// DependencyStatus reports availability of an external tool binary.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StateDBPath  string             `json:"stateDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// QueueResponse lists the pipeline's videos and sessions.
type QueueResponse struct {
	Videos   []Video   `json:"videos"`
	Sessions []Session `json:"sessions"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
