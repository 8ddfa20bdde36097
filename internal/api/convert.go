package api

import (
	"qoed/internal/deps"
	"qoed/internal/store"
	"qoed/internal/workflow"
)

// FromVideo converts a video record to its API representation.
func FromVideo(video *store.Video) Video {
	if video == nil {
		return Video{}
	}
	dto := Video{
		ID:                  video.ID,
		ManifestURL:         video.ManifestURL,
		Status:              string(video.Status),
		RepresentationRanks: video.RepresentationRanks,
		ErrorMessage:        video.ErrorMessage,
	}
	if !video.CreatedAt.IsZero() {
		dto.CreatedAt = video.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !video.UpdatedAt.IsZero() {
		dto.UpdatedAt = video.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromSession converts a session record to its API representation.
func FromSession(session *store.Session) Session {
	if session == nil {
		return Session{}
	}
	dto := Session{
		ID:           session.ID,
		VideoID:      session.VideoID,
		Status:       string(session.Status),
		CPUOwned:     session.CPUOwned,
		ErrorMessage: session.ErrorMessage,
	}
	if session.Result != nil {
		dto.Result = &ScoreResult{O23: session.Result.O23, O35: session.Result.O35, O46: session.Result.O46}
	}
	if !session.CreatedAt.IsZero() {
		dto.CreatedAt = session.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !session.UpdatedAt.IsZero() {
		dto.UpdatedAt = session.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromResult builds the poll response for a session. A missing session maps
// to a not-ready answer rather than an error so clients can poll before the
// pipeline has caught up.
func FromResult(sessionID int64, session *store.Session) ResultResponse {
	resp := ResultResponse{SessionID: sessionID}
	if session == nil {
		resp.Status = "unknown"
		return resp
	}
	resp.Status = string(session.Status)
	resp.Error = session.ErrorMessage
	if session.ResultReady() {
		resp.Ready = true
		resp.Result = &ScoreResult{O23: session.Result.O23, O35: session.Result.O35, O46: session.Result.O46}
	}
	return resp
}

// FromDependencies converts tool availability checks into their API
// representation.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:      status.Name,
			Command:   status.Command,
			Available: status.Available,
			Detail:    status.Detail,
		})
	}
	return out
}

// FromStatusSummary converts workflow status into its API representation.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:      summary.Running,
		LastError:    summary.LastError,
		VideoStats:   make(map[string]int, len(summary.VideoStats)),
		SessionStats: make(map[string]int, len(summary.SessionStats)),
	}
	for key, count := range summary.VideoStats {
		status.VideoStats[string(key)] = count
	}
	for key, count := range summary.SessionStats {
		status.SessionStats[string(key)] = count
	}
	for _, health := range summary.StageHealth {
		status.StageHealth = append(status.StageHealth, StageHealth{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	return status
}
