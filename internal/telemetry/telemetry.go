// Package telemetry models the playback events reported by dash.js clients
// and persists them alongside the session they belong to.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// Event types reported by the player. Clients emit them in wall-clock order;
// nothing downstream assumes the stream is well formed beyond that.
const (
	TypePlaybackStarted = "playback_started"
	TypePlaybackEnded   = "playback_ended"
	TypeQualityChange   = "quality_change"
	TypeStallStart      = "stall_ini"
	TypeStallEnd        = "stall_end"
)

// Event is a single timestamped playback observation.
//
// MediaTime is the playhead position in seconds. ClockTime is the client's
// wall clock in milliseconds since epoch. RepresentationID names the manifest
// representation active when the event fired and is only meaningful for
// playback_started and quality_change events.
type Event struct {
	Type             string  `json:"type"`
	MediaTime        float64 `json:"media_time"`
	ClockTime        float64 `json:"clock_time"`
	RepresentationID string  `json:"current_rep_id,omitempty"`
}

// Validate checks that an event carries a type. The type set is open: players
// emit more event kinds than timeline reconstruction consumes, and unknown
// types are persisted verbatim and ignored downstream.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("event has no type")
	}
	return nil
}

// Save writes the event list to path, creating parent directories as needed.
func Save(path string, events []Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create events dir: %w", err)
	}
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// Load reads a persisted event list from path.
func Load(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	return events, nil
}
