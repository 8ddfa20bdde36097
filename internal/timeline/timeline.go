// Package timeline reconstructs a playback timeline from raw client
// telemetry and assembles the quality model's input document from it.
package timeline

import (
	"qoed/internal/telemetry"
)

// EndMarker is the sentinel representation id emitted for playback_ended
// events. It terminates the final segment and never resolves to a rendition.
const EndMarker = "end"

// Stall is a (media time, duration seconds) pair.
type Stall [2]float64

// Marker is a point on the media timeline where the active representation
// changed.
type Marker struct {
	RepresentationID string
	MediaTime        float64
}

// Segment is a span of playback attributed to one representation.
type Segment struct {
	RepresentationID string
	Start            float64
	End              float64
}

// Duration returns the media time covered by the segment.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Stalls derives the stall list from raw events. A stall_ini opens a pending
// stall; the next stall_end closes it with duration (endClock-startClock)/1000
// seconds. Openings with a zero media time or zero clock time are dropped as
// unreliable, as are trailing opens that never close. The list is seeded with
// a synthetic [0,0] entry the scoring model needs to keep its timestamp
// origin anchored.
func Stalls(events []telemetry.Event) []Stall {
	stalls := []Stall{{0, 0}}
	var (
		pending    bool
		mediaTime  float64
		startClock float64
	)
	for _, event := range events {
		switch event.Type {
		case telemetry.TypeStallStart:
			mediaTime = event.MediaTime
			startClock = event.ClockTime
			pending = true
		case telemetry.TypeStallEnd:
			if !pending {
				continue
			}
			pending = false
			duration := (event.ClockTime - startClock) / 1000
			if mediaTime != 0 && startClock != 0 {
				stalls = append(stalls, Stall{mediaTime, duration})
			}
		}
	}
	return stalls
}

// QualityMarkers derives representation change markers from raw events.
// playback_started and quality_change emit the active representation;
// playback_ended emits the end sentinel.
func QualityMarkers(events []telemetry.Event) []Marker {
	var markers []Marker
	for _, event := range events {
		switch event.Type {
		case telemetry.TypePlaybackStarted, telemetry.TypeQualityChange:
			markers = append(markers, Marker{RepresentationID: event.RepresentationID, MediaTime: event.MediaTime})
		case telemetry.TypePlaybackEnded:
			markers = append(markers, Marker{RepresentationID: EndMarker, MediaTime: event.MediaTime})
		}
	}
	return markers
}

// Segments pairs consecutive markers into playback segments. Marker i spans
// [marker[i].MediaTime, marker[i+1].MediaTime) under marker i's
// representation; the final marker terminates the last segment and
// contributes none of its own. Zero-duration segments are retained; the
// frame slicing step naturally produces empty slices for them.
func Segments(markers []Marker) []Segment {
	var segments []Segment
	for i := 0; i+1 < len(markers); i++ {
		segments = append(segments, Segment{
			RepresentationID: markers[i].RepresentationID,
			Start:            markers[i].MediaTime,
			End:              markers[i+1].MediaTime,
		})
	}
	return segments
}
