package timeline

import (
	"testing"

	"qoed/internal/telemetry"
)

func TestStallsPairsOpenAndClose(t *testing.T) {
	events := []telemetry.Event{
		{Type: telemetry.TypePlaybackStarted, MediaTime: 0, ClockTime: 500, RepresentationID: "v0"},
		{Type: telemetry.TypeStallStart, MediaTime: 10, ClockTime: 1000},
		{Type: telemetry.TypeStallEnd, ClockTime: 3500},
	}

	stalls := Stalls(events)
	if len(stalls) != 2 {
		t.Fatalf("stalls = %v, want seed plus one entry", stalls)
	}
	if stalls[0] != (Stall{0, 0}) {
		t.Errorf("seed = %v, want [0 0]", stalls[0])
	}
	if stalls[1] != (Stall{10, 2.5}) {
		t.Errorf("stall = %v, want [10 2.5]", stalls[1])
	}
}

func TestStallsDropsUnreliableOpens(t *testing.T) {
	events := []telemetry.Event{
		// Opening stall at media time zero is startup buffering, not a stall.
		{Type: telemetry.TypeStallStart, MediaTime: 0, ClockTime: 1000},
		{Type: telemetry.TypeStallEnd, ClockTime: 2000},
		// Zero clock means the client never got a timestamp.
		{Type: telemetry.TypeStallStart, MediaTime: 5, ClockTime: 0},
		{Type: telemetry.TypeStallEnd, ClockTime: 9000},
	}

	stalls := Stalls(events)
	if len(stalls) != 1 {
		t.Fatalf("stalls = %v, want seed only", stalls)
	}
}

func TestStallsIgnoresTrailingOpen(t *testing.T) {
	events := []telemetry.Event{
		{Type: telemetry.TypeStallStart, MediaTime: 12, ClockTime: 4000},
	}
	stalls := Stalls(events)
	if len(stalls) != 1 {
		t.Fatalf("stalls = %v, want seed only", stalls)
	}
}

func TestStallsCloseWithoutOpen(t *testing.T) {
	events := []telemetry.Event{
		{Type: telemetry.TypeStallEnd, ClockTime: 4000},
	}
	stalls := Stalls(events)
	if len(stalls) != 1 {
		t.Fatalf("stalls = %v, want seed only", stalls)
	}
}

func TestQualityMarkersAndSegments(t *testing.T) {
	events := []telemetry.Event{
		{Type: telemetry.TypePlaybackStarted, MediaTime: 0, RepresentationID: "repA"},
		{Type: telemetry.TypeStallStart, MediaTime: 3, ClockTime: 1500},
		{Type: telemetry.TypeStallEnd, ClockTime: 2000},
		{Type: telemetry.TypeQualityChange, MediaTime: 5, RepresentationID: "repB"},
		{Type: telemetry.TypePlaybackEnded, MediaTime: 12},
	}

	markers := QualityMarkers(events)
	if len(markers) != 3 {
		t.Fatalf("markers = %v, want 3", markers)
	}
	if markers[2].RepresentationID != EndMarker {
		t.Errorf("final marker = %q, want end sentinel", markers[2].RepresentationID)
	}

	segments := Segments(markers)
	want := []Segment{
		{RepresentationID: "repA", Start: 0, End: 5},
		{RepresentationID: "repB", Start: 5, End: 12},
	}
	if len(segments) != len(want) {
		t.Fatalf("segments = %v, want %v", segments, want)
	}
	for i := range want {
		if segments[i] != want[i] {
			t.Errorf("segment %d = %v, want %v", i, segments[i], want[i])
		}
	}
	if segments[1].Duration() != 7 {
		t.Errorf("duration = %v, want 7", segments[1].Duration())
	}
}

func TestSegmentsRetainsZeroDuration(t *testing.T) {
	markers := []Marker{
		{RepresentationID: "repA", MediaTime: 4},
		{RepresentationID: "repB", MediaTime: 4},
		{RepresentationID: EndMarker, MediaTime: 9},
	}
	segments := Segments(markers)
	if len(segments) != 2 {
		t.Fatalf("segments = %v", segments)
	}
	if segments[0].Duration() != 0 {
		t.Errorf("expected zero-duration first segment, got %v", segments[0])
	}
}

func TestSegmentsFromTooFewMarkers(t *testing.T) {
	if got := Segments(nil); got != nil {
		t.Errorf("Segments(nil) = %v", got)
	}
	if got := Segments([]Marker{{RepresentationID: "repA"}}); got != nil {
		t.Errorf("single marker yielded %v", got)
	}
}
