package timeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"qoed/internal/logging"
	"qoed/internal/services"
	"qoed/internal/store"
	"qoed/internal/telemetry"
	"qoed/internal/testsupport"
)

func frameFixture(count int) []json.RawMessage {
	frames := make([]json.RawMessage, count)
	for i := range frames {
		frames[i] = json.RawMessage(fmt.Sprintf(`{"frameType":"P","size":%d}`, 1000+i))
	}
	return frames
}

func writeReportFixture(t *testing.T, path string, fps float64, frames int, resolution string) {
	t.Helper()
	report := FeatureReport{
		I11:  json.RawMessage(`{"segments":[{"bitrate":128,"codec":"aac"}],"streamId":42}`),
		IGen: json.RawMessage(`{"device":"pc","displaySize":"1920x1080"}`),
		I13: ReportVideo{
			StreamID: json.RawMessage(`42`),
			Segments: []ReportSegment{{
				Codec:      "h264",
				Resolution: resolution,
				Bitrate:    json.RawMessage(`"1600000"`),
				FPS:        fps,
				Frames:     frameFixture(frames),
			}},
		},
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, path, data)
}

func TestBuilderExecuteAssemblesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	video.Status = store.VideoExtracted
	video.RepresentationRanks = map[string]string{
		"video=1600000": "0-1",
		"video=800000":  "0-2",
	}
	if err := st.UpdateVideo(ctx, video); err != nil {
		t.Fatal(err)
	}

	reportsDir := video.ReportsDir(cfg.VideosDir())
	writeReportFixture(t, filepath.Join(reportsDir, "0-1.json"), 30, 400, "1920x1080")
	writeReportFixture(t, filepath.Join(reportsDir, "0-2.json"), 30, 400, "1280x720")

	session := testsupport.NewSession(t, st, video.ID)
	events := []telemetry.Event{
		{Type: telemetry.TypePlaybackStarted, MediaTime: 0, ClockTime: 1000, RepresentationID: "video=1600000"},
		{Type: telemetry.TypeStallStart, MediaTime: 5, ClockTime: 6000},
		{Type: telemetry.TypeStallEnd, ClockTime: 7500},
		{Type: telemetry.TypeQualityChange, MediaTime: 5, RepresentationID: "video=800000"},
		{Type: telemetry.TypePlaybackEnded, MediaTime: 12},
	}
	if err := telemetry.Save(session.EventsPath(cfg.SessionsDir()), events); err != nil {
		t.Fatal(err)
	}

	builder := NewBuilder(cfg, st, logging.NewNop())
	if err := builder.Prepare(ctx, session); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := builder.Execute(ctx, session); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(session.InputPath(cfg.SessionsDir()))
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	var input Input
	if err := json.Unmarshal(data, &input); err != nil {
		t.Fatalf("parse input: %v", err)
	}

	if input.I13.StreamID != 42 || input.I23.StreamID != 42 {
		t.Errorf("stream ids = %d/%d, want 42", input.I13.StreamID, input.I23.StreamID)
	}
	if len(input.I23.Stalling) != 2 {
		t.Fatalf("stalling = %v, want seed plus one", input.I23.Stalling)
	}
	if input.I23.Stalling[1] != (Stall{5, 1.5}) {
		t.Errorf("stall = %v, want [5 1.5]", input.I23.Stalling[1])
	}
	if len(input.I13.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(input.I13.Segments))
	}

	first := input.I13.Segments[0]
	if first.Start != 0 || first.Duration != 5 || first.Resolution != "1920x1080" {
		t.Errorf("first segment = %+v", first)
	}
	// [0s, 5s) at 30 fps covers frames [0, 150).
	if len(first.Frames) != 150 {
		t.Errorf("first segment frames = %d, want 150", len(first.Frames))
	}

	second := input.I13.Segments[1]
	if second.Start != 5 || second.Duration != 7 || second.Resolution != "1280x720" {
		t.Errorf("second segment = %+v", second)
	}
	if len(second.Frames) != 210 {
		t.Errorf("second segment frames = %d, want 210", len(second.Frames))
	}
	if string(second.Bitrate) != `"1600000"` {
		t.Errorf("bitrate passthrough = %s", second.Bitrate)
	}
	if input.I11 == nil || input.IGen == nil {
		t.Error("audio and device blocks were not carried from the report")
	}
}

func TestBuilderExecuteNoMarkers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	video.Status = store.VideoExtracted
	video.RepresentationRanks = map[string]string{"video=800000": "0-1"}
	if err := st.UpdateVideo(ctx, video); err != nil {
		t.Fatal(err)
	}

	session := testsupport.NewSession(t, st, video.ID)
	if err := telemetry.Save(session.EventsPath(cfg.SessionsDir()), []telemetry.Event{}); err != nil {
		t.Fatal(err)
	}

	builder := NewBuilder(cfg, st, logging.NewNop())
	if err := builder.Execute(ctx, session); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(session.InputPath(cfg.SessionsDir()))
	if err != nil {
		t.Fatal(err)
	}
	var input Input
	if err := json.Unmarshal(data, &input); err != nil {
		t.Fatal(err)
	}
	if len(input.I13.Segments) != 0 {
		t.Errorf("segments = %v, want none", input.I13.Segments)
	}
	if len(input.I23.Stalling) != 1 {
		t.Errorf("stalling = %v, want seed only", input.I23.Stalling)
	}
	if input.I11 != nil || input.IGen != nil {
		t.Error("expected null audio and device blocks with no segments")
	}
}

func TestBuilderExecuteUnresolvableRepresentation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	video.Status = store.VideoExtracted
	video.RepresentationRanks = map[string]string{"video=800000": "0-1"}
	if err := st.UpdateVideo(ctx, video); err != nil {
		t.Fatal(err)
	}

	session := testsupport.NewSession(t, st, video.ID)
	events := []telemetry.Event{
		{Type: telemetry.TypePlaybackStarted, MediaTime: 0, ClockTime: 1000, RepresentationID: "video=999999"},
		{Type: telemetry.TypePlaybackEnded, MediaTime: 10},
	}
	if err := telemetry.Save(session.EventsPath(cfg.SessionsDir()), events); err != nil {
		t.Fatal(err)
	}

	builder := NewBuilder(cfg, st, logging.NewNop())
	err := builder.Execute(ctx, session)
	if err == nil {
		t.Fatal("expected error for unresolvable representation")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestBuilderExecuteBeforeExtraction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	session := testsupport.NewSession(t, st, video.ID)

	builder := NewBuilder(cfg, st, logging.NewNop())
	err := builder.Execute(context.Background(), session)
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestSliceFramesClamps(t *testing.T) {
	frames := frameFixture(100)

	if got := sliceFrames(frames, 0, 2, 30); len(got) != 60 {
		t.Errorf("[0,2)@30 = %d frames, want 60", len(got))
	}
	// Range past the end clamps to the available frames.
	if got := sliceFrames(frames, 3, 10, 30); len(got) != 10 {
		t.Errorf("[3,10)@30 over 100 frames = %d, want 10", len(got))
	}
	// Fully out of range yields an empty, non-nil slice.
	got := sliceFrames(frames, 10, 20, 30)
	if got == nil || len(got) != 0 {
		t.Errorf("out-of-range slice = %v", got)
	}
	if got := sliceFrames(frames, 2, 2, 30); len(got) != 0 {
		t.Errorf("zero-duration slice = %d frames, want 0", len(got))
	}
}
