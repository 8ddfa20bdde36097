package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"qoed/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "stopped", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] stopped")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderStatusLines(t *testing.T) {
	status := api.DaemonStatus{
		Running:     true,
		PID:         1234,
		StateDBPath: "/tmp/qoed.db",
		Workflow: api.WorkflowStatus{
			Running:   true,
			LastError: "score playback session: boom",
			StageHealth: []api.StageHealth{
				{Name: "acquire", Ready: true, Detail: "ready"},
				{Name: "score", Ready: false, Detail: "model missing"},
			},
			VideoStats:   map[string]int{"pending": 2, "extracted": 1},
			SessionStats: map[string]int{"waiting": 1},
		},
		Dependencies: []api.DependencyStatus{
			{Name: "yt-dlp", Command: "yt-dlp", Available: true},
			{Name: "scorer", Command: "p1203-standalone", Detail: `binary "p1203-standalone" not found`},
		},
	}

	lines := renderStatusLines(status, false)
	joined := strings.Join(lines, "\n")

	for _, want := range []string{
		"pid 1234",
		"[OK] running",
		"[ERROR] score playback session: boom",
		"[OK] ready",
		"[ERROR] model missing",
		"pending",
		"extracted",
		"waiting",
		"[OK] yt-dlp",
		`binary "p1203-standalone" not found`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("status output missing %q:\n%s", want, joined)
		}
	}
}

func TestRenderStatsTableEmpty(t *testing.T) {
	if got := renderStatsTable("Videos", nil); got != "" {
		t.Fatalf("expected empty output for empty stats, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
