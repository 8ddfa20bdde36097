package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Error("exists = true for a missing file")
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Tools.Downloader != defaultDownloaderBinary {
		t.Errorf("downloader = %q, want default", cfg.Tools.Downloader)
	}
	if cfg.Paths.APIBind != defaultAPIBind {
		t.Errorf("api bind = %q, want default", cfg.Paths.APIBind)
	}
	if cfg.Workflow.ExtractParallelism != defaultExtractParallelism {
		t.Errorf("extract parallelism = %d, want default", cfg.Workflow.ExtractParallelism)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = " 127.0.0.1:9000 "

[tools]
downloader = "  /opt/yt-dlp  "

[workflow]
queue_poll_interval = 7

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("exists = false for an existing file")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Errorf("api bind = %q, want trimmed value", cfg.Paths.APIBind)
	}
	if cfg.Tools.Downloader != "/opt/yt-dlp" {
		t.Errorf("downloader = %q, want trimmed override", cfg.Tools.Downloader)
	}
	if cfg.Workflow.QueuePollInterval != 7 {
		t.Errorf("queue_poll_interval = %d, want 7", cfg.Workflow.QueuePollInterval)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %q, want lowercased", cfg.Logging.Format)
	}
	// Unset sections keep their defaults.
	if cfg.Tools.Scorer != defaultScorerBinary {
		t.Errorf("scorer = %q, want default", cfg.Tools.Scorer)
	}
	if cfg.Workflow.ErrorRetryInterval != defaultErrorRetryInterval {
		t.Errorf("error_retry_interval = %d, want default", cfg.Workflow.ErrorRetryInterval)
	}
}

func TestLoadRejectsInvalidWorkflowValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[workflow]
queue_poll_interval = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "queue_poll_interval") {
		t.Fatalf("expected queue_poll_interval validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"defaults pass", func(cfg *Config) {}, ""},
		{"missing data dir", func(cfg *Config) { cfg.Paths.DataDir = "" }, "paths.data_dir"},
		{"missing log dir", func(cfg *Config) { cfg.Paths.LogDir = "" }, "paths.log_dir"},
		{"negative build wait", func(cfg *Config) { cfg.Workflow.BuildWaitTimeout = -1 }, "build_wait_timeout"},
		{"zero parallelism", func(cfg *Config) { cfg.Workflow.ExtractParallelism = 0 }, "extract_parallelism"},
		{"zero manifest timeout", func(cfg *Config) { cfg.Workflow.ManifestTimeout = 0 }, "manifest_timeout"},
		{"negative free space", func(cfg *Config) { cfg.Workflow.MinFreeSpaceGiB = -1 }, "min_free_space_gib"},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: error = %v, want mention of %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	cfg.Workflow.QueuePollInterval = 3
	cfg.Workflow.ErrorRetryInterval = 10
	cfg.Workflow.BuildWaitTimeout = 3600
	cfg.Workflow.ManifestTimeout = 30

	if got := cfg.QueuePollInterval(); got != 3*time.Second {
		t.Errorf("QueuePollInterval = %v", got)
	}
	if got := cfg.ErrorRetryInterval(); got != 10*time.Second {
		t.Errorf("ErrorRetryInterval = %v", got)
	}
	if got := cfg.BuildWaitTimeout(); got != time.Hour {
		t.Errorf("BuildWaitTimeout = %v", got)
	}
	if got := cfg.ManifestTimeout(); got != 30*time.Second {
		t.Errorf("ManifestTimeout = %v", got)
	}
}

func TestEnsureDirectoriesCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, sub := range []string{cfg.VideosDir(), cfg.SessionsDir(), cfg.Paths.LogDir} {
		info, err := os.Stat(sub)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory at %q, err=%v", sub, err)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got, err := ExpandPath("~/qoed/config.toml")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if got != filepath.Join(home, "qoed", "config.toml") {
		t.Errorf("expanded = %q", got)
	}

	got, err = ExpandPath("relative/dir")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %q", got)
	}

	if got, err := ExpandPath(""); err != nil || got != "" {
		t.Errorf("ExpandPath(\"\") = %q, %v", got, err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !exists {
		t.Fatal("sample config not detected")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config does not validate: %v", err)
	}
}
