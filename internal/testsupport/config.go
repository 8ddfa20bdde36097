package testsupport

import (
	"path/filepath"
	"testing"

	"qoed/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Timing knobs are shortened so workflow tests converge quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "video_db")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.MinFreeSpaceGiB = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithBuildWaitTimeout overrides the session wait bound, in seconds.
func WithBuildWaitTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.BuildWaitTimeout = seconds
	}
}

// WithExtractParallelism overrides the rendition extraction fan-out.
func WithExtractParallelism(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.ExtractParallelism = n
	}
}
