// Package extractor wraps the bitstream analysis tool that produces a
// per-rendition feature report (codec, resolution, frame rate, and per-frame
// statistics) consumed by the model input builder.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Executor abstracts command execution for the extractor.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Client runs the feature extraction tool against rendition files.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a Client for the provided extraction binary.
func New(binary string) *Client {
	return NewWithExecutor(binary, nil)
}

// NewWithExecutor allows injecting a custom executor for testing.
func NewWithExecutor(binary string, exec Executor) *Client {
	if exec == nil {
		exec = commandExecutor{}
	}
	return &Client{binary: strings.TrimSpace(binary), exec: exec}
}

// Extract analyzes one rendition file and writes its feature report to
// reportPath. Extraction is CPU heavy but safe to run for several renditions
// in parallel; the caller owns concurrency limits.
func (c *Client) Extract(ctx context.Context, renditionPath, reportPath string) error {
	if c.binary == "" {
		return errors.New("extractor binary not configured")
	}
	if renditionPath == "" {
		return errors.New("rendition path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(reportPath), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	args := []string{renditionPath, "-o", reportPath}
	output, err := c.exec.Run(ctx, c.binary, args)
	if err != nil {
		return fmt.Errorf("feature extraction: %w: %s", err, strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(reportPath); err != nil {
		return fmt.Errorf("feature extraction produced no report: %w", err)
	}
	return nil
}
