// Package downloader wraps the yt-dlp command line tool to fetch every
// rendition referenced by a DASH manifest.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Executor abstracts command execution for the downloader.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Client downloads manifest renditions via yt-dlp.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a Client for the provided yt-dlp binary.
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

// Download fetches every format the manifest references into destDir. Files
// are named after the manifest format id so renditions can be matched back to
// representations afterwards.
func (c *Client) Download(ctx context.Context, manifestURL, destDir string) error {
	if c.binary == "" {
		return errors.New("downloader binary not configured")
	}
	if manifestURL == "" {
		return errors.New("manifest url is empty")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	args := []string{
		"--no-progress",
		"--concurrent-fragments", "5",
		"-f", "all",
		"--merge-output-format", "mp4",
		"-o", filepath.Join(destDir, "%(format_id)s.%(ext)s"),
		manifestURL,
	}
	output, err := c.exec.Run(ctx, c.binary, args)
	if err != nil {
		return fmt.Errorf("yt-dlp: %w: %s", err, tail(output))
	}
	return nil
}

// tail returns the last few lines of tool output for error reporting.
func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	lines := strings.Split(text, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
