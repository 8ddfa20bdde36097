// Package scorer wraps the standalone P.1203 implementation that turns an
// assembled model input document into quality scores.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Executor abstracts command execution for the scorer.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.Output()
}

// Client runs the quality model against input documents.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a Client for the provided model binary.
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

// Score evaluates the input document at inputPath and returns the model's
// JSON output. Scoring monopolizes a core for minutes at a time; callers
// hold the CPU gate while this runs.
func (c *Client) Score(ctx context.Context, inputPath string) ([]byte, error) {
	if c.binary == "" {
		return nil, errors.New("scorer binary not configured")
	}
	if inputPath == "" {
		return nil, errors.New("input path is empty")
	}

	output, err := c.exec.Run(ctx, c.binary, []string{inputPath})
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("quality model: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("quality model: %w", err)
	}
	if len(output) == 0 {
		return nil, errors.New("quality model produced no output")
	}
	return output, nil
}
