package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeExecutor struct {
	args        []string
	output      []byte
	err         error
	writeReport bool
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	f.args = args
	if f.writeReport && len(args) == 3 {
		if err := os.WriteFile(args[2], []byte(`{"I13":{"segments":[]}}`), 0o644); err != nil {
			return nil, err
		}
	}
	return f.output, f.err
}

func TestExtractWritesReport(t *testing.T) {
	exec := &fakeExecutor{writeReport: true}
	client := NewWithExecutor("qoe-extract", exec)

	reportPath := filepath.Join(t.TempDir(), "reports", "0-1.json")
	if err := client.Extract(context.Background(), "/videos/0/0-1.mp4", reportPath); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []string{"/videos/0/0-1.mp4", "-o", reportPath}
	if len(exec.args) != len(want) {
		t.Fatalf("args = %v, want %v", exec.args, want)
	}
	for i := range want {
		if exec.args[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, exec.args[i], want[i])
		}
	}
}

func TestExtractFailsWhenNoReportAppears(t *testing.T) {
	client := NewWithExecutor("qoe-extract", &fakeExecutor{})

	err := client.Extract(context.Background(), "/videos/0/0-1.mp4", filepath.Join(t.TempDir(), "0-1.json"))
	if err == nil {
		t.Fatal("expected error when the tool writes no report")
	}
	if !strings.Contains(err.Error(), "produced no report") {
		t.Errorf("error = %q", err)
	}
}

func TestExtractSurfacesToolOutput(t *testing.T) {
	exec := &fakeExecutor{output: []byte("unsupported codec av2"), err: errors.New("exit status 2")}
	client := NewWithExecutor("qoe-extract", exec)

	err := client.Extract(context.Background(), "/videos/0/0-1.mp4", filepath.Join(t.TempDir(), "0-1.json"))
	if err == nil || !strings.Contains(err.Error(), "unsupported codec av2") {
		t.Errorf("error %v does not surface tool output", err)
	}
}

func TestExtractValidatesInputs(t *testing.T) {
	if err := New("").Extract(context.Background(), "a.mp4", "a.json"); err == nil {
		t.Error("expected error for unconfigured binary")
	}
	if err := New("qoe-extract").Extract(context.Background(), "", "a.json"); err == nil {
		t.Error("expected error for empty rendition path")
	}
}
