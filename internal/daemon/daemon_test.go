package daemon

import (
	"context"
	"strings"
	"testing"

	"github.com/gofrs/flock"
)

func TestDaemonStartStopLifecycle(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	if !d.Status(ctx).Running {
		t.Error("daemon not reported running after Start")
	}
	if err := d.Start(ctx); err == nil {
		t.Error("second Start on a running daemon should fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Error("daemon still reported running after Stop")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	first, _, _ := newTestDaemon(t)
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	second, _, _ := newTestDaemon(t)
	// Point the second instance at the first one's lock file.
	second.lockPath = first.lockPath
	second.lock = flock.New(first.lockPath)

	err := second.Start(ctx)
	if err == nil {
		second.Stop()
		t.Fatal("second instance acquired the daemon lock")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Error("New with nil dependencies should fail")
	}
}
