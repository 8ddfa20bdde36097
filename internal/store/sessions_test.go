package store_test

import (
	"context"
	"testing"

	"qoed/internal/store"
	"qoed/internal/testsupport"
)

func TestNewSessionRequiresRegisteredVideo(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := st.NewSession(ctx, 7); err == nil {
		t.Fatal("expected error for unregistered video")
	}

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	session, err := st.NewSession(ctx, video.ID)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if session.ID != 0 {
		t.Errorf("first session id = %d, want 0", session.ID)
	}
	if session.Status != store.SessionWaiting {
		t.Errorf("status = %s, want waiting", session.Status)
	}

	second, err := st.NewSession(ctx, video.ID)
	if err != nil {
		t.Fatalf("second NewSession: %v", err)
	}
	if second.ID != 1 {
		t.Errorf("second session id = %d, want 1", second.ID)
	}
}

func TestClaimCPUIsExclusive(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	first := testsupport.NewSession(t, st, video.ID)
	second := testsupport.NewSession(t, st, video.ID)

	claimed, err := st.ClaimCPU(ctx, first.ID)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	claimed, err = st.ClaimCPU(ctx, second.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Error("second session claimed the gate while first held it")
	}

	// Claiming again from the holder must not double-claim.
	claimed, err = st.ClaimCPU(ctx, first.ID)
	if err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	if claimed {
		t.Error("holder re-claim reported a fresh claim")
	}

	owner, err := st.CPUOwner(ctx)
	if err != nil {
		t.Fatalf("CPUOwner: %v", err)
	}
	if owner == nil || owner.ID != first.ID {
		t.Fatalf("owner = %+v, want session %d", owner, first.ID)
	}

	if err := st.ReleaseCPU(ctx, first.ID); err != nil {
		t.Fatalf("ReleaseCPU: %v", err)
	}

	claimed, err = st.ClaimCPU(ctx, second.ID)
	if err != nil || !claimed {
		t.Fatalf("claim after release: claimed=%v err=%v", claimed, err)
	}
}

func TestReleaseCPUWithoutClaimIsNoOp(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	session := testsupport.NewSession(t, st, video.ID)

	if err := st.ReleaseCPU(ctx, session.ID); err != nil {
		t.Fatalf("ReleaseCPU without claim: %v", err)
	}
}

func TestUpdateSessionPersistsResult(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	session := testsupport.NewSession(t, st, video.ID)

	session.Status = store.SessionCompleted
	session.Result = &store.ScoreSummary{O23: 4.1, O35: 3.9, O46: 3.95}
	if err := st.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	reloaded, err := st.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !reloaded.ResultReady() {
		t.Fatalf("result not ready: %+v", reloaded)
	}
	if reloaded.Result.O46 != 3.95 {
		t.Errorf("O46 = %v", reloaded.Result.O46)
	}
}

func TestUpdateSessionNeverWritesCPUClaim(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	session := testsupport.NewSession(t, st, video.ID)

	if claimed, err := st.ClaimCPU(ctx, session.ID); err != nil || !claimed {
		t.Fatalf("ClaimCPU: claimed=%v err=%v", claimed, err)
	}

	// A stale in-memory copy must not clobber the claim on update.
	session.CPUOwned = false
	session.Status = store.SessionBuilding
	if err := st.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	reloaded, _ := st.GetSession(ctx, session.ID)
	if !reloaded.CPUOwned {
		t.Error("update clobbered the cpu claim")
	}
}

func TestSessionsForVideoAndStats(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	videoA := testsupport.NewVideo(t, st, "http://cdn/a.mpd")
	videoB := testsupport.NewVideo(t, st, "http://cdn/b.mpd")
	testsupport.NewSession(t, st, videoA.ID)
	testsupport.NewSession(t, st, videoA.ID)
	failed := testsupport.NewSession(t, st, videoB.ID)
	failed.SetFailed("no telemetry")
	if err := st.UpdateSession(ctx, failed); err != nil {
		t.Fatal(err)
	}

	sessions, err := st.SessionsForVideo(ctx, videoA.ID)
	if err != nil {
		t.Fatalf("SessionsForVideo: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions for video A = %d, want 2", len(sessions))
	}

	stats, err := st.SessionStats(ctx)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if stats[store.SessionWaiting] != 2 || stats[store.SessionFailed] != 1 {
		t.Errorf("stats = %v", stats)
	}
}
