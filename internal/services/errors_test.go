package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsWithMarker(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(ErrExternalTool, "acquiring", "download renditions", "Rendition download failed", cause)

	if !errors.Is(err, ErrExternalTool) {
		t.Errorf("wrapped error lost its marker: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("wrapped error lost its cause: %v", err)
	}
	for _, want := range []string{"acquiring", "download renditions", "Rendition download failed", "exit status 1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "scoring", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Errorf("nil marker should classify as transient, got %v", err)
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := Wrap(ErrTransient, "", "", "", nil)
	if !strings.Contains(err.Error(), "service failure") {
		t.Errorf("error = %q", err)
	}
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		marker error
		want   bool
	}{
		{ErrValidation, true},
		{ErrConfiguration, true},
		{ErrNotFound, true},
		{ErrExternalTool, false},
		{ErrTimeout, false},
		{ErrTransient, false},
	}
	for _, tc := range cases {
		err := Wrap(tc.marker, "stage", "op", "message", nil)
		if got := IsPermanent(err); got != tc.want {
			t.Errorf("IsPermanent(%v) = %v, want %v", tc.marker, got, tc.want)
		}
	}
	if IsPermanent(nil) {
		t.Error("IsPermanent(nil) = true")
	}
}

func TestContextAnnotations(t *testing.T) {
	ctx := context.Background()

	if _, ok := VideoIDFromContext(ctx); ok {
		t.Error("unannotated context reported a video id")
	}

	ctx = WithVideoID(ctx, 3)
	ctx = WithSessionID(ctx, 7)
	ctx = WithStage(ctx, "extracting")
	ctx = WithRequestID(ctx, "req-42")

	if id, ok := VideoIDFromContext(ctx); !ok || id != 3 {
		t.Errorf("video id = %d, %v", id, ok)
	}
	if id, ok := SessionIDFromContext(ctx); !ok || id != 7 {
		t.Errorf("session id = %d, %v", id, ok)
	}
	if stage, ok := StageFromContext(ctx); !ok || stage != "extracting" {
		t.Errorf("stage = %q, %v", stage, ok)
	}
	if id, ok := RequestIDFromContext(ctx); !ok || id != "req-42" {
		t.Errorf("request id = %q, %v", id, ok)
	}

	// Blank values do not annotate.
	if _, ok := StageFromContext(WithStage(context.Background(), "")); ok {
		t.Error("blank stage annotated context")
	}
}
