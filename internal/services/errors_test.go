package services_test

import (
	"errors"
	"strings"
	"testing"

	"dubmaster/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "mix", "run ffmpeg", "mix failed", inner)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected external tool marker")
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected inner error to be wrapped")
	}
	if !strings.Contains(err.Error(), "mix: run ffmpeg: mix failed") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "extract", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected transient marker")
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrTimeout, "extract", "run ffmpeg", "timed out", nil)
	details := services.Details(err)
	if details.Message != "extract: run ffmpeg: timed out" {
		t.Fatalf("details = %q", details.Message)
	}
	if services.Details(nil).Message != "" {
		t.Fatal("nil error should yield empty details")
	}
}
