package faults_test

import (
	"errors"
	"strings"
	"testing"

	"blenderer/internal/faults"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := faults.Wrap(faults.ErrMerge, "merge", "concat", "ffmpeg failed", base)
	if !errors.Is(err, faults.ErrMerge) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"merge", "concat", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := faults.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, faults.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "render failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		err    error
		class  string
		config bool
	}{
		{faults.Wrap(faults.ErrNotEnoughUnits, "validate", "", "", nil), "not_enough_units", true},
		{faults.Wrap(faults.ErrConfiguration, "validate", "", "", nil), "config", true},
		{faults.Wrap(faults.ErrFleet, "fleet", "", "", nil), "fleet", false},
		{faults.Wrap(faults.ErrMerge, "merge", "", "", nil), "merge", false},
		{faults.Wrap(faults.ErrIO, "manifest", "", "", nil), "io", false},
		{errors.New("other"), "external", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		if got := faults.Class(tt.err); got != tt.class {
			t.Errorf("Class(%v) = %q, want %q", tt.err, got, tt.class)
		}
		if got := faults.IsConfiguration(tt.err); got != tt.config {
			t.Errorf("IsConfiguration(%v) = %v, want %v", tt.err, got, tt.config)
		}
	}
}
