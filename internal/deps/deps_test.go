package deps

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"blenderer/internal/config"
	"blenderer/internal/faults"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Resolved != present {
		t.Fatalf("expected first requirement to resolve, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestRequirementsFollowVerification(t *testing.T) {
	cfg := config.Default()
	reqs := Requirements(&cfg)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(reqs))
	}
	if !reqs[2].Optional {
		t.Fatal("ffprobe should be optional without segment verification")
	}

	cfg.Render.VerifySegments = true
	if Requirements(&cfg)[2].Optional {
		t.Fatal("ffprobe should be required with segment verification")
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	statuses := []Status{
		{Name: "Blender", Available: true},
		{Name: "FFprobe", Optional: true, Detail: "binary \"ffprobe\" not found"},
	}
	if err := Missing(statuses); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	statuses = append(statuses, Status{Name: "FFmpeg", Detail: "binary \"ffmpeg\" not found"})
	err := Missing(statuses)
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSiblingBinary(t *testing.T) {
	tmp := t.TempDir()
	ffmpeg := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobe := filepath.Join(tmp, executableName("ffprobe"))
	writeStub(t, ffmpeg)
	writeStub(t, ffprobe)

	got, ok := SiblingBinary(ffmpeg, "ffprobe")
	if !ok || got != ffprobe {
		t.Fatalf("SiblingBinary = %q, %v; want %q", got, ok, ffprobe)
	}
}

func TestSiblingBinaryNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	if _, ok := SiblingBinary(filepath.Join(t.TempDir(), "ffmpeg"), "ffprobe"); ok {
		t.Fatal("expected lookup to fail")
	}
}
