package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"blenderer/internal/config"
	"blenderer/internal/faults"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileReadable(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "filter.py")
	if err := os.WriteFile(f, []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckFileReadable("script", f); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckFileReadable("script", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckFileReadable("script", filepath.Join(dir, "missing.py")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestRunAllChecksOutputParent(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	results := RunAll(context.Background(), &cfg, filepath.Join(t.TempDir(), "missing", "out.mp4"))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[2].Passed {
		t.Fatal("expected output directory check to fail")
	}
	if err := Err(results); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunAllPasses(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	results := RunAll(context.Background(), &cfg, filepath.Join(t.TempDir(), "out.mp4"))
	if err := Err(results); err != nil {
		t.Fatalf("expected all checks to pass, got %v", err)
	}
}

func TestCheckBlenderVersion(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "blender")
	script := "#!/bin/sh\necho 'Blender 4.2.1 LTS'\necho 'build date: 2024-08-19'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	result := CheckBlenderVersion(context.Background(), stub)
	if !result.Passed || result.Detail != "4.2.1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseBlenderVersion(t *testing.T) {
	cases := map[string]string{
		"Blender 3.6.5\n\tbuild date": "3.6.5",
		"Blender 4.1":                 "4.1",
		"not blender":                 "",
	}
	for input, want := range cases {
		if got := ParseBlenderVersion(input); got != want {
			t.Fatalf("ParseBlenderVersion(%q) = %q, want %q", input, got, want)
		}
	}
}
