package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"blenderer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspaces")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "logs", "history.db")
	cfgVal.Render.Workers = 2
	cfgVal.Fleet.TerminationGraceSeconds = 1
	cfgVal.Merge.TimeoutSeconds = 30

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkers overrides the worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Workers = n
	}
}

// WithPolicy overrides the fleet policy.
func WithPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fleet.Policy = policy
	}
}

// WithHistoryDisabled turns off the session journal.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithBlenderScript writes body as the blender executable and points the
// config at it.
func WithBlenderScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.BlenderBinary = writeScript(b.t, b.binDir(), "blender", body)
	}
}

// WithFFmpegScript writes body as the ffmpeg executable and points the
// config at it.
func WithFFmpegScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Merge.FFmpegBinary = writeScript(b.t, b.binDir(), "ffmpeg", body)
	}
}

// WithFFprobeScript writes body as the ffprobe executable and points the
// config at it.
func WithFFprobeScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Merge.FFprobeBinary = writeScript(b.t, b.binDir(), "ffprobe", body)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, blender, ffmpeg, and ffprobe are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"blender", "ffmpeg", "ffprobe"}
		}
		binDir := b.binDir()
		for _, name := range names {
			writeScript(b.t, binDir, name, "exit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

func (b *configBuilder) binDir() string {
	dir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	return dir
}

func writeScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}
