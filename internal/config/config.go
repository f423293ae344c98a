package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	LogDir       string `toml:"log_dir"`
	HistoryDB    string `toml:"history_db"`
}

// Render contains worker fleet sizing and the render worker command.
type Render struct {
	BlenderBinary  string `toml:"blender_binary"`
	Workers        int    `toml:"workers"`
	ReservedCores  int    `toml:"reserved_cores"`
	FilterScript   string `toml:"filter_script"`
	VerifySegments bool   `toml:"verify_segments"`
}

// Fleet contains worker process supervision settings.
type Fleet struct {
	// Policy is "wait_all" (every worker runs to completion) or "fail_fast"
	// (the first failure terminates the remaining workers).
	Policy                  string `toml:"policy"`
	JobTimeoutSeconds       int    `toml:"job_timeout_seconds"`
	TerminationGraceSeconds int    `toml:"termination_grace_seconds"`
}

// Merge contains the concatenation step settings.
type Merge struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	AudioSource    string `toml:"audio_source"`
}

// Workspace contains temporary workspace housekeeping settings.
type Workspace struct {
	StaleAfterHours int `toml:"stale_after_hours"`
}

// History contains session journal settings.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values.
//
// Configuration sections by subsystem:
//   - Paths: workspace root, log directory, history database
//   - Render: blender binary, worker count, filter script
//   - Fleet: failure policy and worker timeouts
//   - Merge: ffmpeg/ffprobe binaries, merge timeout, audio remux source
//   - Workspace: stale workspace sweep
//   - History: session journal
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Render    Render    `toml:"render"`
	Fleet     Fleet     `toml:"fleet"`
	Merge     Merge     `toml:"merge"`
	Workspace Workspace `toml:"workspace"`
	History   History   `toml:"history"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("blenderer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the workspace root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EffectiveWorkers resolves the worker count: an explicit value wins, otherwise
// every logical core except the reserved ones, never fewer than one.
func (c *Config) EffectiveWorkers() int {
	if c.Render.Workers > 0 {
		return c.Render.Workers
	}
	workers := runtime.NumCPU() - c.Render.ReservedCores
	if workers < 1 {
		return 1
	}
	return workers
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
