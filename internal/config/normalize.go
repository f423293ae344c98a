package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeMerge()
	c.normalizeFleet()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir()
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = filepath.Join(c.Paths.LogDir, defaultHistoryDBName)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	if script := strings.TrimSpace(c.Render.FilterScript); script != "" {
		if c.Render.FilterScript, err = expandPath(script); err != nil {
			return fmt.Errorf("render.filter_script: %w", err)
		}
	}
	if audio := strings.TrimSpace(c.Merge.AudioSource); audio != "" {
		if c.Merge.AudioSource, err = expandPath(audio); err != nil {
			return fmt.Errorf("merge.audio_source: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeRender() {
	if value, ok := os.LookupEnv(BlenderEnv); ok && strings.TrimSpace(value) != "" {
		c.Render.BlenderBinary = strings.TrimSpace(value)
	}
	c.Render.BlenderBinary = strings.TrimSpace(c.Render.BlenderBinary)
	if c.Render.BlenderBinary == "" {
		c.Render.BlenderBinary = defaultBlenderBinary
	}
}

func (c *Config) normalizeMerge() {
	c.Merge.FFmpegBinary = strings.TrimSpace(c.Merge.FFmpegBinary)
	if c.Merge.FFmpegBinary == "" {
		c.Merge.FFmpegBinary = defaultFFmpegBinary
	}
	c.Merge.FFprobeBinary = strings.TrimSpace(c.Merge.FFprobeBinary)
	if c.Merge.FFprobeBinary == "" {
		c.Merge.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeFleet() {
	policy := strings.ToLower(strings.TrimSpace(c.Fleet.Policy))
	policy = strings.ReplaceAll(policy, "-", "_")
	if policy == "" {
		policy = defaultFleetPolicy
	}
	c.Fleet.Policy = policy
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
