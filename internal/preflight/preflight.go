package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"blenderer/internal/config"
	"blenderer/internal/faults"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks for cfg. When outputPath is set its
// parent directory is checked too.
func RunAll(_ context.Context, cfg *config.Config, outputPath string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir))
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if strings.TrimSpace(outputPath) != "" {
		results = append(results, CheckDirectoryAccess("Output directory", filepath.Dir(outputPath)))
	}
	if strings.TrimSpace(cfg.Render.FilterScript) != "" {
		results = append(results, CheckFileReadable("Filter script", cfg.Render.FilterScript))
	}
	if strings.TrimSpace(cfg.Merge.AudioSource) != "" {
		results = append(results, CheckFileReadable("Audio source", cfg.Merge.AudioSource))
	}
	return results
}

// Err folds failed results into a configuration error, or returns nil.
func Err(results []Result) error {
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result.Name+": "+result.Detail)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return faults.Wrap(faults.ErrConfiguration, "preflight", "check paths", strings.Join(failed, "; "), nil)
}
