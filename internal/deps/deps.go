package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"blenderer/internal/config"
	"blenderer/internal/faults"
)

// Requirement defines an external binary a render session relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Resolved    string
	Detail      string
}

// Requirements lists the binaries cfg refers to. ffprobe is only required
// when segment verification is enabled.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return []Requirement{
		{Name: "Blender", Command: cfg.Render.BlenderBinary, Description: "Renders frame ranges in background mode"},
		{Name: "FFmpeg", Command: cfg.Merge.FFmpegBinary, Description: "Concatenates per-range segments"},
		{Name: "FFprobe", Command: cfg.Merge.FFprobeBinary, Description: "Verifies rendered segments", Optional: !cfg.Render.VerifySegments},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Resolved = resolved
		results = append(results, status)
	}
	return results
}

// Missing returns a configuration error naming every unavailable required
// binary, or nil when all of them resolved.
func Missing(statuses []Status) error {
	var missing []string
	for _, status := range statuses {
		if status.Available || status.Optional {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	if len(missing) == 0 {
		return nil
	}
	return faults.Wrap(faults.ErrConfiguration, "preflight", "check binaries", strings.Join(missing, "; "), nil)
}

// SiblingBinary looks for name next to the resolved primary binary, which is
// where ffprobe usually sits when ffmpeg is configured by absolute path. It
// falls back to resolving name from PATH.
func SiblingBinary(primary, name string) (string, bool) {
	if resolved, err := exec.LookPath(strings.TrimSpace(primary)); err == nil {
		candidate := filepath.Join(filepath.Dir(resolved), executableName(name))
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate, true
		}
	}
	if resolved, err := exec.LookPath(name); err == nil {
		return resolved, true
	}
	return "", false
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
