package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"blenderer/internal/config"
	"blenderer/internal/deps"
)

var blenderVersionPattern = regexp.MustCompile(`Blender\s+(\d+\.\d+(?:\.\d+)?)`)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFileReadable verifies that path is a readable regular file.
func CheckFileReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSystemDeps evaluates the external binaries cfg refers to. Both the
// render orchestrator and the doctor command use it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// CheckBlenderVersion runs the blender binary with --version and reports the
// version it prints.
func CheckBlenderVersion(ctx context.Context, binary string) Result {
	const name = "Blender version"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	output, err := exec.CommandContext(checkCtx, binary, "--version").CombinedOutput()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("version check failed (%v)", err)}
	}
	version := ParseBlenderVersion(string(output))
	if version == "" {
		return Result{Name: name, Detail: "version not reported"}
	}
	return Result{Name: name, Passed: true, Detail: version}
}

// ParseBlenderVersion extracts the version number from `blender --version` output.
func ParseBlenderVersion(output string) string {
	match := blenderVersionPattern.FindStringSubmatch(strings.TrimSpace(output))
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
