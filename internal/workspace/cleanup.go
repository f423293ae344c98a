package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"blenderer/internal/logging"
)

// CleanStaleResult contains the outcome of a stale workspace sweep. InUse
// lists old workspaces skipped because a running session still holds them.
type CleanStaleResult struct {
	Removed []string
	InUse   []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes session workspaces under root older than maxAge. Only
// directories created by Acquire are considered, and a workspace is removed
// only while the sweep holds its live lock, so a running session's
// workspace is never touched however old it is.
func CleanStale(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	root = strings.TrimSpace(root)
	if root == "" || maxAge <= 0 {
		return result
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}

		dirPath := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		removed, err := removeIfAbandoned(dirPath)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
		case removed:
			result.Removed = append(result.Removed, dirPath)
		default:
			result.InUse = append(result.InUse, dirPath)
		}
	}

	if logger != nil && (len(result.Removed) > 0 || len(result.Errors) > 0) {
		logger.Info("stale workspace sweep",
			logging.String(logging.FieldEventType, "workspace_sweep"),
			logging.Int("removed", len(result.Removed)),
			logging.Int("in_use", len(result.InUse)),
			logging.Int("errors", len(result.Errors)),
		)
	}
	return result
}

// removeIfAbandoned deletes dir when no session holds its live lock. It
// reports false without error when the workspace is in use.
func removeIfAbandoned(dir string) (bool, error) {
	live := flock.New(filepath.Join(dir, liveLock))
	ok, err := live.TryLock()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer live.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	return true, nil
}
