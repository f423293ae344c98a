package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"blenderer/internal/faults"
)

const (
	dirPrefix   = "session-"
	locksDir    = ".locks"
	segmentsDir = "segments"
	logsDir     = "logs"
	// liveLock is held for the whole session; CleanStale skips any
	// workspace whose live lock it cannot take.
	liveLock = ".live.lock"
)

// ErrOutputBusy reports that another session holds the lock for the same output.
var ErrOutputBusy = errors.New("output is locked by another session")

// Workspace is a session-scoped directory tree:
//
//	<root>/session-<id>/segments  per-range artifacts
//	<root>/session-<id>/logs      per-worker output
//	<root>/session-<id>/.live.lock held until Release
type Workspace struct {
	root string
	dir  string
	lock *flock.Flock
	live *flock.Flock

	once       sync.Once
	releaseErr error
}

// Acquire creates the workspace for sessionID and locks finalOutput. The
// returned Workspace must be released by the caller.
func Acquire(root, sessionID, finalOutput string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, faults.Wrap(faults.ErrIO, "workspace", "acquire", "workspace root is empty", nil)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, faults.Wrap(faults.ErrIO, "workspace", "acquire", "session id is empty", nil)
	}
	if err := os.MkdirAll(filepath.Join(root, locksDir), 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrIO, "workspace", "acquire", "create workspace root", err)
	}

	lock := flock.New(LockPath(root, finalOutput))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "workspace", "lock output", "acquire output lock", err)
	}
	if !ok {
		return nil, faults.Wrap(faults.ErrConfiguration, "workspace", "lock output", finalOutput, ErrOutputBusy)
	}

	dir := filepath.Join(root, dirPrefix+sessionID)
	for _, sub := range []string{segmentsDir, logsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			_ = os.RemoveAll(dir)
			_ = lock.Unlock()
			return nil, faults.Wrap(faults.ErrIO, "workspace", "acquire", "create workspace directory", err)
		}
	}

	live := flock.New(filepath.Join(dir, liveLock))
	if ok, err := live.TryLock(); err != nil || !ok {
		_ = os.RemoveAll(dir)
		_ = lock.Unlock()
		if err == nil {
			err = fmt.Errorf("session %s is already in use", sessionID)
		}
		return nil, faults.Wrap(faults.ErrIO, "workspace", "acquire", "lock workspace", err)
	}

	return &Workspace{root: root, dir: dir, lock: lock, live: live}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// SegmentsDir returns the directory workers write their artifacts into.
func (w *Workspace) SegmentsDir() string { return filepath.Join(w.dir, segmentsDir) }

// LogsDir returns the directory holding per-worker logs.
func (w *Workspace) LogsDir() string { return filepath.Join(w.dir, logsDir) }

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string { return filepath.Join(w.dir, name) }

// Release removes the workspace directory, then drops its live lock and the
// output lock. It is
// safe to call more than once; later calls return the first result.
func (w *Workspace) Release() error {
	if w == nil {
		return nil
	}
	w.once.Do(func() {
		var errs []error
		if err := os.RemoveAll(w.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove workspace %s: %w", w.dir, err))
		}
		if w.live != nil {
			if err := w.live.Unlock(); err != nil {
				errs = append(errs, fmt.Errorf("release workspace lock: %w", err))
			}
		}
		if w.lock != nil {
			if err := w.lock.Unlock(); err != nil {
				errs = append(errs, fmt.Errorf("release output lock: %w", err))
			}
		}
		if len(errs) > 0 {
			w.releaseErr = faults.Wrap(faults.ErrIO, "workspace", "release", "", errors.Join(errs...))
		}
	})
	return w.releaseErr
}

// LockPath returns the lock file guarding finalOutput under root.
func LockPath(root, finalOutput string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(finalOutput)))
	return filepath.Join(root, locksDir, hex.EncodeToString(sum[:8])+".lock")
}
