package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"blenderer/internal/faults"
	"blenderer/internal/logging"
	"blenderer/internal/worker"
)

// Policy controls how the fleet reacts to the first failing worker.
type Policy string

const (
	// WaitAll lets every worker run to completion and reports every failure.
	WaitAll Policy = "wait_all"
	// FailFast terminates the remaining workers after the first failure.
	FailFast Policy = "fail_fast"
)

// ParsePolicy maps a config value onto a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")) {
	case "", WaitAll:
		return WaitAll, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", fmt.Errorf("unknown fleet policy %q", value)
	}
}

// ExitCodeAbnormal is reported for workers that never produced an exit status:
// launch failures, signals, timeouts, and cancellations.
const ExitCodeAbnormal = -1

const logTailBytes = 4096

// Options configures a Runner.
type Options struct {
	Policy           Policy
	JobTimeout       time.Duration
	TerminationGrace time.Duration
	// LogDir receives worker-<n>.log per job. Empty discards worker output.
	LogDir string
	Logger *slog.Logger
}

// Result is the fleet outcome. Slices are indexed by submission order.
type Result struct {
	ExitCodes []int
	Succeeded bool
	Reasons   []string
	Durations []time.Duration
	LogPaths  []string
	// Finished lists job indices in the order their processes exited.
	Finished []int
}

// Failures returns the failing jobs in submission order.
func (r Result) Failures() []JobFailure {
	var failures []JobFailure
	for i, code := range r.ExitCodes {
		if code == 0 && reasonAt(r.Reasons, i) == "" {
			continue
		}
		failures = append(failures, JobFailure{
			Index:    i,
			ExitCode: code,
			Reason:   reasonAt(r.Reasons, i),
			LogPath:  pathAt(r.LogPaths, i),
		})
	}
	return failures
}

// JobFailure describes one worker that did not exit cleanly.
type JobFailure struct {
	Index    int
	ExitCode int
	Reason   string
	LogPath  string
	LogTail  string
}

// Error reports a failed fleet with every failing job.
type Error struct {
	Total    int
	Failures []JobFailure
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		part := fmt.Sprintf("worker %d exit %d", f.Index+1, f.ExitCode)
		if f.Reason != "" {
			part += " (" + f.Reason + ")"
		}
		parts = append(parts, part)
	}
	return fmt.Sprintf("%d of %d workers failed: %s", len(e.Failures), e.Total, strings.Join(parts, ", "))
}

// Unwrap classifies fleet errors under faults.ErrFleet.
func (e *Error) Unwrap() error { return faults.ErrFleet }

// ExitCodes returns the exit codes of the failing jobs.
func (e *Error) ExitCodes() map[int]int {
	out := make(map[int]int, len(e.Failures))
	for _, f := range e.Failures {
		out[f.Index] = f.ExitCode
	}
	return out
}

// Runner executes a worker fleet.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// NewRunner constructs a Runner. A zero Policy means WaitAll.
func NewRunner(opts Options) *Runner {
	if opts.Policy == "" {
		opts.Policy = WaitAll
	}
	return &Runner{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "fleet")}
}

type outcome struct {
	exitCode int
	reason   string
	duration time.Duration
}

// Run launches every job and blocks until all have exited. The returned error
// is a *Error when any worker failed. Cancelling ctx terminates the workers.
func (r *Runner) Run(ctx context.Context, jobs []worker.Job) (Result, error) {
	result := Result{
		ExitCodes: make([]int, len(jobs)),
		Reasons:   make([]string, len(jobs)),
		Durations: make([]time.Duration, len(jobs)),
		LogPaths:  make([]string, len(jobs)),
		Finished:  make([]int, 0, len(jobs)),
	}
	if len(jobs) == 0 {
		return result, faults.Wrap(faults.ErrConfiguration, "fleet", "run", "no worker jobs", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(idx int, out outcome) {
		mu.Lock()
		defer mu.Unlock()
		result.ExitCodes[idx] = out.exitCode
		result.Reasons[idx] = out.reason
		result.Durations[idx] = out.duration
		result.Finished = append(result.Finished, idx)
		if (out.exitCode != 0 || out.reason != "") && r.opts.Policy == FailFast {
			cancel()
		}
	}

	r.logger.Info("launching worker fleet",
		logging.String(logging.FieldEventType, "fleet_start"),
		logging.Int("workers", len(jobs)),
		logging.String("policy", string(r.opts.Policy)),
		logging.Duration("job_timeout", r.opts.JobTimeout),
	)

	for i, job := range jobs {
		jobLogger := r.logger.With(logging.Int(logging.FieldWorkerIndex, i+1))
		if runCtx.Err() != nil {
			record(i, outcome{exitCode: ExitCodeAbnormal, reason: "not started: fleet cancelled"})
			continue
		}

		cmd, closeLog, logPath, err := r.prepare(i, job)
		result.LogPaths[i] = logPath
		if err != nil {
			jobLogger.Warn("worker could not be prepared", logging.Error(err))
			record(i, outcome{exitCode: ExitCodeAbnormal, reason: err.Error()})
			continue
		}

		jobLogger.Debug("starting worker",
			logging.String("command", job.CommandLine()),
			logging.String("frames", job.Range.String()),
			logging.String("output", job.OutputPath),
		)
		started := time.Now()
		if err := cmd.Start(); err != nil {
			closeLog()
			jobLogger.Warn("worker failed to start", logging.Error(err))
			record(i, outcome{exitCode: ExitCodeAbnormal, reason: "start: " + err.Error()})
			continue
		}

		wg.Add(1)
		go func(idx int, job worker.Job, cmd *exec.Cmd, logger *slog.Logger) {
			defer wg.Done()
			defer closeLog()
			out := r.wait(runCtx, cmd)
			out.duration = time.Since(started)
			if out.exitCode == 0 && out.reason == "" {
				logger.Info("worker finished",
					logging.String("frames", job.Range.String()),
					logging.Duration("elapsed", out.duration),
				)
			} else {
				logger.Warn("worker failed",
					logging.String("frames", job.Range.String()),
					logging.Int("exit_code", out.exitCode),
					logging.String("reason", out.reason),
					logging.Duration("elapsed", out.duration),
				)
			}
			record(idx, out)
		}(i, job, cmd, jobLogger)
	}

	wg.Wait()

	result.Succeeded = true
	for i, code := range result.ExitCodes {
		if code != 0 || result.Reasons[i] != "" {
			result.Succeeded = false
			break
		}
	}
	if result.Succeeded {
		return result, nil
	}

	failures := result.Failures()
	for i := range failures {
		failures[i].LogTail = readTail(failures[i].LogPath, logTailBytes)
	}
	return result, &Error{Total: len(jobs), Failures: failures}
}

func (r *Runner) prepare(idx int, job worker.Job) (*exec.Cmd, func(), string, error) {
	binary := job.Binary()
	if strings.TrimSpace(binary) == "" {
		return nil, nil, "", errors.New("empty command")
	}
	cmd := exec.Command(binary, job.Args()...)
	configureProcess(cmd)

	if strings.TrimSpace(r.opts.LogDir) == "" {
		return cmd, func() {}, "", nil
	}
	logPath := filepath.Join(r.opts.LogDir, fmt.Sprintf("worker-%d.log", idx+1))
	file, err := os.Create(logPath)
	if err != nil {
		return nil, nil, logPath, fmt.Errorf("create worker log: %w", err)
	}
	cmd.Stdout = file
	cmd.Stderr = file
	return cmd, func() { _ = file.Close() }, logPath, nil
}

func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd) outcome {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeout <-chan time.Time
	if r.opts.JobTimeout > 0 {
		timer := time.NewTimer(r.opts.JobTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		return exitOutcome(cmd, err)
	case <-timeout:
		terminateProcess(cmd, r.opts.TerminationGrace, done)
		return outcome{exitCode: ExitCodeAbnormal, reason: fmt.Sprintf("timed out after %s", r.opts.JobTimeout)}
	case <-ctx.Done():
		terminateProcess(cmd, r.opts.TerminationGrace, done)
		return outcome{exitCode: ExitCodeAbnormal, reason: "terminated: fleet cancelled"}
	}
}

func exitOutcome(cmd *exec.Cmd, err error) outcome {
	code := ExitCodeAbnormal
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return outcome{exitCode: code}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code == ExitCodeAbnormal {
			return outcome{exitCode: code, reason: exitErr.String()}
		}
		return outcome{exitCode: code}
	}
	return outcome{exitCode: code, reason: err.Error()}
}

func readTail(path string, limit int64) string {
	if path == "" {
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return ""
	}
	offset := info.Size() - limit
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := file.ReadAt(buf, offset); err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}

func reasonAt(values []string, idx int) string {
	if idx < len(values) {
		return values[idx]
	}
	return ""
}

func pathAt(values []string, idx int) string {
	if idx < len(values) {
		return values[idx]
	}
	return ""
}
