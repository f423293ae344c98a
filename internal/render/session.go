package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"blenderer/internal/deps"
	"blenderer/internal/faults"
	"blenderer/internal/fileutil"
	"blenderer/internal/fleet"
	"blenderer/internal/frames"
	"blenderer/internal/history"
	"blenderer/internal/logging"
	"blenderer/internal/manifest"
	"blenderer/internal/merge"
	"blenderer/internal/preflight"
	"blenderer/internal/scene"
	"blenderer/internal/worker"
	"blenderer/internal/workspace"
)

// Result summarizes a session. Fields are filled as far as the session got.
type Result struct {
	SessionID  string         `json:"session_id"`
	State      State          `json:"state"`
	OutputPath string         `json:"output_path"`
	Scene      scene.Metadata `json:"scene"`
	Workers    int            `json:"workers"`
	Ranges     []frames.Range `json:"ranges"`
	Jobs       []worker.Job   `json:"jobs"`
	Fleet      fleet.Result   `json:"fleet"`
	DryRun     bool           `json:"dry_run"`
	Elapsed    time.Duration  `json:"elapsed"`
	// PreservedLogs lists worker logs copied out of the workspace after a
	// fleet failure.
	PreservedLogs []string `json:"preserved_logs,omitempty"`
}

// Session runs one render invocation. It is not reusable.
type Session struct {
	opts   Options
	logger *slog.Logger
	id     string

	state       State
	trail       []State
	failedStage Stage
	ran         bool
}

// New constructs a session from opts.
func New(opts Options, logger *slog.Logger) *Session {
	return &Session{
		opts:   opts.clone(),
		logger: logging.NewComponentLogger(logger, "render"),
		id:     uuid.NewString(),
		state:  StateInitialized,
		trail:  []State{StateInitialized},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Trail returns every state the session has entered, in order.
func (s *Session) Trail() []State { return slices.Clone(s.trail) }

// Run executes the session. The returned error is a *StageError.
func (s *Session) Run(ctx context.Context) (result Result, err error) {
	if s.ran {
		return Result{}, errors.New("render session already ran")
	}
	s.ran = true
	started := time.Now()

	ctx = logging.WithSessionID(ctx, s.id)
	logger := logging.WithContext(ctx, s.logger)
	result = Result{SessionID: s.id, State: s.state, OutputPath: s.opts.OutputPath, DryRun: s.opts.DryRun}

	journal := s.openJournal(logger)
	if journal != nil {
		defer journal.Close()
	}
	s.journalStart(ctx, journal, logger)

	var ws *workspace.Workspace
	defer func() {
		if ws != nil {
			if relErr := ws.Release(); relErr != nil {
				if err == nil {
					err = s.fail(logger, StageFinalize, relErr)
				} else {
					logger.Warn("workspace cleanup failed", logging.Error(relErr))
				}
			}
		}
		result.State = s.state
		result.Elapsed = time.Since(started)
		s.journalFinish(ctx, journal, logger, result, err)
	}()

	logger.Info("render session started",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String("scene", s.opts.ScenePath),
		logging.Int("workers", s.opts.Workers),
		logging.String("policy", string(s.opts.Policy)),
		logging.Bool("dry_run", s.opts.DryRun),
	)

	// Validate.
	meta, output, err := s.validate(logging.WithStage(ctx, string(StageValidate)), logger)
	if err != nil {
		return result, s.fail(logger, StageValidate, err)
	}
	result.Scene = meta
	result.OutputPath = output
	result.Workers = s.opts.Workers
	s.transition(logger, StateValidated)

	// Partition.
	ranges := frames.Partition(meta.FrameStart, meta.TotalFrames(), s.opts.Workers)
	result.Ranges = ranges
	effective := frames.Effective(ranges)
	if len(effective) < len(ranges) {
		logger.Warn("trailing ranges collapsed onto the last frame",
			logging.String(logging.FieldEventType, "partition_collapsed"),
			logging.Int("requested_workers", len(ranges)),
			logging.Int("launched_workers", len(effective)),
			logging.String(logging.FieldErrorHint, "choose a worker count that divides the frame count more evenly"),
		)
	}

	spec := worker.Spec{
		Executable:   s.opts.BlenderBinary,
		ScenePath:    s.opts.ScenePath,
		Extension:    meta.Extension(),
		FilterScript: s.opts.FilterScript,
		FilterArgs:   s.opts.FilterArgs,
	}

	if s.opts.DryRun {
		spec.OutputDir = filepath.Join(s.opts.WorkspaceRoot, "session-"+s.id, "segments")
		jobs, buildErr := worker.BuildAll(spec, effective)
		if buildErr != nil {
			return result, s.fail(logger, StagePartition, faults.Wrap(faults.ErrConfiguration, "partition", "build jobs", "", buildErr))
		}
		result.Jobs = jobs
		s.transition(logger, StatePartitioned)
		logger.Info("dry run complete; no workers launched",
			logging.String(logging.FieldEventType, "dry_run_complete"),
			logging.Int("jobs", len(jobs)),
		)
		return result, nil
	}

	if s.opts.StaleAfter > 0 {
		sweep := workspace.CleanStale(ctx, s.opts.WorkspaceRoot, s.opts.StaleAfter, logger)
		if len(sweep.Removed) > 0 {
			logger.Info("removed stale workspaces", logging.Int("count", len(sweep.Removed)))
		}
	}

	ws, err = workspace.Acquire(s.opts.WorkspaceRoot, s.id, output)
	if err != nil {
		ws = nil
		return result, s.fail(logger, StagePartition, err)
	}
	logger.Debug("workspace acquired", logging.String("workspace", ws.Dir()))

	spec.OutputDir = ws.SegmentsDir()
	jobs, err := worker.BuildAll(spec, effective)
	if err != nil {
		return result, s.fail(logger, StagePartition, faults.Wrap(faults.ErrConfiguration, "partition", "build jobs", "", err))
	}
	result.Jobs = jobs
	s.transition(logger, StatePartitioned)

	// Fleet.
	s.transition(logger, StateFleetDispatched)
	fleetCtx := logging.WithStage(ctx, string(StageFleet))
	runner := fleet.NewRunner(fleet.Options{
		Policy:           s.opts.Policy,
		JobTimeout:       s.opts.JobTimeout,
		TerminationGrace: s.opts.TerminationGrace,
		LogDir:           ws.LogsDir(),
		Logger:           logging.WithContext(fleetCtx, s.logger),
	})
	fleetResult, err := runner.Run(fleetCtx, jobs)
	result.Fleet = fleetResult
	if err != nil {
		result.PreservedLogs = s.preserveWorkerLogs(logger, fleetResult)
		return result, s.fail(logger, StageFleet, err)
	}
	if s.opts.VerifySegments {
		if err := verifySegments(fleetCtx, s.opts.FFprobeBinary, jobs, logger); err != nil {
			return result, s.fail(logger, StageFleet, err)
		}
	}
	s.transition(logger, StateFleetCompleted)

	// Merge.
	if err := s.merge(logging.WithStage(ctx, string(StageMerge)), ws, jobs, output, meta.Extension()); err != nil {
		return result, s.fail(logger, StageMerge, err)
	}
	s.transition(logger, StateMerged)

	if s.opts.VerifySegments {
		summarizeOutput(ctx, s.opts.FFprobeBinary, output, logger)
	}

	// Finalize.
	relErr := ws.Release()
	ws = nil
	if relErr != nil {
		return result, s.fail(logger, StageFinalize, relErr)
	}
	s.transition(logger, StateFinalized)

	logger.Info("render complete",
		logging.String(logging.FieldEventType, "session_complete"),
		logging.String("output", output),
		logging.Int("workers", len(jobs)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// validate resolves scene metadata and the final output path and checks
// every precondition that must hold before a process is launched.
func (s *Session) validate(ctx context.Context, logger *slog.Logger) (scene.Metadata, string, error) {
	if s.opts.ScenePath == "" {
		return scene.Metadata{}, "", faults.Wrap(faults.ErrConfiguration, "validate", "options", "scene path is required", nil)
	}
	if s.opts.Workers < 1 {
		return scene.Metadata{}, "", faults.Wrap(faults.ErrConfiguration, "validate", "options",
			fmt.Sprintf("worker count must be positive (got %d)", s.opts.Workers), nil)
	}
	if !s.opts.DryRun {
		if err := deps.Missing(preflight.CheckSystemDeps(s.opts.Config())); err != nil {
			return scene.Metadata{}, "", err
		}
	}

	var (
		meta scene.Metadata
		err  error
	)
	if s.opts.DescriptorPath != "" {
		meta, err = scene.LoadDescriptor(s.opts.DescriptorPath)
	} else {
		meta, err = scene.Probe(ctx, s.opts.BlenderBinary, s.opts.ScenePath)
	}
	if err != nil {
		return scene.Metadata{}, "", err
	}
	if err := meta.Validate(logger); err != nil {
		return scene.Metadata{}, "", err
	}

	output := s.opts.OutputPath
	if output == "" {
		output = scene.DefaultOutputPath(s.opts.ScenePath, meta.Extension())
	}
	if abs, absErr := filepath.Abs(output); absErr == nil {
		output = abs
	}

	if !s.opts.DryRun {
		if err := preflight.Err(preflight.RunAll(ctx, s.opts.Config(), output)); err != nil {
			return scene.Metadata{}, "", err
		}
	}

	if err := frames.Validate(meta.TotalFrames(), s.opts.Workers); err != nil {
		return scene.Metadata{}, "", err
	}
	if s.opts.Workers == 1 {
		logger.Warn("rendering with a single worker",
			logging.String(logging.FieldEventType, "single_worker"),
			logging.String(logging.FieldErrorHint, "lower render.reserved_cores or pass --workers to parallelize"),
		)
	}
	return meta, output, nil
}

// merge writes the manifest in partition order, concatenates the segments
// inside the workspace, optionally remuxes audio, and moves the result to
// output.
func (s *Session) merge(ctx context.Context, ws *workspace.Workspace, jobs []worker.Job, output, ext string) error {
	manifestPath := ws.Path(manifest.FileName)
	if err := manifest.Write(manifestPath, worker.OutputPaths(jobs)); err != nil {
		return err
	}

	driver := merge.NewDriver(merge.Options{
		FFmpegBinary: s.opts.FFmpegBinary,
		Timeout:      s.opts.MergeTimeout,
		Logger:       logging.WithContext(ctx, s.logger),
	})

	merged := ws.Path("merged." + ext)
	if err := driver.Concat(ctx, manifestPath, merged); err != nil {
		return err
	}
	if s.opts.AudioSource != "" {
		withAudio := ws.Path("merged-audio." + ext)
		if err := driver.MuxAudio(ctx, merged, s.opts.AudioSource, withAudio); err != nil {
			return err
		}
		merged = withAudio
	}
	if err := fileutil.MoveFile(merged, output); err != nil {
		return faults.Wrap(faults.ErrIO, "merge", "move output", output, err)
	}
	return nil
}

func (s *Session) transition(logger *slog.Logger, to State) {
	if !canTransition(s.state, to) {
		logger.Debug("ignored illegal state transition",
			logging.String("from", string(s.state)),
			logging.String("to", string(to)),
		)
		return
	}
	from := s.state
	s.state = to
	s.trail = append(s.trail, to)
	logger.Debug("state transition",
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)
}

// fail moves the session to Failed and logs the single ERROR record for it.
func (s *Session) fail(logger *slog.Logger, stage Stage, cause error) error {
	s.failedStage = stage
	s.transition(logger, StateFailed)
	logging.ErrorWithContext(logger.With(logging.String(logging.FieldStage, string(stage))),
		"render session failed", "session_failure",
		logging.String("error_class", faults.Class(cause)),
		logging.String(logging.FieldErrorHint, hintFor(stage, cause)),
		logging.Error(cause),
	)
	return &StageError{Stage: stage, Err: cause}
}

// preserveWorkerLogs copies failing workers' logs to the log directory
// before the workspace is removed.
func (s *Session) preserveWorkerLogs(logger *slog.Logger, result fleet.Result) []string {
	if strings.TrimSpace(s.opts.LogDir) == "" {
		return nil
	}
	var kept []string
	for _, failure := range result.Failures() {
		if failure.LogPath == "" {
			continue
		}
		dst := filepath.Join(s.opts.LogDir, "sessions", s.id, filepath.Base(failure.LogPath))
		if err := fileutil.CopyFile(failure.LogPath, dst); err != nil {
			logger.Debug("worker log not preserved", logging.String("log", failure.LogPath), logging.Error(err))
			continue
		}
		kept = append(kept, dst)
	}
	return kept
}

func hintFor(stage Stage, err error) string {
	switch {
	case errors.Is(err, faults.ErrNotEnoughUnits):
		return "lower --workers or render more frames"
	case errors.Is(err, workspace.ErrOutputBusy):
		return "another session is rendering to the same output"
	case errors.Is(err, faults.ErrTimeout):
		return "raise the timeout or inspect the stalled process"
	case errors.Is(err, context.Canceled):
		return "session was interrupted"
	}
	switch stage {
	case StageValidate:
		return "run blenderer doctor and check the scene settings"
	case StageFleet:
		return "inspect the preserved worker logs"
	case StageMerge:
		return "check that every segment shares one codec"
	default:
		return "check logs for details"
	}
}

func (s *Session) openJournal(logger *slog.Logger) *history.Store {
	if strings.TrimSpace(s.opts.HistoryPath) == "" {
		return nil
	}
	store, err := history.Open(s.opts.HistoryPath)
	if err != nil {
		logger.Warn("session journal unavailable", logging.Error(err))
		return nil
	}
	return store
}

func (s *Session) journalStart(ctx context.Context, store *history.Store, logger *slog.Logger) {
	if store == nil {
		return
	}
	err := store.Start(context.WithoutCancel(ctx), history.Session{
		ID:         s.id,
		ScenePath:  s.opts.ScenePath,
		OutputPath: s.opts.OutputPath,
		Workers:    s.opts.Workers,
		Policy:     string(s.opts.Policy),
		State:      string(s.state),
	})
	if err != nil {
		logger.Warn("session journal write failed", logging.Error(err))
	}
}

func (s *Session) journalFinish(ctx context.Context, store *history.Store, logger *slog.Logger, result Result, runErr error) {
	if store == nil {
		return
	}
	outcome := history.Outcome{
		OutputPath: result.OutputPath,
		Workers:    s.opts.Workers,
		State:      string(s.state),
		ExitCodes:  result.Fleet.ExitCodes,
	}
	if result.Workers > 0 {
		outcome.StartFrame = result.Scene.FrameStart
		outcome.TotalFrames = result.Scene.TotalFrames()
	}
	if runErr != nil {
		outcome.FailedStage = string(s.failedStage)
		outcome.ErrorClass = faults.Class(runErr)
		outcome.ErrorMessage = runErr.Error()
	}
	if err := store.Finish(context.WithoutCancel(ctx), s.id, outcome); err != nil {
		logger.Warn("session journal write failed", logging.Error(err))
	}
}
