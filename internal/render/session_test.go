package render_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"blenderer/internal/config"
	"blenderer/internal/faults"
	"blenderer/internal/fleet"
	"blenderer/internal/render"
	"blenderer/internal/scene"
	"blenderer/internal/testsupport"
	"blenderer/internal/workspace"
)

type fixture struct {
	cfg    *config.Config
	scene  string
	output string
	opts   render.Options
}

func newFixture(t *testing.T, frameStart, frameEnd int, opts ...testsupport.ConfigOption) fixture {
	t.Helper()
	base := []testsupport.ConfigOption{
		testsupport.WithBlenderScript(testsupport.BlenderScript),
		testsupport.WithFFmpegScript(testsupport.FFmpegScript),
	}
	cfg := testsupport.NewConfig(t, append(base, opts...)...)

	projectDir := t.TempDir()
	scenePath := filepath.Join(projectDir, "intro.blend")
	testsupport.WriteFile(t, scenePath, 16)

	descriptor := filepath.Join(projectDir, "intro.yaml")
	body := fmt.Sprintf(`scene: Scene
frame_start: %d
frame_end: %d
fps: 24
resolution_x: 1920
resolution_y: 1080
resolution_percent: 100
file_format: FFMPEG
video_format: MPEG4
video_codec: H264
`, frameStart, frameEnd)
	if err := os.WriteFile(descriptor, []byte(body), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}

	options := render.OptionsFromConfig(cfg)
	options.ScenePath = scenePath
	options.DescriptorPath = descriptor
	options.OutputPath = filepath.Join(projectDir, "intro.mp4")
	options.StaleAfter = 0

	return fixture{cfg: cfg, scene: scenePath, output: options.OutputPath, opts: options}
}

func sessionDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read workspace root: %v", err)
	}
	var dirs []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "session-") {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs
}

func markerScript(marker string) string {
	return fmt.Sprintf("touch %q\nexit 0\n", marker)
}

func TestRunSuccessMergesInPartitionOrder(t *testing.T) {
	fx := newFixture(t, 0, 9, testsupport.WithWorkers(4))

	session := render.New(fx.opts, nil)
	result, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != render.StateFinalized {
		t.Fatalf("state = %s, want finalized", result.State)
	}
	if result.OutputPath != fx.output {
		t.Fatalf("output = %q, want %q", result.OutputPath, fx.output)
	}

	data, err := os.ReadFile(fx.output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "frames 0-2\nframes 3-5\nframes 6-8\nframes 9-9\n"
	if string(data) != want {
		t.Fatalf("merged output = %q, want %q", data, want)
	}

	wantTrail := []render.State{
		render.StateInitialized,
		render.StateValidated,
		render.StatePartitioned,
		render.StateFleetDispatched,
		render.StateFleetCompleted,
		render.StateMerged,
		render.StateFinalized,
	}
	if !reflect.DeepEqual(session.Trail(), wantTrail) {
		t.Fatalf("trail = %v", session.Trail())
	}
	if dirs := sessionDirs(t, fx.cfg.Paths.WorkspaceDir); len(dirs) != 0 {
		t.Fatalf("workspace left behind: %v", dirs)
	}
	if len(result.Fleet.ExitCodes) != 4 || !result.Fleet.Succeeded {
		t.Fatalf("fleet result = %+v", result.Fleet)
	}

	store := testsupport.MustOpenHistory(t, fx.cfg)
	row, err := store.Get(context.Background(), session.ID())
	if err != nil || row == nil {
		t.Fatalf("history row: %v %v", row, err)
	}
	if row.State != string(render.StateFinalized) || row.TotalFrames != 10 || row.Workers != 4 {
		t.Fatalf("unexpected history row: %+v", row)
	}
}

func TestRunKeepsPartitionOrderWhenCompletionIsReversed(t *testing.T) {
	fx := newFixture(t, 0, 3,
		testsupport.WithWorkers(2),
		testsupport.WithBlenderScript(testsupport.BlenderScriptDelayed),
	)

	result, err := render.New(fx.opts, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Fleet.Finished) != 2 || result.Fleet.Finished[0] != 1 {
		t.Fatalf("expected job 2 to finish first, got %v", result.Fleet.Finished)
	}
	data, err := os.ReadFile(fx.output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "frames 0-1\nframes 2-3\n" {
		t.Fatalf("merged output = %q", data)
	}
}

func TestRunFleetFailureSkipsMergeAndCleansUp(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ffmpeg-called")
	fx := newFixture(t, 0, 11,
		testsupport.WithWorkers(4),
		testsupport.WithBlenderScript(testsupport.BlenderScriptFailingAt(6, 1)),
		testsupport.WithFFmpegScript(markerScript(marker)),
	)

	session := render.New(fx.opts, nil)
	result, err := session.Run(context.Background())
	if err == nil {
		t.Fatal("expected fleet failure")
	}
	var stageErr *render.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != render.StageFleet {
		t.Fatalf("expected fleet stage error, got %v", err)
	}
	if !errors.Is(err, faults.ErrFleet) {
		t.Fatalf("expected ErrFleet, got %v", err)
	}
	var fleetErr *fleet.Error
	if !errors.As(err, &fleetErr) || len(fleetErr.Failures) != 1 || fleetErr.Failures[0].Index != 2 {
		t.Fatalf("expected worker index 2 to fail, got %v", err)
	}

	if !reflect.DeepEqual(result.Fleet.ExitCodes, []int{0, 0, 1, 0}) {
		t.Fatalf("exit codes = %v", result.Fleet.ExitCodes)
	}
	if session.State() != render.StateFailed {
		t.Fatalf("state = %s", session.State())
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("merge must not run after a fleet failure")
	}
	if _, err := os.Stat(fx.output); !os.IsNotExist(err) {
		t.Fatal("no output expected after a fleet failure")
	}
	if dirs := sessionDirs(t, fx.cfg.Paths.WorkspaceDir); len(dirs) != 0 {
		t.Fatalf("workspace left behind: %v", dirs)
	}
	if len(result.PreservedLogs) != 1 {
		t.Fatalf("preserved logs = %v", result.PreservedLogs)
	}
	logData, err := os.ReadFile(result.PreservedLogs[0])
	if err != nil || !strings.Contains(string(logData), "out of memory") {
		t.Fatalf("preserved log = %q, %v", logData, err)
	}

	row, _ := testsupport.MustOpenHistory(t, fx.cfg).Get(context.Background(), session.ID())
	if row == nil || row.FailedStage != "fleet" || row.ErrorClass != "fleet" {
		t.Fatalf("unexpected history row: %+v", row)
	}
}

func TestRunMergeFailureRemovesWorkspace(t *testing.T) {
	fx := newFixture(t, 1, 8,
		testsupport.WithWorkers(2),
		testsupport.WithFFmpegScript(testsupport.FFmpegScriptFailing),
	)

	_, err := render.New(fx.opts, nil).Run(context.Background())
	var stageErr *render.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != render.StageMerge {
		t.Fatalf("expected merge stage error, got %v", err)
	}
	if !errors.Is(err, faults.ErrMerge) {
		t.Fatalf("expected ErrMerge, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("merge error should carry ffmpeg output: %v", err)
	}
	if dirs := sessionDirs(t, fx.cfg.Paths.WorkspaceDir); len(dirs) != 0 {
		t.Fatalf("workspace left behind: %v", dirs)
	}
	if _, err := os.Stat(fx.output); !os.IsNotExist(err) {
		t.Fatal("no output expected after a merge failure")
	}
}

func TestRunRejectsFewerFramesThanWorkers(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "blender-called")
	fx := newFixture(t, 0, 1,
		testsupport.WithWorkers(4),
		testsupport.WithBlenderScript(markerScript(marker)),
	)

	session := render.New(fx.opts, nil)
	_, err := session.Run(context.Background())
	var stageErr *render.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != render.StageValidate {
		t.Fatalf("expected validate stage error, got %v", err)
	}
	if !errors.Is(err, faults.ErrNotEnoughUnits) || !faults.IsConfiguration(err) {
		t.Fatalf("expected not-enough-units, got %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("no worker may launch after a validation failure")
	}
	if dirs := sessionDirs(t, fx.cfg.Paths.WorkspaceDir); len(dirs) != 0 {
		t.Fatalf("workspace created before validation: %v", dirs)
	}
	if !reflect.DeepEqual(session.Trail(), []render.State{render.StateInitialized, render.StateFailed}) {
		t.Fatalf("trail = %v", session.Trail())
	}
}

func TestRunRejectsOddResolution(t *testing.T) {
	fx := newFixture(t, 0, 9)
	body := "frame_start: 0\nframe_end: 9\nresolution_x: 1919\nresolution_y: 1080\nresolution_percent: 100\n"
	if err := os.WriteFile(fx.opts.DescriptorPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := render.New(fx.opts, nil).Run(context.Background())
	if !errors.Is(err, scene.ErrResolutionNotDivisible) || !faults.IsConfiguration(err) {
		t.Fatalf("expected resolution configuration error, got %v", err)
	}
}

func TestRunMissingBlenderIsConfigError(t *testing.T) {
	fx := newFixture(t, 0, 9)
	opts := fx.opts
	opts.BlenderBinary = filepath.Join(t.TempDir(), "no-blender")

	_, err := render.New(opts, nil).Run(context.Background())
	var stageErr *render.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != render.StageValidate || !faults.IsConfiguration(err) {
		t.Fatalf("expected validate configuration error, got %v", err)
	}
}

func TestRunDryRunLaunchesNothing(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "blender-called")
	fx := newFixture(t, 1, 481,
		testsupport.WithWorkers(4),
		testsupport.WithBlenderScript(markerScript(marker)),
	)
	opts := fx.opts
	opts.DryRun = true

	result, err := render.New(opts, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != render.StatePartitioned || !result.DryRun {
		t.Fatalf("state = %s", result.State)
	}
	if len(result.Jobs) != 4 || result.Jobs[3].Range.Start != 364 || result.Jobs[3].Range.End != 481 {
		t.Fatalf("unexpected jobs: %+v", result.Jobs)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("dry run must not launch workers")
	}
	if dirs := sessionDirs(t, fx.cfg.Paths.WorkspaceDir); len(dirs) != 0 {
		t.Fatalf("dry run created a workspace: %v", dirs)
	}
}

func TestRunCollapsedRangesLaunchFewerWorkers(t *testing.T) {
	fx := newFixture(t, 0, 4, testsupport.WithWorkers(4))

	result, err := render.New(fx.opts, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Ranges) != 4 || len(result.Jobs) != 3 {
		t.Fatalf("ranges=%d jobs=%d", len(result.Ranges), len(result.Jobs))
	}
	data, _ := os.ReadFile(fx.output)
	if string(data) != "frames 0-1\nframes 2-3\nframes 4-4\n" {
		t.Fatalf("merged output = %q", data)
	}
}

func TestRunFailsWhenOutputIsLocked(t *testing.T) {
	fx := newFixture(t, 0, 9)
	held, err := workspace.Acquire(fx.cfg.Paths.WorkspaceDir, "other-session", fx.output)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	_, err = render.New(fx.opts, nil).Run(context.Background())
	var stageErr *render.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != render.StagePartition {
		t.Fatalf("expected partition stage error, got %v", err)
	}
	if !errors.Is(err, workspace.ErrOutputBusy) {
		t.Fatalf("expected ErrOutputBusy, got %v", err)
	}
}

func TestRunWithAudioRemux(t *testing.T) {
	fx := newFixture(t, 0, 3, testsupport.WithWorkers(2))
	audio := filepath.Join(t.TempDir(), "soundtrack.wav")
	testsupport.WriteFile(t, audio, 32)
	opts := fx.opts
	opts.AudioSource = audio

	if _, err := render.New(opts, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(fx.output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "frames 0-1\nframes 2-3\n" {
		t.Fatalf("remuxed output = %q", data)
	}
}

func TestRunVerifiesSegments(t *testing.T) {
	fx := newFixture(t, 0, 3,
		testsupport.WithWorkers(2),
		testsupport.WithFFprobeScript(testsupport.FFprobeScript),
	)
	opts := fx.opts
	opts.VerifySegments = true

	if _, err := render.New(opts, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunSegmentWithoutVideoFailsFleet(t *testing.T) {
	fx := newFixture(t, 0, 3,
		testsupport.WithWorkers(2),
		testsupport.WithFFprobeScript("echo '{\"streams\":[],\"format\":{}}'\n"),
	)
	opts := fx.opts
	opts.VerifySegments = true

	_, err := render.New(opts, nil).Run(context.Background())
	var stageErr *render.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != render.StageFleet || !errors.Is(err, faults.ErrFleet) {
		t.Fatalf("expected fleet verification failure, got %v", err)
	}
}

func TestRunCancelledSessionCleansUp(t *testing.T) {
	fx := newFixture(t, 0, 3,
		testsupport.WithWorkers(2),
		testsupport.WithBlenderScript("exec sleep 30\n"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	_, err := render.New(fx.opts, nil).Run(ctx)
	var stageErr *render.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != render.StageFleet {
		t.Fatalf("expected fleet stage error, got %v", err)
	}
	if dirs := sessionDirs(t, fx.cfg.Paths.WorkspaceDir); len(dirs) != 0 {
		t.Fatalf("workspace left behind: %v", dirs)
	}
}

func TestSessionIsSingleUse(t *testing.T) {
	fx := newFixture(t, 0, 3, testsupport.WithWorkers(2))
	session := render.New(fx.opts, nil)
	if _, err := session.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := session.Run(context.Background()); err == nil {
		t.Fatal("expected second Run to fail")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Workers = 6
	cfg.Fleet.Policy = config.PolicyFailFast
	cfg.Fleet.JobTimeoutSeconds = 90
	cfg.Merge.TimeoutSeconds = 120
	cfg.History.Enabled = false

	opts := render.OptionsFromConfig(&cfg)
	if opts.Workers != 6 || opts.Policy != fleet.FailFast {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.JobTimeout != 90*time.Second || opts.MergeTimeout != 2*time.Minute {
		t.Fatalf("unexpected timeouts: %s %s", opts.JobTimeout, opts.MergeTimeout)
	}
	if opts.HistoryPath != "" {
		t.Fatal("history path must be empty when the journal is disabled")
	}
}
