package render

import (
	"slices"
	"strings"
	"time"

	"blenderer/internal/config"
	"blenderer/internal/fleet"
)

// Options is the immutable input of a Session. Build it with
// OptionsFromConfig and adjust fields before calling New; the Session keeps
// its own copy.
type Options struct {
	ScenePath      string
	OutputPath     string
	DescriptorPath string

	Workers          int
	Policy           fleet.Policy
	JobTimeout       time.Duration
	TerminationGrace time.Duration
	MergeTimeout     time.Duration

	BlenderBinary string
	FFmpegBinary  string
	FFprobeBinary string

	FilterScript   string
	FilterArgs     []string
	AudioSource    string
	VerifySegments bool

	WorkspaceRoot string
	LogDir        string
	StaleAfter    time.Duration
	HistoryPath   string

	DryRun bool
}

// OptionsFromConfig derives session options from a loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	policy, err := fleet.ParsePolicy(cfg.Fleet.Policy)
	if err != nil {
		policy = fleet.WaitAll
	}
	opts := Options{
		Workers:          cfg.EffectiveWorkers(),
		Policy:           policy,
		JobTimeout:       seconds(cfg.Fleet.JobTimeoutSeconds),
		TerminationGrace: seconds(cfg.Fleet.TerminationGraceSeconds),
		MergeTimeout:     seconds(cfg.Merge.TimeoutSeconds),
		BlenderBinary:    cfg.Render.BlenderBinary,
		FFmpegBinary:     cfg.Merge.FFmpegBinary,
		FFprobeBinary:    cfg.Merge.FFprobeBinary,
		FilterScript:     cfg.Render.FilterScript,
		AudioSource:      cfg.Merge.AudioSource,
		VerifySegments:   cfg.Render.VerifySegments,
		WorkspaceRoot:    cfg.Paths.WorkspaceDir,
		LogDir:           cfg.Paths.LogDir,
		StaleAfter:       time.Duration(cfg.Workspace.StaleAfterHours) * time.Hour,
	}
	if cfg.History.Enabled {
		opts.HistoryPath = cfg.Paths.HistoryDB
	}
	return opts
}

// Config renders the options back into the config shape used by preflight
// and dependency checks.
func (o Options) Config() *config.Config {
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = o.WorkspaceRoot
	cfg.Paths.LogDir = o.LogDir
	cfg.Paths.HistoryDB = o.HistoryPath
	cfg.Render.BlenderBinary = o.BlenderBinary
	cfg.Render.Workers = o.Workers
	cfg.Render.FilterScript = o.FilterScript
	cfg.Render.VerifySegments = o.VerifySegments
	cfg.Fleet.Policy = string(o.Policy)
	cfg.Merge.FFmpegBinary = o.FFmpegBinary
	cfg.Merge.FFprobeBinary = o.FFprobeBinary
	cfg.Merge.AudioSource = o.AudioSource
	return &cfg
}

func (o Options) clone() Options {
	o.ScenePath = strings.TrimSpace(o.ScenePath)
	o.OutputPath = strings.TrimSpace(o.OutputPath)
	o.DescriptorPath = strings.TrimSpace(o.DescriptorPath)
	o.FilterArgs = slices.Clone(o.FilterArgs)
	if o.Policy == "" {
		o.Policy = fleet.WaitAll
	}
	return o
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
