package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"blenderer/internal/frames"
	"blenderer/internal/worker"
)

type planOutput struct {
	Start     int            `json:"start"`
	Frames    int            `json:"frames"`
	Workers   int            `json:"workers"`
	Ranges    []frames.Range `json:"ranges"`
	Effective []frames.Range `json:"effective"`
	Jobs      []worker.Job   `json:"jobs"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var (
		start      int
		total      int
		workers    int
		scenePath  string
		extension  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the frame partition and worker commands without rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.EffectiveWorkers()
			}
			if err := frames.Validate(total, workers); err != nil {
				return err
			}

			ranges := frames.Partition(start, total, workers)
			effective := frames.Effective(ranges)
			spec := worker.Spec{
				Executable:   cfg.Render.BlenderBinary,
				ScenePath:    scenePath,
				OutputDir:    filepath.Join(cfg.Paths.WorkspaceDir, "session-<id>", "segments"),
				Extension:    extension,
				FilterScript: cfg.Render.FilterScript,
			}
			jobs, err := worker.BuildAll(spec, effective)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, planOutput{
					Start:     start,
					Frames:    total,
					Workers:   workers,
					Ranges:    ranges,
					Effective: effective,
					Jobs:      jobs,
				})
			}

			out := cmd.OutOrStdout()
			span := frames.Span(effective)
			fmt.Fprintf(out, "%d frames (%s) across %d workers, %d per range\n",
				total, span, workers, (total+workers-1)/workers)
			if dropped := len(ranges) - len(effective); dropped > 0 {
				fmt.Fprintf(out, "%d trailing ranges collapse onto the last frame and are skipped\n", dropped)
			}
			fmt.Fprintln(out, jobsTable(jobs))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&start, "start", 1, "First frame of the span")
	flags.IntVar(&total, "frames", 0, "Number of frames in the span")
	flags.IntVarP(&workers, "workers", "w", 0, "Number of workers (default from config)")
	flags.StringVar(&scenePath, "scene", "scene.blend", "Scene path shown in the worker commands")
	flags.StringVar(&extension, "extension", "mp4", "Container extension of the per-range artifacts")
	flags.BoolVar(&jsonOutput, "json", false, "Print the plan as JSON")
	_ = cmd.MarkFlagRequired("frames")
	return cmd
}
