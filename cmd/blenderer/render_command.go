package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blenderer/internal/fleet"
	"blenderer/internal/render"
	"blenderer/internal/worker"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		workers      int
		output       string
		descriptor   string
		policy       string
		jobTimeout   time.Duration
		mergeTimeout time.Duration
		dryRun       bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "render SCENE [-- filter args...]",
		Short: "Render a scene across parallel Blender workers and merge the result",
		Long: "Render splits the scene's frame span into one contiguous range per worker,\n" +
			"runs a background Blender process per range, and concatenates the\n" +
			"per-range videos into a single output. Arguments after -- are passed to\n" +
			"the filter script of every worker.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenePath, filterArgs, err := splitRenderArgs(args, cmd.ArgsLenAtDash())
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			opts := render.OptionsFromConfig(cfg)
			opts.ScenePath = scenePath
			opts.FilterArgs = filterArgs
			opts.OutputPath = output
			opts.DescriptorPath = descriptor
			opts.DryRun = dryRun

			flags := cmd.Flags()
			if flags.Changed("workers") {
				opts.Workers = workers
			}
			if flags.Changed("policy") {
				parsed, err := fleet.ParsePolicy(policy)
				if err != nil {
					return err
				}
				opts.Policy = parsed
			}
			if flags.Changed("job-timeout") {
				opts.JobTimeout = jobTimeout
			}
			if flags.Changed("merge-timeout") {
				opts.MergeTimeout = mergeTimeout
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := render.New(opts, logger).Run(runCtx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			if result.DryRun {
				fmt.Fprintf(out, "Dry run: %d frames (%d-%d) across %d workers\n",
					result.Scene.TotalFrames(), result.Scene.FrameStart, result.Scene.FrameEnd, len(result.Jobs))
				fmt.Fprintf(out, "Output: %s\n", result.OutputPath)
				fmt.Fprintln(out, jobsTable(result.Jobs))
				return nil
			}
			fmt.Fprintf(out, "Rendered %s (%d frames, %d workers, %s)\n",
				result.OutputPath, result.Scene.TotalFrames(), len(result.Jobs), formatDuration(result.Elapsed))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&workers, "workers", "w", 0, "Number of parallel workers (default from config)")
	flags.StringVarP(&output, "output", "o", "", "Final output path (default: scene path with the container extension)")
	flags.StringVar(&descriptor, "descriptor", "", "YAML scene descriptor used instead of probing the scene with Blender")
	flags.StringVar(&policy, "policy", "", "Fleet failure policy: wait_all or fail_fast")
	flags.DurationVar(&jobTimeout, "job-timeout", 0, "Per-worker timeout (0 disables)")
	flags.DurationVar(&mergeTimeout, "merge-timeout", 0, "Merge step timeout")
	flags.BoolVar(&dryRun, "dry-run", false, "Validate and print the plan without launching workers")
	flags.BoolVar(&jsonOutput, "json", false, "Print the session result as JSON")
	return cmd
}

// splitRenderArgs separates the scene path from the filter arguments that
// follow "--". dash is cobra's ArgsLenAtDash value.
func splitRenderArgs(args []string, dash int) (string, []string, error) {
	if dash < 0 {
		if len(args) != 1 {
			return "", nil, fmt.Errorf("render takes exactly one scene path, got %d arguments (pass filter arguments after --)", len(args))
		}
		return args[0], nil, nil
	}
	if dash != 1 {
		return "", nil, errors.New("render takes exactly one scene path before --")
	}
	return args[0], args[1:], nil
}

func jobsTable(jobs []worker.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.Itoa(job.Index + 1),
			job.Range.String(),
			strconv.Itoa(job.Range.Len()),
			job.CommandLine(),
		})
	}
	return renderTable(
		[]string{"Worker", "Frames", "Count", "Command"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	)
}
