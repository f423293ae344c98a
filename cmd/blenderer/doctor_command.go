package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"blenderer/internal/deps"
	"blenderer/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external binaries and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := preflight.CheckSystemDeps(cfg)
			rows := make([][]string, 0, len(statuses)+1)
			for _, status := range statuses {
				rows = append(rows, []string{status.Name, dependencyState(status), dashIfEmpty(status.Resolved), dashIfEmpty(status.Detail)})
			}
			for _, status := range statuses {
				if status.Name == "Blender" && status.Available {
					version := preflight.CheckBlenderVersion(cmd.Context(), status.Resolved)
					rows = append(rows, []string{version.Name, passLabel(version.Passed), "-", version.Detail})
				}
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Path", "Detail"}, rows, nil))

			checks := preflight.RunAll(cmd.Context(), cfg, "")
			checkRows := make([][]string, 0, len(checks))
			for _, check := range checks {
				checkRows = append(checkRows, []string{check.Name, passLabel(check.Passed), check.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, checkRows, nil))

			if err := errors.Join(deps.Missing(statuses), preflight.Err(checks)); err != nil {
				return err
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func dependencyState(status deps.Status) string {
	switch {
	case status.Available:
		return "ok"
	case status.Optional:
		return "missing (optional)"
	default:
		return "missing"
	}
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "failed"
}
