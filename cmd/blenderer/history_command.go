package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"blenderer/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent render sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Session journal is disabled (history.enabled = false)")
				return nil
			}

			store, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return fmt.Errorf("open session journal: %w", err)
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if jsonOutput {
				if sessions == nil {
					sessions = []*history.Session{}
				}
				return writeJSON(cmd, sessions)
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			fmt.Fprintln(out, historyTable(sessions))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print sessions as JSON")
	return cmd
}

func historyTable(sessions []*history.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		frames := "-"
		if s.TotalFrames > 0 {
			frames = fmt.Sprintf("%d-%d", s.StartFrame, s.StartFrame+s.TotalFrames-1)
		}
		state := stateLabel(s.State)
		if s.FailedStage != "" {
			state += " (" + s.FailedStage + ")"
		}
		rows = append(rows, []string{
			shortID(s.ID),
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			state,
			strconv.Itoa(s.Workers),
			frames,
			formatDuration(s.Duration()),
			dashIfEmpty(s.OutputPath),
			dashIfEmpty(truncate(s.ErrorMessage, 60)),
		})
	}
	return renderTable(
		[]string{"Session", "Started", "State", "Workers", "Frames", "Duration", "Output", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
