package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"qoed/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderStatusLines(status, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderStatusLines(status api.DaemonStatus, colorize bool) []string {
	var lines []string

	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	runningKind := statusError
	runningMsg := "stopped"
	if status.Running {
		runningKind = statusOK
		runningMsg = fmt.Sprintf("pid %d", status.PID)
	}
	lines = append(lines, renderStatusLine("Daemon", runningKind, runningMsg, colorize))
	lines = append(lines, renderStatusLine("State DB", statusInfo, status.StateDBPath, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Workflow", colorize)...)
	wf := status.Workflow
	wfKind := statusWarn
	wfMsg := "idle"
	if wf.Running {
		wfKind = statusOK
		wfMsg = "running"
	}
	lines = append(lines, renderStatusLine("Lanes", wfKind, wfMsg, colorize))
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, wf.LastError, colorize))
	}
	for _, stage := range wf.StageHealth {
		kind := statusOK
		if !stage.Ready {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(stage.Name, kind, stage.Detail, colorize))
	}

	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Tools", colorize)...)
		for _, dep := range status.Dependencies {
			kind := statusOK
			msg := dep.Command
			if !dep.Available {
				kind = statusError
				msg = dep.Detail
			}
			lines = append(lines, renderStatusLine(dep.Name, kind, msg, colorize))
		}
	}

	if table := renderStatsTable("Videos", wf.VideoStats); table != "" {
		lines = append(lines, "", table)
	}
	if table := renderStatsTable("Sessions", wf.SessionStats); table != "" {
		lines = append(lines, "", table)
	}
	return lines
}

func renderStatsTable(label string, stats map[string]int) string {
	if len(stats) == 0 {
		return ""
	}
	statuses := make([]string, 0, len(stats))
	for status := range stats {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{status, strconv.Itoa(stats[status])})
	}
	header := strings.TrimSpace(label) + " status"
	return renderTable([]string{header, "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}
