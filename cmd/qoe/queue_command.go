package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"qoed/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List registered videos and playback sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			queue, err := client.Queue(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, queue)
			}

			out := cmd.OutOrStdout()
			if len(queue.Videos) == 0 && len(queue.Sessions) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			if len(queue.Videos) > 0 {
				fmt.Fprintln(out, renderVideoTable(queue.Videos))
			}
			if len(queue.Sessions) > 0 {
				fmt.Fprintln(out, renderSessionTable(queue.Sessions))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderVideoTable(videos []api.Video) string {
	rows := make([][]string, 0, len(videos))
	for _, video := range videos {
		detail := video.ErrorMessage
		if detail == "" && len(video.RepresentationRanks) > 0 {
			detail = fmt.Sprintf("%d renditions", len(video.RepresentationRanks))
		}
		rows = append(rows, []string{
			strconv.FormatInt(video.ID, 10),
			video.Status,
			video.ManifestURL,
			detail,
		})
	}
	return renderTable(
		[]string{"Video", "Status", "Manifest", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func renderSessionTable(sessions []api.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		detail := session.ErrorMessage
		if detail == "" && session.Result != nil {
			detail = fmt.Sprintf("O46 %.3f", session.Result.O46)
		}
		rows = append(rows, []string{
			strconv.FormatInt(session.ID, 10),
			strconv.FormatInt(session.VideoID, 10),
			session.Status,
			detail,
		})
	}
	return renderTable(
		[]string{"Session", "Video", "Status", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
	)
}
