package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"qoed/internal/api"
	"qoed/internal/store"
)

const resultPollInterval = 2 * time.Second

func newResultCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "result <session-id>",
		Short: "Fetch a session's MOS scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			resp, err := client.Result(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			if wait {
				resp, err = waitForResult(cmd.Context(), client, sessionID, resp)
				if err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if !resp.Ready {
				if resp.Status == string(store.SessionFailed) {
					if resp.Error != "" {
						return fmt.Errorf("session %d failed: %s", sessionID, resp.Error)
					}
					return fmt.Errorf("session %d failed", sessionID)
				}
				fmt.Fprintf(out, "Session %d is not scored yet (%s)\n", sessionID, resp.Status)
				return nil
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Score", "Value"},
				[][]string{
					{"O23 (stalling)", fmt.Sprintf("%.4f", resp.Result.O23)},
					{"O35 (audiovisual)", fmt.Sprintf("%.4f", resp.Result.O35)},
					{"O46 (overall MOS)", fmt.Sprintf("%.4f", resp.Result.O46)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the session is scored or fails")
	return cmd
}

func waitForResult(ctx context.Context, client *apiClient, sessionID int64, resp api.ResultResponse) (api.ResultResponse, error) {
	ticker := time.NewTicker(resultPollInterval)
	defer ticker.Stop()

	for !resp.Ready && resp.Status != string(store.SessionFailed) {
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-ticker.C:
		}

		var err error
		resp, err = client.Result(ctx, sessionID)
		if err != nil {
			return resp, err
		}
	}
	return resp, nil
}
