package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"qoed/internal/telemetry"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Register manifests and submit playback telemetry",
	}

	submitCmd.AddCommand(newSubmitManifestCommand(ctx))
	submitCmd.AddCommand(newSubmitTelemetryCommand(ctx))

	return submitCmd
}

func newSubmitManifestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <mpd-url>",
		Short: "Register a DASH manifest for acquisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestURL := strings.TrimSpace(args[0])
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := client.RegisterManifest(cmd.Context(), manifestURL)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Created {
				fmt.Fprintf(out, "Registered video %d (%s)\n", resp.VideoID, resp.Status)
			} else {
				fmt.Fprintf(out, "Manifest already registered as video %d (%s)\n", resp.VideoID, resp.Status)
			}
			return nil
		},
	}
}

func newSubmitTelemetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "telemetry <mpd-url> <events-file>",
		Short: "Submit a playback session's telemetry events",
		Long:  "Submit a JSON array of dash.js telemetry events for a registered manifest. Pass - to read the events from stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestURL := strings.TrimSpace(args[0])
			events, err := readTelemetryEvents(cmd, args[1])
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := client.SubmitTelemetry(cmd.Context(), manifestURL, events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted session %d\n", resp.SessionID)
			return nil
		},
	}
}

func readTelemetryEvents(cmd *cobra.Command, source string) ([]telemetry.Event, error) {
	var data []byte
	var err error
	if source == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read events from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read events file: %w", err)
		}
	}

	var events []telemetry.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	return events, nil
}
