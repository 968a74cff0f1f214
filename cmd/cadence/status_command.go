package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cadence/internal/feedback"
	"cadence/internal/wire"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Show pipeline status for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysisID := strings.TrimSpace(args[0])
			if analysisID == "" {
				return fmt.Errorf("analysis id is required")
			}

			client, err := ctx.newRemoteClient()
			if err != nil {
				return err
			}
			records, err := client.FetchFeedbackStatus(cmd.Context(), analysisID)
			if err != nil {
				return fmt.Errorf("fetch feedback status: %w", err)
			}

			if jsonOut {
				payload := struct {
					AnalysisID string        `json:"analysis_id"`
					Records    []wire.Record `json:"records"`
					Stats      statsJSON     `json:"stats"`
				}{AnalysisID: analysisID, Stats: newStatsJSON(feedback.ComputeStats(records))}
				for _, rec := range records {
					payload.Records = append(payload.Records, wire.FromRecord(rec))
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderFeedbackTable(records, colorize))
			fmt.Fprintln(out)
			for _, line := range statsLines(feedback.ComputeStats(records)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderFeedbackTable(records []feedback.Record, colorize bool) string {
	headers := []string{"ID", "Category", "At", "SSML", "Tries", "Audio", "Tries", "Last Error"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			shortID(rec.ID),
			titleCase(rec.Category),
			fmt.Sprintf("%.1fs", rec.TimestampSeconds),
			statusCell(rec.SSMLStatus, colorize),
			fmt.Sprintf("%d", rec.SSMLAttempts),
			statusCell(rec.AudioStatus, colorize),
			fmt.Sprintf("%d", rec.AudioAttempts),
			lastErrorCell(rec),
		})
	}
	return renderTable(headers, rows, 3, 5, 7)
}

func statsLines(stats feedback.Stats) []string {
	return []string{
		fmt.Sprintf("Feedback items: %d", stats.Total),
		fmt.Sprintf("SSML:  %d queued, %d processing, %d completed, %d failed (max attempts %d)",
			stats.SSMLQueued, stats.SSMLProcessing, stats.SSMLCompleted, stats.SSMLFailed, stats.MaxSSMLAttempts),
		fmt.Sprintf("Audio: %d queued, %d processing, %d completed, %d failed, %d retrying (max attempts %d)",
			stats.AudioQueued, stats.AudioProcessing, stats.AudioCompleted, stats.AudioFailed, stats.AudioRetrying, stats.MaxAudioAttempts),
	}
}

type statsJSON struct {
	Total            int `json:"total"`
	SSMLQueued       int `json:"ssml_queued"`
	SSMLProcessing   int `json:"ssml_processing"`
	SSMLCompleted    int `json:"ssml_completed"`
	SSMLFailed       int `json:"ssml_failed"`
	AudioQueued      int `json:"audio_queued"`
	AudioProcessing  int `json:"audio_processing"`
	AudioCompleted   int `json:"audio_completed"`
	AudioFailed      int `json:"audio_failed"`
	AudioRetrying    int `json:"audio_retrying"`
	MaxSSMLAttempts  int `json:"max_ssml_attempts"`
	MaxAudioAttempts int `json:"max_audio_attempts"`
}

func newStatsJSON(stats feedback.Stats) statsJSON {
	return statsJSON{
		Total:            stats.Total,
		SSMLQueued:       stats.SSMLQueued,
		SSMLProcessing:   stats.SSMLProcessing,
		SSMLCompleted:    stats.SSMLCompleted,
		SSMLFailed:       stats.SSMLFailed,
		AudioQueued:      stats.AudioQueued,
		AudioProcessing:  stats.AudioProcessing,
		AudioCompleted:   stats.AudioCompleted,
		AudioFailed:      stats.AudioFailed,
		AudioRetrying:    stats.AudioRetrying,
		MaxSSMLAttempts:  stats.MaxSSMLAttempts,
		MaxAudioAttempts: stats.MaxAudioAttempts,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func lastErrorCell(rec feedback.Record) string {
	if rec.AudioLastError != "" {
		return rec.AudioLastError
	}
	return rec.SSMLLastError
}
