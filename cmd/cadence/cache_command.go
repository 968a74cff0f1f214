package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cadence/internal/audiocache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Audio path cache utilities",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [analysis-id]",
		Short: "List cached audio paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer cache.Close()

			var entries []audiocache.Entry
			if len(args) == 1 {
				entries, err = cache.ListByAnalysis(cmd.Context(), strings.TrimSpace(args[0]))
			} else {
				entries, err = cache.List(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list cache entries: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No cached audio paths")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					shortID(entry.FeedbackID),
					entry.AnalysisID,
					entry.Path,
					entry.UpdatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Feedback", "Analysis", "Path", "Updated"}, rows))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <analysis-id>",
		Short: "Drop cached audio paths for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer cache.Close()

			removed, err := cache.Clear(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("clear cache entries: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached audio path(s)\n", removed)
			return nil
		},
	}
}

func openCache(ctx *commandContext) (*audiocache.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	cache, err := audiocache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open audio cache: %w", err)
	}
	return cache, nil
}
