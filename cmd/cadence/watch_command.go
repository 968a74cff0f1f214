package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"cadence/internal/audiocache"
	"cadence/internal/feedback"
	"cadence/internal/logging"
	"cadence/internal/preflight"
	"cadence/internal/realtime"
	"cadence/internal/store"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var follow bool
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "watch <analysis-id>",
		Short: "Follow pipeline status for an analysis live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysisID := strings.TrimSpace(args[0])
			if analysisID == "" {
				return fmt.Errorf("analysis id is required")
			}
			return runWatch(cmd, ctx, analysisID, interval, follow, skipChecks)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Redraw interval")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep watching after every pipeline settles")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip preflight checks")
	return cmd
}

func runWatch(cmd *cobra.Command, cmdCtx *commandContext, analysisID string, interval time.Duration, follow, skipChecks bool) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}
	client, err := cmdCtx.newRemoteClient()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if !skipChecks {
		results := preflight.RunAll(cmd.Context(), cfg, client)
		for _, res := range results {
			fmt.Fprintln(out, checkLine(res.Name, res.Passed, res.Detail, colorize))
		}
		if !preflight.AllPassed(results) {
			return errors.New("preflight checks failed")
		}
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "cadence-watch.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire watch lock: %w", err)
	}
	if !ok {
		return errors.New("another cadence watch is already running")
	}
	defer lock.Unlock()

	cache, err := audiocache.Open(cfg)
	if err != nil {
		return fmt.Errorf("open audio cache: %w", err)
	}
	defer cache.Close()

	st, err := store.New(store.Options{
		Opener:  client,
		Fetcher: client,
		Backoff: realtime.BackoffConfig{
			Base:   cfg.ReconnectBase(),
			Max:    cfg.ReconnectMax(),
			Factor: cfg.Sync.ReconnectFactor,
			Jitter: cfg.Sync.ReconnectJitter,
		},
		AudioPaths: cache,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.SubscribeToAnalysisFeedbacks(runCtx, analysisID); err != nil {
		return fmt.Errorf("subscribe to analysis %s: %w", analysisID, err)
	}
	defer st.Unsubscribe(analysisID)

	logger.Info("watching analysis",
		logging.String(logging.FieldAnalysisID, analysisID),
		logging.Duration("interval", interval))

	isTerminal := colorize
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *store.AnalysisSnapshot
	for {
		snap := st.Snapshot(analysisID)
		if snap != last {
			last = snap
			if isTerminal {
				fmt.Fprint(out, "\x1b[2J\x1b[H")
			}
			renderSnapshot(out, snap, colorize)
		}
		if !follow && allSettled(snap.Records) {
			return nil
		}

		select {
		case <-runCtx.Done():
			if errors.Is(runCtx.Err(), context.Canceled) && isTerminal {
				fmt.Fprintln(out)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func renderSnapshot(out io.Writer, snap *store.AnalysisSnapshot, colorize bool) {
	fmt.Fprintf(out, "Analysis %s\n", snap.AnalysisID)
	fmt.Fprintln(out, subscriptionLine(snap.Subscription, colorize))
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderFeedbackTable(snap.Records, colorize))
	fmt.Fprintln(out)
	for _, line := range statsLines(snap.Stats) {
		fmt.Fprintln(out, line)
	}
}

// allSettled reports whether every record finished both pipelines. An empty
// partition is not settled; the server may still be seeding it.
func allSettled(records []feedback.Record) bool {
	if len(records) == 0 {
		return false
	}
	for _, rec := range records {
		if !rec.Done() {
			return false
		}
	}
	return true
}
