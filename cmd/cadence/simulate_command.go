package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cadence/internal/logging"
	"cadence/internal/simulator"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var analysisID string
	var records int
	var stepInterval time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a local feedback server that advances pipelines on a timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			engine := simulator.NewEngine()
			seed := strings.TrimSpace(analysisID)
			if seed != "" && records > 0 {
				engine.Seed(seed, records)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting simulator",
				logging.String("addr", addr),
				logging.Duration("step_interval", stepInterval))
			fmt.Fprintf(cmd.OutOrStdout(), "Simulator listening on %s\n", addr)
			if seed != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded analysis %s with %d feedback item(s)\n", seed, records)
			}

			return simulator.Run(runCtx, engine, addr, stepInterval, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7823", "Listen address")
	cmd.Flags().StringVar(&analysisID, "analysis", "demo", "Analysis id to seed")
	cmd.Flags().IntVar(&records, "records", 6, "Number of feedback items to seed")
	cmd.Flags().DurationVar(&stepInterval, "step-interval", 2*time.Second, "Delay between pipeline transitions")
	return cmd
}
