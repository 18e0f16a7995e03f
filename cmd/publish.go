package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	publishOnce   bool
	publishDryRun bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish scheduled posts that are due",
	Long:  "Claims due scheduled posts and sends them to the configured webhooks. Runs until interrupted unless --once is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("publish"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		worker := newWorker(st, newPublisher(cfg.Publish, publishDryRun), cfg)
		if !publishOnce {
			return worker.Run(ctx)
		}

		res, err := worker.RunOnce(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("publish complete",
			zap.Int("claimed", res.Claimed),
			zap.Int("published", res.Published),
			zap.Int("failed", res.Failed),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	publishCmd.Flags().BoolVar(&publishOnce, "once", false, "run a single pass and exit")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "log posts instead of sending them")
	rootCmd.AddCommand(publishCmd)
}
