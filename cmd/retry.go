package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var retryWatch bool

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Drain the durable retry queue",
	Long:  "Re-runs due retry jobs: Pass 1 documents reprocess OCR-only from their stored artifacts, Pass 1.5 sessions re-resolve pending entities. With --watch the queue is polled until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if retryWatch {
			if err := env.Worker.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}

		completed, err := env.Worker.Drain(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("retry drain complete", zap.Int("completed", completed))
		return nil
	},
}

func init() {
	retryCmd.Flags().BoolVar(&retryWatch, "watch", false, "keep polling until interrupted")
	rootCmd.AddCommand(retryCmd)
}
