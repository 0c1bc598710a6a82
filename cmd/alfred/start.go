package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/deskflow/alfred/pkg/log"
	"github.com/deskflow/alfred/pkg/srv"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Alfred services",
	Long:  `Initializes and starts the Slack webhook server, the chat API and the background workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting alfred")

		services := NewServices(ctx)

		srv.StartServices(ctx, services)

		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("alfred has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
