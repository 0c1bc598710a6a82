package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "alfred",
	Short: "Alfred, an AI support assistant for Slack",
	Long:  `Alfred answers HR and IT questions from your company's knowledge base, escalates what it cannot answer, and files Zendesk tickets.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
