package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/providers/knowledge"
	"github.com/deskflow/alfred/internal/providers/openai"
	"github.com/deskflow/alfred/internal/service/answer"
	"github.com/deskflow/alfred/internal/transport/cli"
	"github.com/deskflow/alfred/pkg/log"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with Alfred locally",
	Long:  `Starts an interactive terminal conversation against the configured knowledge base, without Slack, Redis or Zendesk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			logger.Fatal().Err(err).Msg("failed to init env")
		}

		appCfg := config.NewAppConfig(ctx)
		openAICfg := config.NewOpenAIConfig(ctx)
		knowledgeCfg := config.NewKnowledgeConfig(ctx)

		store, closeStore, err := knowledge.NewStore(ctx, knowledgeCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize knowledge store")
		}
		defer func() { _ = closeStore() }()

		engine := answer.NewEngine(
			openai.NewEmbedder(openAICfg.APIKey, openAICfg.EmbeddingModel),
			store,
			openai.NewChat(openAICfg.APIKey, openAICfg.ChatModel, openAICfg.Temperature),
			answer.NewPhraseClassifier(),
			answer.Options{TopN: appCfg.TopN, Company: appCfg.Company},
		)

		repl, err := cli.NewReadLine(engine, appCfg, knowledgeCfg.Namespace)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- repl.Start(ctx) }()

		select {
		case <-ctx.Done():
		case err = <-errCh:
		}
		_ = repl.Shutdown(ctx)
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
