package main

import (
	"github.com/spf13/cobra"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/providers/knowledge"
	"github.com/deskflow/alfred/internal/providers/openai"
	"github.com/deskflow/alfred/internal/providers/zendesk"
	"github.com/deskflow/alfred/internal/service/ingest"
	"github.com/deskflow/alfred/pkg/log"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the knowledge base from the Zendesk help center",
	Long:  `Fetches every published help center article, chunks and embeds it, and replaces the stored knowledge base namespace.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		logger := log.FromCtx(ctx)

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			logger.Fatal().Err(err).Msg("failed to init env")
		}

		openAICfg := config.NewOpenAIConfig(ctx)
		knowledgeCfg := config.NewKnowledgeConfig(ctx)
		zendeskCfg := config.NewZendeskConfig(ctx)
		if !zendeskCfg.Configured() {
			logger.Fatal().Msg("zendesk is not configured, set ZENDESK_SUBDOMAIN and ZENDESK_API_TOKEN")
		}

		store, closeStore, err := knowledge.NewStore(ctx, knowledgeCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize knowledge store")
		}
		defer func() { _ = closeStore() }()

		embedder := openai.NewEmbedder(openAICfg.APIKey, openAICfg.EmbeddingModel)
		source := zendesk.NewClient(*zendeskCfg)

		pipeline := ingest.NewPipeline(source, embedder, store)
		count, err := pipeline.Run(ctx, knowledgeCfg.Namespace)
		if err != nil {
			return err
		}

		logger.Info().
			Int("records", count).
			Str("namespace", knowledgeCfg.Namespace).
			Msg("knowledge base rebuilt")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
