package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/providers/knowledge"
	"github.com/deskflow/alfred/internal/providers/openai"
	"github.com/deskflow/alfred/internal/providers/slackapi"
	"github.com/deskflow/alfred/internal/providers/zendesk"
	"github.com/deskflow/alfred/internal/service/answer"
	"github.com/deskflow/alfred/internal/service/assistant"
	"github.com/deskflow/alfred/internal/service/conversation"
	"github.com/deskflow/alfred/internal/service/followup"
	"github.com/deskflow/alfred/internal/service/ticket"
	"github.com/deskflow/alfred/internal/storage/redis"
	"github.com/deskflow/alfred/internal/storage/sqlite"
	"github.com/deskflow/alfred/internal/transport/web"
	"github.com/deskflow/alfred/pkg/log"
	"github.com/deskflow/alfred/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	openAICfg := config.NewOpenAIConfig(ctx)
	knowledgeCfg := config.NewKnowledgeConfig(ctx)
	redisCfg := config.NewRedisConfig(ctx)
	slackCfg := config.NewSlackConfig(ctx)
	zendeskCfg := config.NewZendeskConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	services = append(services, srv.NewCleanup(db.Close))
	issues := sqlite.NewIssues(db)

	conversationStore, err := redis.NewConversationStore(ctx, *redisCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	services = append(services, srv.NewCleanup(conversationStore.Close))

	knowledgeStore, closeStore, err := knowledge.NewStore(ctx, knowledgeCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize knowledge store")
	}
	services = append(services, srv.NewCleanup(closeStore))

	// 3. Providers
	embedder := openai.NewEmbedder(openAICfg.APIKey, openAICfg.EmbeddingModel)
	chat := openai.NewChat(openAICfg.APIKey, openAICfg.ChatModel, openAICfg.Temperature)

	slackClient, err := slackapi.NewClient(ctx, *slackCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to slack")
	}

	// 4. Answer engine
	engine := answer.NewEngine(embedder, knowledgeStore, chat, answer.NewPhraseClassifier(), answer.Options{
		TopN:               appCfg.TopN,
		Company:            appCfg.Company,
		CompanyDescription: appCfg.CompanyDescription,
	})

	// 5. Conversation state
	conversations := conversation.NewManager(conversationStore, slackClient.BotUserID())

	// 6. Follow-up worker
	followups := followup.NewWorker(
		conversations,
		issues,
		slackClient,
		time.Duration(appCfg.FollowUpDelayMinutes)*time.Minute,
	)
	services = append(services, followups)

	// 7. Assistant
	bot := assistant.New(assistant.Params{
		Engine:            engine,
		Conversations:     conversations,
		Messenger:         slackClient,
		Drafter:           ticket.NewDrafter(chat),
		Issues:            issues,
		FollowUps:         followups,
		Tickets:           zendesk.NewClient(*zendeskCfg),
		Namespace:         knowledgeCfg.Namespace,
		ZendeskConfigured: zendeskCfg.Configured(),
	})

	// 8. Transport
	services = append(services, web.NewServer(appCfg, bot, engine, knowledgeCfg.Namespace))

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
