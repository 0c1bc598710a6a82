package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/deskflow/alfred/pkg/log"
)

type OpenAIConfig struct {
	APIKey         string  `env:"OPENAI_API_KEY,required,notEmpty"`
	EmbeddingModel string  `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-ada-002"`
	ChatModel      string  `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-3.5-turbo"`
	Temperature    float64 `env:"OPENAI_TEMPERATURE" envDefault:"0"`
}

func NewOpenAIConfig(ctx context.Context) *OpenAIConfig {
	c := &OpenAIConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse OpenAI config")
	}
	return c
}
