package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/deskflow/alfred/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"ALFRED_RUNTIME_PATH" envDefault:".alfred"`

	// HTTP listen address for the webhook + chat API.
	ListenAddr string `env:"ALFRED_LISTEN_ADDR" envDefault:":8080"`

	// Persona parameters injected into the prompt template.
	Company            string `env:"ALFRED_COMPANY" envDefault:"Omnicentra"`
	CompanyDescription string `env:"ALFRED_COMPANY_DESCRIPTION" envDefault:"an AI software company"`

	// Retrieval tuning.
	TopN int `env:"ALFRED_TOP_N" envDefault:"3"`

	// Delay before the follow-up worker checks whether a conversation
	// has been resolved.
	FollowUpDelayMinutes int `env:"ALFRED_FOLLOWUP_DELAY_MINUTES" envDefault:"60"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "alfred.db")
}
