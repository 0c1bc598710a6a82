package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/deskflow/alfred/pkg/log"
)

type ZendeskConfig struct {
	Subdomain string `env:"ZENDESK_SUBDOMAIN"`
	APIToken  string `env:"ZENDESK_API_TOKEN"`
}

// Configured reports whether the tenant finished Zendesk setup. Ticket
// creation without it yields the "integration not set up" user message
// instead of a silent failure.
func (c ZendeskConfig) Configured() bool {
	return c.Subdomain != "" && c.APIToken != ""
}

func NewZendeskConfig(ctx context.Context) *ZendeskConfig {
	c := &ZendeskConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Zendesk config")
	}
	return c
}
