package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/internal/service/answer"
	"github.com/deskflow/alfred/pkg/log"
)

// ReadLine is a local REPL against the answer engine, for trying out a
// knowledge base without a Slack workspace. Conversation history lives
// in memory for the life of the process.
type ReadLine struct {
	cfg       *config.AppConfig
	engine    *answer.Engine
	namespace string
	rl        *readline.Instance

	history []core.Message
}

func NewReadLine(engine *answer.Engine, cfg *config.AppConfig, namespace string) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:       cfg,
		engine:    engine,
		namespace: namespace,
		rl:        rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("chat started. Type 'exit' to quit, 'reset' to start over.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "exit":
			return nil
		case line == "reset":
			r.history = nil
			fmt.Fprintln(r.rl.Stdout(), "[conversation cleared]")
			continue
		case line == "":
			continue
		}

		result, err := r.engine.Respond(ctx, answer.Request{
			Query:      line,
			Namespace:  r.namespace,
			SenderName: userName(),
			History:    r.history,
		})
		if err != nil {
			logger.Error().Err(err).Msg("engine failed")
			fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
			continue
		}

		r.history = result.Messages
		fmt.Fprintf(r.rl.Stdout(), "%s\n", result.Reply)
		if result.RequiresEscalation {
			fmt.Fprintln(r.rl.Stdout(), "[escalation offered]")
		}
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}

func userName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "there"
}
