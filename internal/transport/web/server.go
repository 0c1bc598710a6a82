package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/service/assistant"
	"github.com/deskflow/alfred/pkg/log"
)

// Server is the HTTP face of the bot: the Slack Events API webhook, the
// interactive-component callback, and the standalone chat API.
type Server struct {
	httpServer *http.Server

	assistant   *assistant.Assistant
	engine      assistant.Responder
	namespace   string
	defaultName string

	// appCtx outlives individual requests; event processing continues
	// after the webhook has been acked.
	appCtx context.Context
}

func NewServer(cfg *config.AppConfig, bot *assistant.Assistant, engine assistant.Responder, namespace string) *Server {
	s := &Server{
		assistant:   bot,
		engine:      engine,
		namespace:   namespace,
		defaultName: "there",
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/slack/events", s.handleSlackEvents)
	r.Post("/slack/interactions", s.handleSlackInteractions)
	r.Post("/api/v1/generate-chat-response", s.handleChatResponse)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	s.appCtx = ctx
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	log.FromCtx(ctx).Info().Str("addr", s.httpServer.Addr).Msg("starting http server")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
