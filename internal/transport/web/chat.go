package web

import (
	"encoding/json"
	"net/http"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/internal/service/answer"
	"github.com/deskflow/alfred/pkg/log"
)

type chatRequest struct {
	Query   string         `json:"query"`
	History []core.Message `json:"history"`
	Name    string         `json:"name"`
	Company string         `json:"company"`
}

type chatResponse struct {
	Reply    string         `json:"reply"`
	Messages []core.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleChatResponse is the transport-agnostic chat API: callers bring
// their own history and get back the reply plus the updated transcript.
func (s *Server) handleChatResponse(w http.ResponseWriter, r *http.Request) {
	logger := log.FromCtx(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	senderName := req.Name
	if senderName == "" {
		senderName = s.defaultName
	}

	result, err := s.engine.Respond(r.Context(), answer.Request{
		Query:      req.Query,
		Namespace:  s.namespace,
		SenderName: senderName,
		Company:    req.Company,
		History:    req.History,
	})
	if err != nil {
		logger.Error().Err(err).Msg("chat api request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate response"})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: result.Reply, Messages: result.Messages})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
