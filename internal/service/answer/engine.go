package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

// ChatGateway is the completion capability the engine drives. Both shapes
// return the assistant reply plus the updated transcript.
type ChatGateway interface {
	CompleteNew(ctx context.Context, systemMessage, userMessage string) (string, []core.Message, error)
	CompleteContinue(ctx context.Context, userMessage string, history []core.Message) (string, []core.Message, error)
}

// HistoryProvider selects which part of a transcript is resent on a
// continuing turn. FullHistory resends everything; a windowing or
// summarizing implementation can slot in without changing the gateway.
type HistoryProvider interface {
	Window(history []core.Message) []core.Message
}

// FullHistory resends the entire transcript every turn.
type FullHistory struct{}

func (FullHistory) Window(history []core.Message) []core.Message {
	return history
}

// Engine is the retrieval-augmented conversation core: embed the query,
// rank the knowledge base, assemble a budget-bounded prompt, run the
// completion, classify the reply.
type Engine struct {
	embedder    core.Embedder
	store       core.KnowledgeStore
	chat        ChatGateway
	classifier  core.ReplyClassifier
	history     HistoryProvider
	topN        int
	company     string
	companyDesc string
}

type Options struct {
	TopN               int
	Company            string
	CompanyDescription string
	// History defaults to FullHistory.
	History HistoryProvider
}

func NewEngine(embedder core.Embedder, store core.KnowledgeStore, chat ChatGateway, classifier core.ReplyClassifier, opts Options) *Engine {
	if opts.TopN <= 0 {
		opts.TopN = 3
	}
	if opts.History == nil {
		opts.History = FullHistory{}
	}
	return &Engine{
		embedder:    embedder,
		store:       store,
		chat:        chat,
		classifier:  classifier,
		history:     opts.History,
		topN:        opts.TopN,
		company:     opts.Company,
		companyDesc: opts.CompanyDescription,
	}
}

// Request is one inbound user utterance with its conversation context.
type Request struct {
	Query      string
	Namespace  string
	SenderName string
	// Company overrides the engine default for this request (the HTTP
	// API lets callers pass their own).
	Company string
	// History is the cached transcript; empty means a new conversation.
	History []core.Message
}

// Result carries the reply, the transcript including it, and the two
// independent routing decisions.
type Result struct {
	Reply              string
	Messages           []core.Message
	Matches            []core.RankedMatch
	RequiresEscalation bool
	CanCreateTicket    bool
}

// Respond runs the full pipeline for one turn. Every call returns fresh
// result slices; nothing is accumulated across requests.
func (e *Engine) Respond(ctx context.Context, req Request) (*Result, error) {
	logger := log.FromCtx(ctx)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	queryVector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	records, err := e.store.FetchAll(ctx, req.Namespace)
	if err != nil {
		return nil, fmt.Errorf("fetch knowledge base: %w", err)
	}

	matches, err := Rank(queryVector, records, e.topN)
	if err != nil {
		return nil, fmt.Errorf("rank knowledge base: %w", err)
	}
	if len(matches) > 0 {
		logger.Debug().
			Int("matches", len(matches)).
			Float64("top_score", matches[0].Score).
			Msg("ranked knowledge base")
	}

	contextBlock := BuildContext(matches)

	var reply string
	var messages []core.Message
	if len(req.History) > 0 {
		window := e.history.Window(req.History)
		reply, messages, err = e.chat.CompleteContinue(ctx, ContinuationMessage(query, contextBlock), window)
	} else {
		persona := Persona{SenderName: req.SenderName, Company: e.company, CompanyDescription: e.companyDesc}
		if req.Company != "" {
			persona.Company = req.Company
		}
		prompt := BuildPrompt(query, contextBlock, persona, MaxInputTokens)
		reply, messages, err = e.chat.CompleteNew(ctx, persona.SystemMessage(), prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("complete chat: %w", err)
	}

	return &Result{
		Reply:              reply,
		Messages:           messages,
		Matches:            matches,
		RequiresEscalation: e.classifier.RequiresEscalation(reply),
		CanCreateTicket:    e.classifier.CanCreateTicket(reply),
	}, nil
}
