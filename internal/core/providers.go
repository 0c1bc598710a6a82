package core

import (
	"context"
	"time"
)

// Embedder converts text into a fixed-dimension vector. Dimension is
// constant for a given model identifier.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatCompleter is the chat-completion capability. The remote model is
// stateless; callers resend the transcript they want it to see.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// KnowledgeStore retrieves every stored record for a tenant namespace.
// An unknown namespace yields an empty slice, not an error.
type KnowledgeStore interface {
	FetchAll(ctx context.Context, namespace string) ([]KnowledgeRecord, error)
}

// KnowledgeWriter is the ingest side of a knowledge store. Upsert replaces
// the namespace contents wholesale.
type KnowledgeWriter interface {
	Upsert(ctx context.Context, namespace string, records []KnowledgeRecord) error
}

// ConversationStore is the key-value cache behind conversation state.
// Get returns ok=false for missing or expired keys.
type ConversationStore interface {
	Put(ctx context.Context, key string, messages []Message, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]Message, bool, error)
	Delete(ctx context.Context, key string) error
}

// ReplyClassifier decides what side effects an assistant reply calls for.
// The two decisions are independent and evaluated on every reply.
type ReplyClassifier interface {
	// RequiresEscalation reports that the reply is offering to create a
	// ticket or hand off to a human, so the escalation dialog should be
	// shown.
	RequiresEscalation(reply string) bool
	// CanCreateTicket reports that the user has confirmed and the ticket
	// sub-flow may run.
	CanCreateTicket(reply string) bool
}

// TicketCreator files a support ticket with the help desk.
type TicketCreator interface {
	CreateTicket(ctx context.Context, t Ticket) (*CreatedTicket, error)
}
