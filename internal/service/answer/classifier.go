package answer

import (
	"strings"

	"github.com/deskflow/alfred/internal/core"
)

// PhraseClassifier decides escalation and ticket-creation by matching
// fixed marker phrases against the assistant reply. Brittle on purpose:
// the prompt instructs the model to use these exact phrasings, and the
// classifier sits behind core.ReplyClassifier so a structured-output
// implementation can replace it without touching the router.
type PhraseClassifier struct{}

func NewPhraseClassifier() *PhraseClassifier {
	return &PhraseClassifier{}
}

// Phrases the persona uses when it cannot answer from the knowledge base
// and offers to escalate.
var escalationMarkers = []string{
	"create a ticket",
	"contact support",
}

// Phrases signalling the user has confirmed and the ticket sub-flow may
// run.
var ticketMarkers = []string{
	"thank you for confirming",
	"i have created a ticket",
	"ticket has been created",
}

func (c *PhraseClassifier) RequiresEscalation(reply string) bool {
	return containsAny(reply, escalationMarkers)
}

func (c *PhraseClassifier) CanCreateTicket(reply string) bool {
	return containsAny(reply, ticketMarkers)
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

var _ core.ReplyClassifier = (*PhraseClassifier)(nil)
