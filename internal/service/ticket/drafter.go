package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

const draftInstruction = `Based on our conversation, produce a JSON object describing a support ticket for the unresolved request. Respond with JSON only, no prose, in exactly this shape:

{"ticket": {"comment": {"body": "<detailed description of the problem>"}, "priority": "<low, normal, high or urgent>", "subject": "<short summary>"}}`

// Drafter asks the completion model to summarize an unresolved
// conversation into a ticket payload, then validates the result before
// anything is filed. A malformed draft aborts the flow; no ticket is
// ever created from a payload that failed validation.
type Drafter struct {
	chat core.ChatCompleter
}

func NewDrafter(chat core.ChatCompleter) *Drafter {
	return &Drafter{chat: chat}
}

// Draft produces a validated ticket from the conversation transcript.
func (d *Drafter) Draft(ctx context.Context, transcript []core.Message, requester core.Profile) (*core.Ticket, error) {
	messages := make([]core.Message, 0, len(transcript)+1)
	messages = append(messages, transcript...)
	messages = append(messages, core.Message{Role: core.RoleUser, Content: draftInstruction})

	raw, err := d.chat.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("draft ticket: %w", err)
	}

	ticket, err := ParsePayload(raw)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("raw", raw).Msg("ticket draft rejected")
		return nil, fmt.Errorf("parse ticket draft: %w", err)
	}

	if requester.Email != "" {
		ticket.Requester = &core.TicketRequester{Name: requester.Name, Email: requester.Email}
	}
	return ticket, nil
}

// ParsePayload decodes a model-produced ticket JSON and validates it
// strictly: ticket.comment.body, ticket.priority and ticket.subject must
// all be present and be strings. Anything else is rejected.
func ParsePayload(raw string) (*core.Ticket, error) {
	cleaned := stripCodeFence(raw)

	var envelope struct {
		Ticket map[string]json.RawMessage `json:"ticket"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if envelope.Ticket == nil {
		return nil, fmt.Errorf("missing ticket object")
	}

	var comment struct {
		Body json.RawMessage `json:"body"`
	}
	rawComment, ok := envelope.Ticket["comment"]
	if !ok {
		return nil, fmt.Errorf("missing ticket.comment")
	}
	if err := json.Unmarshal(rawComment, &comment); err != nil {
		return nil, fmt.Errorf("invalid ticket.comment: %w", err)
	}

	body, err := requireString(comment.Body, "ticket.comment.body")
	if err != nil {
		return nil, err
	}
	priority, err := requireString(envelope.Ticket["priority"], "ticket.priority")
	if err != nil {
		return nil, err
	}
	subject, err := requireString(envelope.Ticket["subject"], "ticket.subject")
	if err != nil {
		return nil, err
	}

	return &core.Ticket{
		Comment:  core.TicketComment{Body: body},
		Priority: priority,
		Subject:  subject,
	}, nil
}

func requireString(raw json.RawMessage, field string) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("missing %s", field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s is not a string", field)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s is empty", field)
	}
	return s, nil
}

// stripCodeFence removes a surrounding markdown code fence, which the
// model sometimes wraps around JSON despite instructions.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const categorizeInstruction = `Classify the following support issue as either an HR matter or an IT matter. Respond with exactly one word, HR or IT.

Issue: %s`

// Categorize asks the completion model whether an issue belongs to the
// HR or IT queue. The keyword heuristic covers the cases where the
// model is unreachable or answers with something else entirely.
func (d *Drafter) Categorize(ctx context.Context, text string) string {
	raw, err := d.chat.Complete(ctx, []core.Message{
		{Role: core.RoleUser, Content: fmt.Sprintf(categorizeInstruction, text)},
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("issue categorization failed, falling back to keywords")
		return CategorizeKeywords(text)
	}
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HR":
		return "HR"
	case "IT":
		return "IT"
	}
	return CategorizeKeywords(text)
}

var hrKeywords = []string{
	"payroll", "salary", "leave", "vacation", "holiday", "benefit",
	"insurance", "onboarding", "offboarding", "contract", "hr",
	"maternity", "paternity", "sick",
}

// CategorizeKeywords sorts an issue into the HR or IT queue from its
// text alone. Anything that does not look like an HR matter goes to IT.
func CategorizeKeywords(text string) string {
	text = strings.ToLower(text)
	for _, kw := range hrKeywords {
		if strings.Contains(text, kw) {
			return "HR"
		}
	}
	return "IT"
}
