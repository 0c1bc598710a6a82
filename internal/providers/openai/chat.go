package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deskflow/alfred/internal/core"
)

// Chat is the completion gateway. The remote model is stateless, so the
// multi-turn shape resends the full running transcript every call.
type Chat struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewChat(apiKey, model string, temperature float64) *Chat {
	return &Chat{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: float32(temperature),
	}
}

// Complete sends the transcript as-is and returns the sanitized assistant
// text.
func (c *Chat) Complete(ctx context.Context, messages []core.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}

	return SanitizeReply(resp.Choices[0].Message.Content), nil
}

// CompleteNew starts a conversation: system persona plus the first user
// message. Returns the reply and the transcript including it.
func (c *Chat) CompleteNew(ctx context.Context, systemMessage, userMessage string) (string, []core.Message, error) {
	messages := []core.Message{
		{Role: core.RoleSystem, Content: systemMessage},
		{Role: core.RoleUser, Content: userMessage},
	}
	reply, err := c.Complete(ctx, messages)
	if err != nil {
		return "", nil, err
	}
	messages = append(messages, core.Message{Role: core.RoleAssistant, Content: reply})
	return reply, messages, nil
}

// CompleteContinue appends the user message to an existing transcript and
// resends the whole thing.
func (c *Chat) CompleteContinue(ctx context.Context, userMessage string, history []core.Message) (string, []core.Message, error) {
	messages := make([]core.Message, 0, len(history)+2)
	messages = append(messages, history...)
	messages = append(messages, core.Message{Role: core.RoleUser, Content: userMessage})
	reply, err := c.Complete(ctx, messages)
	if err != nil {
		return "", nil, err
	}
	messages = append(messages, core.Message{Role: core.RoleAssistant, Content: reply})
	return reply, messages, nil
}

// SanitizeReply trims whitespace and drops the literal "Answer:" prefix
// some completions carry over from the old single-shot prompt format.
func SanitizeReply(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Answer:")
	return strings.TrimSpace(s)
}

var _ core.ChatCompleter = (*Chat)(nil)
