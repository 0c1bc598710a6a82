package answer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/deskflow/alfred/internal/core"
)

// MaxInputTokens is the input budget of the completion model family this
// assistant targets.
const MaxInputTokens = 8191

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		var err error
		tk, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic("failed to load tiktoken: " + err.Error())
		}
	})
	return tk
}

// CountTokens counts text tokens with the same encoding the target model
// uses.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(getTokenizer().Encode(text, nil, nil))
}

// Persona parameterizes the instruction preamble.
type Persona struct {
	SenderName string
	Company    string
	// CompanyDescription is a short clause describing the company,
	// e.g. "an AI software company".
	CompanyDescription string
}

func (p Persona) companyClause() string {
	if p.CompanyDescription == "" {
		return p.Company
	}
	return fmt.Sprintf("%s, %s", p.Company, p.CompanyDescription)
}

// SystemMessage is the fixed system turn for new conversations.
func (p Persona) SystemMessage() string {
	return fmt.Sprintf("Your name is %s. You are a helpful assistant that answers HR and IT questions at %s", core.AssistantName, p.companyClause())
}

func (p Persona) introduction() string {
	return fmt.Sprintf(`Your name is %[1]s. You are an AI-powered assistant designed to help employees with HR and IT questions at %[2]s. You have been programmed to provide fast and accurate solutions to their inquiries. As an AI, you do not have a gender, age, sexual orientation or human race.

As an experienced assistant, you can create Zendesk tickets and forward complex inquiries to the appropriate person.

The conversation is between you and %[3]s and you should first greet them with a phrase like "Hello %[3]s". When a HR / IT related question is asked by %[3]s, only use information provided in the context and never use general knowledge. If the question asked is not in the context given to you or the context does not answer the question properly, you will respond apologetically saying something along the lines of "this information is not provided within the company's knowledge base, would you like me to create a ticket on Zendesk or ask HR/IT?" and follow the steps accordingly based on their response.

For general responses by the user you should answer as a normal human assistant would in a friendly, polite manner.

If a question is outside your scope, you will make a note of it and store it as a "knowledge gap" to learn and improve. It is important to address employees in a friendly and compassionate tone, speaking to them in first person terms.

Please feel free to answer any HR or IT related questions.`, core.AssistantName, p.companyClause(), p.SenderName)
}

// BuildContext joins match contents with newlines, best match first. No
// deduplication of near-identical passages.
func BuildContext(matches []core.RankedMatch) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// BuildPrompt composes introduction, context block and question. If the
// full concatenation exceeds tokenBudget the context block is dropped
// entirely (not truncated) and the caller gets a valid, shorter prompt.
func BuildPrompt(query, context string, persona Persona, tokenBudget int) string {
	introduction := persona.introduction()
	question := fmt.Sprintf("\n\nQuestion: %s", query)
	contextBlock := fmt.Sprintf("\n\nContext:\n\"\"\"\n%s\n\"\"\"", context)

	message := introduction
	if CountTokens(introduction+contextBlock+question) <= tokenBudget {
		message += contextBlock
	}
	return message + question
}

// ContinuationMessage is the user turn for continuing conversations:
// questions carry fresh context, chit-chat does not.
func ContinuationMessage(query, context string) string {
	if strings.Contains(query, "?") {
		return fmt.Sprintf("%s\n\nContext: %s", query, context)
	}
	return query
}
