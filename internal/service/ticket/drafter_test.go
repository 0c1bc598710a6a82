package ticket

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/alfred/internal/core"
)

type stubCompleter struct {
	reply    string
	err      error
	messages []core.Message
}

func (s *stubCompleter) Complete(_ context.Context, messages []core.Message) (string, error) {
	s.messages = messages
	return s.reply, s.err
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid payload",
			raw:  `{"ticket": {"comment": {"body": "VPN refuses connections"}, "priority": "normal", "subject": "VPN access"}}`,
		},
		{
			name: "fenced payload",
			raw: "```json\n{\"ticket\": {\"comment\": {\"body\": \"b\"}, \"priority\": \"low\", \"subject\": \"s\"}}\n```",
		},
		{
			name:    "missing subject",
			raw:     `{"ticket": {"comment": {"body": "b"}, "priority": "low"}}`,
			wantErr: true,
		},
		{
			name:    "missing comment",
			raw:     `{"ticket": {"priority": "low", "subject": "s"}}`,
			wantErr: true,
		},
		{
			name:    "missing body",
			raw:     `{"ticket": {"comment": {}, "priority": "low", "subject": "s"}}`,
			wantErr: true,
		},
		{
			name:    "priority is a number",
			raw:     `{"ticket": {"comment": {"body": "b"}, "priority": 2, "subject": "s"}}`,
			wantErr: true,
		},
		{
			name:    "body is an object",
			raw:     `{"ticket": {"comment": {"body": {"text": "b"}}, "priority": "low", "subject": "s"}}`,
			wantErr: true,
		},
		{
			name:    "empty subject",
			raw:     `{"ticket": {"comment": {"body": "b"}, "priority": "low", "subject": "  "}}`,
			wantErr: true,
		},
		{
			name:    "no ticket envelope",
			raw:     `{"comment": {"body": "b"}, "priority": "low", "subject": "s"}`,
			wantErr: true,
		},
		{
			name:    "prose instead of JSON",
			raw:     `Sure! I will create a ticket for you.`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := ParsePayload(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, ticket)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, ticket)
			assert.NotEmpty(t, ticket.Comment.Body)
			assert.NotEmpty(t, ticket.Priority)
			assert.NotEmpty(t, ticket.Subject)
		})
	}
}

func TestDrafter_Draft(t *testing.T) {
	chat := &stubCompleter{reply: `{"ticket": {"comment": {"body": "Laptop screen flickers"}, "priority": "high", "subject": "Broken laptop"}}`}
	drafter := NewDrafter(chat)

	transcript := []core.Message{
		{Role: core.RoleUser, Content: "my laptop screen keeps flickering"},
		{Role: core.RoleAssistant, Content: "would you like me to create a ticket on Zendesk?"},
		{Role: core.RoleUser, Content: "yes please"},
	}
	ticket, err := drafter.Draft(context.Background(), transcript, core.Profile{Name: "Ola", Email: "ola@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "Laptop screen flickers", ticket.Comment.Body)
	assert.Equal(t, "high", ticket.Priority)
	assert.Equal(t, "Broken laptop", ticket.Subject)
	require.NotNil(t, ticket.Requester)
	assert.Equal(t, "ola@example.com", ticket.Requester.Email)

	require.Len(t, chat.messages, 4)
	assert.Equal(t, transcript[0], chat.messages[0])
	assert.Contains(t, chat.messages[3].Content, "JSON")
}

func TestDrafter_Draft_RejectsMalformedDraft(t *testing.T) {
	chat := &stubCompleter{reply: `{"ticket": {"priority": "high", "subject": "Broken laptop"}}`}
	drafter := NewDrafter(chat)

	ticket, err := drafter.Draft(context.Background(), nil, core.Profile{})
	require.Error(t, err)
	assert.Nil(t, ticket)
}

func TestDrafter_Draft_CompletionFailure(t *testing.T) {
	boom := errors.New("boom")
	drafter := NewDrafter(&stubCompleter{err: boom})

	_, err := drafter.Draft(context.Background(), nil, core.Profile{})
	assert.ErrorIs(t, err, boom)
}

func TestDrafter_Draft_NoRequesterWithoutEmail(t *testing.T) {
	chat := &stubCompleter{reply: `{"ticket": {"comment": {"body": "b"}, "priority": "low", "subject": "s"}}`}
	drafter := NewDrafter(chat)

	ticket, err := drafter.Draft(context.Background(), nil, core.Profile{Name: "Ola"})
	require.NoError(t, err)
	assert.Nil(t, ticket.Requester)
}

func TestDrafter_Categorize(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		text  string
		want  string
	}{
		{name: "model says HR", reply: "HR", text: "vpn is down", want: "HR"},
		{name: "model says it lowercase", reply: " it\n", text: "payroll question", want: "IT"},
		{name: "model rambles, keywords decide", reply: "This looks like a payroll matter.", text: "my payroll was wrong", want: "HR"},
		{name: "completion failure, keywords decide", err: errors.New("boom"), text: "cannot connect to the VPN", want: "IT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafter := NewDrafter(&stubCompleter{reply: tt.reply, err: tt.err})
			assert.Equal(t, tt.want, drafter.Categorize(context.Background(), tt.text))
		})
	}
}

func TestCategorizeKeywords(t *testing.T) {
	assert.Equal(t, "HR", CategorizeKeywords("Parental leave: how many weeks of leave do I get"))
	assert.Equal(t, "HR", CategorizeKeywords("my payroll was wrong this month"))
	assert.Equal(t, "IT", CategorizeKeywords("VPN access: cannot connect to the VPN"))
	assert.Equal(t, "IT", CategorizeKeywords(""))
}
