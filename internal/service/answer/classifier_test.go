package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhraseClassifier_RequiresEscalation(t *testing.T) {
	c := NewPhraseClassifier()

	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{
			name:  "offers ticket creation",
			reply: "I don't know, would you like me to create a ticket on Zendesk or ask HR/IT?",
			want:  true,
		},
		{
			name:  "offers ticket mixed case",
			reply: "Would you like me to Create A Ticket for you?",
			want:  true,
		},
		{
			name:  "offers human contact",
			reply: "You may want to contact support about this.",
			want:  true,
		},
		{
			name:  "plain answer",
			reply: "Your leave balance is 12 days.",
			want:  false,
		},
		{
			name:  "empty",
			reply: "",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.RequiresEscalation(tt.reply))
		})
	}
}

func TestPhraseClassifier_CanCreateTicket(t *testing.T) {
	c := NewPhraseClassifier()

	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{
			name:  "confirmation acknowledged",
			reply: "Thank you for confirming, I will raise this with IT now.",
			want:  true,
		},
		{
			name:  "ticket created",
			reply: "I have created a ticket with the details you provided.",
			want:  true,
		},
		{
			name:  "passive phrasing",
			reply: "A ticket has been created for your request.",
			want:  true,
		},
		{
			name:  "mere escalation offer is not confirmation",
			reply: "Would you like me to create a ticket on Zendesk?",
			want:  false,
		},
		{
			name:  "plain answer",
			reply: "Your laptop will be replaced next week.",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CanCreateTicket(tt.reply))
		})
	}
}

func TestPhraseClassifier_DecisionsAreIndependent(t *testing.T) {
	c := NewPhraseClassifier()
	reply := "Thank you for confirming, I have created a ticket. If it persists, create a ticket again."

	assert.True(t, c.RequiresEscalation(reply))
	assert.True(t, c.CanCreateTicket(reply))
}
