package assistant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/internal/service/answer"
	"github.com/deskflow/alfred/internal/service/conversation"
	"github.com/deskflow/alfred/internal/service/followup"
	"github.com/deskflow/alfred/internal/storage/sqlite"
)

type stubEngine struct {
	result  *answer.Result
	err     error
	request answer.Request
	calls   int
}

func (s *stubEngine) Respond(_ context.Context, req answer.Request) (*answer.Result, error) {
	s.calls++
	s.request = req
	return s.result, s.err
}

type memConversations struct {
	data map[string][]core.Message
}

func newMemConversations() *memConversations {
	return &memConversations{data: make(map[string][]core.Message)}
}

func (m *memConversations) Key(kind core.ChannelKind, channelID, threadRoot string) string {
	if kind.Threaded() {
		return "B042:" + threadRoot
	}
	return "B042:" + channelID
}

func (m *memConversations) Lock(string) func() { return func() {} }

func (m *memConversations) Load(_ context.Context, key string) ([]core.Message, bool, error) {
	msgs, ok := m.data[key]
	return msgs, ok, nil
}

func (m *memConversations) Save(_ context.Context, key string, _ core.ChannelKind, messages []core.Message) error {
	m.data[key] = messages
	return nil
}

func (m *memConversations) Resolve(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type fakeMessenger struct {
	posts       []string
	updates     map[string]string
	prompts     []string
	inThread    bool
	profile     core.Profile
	lastChannel string
	nextTS      int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{updates: make(map[string]string), profile: core.Profile{Name: "Ola", Email: "ola@example.com"}}
}

func (f *fakeMessenger) PostMessage(_ context.Context, channelID, _, text string) (string, error) {
	f.lastChannel = channelID
	f.posts = append(f.posts, text)
	f.nextTS++
	return fmt.Sprintf("ts-%d", f.nextTS), nil
}

func (f *fakeMessenger) PostThinking(ctx context.Context, channelID, threadTS string) (string, error) {
	return f.PostMessage(ctx, channelID, threadTS, "thinking")
}

func (f *fakeMessenger) UpdateMessage(_ context.Context, _, ts, text string) error {
	f.updates[ts] = text
	return nil
}

func (f *fakeMessenger) PostEscalationPrompt(_ context.Context, _, _, text, _ string) (string, error) {
	f.prompts = append(f.prompts, text)
	return "ts-prompt", nil
}

func (f *fakeMessenger) BotInThread(context.Context, string, string) (bool, error) {
	return f.inThread, nil
}

func (f *fakeMessenger) UserProfile(context.Context, string) (core.Profile, error) {
	return f.profile, nil
}

type stubDrafter struct {
	ticket *core.Ticket
	err    error
	calls  int
}

func (s *stubDrafter) Draft(context.Context, []core.Message, core.Profile) (*core.Ticket, error) {
	s.calls++
	return s.ticket, s.err
}

func (s *stubDrafter) Categorize(context.Context, string) string {
	return "IT"
}

type memIssues struct {
	issues []sqlite.Issue
	nextID int64
}

func (m *memIssues) Create(_ context.Context, issue sqlite.Issue) (int64, error) {
	m.nextID++
	issue.ID = m.nextID
	issue.Status = sqlite.IssueStatusOpen
	m.issues = append(m.issues, issue)
	return issue.ID, nil
}

func (m *memIssues) AttachTicket(_ context.Context, id, ticketID int64) error {
	for i := range m.issues {
		if m.issues[i].ID == id {
			m.issues[i].TicketID = &ticketID
			m.issues[i].Status = sqlite.IssueStatusTicketed
		}
	}
	return nil
}

func (m *memIssues) UpdateTranscript(_ context.Context, id int64, transcript []core.Message) error {
	for i := range m.issues {
		if m.issues[i].ID == id {
			m.issues[i].Transcript = transcript
		}
	}
	return nil
}

func (m *memIssues) ResolveByConversation(_ context.Context, key string) error {
	for i := range m.issues {
		if m.issues[i].ConversationKey == key && m.issues[i].Status == sqlite.IssueStatusOpen {
			m.issues[i].Status = sqlite.IssueStatusResolved
		}
	}
	return nil
}

func (m *memIssues) OpenByConversation(_ context.Context, key string) (*sqlite.Issue, error) {
	for i := len(m.issues) - 1; i >= 0; i-- {
		if m.issues[i].ConversationKey == key && m.issues[i].Status == sqlite.IssueStatusOpen {
			return &m.issues[i], nil
		}
	}
	return nil, nil
}

type stubFollowUps struct {
	checks []followup.Check
}

func (s *stubFollowUps) Schedule(_ context.Context, check followup.Check) {
	s.checks = append(s.checks, check)
}

type stubTickets struct {
	created *core.CreatedTicket
	err     error
	got     []core.Ticket
}

func (s *stubTickets) CreateTicket(_ context.Context, t core.Ticket) (*core.CreatedTicket, error) {
	s.got = append(s.got, t)
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

type fixture struct {
	assistant     *Assistant
	engine        *stubEngine
	conversations *memConversations
	messenger     *fakeMessenger
	drafter       *stubDrafter
	issues        *memIssues
	followups     *stubFollowUps
	tickets       *stubTickets
}

func newFixture(zendeskConfigured bool) *fixture {
	f := &fixture{
		engine:        &stubEngine{},
		conversations: newMemConversations(),
		messenger:     newFakeMessenger(),
		drafter:       &stubDrafter{},
		issues:        &memIssues{},
		followups:     &stubFollowUps{},
		tickets:       &stubTickets{created: &core.CreatedTicket{ID: 9001, Subject: "VPN access"}},
	}
	f.assistant = New(Params{
		Engine:            f.engine,
		Conversations:     f.conversations,
		Messenger:         f.messenger,
		Drafter:           f.drafter,
		Issues:            f.issues,
		FollowUps:         f.followups,
		Tickets:           f.tickets,
		Namespace:         "omnicentra",
		ZendeskConfigured: zendeskConfigured,
	})
	return f
}

func plainResult(reply string) *answer.Result {
	return &answer.Result{
		Reply: reply,
		Messages: []core.Message{
			{Role: core.RoleSystem, Content: "system"},
			{Role: core.RoleUser, Content: "question"},
			{Role: core.RoleAssistant, Content: reply},
		},
	}
}

func TestHandleMessage_DMReply(t *testing.T) {
	f := newFixture(true)
	f.engine.result = plainResult("Your leave balance is 12 days.")

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID:     "D123",
		UserID:        "U1",
		Text:          "How much leave do I have?",
		TS:            "1683000000.0001",
		DirectMessage: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "omnicentra", f.engine.request.Namespace)
	assert.Equal(t, "Ola", f.engine.request.SenderName)
	assert.Empty(t, f.engine.request.History)

	assert.Equal(t, "Your leave balance is 12 days.", f.messenger.updates["ts-1"])
	assert.Len(t, f.conversations.data["B042:D123"], 3)
	assert.Empty(t, f.messenger.prompts)
	assert.Empty(t, f.issues.issues)
}

func TestHandleMessage_SecondTurnCarriesHistory(t *testing.T) {
	f := newFixture(true)
	f.engine.result = plainResult("first answer")

	in := Inbound{ChannelID: "D123", UserID: "U1", Text: "first?", TS: "1.1", DirectMessage: true}
	require.NoError(t, f.assistant.HandleMessage(context.Background(), in))

	f.engine.result = plainResult("second answer")
	in.Text = "second?"
	in.TS = "1.2"
	require.NoError(t, f.assistant.HandleMessage(context.Background(), in))

	assert.Len(t, f.engine.request.History, 3, "second turn resends the saved transcript")
}

func TestHandleMessage_EscalationOfferLogsIssueAndPrompts(t *testing.T) {
	f := newFixture(true)
	f.engine.result = plainResult("I don't have that information, would you like me to create a ticket on Zendesk?")
	f.engine.result.RequiresEscalation = true

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "C777", UserID: "U1", Text: "my vpn is broken", TS: "2.1", Mention: true,
	})
	require.NoError(t, err)

	require.Len(t, f.issues.issues, 1)
	assert.Equal(t, "B042:2.1", f.issues.issues[0].ConversationKey)
	assert.Equal(t, "IT", f.issues.issues[0].Category)
	require.Len(t, f.messenger.prompts, 1)
	assert.Empty(t, f.tickets.got, "offering is not filing")

	require.Len(t, f.followups.checks, 1, "an offered escalation still gets its resolution check")
	assert.Equal(t, "B042:2.1", f.followups.checks[0].Key)
}

func TestHandleMessage_ConfirmedTicketFlow(t *testing.T) {
	f := newFixture(true)
	f.engine.result = plainResult("Thank you for confirming, I have created a ticket.")
	f.engine.result.CanCreateTicket = true
	f.drafter.ticket = &core.Ticket{
		Comment: core.TicketComment{Body: "VPN refuses connections"}, Priority: "normal", Subject: "VPN access",
	}

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "D123", UserID: "U1", Text: "yes please", TS: "3.1", DirectMessage: true,
	})
	require.NoError(t, err)

	require.Len(t, f.tickets.got, 1)
	assert.Equal(t, "VPN access", f.tickets.got[0].Subject)

	require.Len(t, f.issues.issues, 1)
	require.NotNil(t, f.issues.issues[0].TicketID)
	assert.EqualValues(t, 9001, *f.issues.issues[0].TicketID)

	assert.Contains(t, f.messenger.updates["ts-1"], "#9001")
	require.Len(t, f.followups.checks, 1)
	assert.Equal(t, "B042:D123", f.followups.checks[0].Key)
}

func TestHandleMessage_DraftRejectionFilesNothing(t *testing.T) {
	f := newFixture(true)
	f.engine.result = plainResult("Thank you for confirming, I have created a ticket.")
	f.engine.result.CanCreateTicket = true
	f.drafter.err = errors.New("parse ticket draft: missing ticket.subject")

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "D123", UserID: "U1", Text: "yes", TS: "4.1", DirectMessage: true,
	})
	require.NoError(t, err)

	assert.Empty(t, f.tickets.got, "invalid draft must never reach the help desk")
	assert.Equal(t, draftFailedText, f.messenger.updates["ts-1"])
	assert.Empty(t, f.followups.checks)
}

func TestHandleMessage_ZendeskNotConfigured(t *testing.T) {
	f := newFixture(false)
	f.engine.result = plainResult("Thank you for confirming, I have created a ticket.")
	f.engine.result.CanCreateTicket = true

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "D123", UserID: "U1", Text: "yes", TS: "5.1", DirectMessage: true,
	})
	require.NoError(t, err)

	assert.Zero(t, f.drafter.calls)
	assert.Empty(t, f.tickets.got)
	assert.Equal(t, zendeskMissingText, f.messenger.updates["ts-1"])
}

func TestHandleMessage_IgnoresForeignThreads(t *testing.T) {
	f := newFixture(true)
	f.messenger.inThread = false

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "C777", UserID: "U1", Text: "unrelated chatter", TS: "6.2", ThreadTS: "6.1",
	})
	require.NoError(t, err)

	assert.Zero(t, f.engine.calls)
	assert.Empty(t, f.messenger.posts)
}

func TestHandleMessage_RepliesInBotThreads(t *testing.T) {
	f := newFixture(true)
	f.messenger.inThread = true
	f.engine.result = plainResult("continuing the thread")

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "C777", UserID: "U1", Text: "follow-up question?", TS: "7.2", ThreadTS: "7.1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.engine.calls)
	assert.Contains(t, f.conversations.data, "B042:7.1")
}

func TestHandleMessage_EmptyAndFileMessages(t *testing.T) {
	f := newFixture(true)

	require.NoError(t, f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "D123", UserID: "U1", DirectMessage: true,
	}))
	require.NoError(t, f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "D123", UserID: "U1", DirectMessage: true, HasFiles: true,
	}))

	assert.Equal(t, []string{emptyMessageText, fileMessageText}, f.messenger.posts)
	assert.Zero(t, f.engine.calls)
}

func TestHandleMessage_EngineFailure(t *testing.T) {
	f := newFixture(true)
	f.engine.err = errors.New("rate limited")

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "D123", UserID: "U1", Text: "hello?", TS: "8.1", DirectMessage: true,
	})
	require.NoError(t, err)

	assert.Equal(t, errorText, f.messenger.updates["ts-1"])
}

func TestCreateTicketForConversation(t *testing.T) {
	f := newFixture(true)
	f.drafter.ticket = &core.Ticket{
		Comment: core.TicketComment{Body: "b"}, Priority: "low", Subject: "s",
	}
	key := "B042:9.1"
	f.conversations.data[key] = []core.Message{{Role: core.RoleUser, Content: "help"}}

	err := f.assistant.CreateTicketForConversation(context.Background(), key, "C777", "9.1", "U1")
	require.NoError(t, err)

	require.Len(t, f.tickets.got, 1)
	require.Len(t, f.followups.checks, 1)
}

func TestDeclineTicket(t *testing.T) {
	f := newFixture(true)
	key := "B042:10.1"
	f.conversations.data[key] = []core.Message{{Role: core.RoleUser, Content: "help"}}
	f.issues.issues = []sqlite.Issue{{ID: 1, ConversationKey: key, Status: sqlite.IssueStatusOpen}}

	require.NoError(t, f.assistant.DeclineTicket(context.Background(), key, "C777", "10.1"))

	assert.NotContains(t, f.conversations.data, key)
	assert.Equal(t, []string{noTicketText}, f.messenger.posts)
	assert.Equal(t, sqlite.IssueStatusResolved, f.issues.issues[0].Status, "declining closes the logged issue")
}

func TestHandleMessage_RefreshesOpenIssueTranscript(t *testing.T) {
	f := newFixture(true)
	f.issues.issues = []sqlite.Issue{{
		ID:              1,
		ConversationKey: "B042:D123",
		Status:          sqlite.IssueStatusOpen,
		Transcript:      []core.Message{{Role: core.RoleUser, Content: "old turn"}},
	}}
	f.engine.result = plainResult("still looking into it")

	err := f.assistant.HandleMessage(context.Background(), Inbound{
		ChannelID: "D123", UserID: "U1", Text: "any update?", TS: "11.1", DirectMessage: true,
	})
	require.NoError(t, err)

	assert.Equal(t, f.engine.result.Messages, f.issues.issues[0].Transcript)
	assert.Empty(t, f.followups.checks, "no second issue, no second check")
}

var _ Conversations = (*conversation.Manager)(nil)
