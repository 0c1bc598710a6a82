package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/alfred/internal/core"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls = append(s.calls, text)
	return s.vector, s.err
}

type stubStore struct {
	records   []core.KnowledgeRecord
	err       error
	namespace string
}

func (s *stubStore) FetchAll(_ context.Context, namespace string) ([]core.KnowledgeRecord, error) {
	s.namespace = namespace
	return s.records, s.err
}

type stubChat struct {
	reply string
	err   error

	newSystem   string
	newUser     string
	contUser    string
	contHistory []core.Message
	newCalls    int
	contCalls   int
}

func (s *stubChat) CompleteNew(_ context.Context, systemMessage, userMessage string) (string, []core.Message, error) {
	s.newCalls++
	s.newSystem = systemMessage
	s.newUser = userMessage
	if s.err != nil {
		return "", nil, s.err
	}
	return s.reply, []core.Message{
		{Role: core.RoleSystem, Content: systemMessage},
		{Role: core.RoleUser, Content: userMessage},
		{Role: core.RoleAssistant, Content: s.reply},
	}, nil
}

func (s *stubChat) CompleteContinue(_ context.Context, userMessage string, history []core.Message) (string, []core.Message, error) {
	s.contCalls++
	s.contUser = userMessage
	s.contHistory = history
	if s.err != nil {
		return "", nil, s.err
	}
	out := make([]core.Message, 0, len(history)+2)
	out = append(out, history...)
	out = append(out,
		core.Message{Role: core.RoleUser, Content: userMessage},
		core.Message{Role: core.RoleAssistant, Content: s.reply},
	)
	return s.reply, out, nil
}

func TestEngine_Respond_EscalatesWhenKnowledgeBaseHasNoAnswer(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{0, 1}}
	store := &stubStore{records: []core.KnowledgeRecord{
		{
			Title:     "WiFi policy",
			Content:   "The office WiFi password is rotated weekly and posted on the IT board.",
			Embedding: []float32{1, 0.2},
		},
	}}
	chat := &stubChat{reply: "I don't have that in the knowledge base, would you like me to create a ticket on Zendesk?"}
	engine := NewEngine(embedder, store, chat, NewPhraseClassifier(), Options{TopN: 1, Company: "Omnicentra"})

	result, err := engine.Respond(context.Background(), Request{
		Query:      "What is the WiFi password?",
		Namespace:  "omnicentra",
		SenderName: "Ola",
	})
	require.NoError(t, err)

	assert.True(t, result.RequiresEscalation)
	assert.False(t, result.CanCreateTicket)
	assert.Equal(t, chat.reply, result.Reply)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, store.records[0].Content, result.Matches[0].Content)

	assert.Equal(t, "omnicentra", store.namespace)
	assert.Equal(t, []string{"What is the WiFi password?"}, embedder.calls)
	assert.Equal(t, 1, chat.newCalls)
	assert.Zero(t, chat.contCalls)
	assert.Contains(t, chat.newUser, "rotated weekly")
	assert.Contains(t, chat.newUser, "Question: What is the WiFi password?")
	assert.Contains(t, chat.newSystem, "Omnicentra")

	require.Len(t, result.Messages, 3)
	assert.Equal(t, core.RoleAssistant, result.Messages[2].Role)
}

func TestEngine_Respond_TicketConfirmationReply(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := &stubStore{records: []core.KnowledgeRecord{
		{Content: "expense policy text", Embedding: []float32{1, 0}},
	}}
	chat := &stubChat{reply: "Thank you for confirming, I have created a ticket for this."}
	engine := NewEngine(embedder, store, chat, NewPhraseClassifier(), Options{})

	result, err := engine.Respond(context.Background(), Request{Query: "yes please", SenderName: "Sam"})
	require.NoError(t, err)

	assert.True(t, result.CanCreateTicket)
}

func TestEngine_Respond_ContinuesWithHistory(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := &stubStore{records: []core.KnowledgeRecord{
		{Content: "vpn setup guide", Embedding: []float32{1, 0}},
	}}
	chat := &stubChat{reply: "You install the VPN client from the portal."}
	engine := NewEngine(embedder, store, chat, NewPhraseClassifier(), Options{})

	history := []core.Message{
		{Role: core.RoleSystem, Content: "system"},
		{Role: core.RoleUser, Content: "earlier question"},
		{Role: core.RoleAssistant, Content: "earlier answer"},
	}
	result, err := engine.Respond(context.Background(), Request{
		Query:      "How do I set up the VPN?",
		SenderName: "Sam",
		History:    history,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, chat.contCalls)
	assert.Zero(t, chat.newCalls)
	assert.Equal(t, history, chat.contHistory)
	assert.Equal(t, "How do I set up the VPN?\n\nContext: vpn setup guide", chat.contUser)
	assert.Len(t, result.Messages, 5)
}

func TestEngine_Respond_ChitChatContinuationCarriesNoContext(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := &stubStore{records: []core.KnowledgeRecord{
		{Content: "irrelevant passage", Embedding: []float32{1, 0}},
	}}
	chat := &stubChat{reply: "You're welcome!"}
	engine := NewEngine(embedder, store, chat, NewPhraseClassifier(), Options{})

	_, err := engine.Respond(context.Background(), Request{
		Query:      "thanks a lot",
		SenderName: "Sam",
		History:    []core.Message{{Role: core.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "thanks a lot", chat.contUser)
	assert.NotContains(t, chat.contUser, "irrelevant passage")
}

func TestEngine_Respond_CompanyOverride(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := &stubStore{}
	chat := &stubChat{reply: "hello"}
	engine := NewEngine(embedder, store, chat, NewPhraseClassifier(), Options{Company: "Omnicentra"})

	_, err := engine.Respond(context.Background(), Request{
		Query:      "hello?",
		SenderName: "Sam",
		Company:    "Acme Corp",
	})
	require.NoError(t, err)

	assert.Contains(t, chat.newSystem, "Acme Corp")
	assert.NotContains(t, chat.newSystem, "Omnicentra")
}

func TestEngine_Respond_EmptyQuery(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, &stubStore{}, &stubChat{}, NewPhraseClassifier(), Options{})

	_, err := engine.Respond(context.Background(), Request{Query: "   "})
	assert.Error(t, err)
}

func TestEngine_Respond_PropagatesFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("embedder", func(t *testing.T) {
		engine := NewEngine(&stubEmbedder{err: boom}, &stubStore{}, &stubChat{}, NewPhraseClassifier(), Options{})
		_, err := engine.Respond(context.Background(), Request{Query: "q?"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("store", func(t *testing.T) {
		engine := NewEngine(&stubEmbedder{vector: []float32{1}}, &stubStore{err: boom}, &stubChat{}, NewPhraseClassifier(), Options{})
		_, err := engine.Respond(context.Background(), Request{Query: "q?"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("chat", func(t *testing.T) {
		engine := NewEngine(&stubEmbedder{vector: []float32{1}}, &stubStore{}, &stubChat{err: boom}, NewPhraseClassifier(), Options{})
		_, err := engine.Respond(context.Background(), Request{Query: "q?"})
		assert.ErrorIs(t, err, boom)
	})
}

func TestEngine_Respond_EmptyKnowledgeBase(t *testing.T) {
	chat := &stubChat{reply: "I could not find anything, would you like me to contact support for you?"}
	engine := NewEngine(&stubEmbedder{vector: []float32{1, 0}}, &stubStore{}, chat, NewPhraseClassifier(), Options{})

	result, err := engine.Respond(context.Background(), Request{Query: "Anything?", SenderName: "Sam"})
	require.NoError(t, err)

	assert.Empty(t, result.Matches)
	assert.Contains(t, chat.newUser, "Context:\n\"\"\"\n\n\"\"\"", "context block is present but empty")
	assert.True(t, result.RequiresEscalation)
}
