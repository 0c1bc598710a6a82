package core

const (
	AssistantName = "Alfred"
	UserAgent     = "Alfred-Bot/0.1"
	Version       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// KnowledgeRecord is one chunked passage of the indexed support docs.
// Embedding length is fixed by the embedding model for a given knowledge
// base version; records are read-only and replaced wholesale on re-ingest.
type KnowledgeRecord struct {
	Title     string
	Content   string
	Embedding []float32
	Category  string
}

// RankedMatch is one scored retrieval result.
type RankedMatch struct {
	Content   string
	Score     float64
	Embedding []float32
}

// ChannelKind tells how the inbound message reached the bot. It decides
// both the conversation key shape and the cache TTL.
type ChannelKind string

const (
	// ChannelDMMessage is a root-level message in the bot's DM tab.
	ChannelDMMessage ChannelKind = "DM_MESSAGE"
	// ChannelDMReply is a threaded reply inside the bot's DM tab.
	ChannelDMReply ChannelKind = "DM_REPLY"
	// ChannelMentionReply is a reply in a channel thread where the bot
	// was mentioned.
	ChannelMentionReply ChannelKind = "CHANNEL_MENTION_REPLY"
)

// Threaded reports whether the conversation lives in a thread, i.e. the
// key must be derived from the thread root rather than the channel.
func (k ChannelKind) Threaded() bool {
	return k == ChannelDMReply || k == ChannelMentionReply
}

// Ticket is the payload shape Zendesk expects on ticket creation.
type Ticket struct {
	Comment   TicketComment    `json:"comment"`
	Priority  string           `json:"priority"`
	Subject   string           `json:"subject"`
	Requester *TicketRequester `json:"requester,omitempty"`
}

type TicketComment struct {
	Body string `json:"body"`
}

type TicketRequester struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreatedTicket is what Zendesk returns on a 201.
type CreatedTicket struct {
	ID          int64  `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// Profile identifies the employee behind a conversation.
type Profile struct {
	Name  string
	Email string
}
