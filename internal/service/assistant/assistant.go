package assistant

import (
	"context"
	"fmt"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/internal/service/answer"
	"github.com/deskflow/alfred/internal/service/followup"
	"github.com/deskflow/alfred/internal/storage/sqlite"
	"github.com/deskflow/alfred/pkg/conv"
	"github.com/deskflow/alfred/pkg/log"
)

const (
	emptyMessageText   = "I didn't catch that. Could you type your question?"
	fileMessageText    = "I can't read file attachments yet. Could you describe the issue in a message?"
	errorText          = "Something went wrong while processing your message. Please try again."
	zendeskMissingText = "It looks like the Zendesk integration has not been set up for this workspace yet, so I can't create a ticket. Please ask your administrator to finish the setup."
	draftFailedText    = "I wasn't able to put a ticket together from our conversation. Could you summarize the issue once more?"
	noTicketText       = "No problem! Let me know if there is anything else I can help you with."

	escalationPromptText = "Shall I go ahead and create a ticket for you?"
)

// Responder runs one retrieval-augmented conversation turn.
type Responder interface {
	Respond(ctx context.Context, req answer.Request) (*answer.Result, error)
}

// Conversations is the conversation state surface the assistant needs.
type Conversations interface {
	Key(kind core.ChannelKind, channelID, threadRoot string) string
	Lock(key string) func()
	Load(ctx context.Context, key string) ([]core.Message, bool, error)
	Save(ctx context.Context, key string, kind core.ChannelKind, messages []core.Message) error
	Resolve(ctx context.Context, key string) error
}

// Messenger posts and edits the assistant's Slack messages.
type Messenger interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error)
	PostThinking(ctx context.Context, channelID, threadTS string) (string, error)
	UpdateMessage(ctx context.Context, channelID, ts, text string) error
	PostEscalationPrompt(ctx context.Context, channelID, threadTS, text, askerID string) (string, error)
	BotInThread(ctx context.Context, channelID, threadTS string) (bool, error)
	UserProfile(ctx context.Context, userID string) (core.Profile, error)
}

// Drafter turns a transcript into a validated ticket payload.
type Drafter interface {
	Draft(ctx context.Context, transcript []core.Message, requester core.Profile) (*core.Ticket, error)
	Categorize(ctx context.Context, text string) string
}

// IssueLog records escalations and their outcomes.
type IssueLog interface {
	Create(ctx context.Context, issue sqlite.Issue) (int64, error)
	AttachTicket(ctx context.Context, id, ticketID int64) error
	UpdateTranscript(ctx context.Context, id int64, transcript []core.Message) error
	ResolveByConversation(ctx context.Context, conversationKey string) error
	OpenByConversation(ctx context.Context, conversationKey string) (*sqlite.Issue, error)
}

// FollowUps schedules delayed resolution checks.
type FollowUps interface {
	Schedule(ctx context.Context, check followup.Check)
}

// Inbound is one normalized Slack message aimed at the bot.
type Inbound struct {
	ChannelID string
	UserID    string
	Text      string
	// TS is the message's own timestamp.
	TS string
	// ThreadTS is the root of the thread the message lives in, empty
	// for top-level messages.
	ThreadTS string
	// DirectMessage is true in the bot's DM tab ("im" channels).
	DirectMessage bool
	// Mention is true for app_mention events.
	Mention bool
	// HasFiles is true when the message carries attachments.
	HasFiles bool
}

// Assistant is the conversation orchestrator: it decides whether a
// message is addressed to the bot, runs the answer engine under the
// conversation lock, and drives the escalation and ticket flows.
type Assistant struct {
	engine        Responder
	conversations Conversations
	messenger     Messenger
	drafter       Drafter
	issues        IssueLog
	followups     FollowUps
	tickets       core.TicketCreator

	namespace         string
	zendeskConfigured bool
}

type Params struct {
	Engine            Responder
	Conversations     Conversations
	Messenger         Messenger
	Drafter           Drafter
	Issues            IssueLog
	FollowUps         FollowUps
	Tickets           core.TicketCreator
	Namespace         string
	ZendeskConfigured bool
}

func New(p Params) *Assistant {
	return &Assistant{
		engine:            p.Engine,
		conversations:     p.Conversations,
		messenger:         p.Messenger,
		drafter:           p.Drafter,
		issues:            p.Issues,
		followups:         p.FollowUps,
		tickets:           p.Tickets,
		namespace:         p.Namespace,
		zendeskConfigured: p.ZendeskConfigured,
	}
}

// HandleMessage processes one inbound message end to end. Errors are
// reported to the user in-channel; the returned error is for logging.
func (a *Assistant) HandleMessage(ctx context.Context, in Inbound) error {
	logger := log.FromCtx(ctx).With().
		Str("channel", in.ChannelID).
		Str("user", in.UserID).
		Logger()

	if in.HasFiles && in.Text == "" {
		_, err := a.messenger.PostMessage(ctx, in.ChannelID, in.ThreadTS, fileMessageText)
		return err
	}
	if in.Text == "" {
		_, err := a.messenger.PostMessage(ctx, in.ChannelID, in.ThreadTS, emptyMessageText)
		return err
	}

	kind, threadRoot, ok, err := a.classify(ctx, in)
	if err != nil {
		return err
	}
	if !ok {
		// A thread the bot was never part of.
		return nil
	}

	key := a.conversations.Key(kind, in.ChannelID, threadRoot)
	unlock := a.conversations.Lock(key)
	defer unlock()

	history, _, err := a.conversations.Load(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load conversation")
		history = nil
	}

	profile, err := a.messenger.UserProfile(ctx, in.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to resolve user profile")
	}

	replyThread := in.ThreadTS
	if kind == core.ChannelMentionReply {
		replyThread = threadRoot
	}

	thinkingTS, err := a.messenger.PostThinking(ctx, in.ChannelID, replyThread)
	if err != nil {
		return fmt.Errorf("post placeholder: %w", err)
	}

	result, err := a.engine.Respond(ctx, answer.Request{
		Query:      in.Text,
		Namespace:  a.namespace,
		SenderName: profile.Name,
		History:    history,
	})
	if err != nil {
		logger.Error().Err(err).Msg("engine failed")
		return a.messenger.UpdateMessage(ctx, in.ChannelID, thinkingTS, errorText)
	}

	if err := a.conversations.Save(ctx, key, kind, result.Messages); err != nil {
		logger.Error().Err(err).Msg("failed to save conversation")
	}
	a.refreshIssue(ctx, key, result.Messages)

	if result.CanCreateTicket {
		return a.fileTicket(ctx, in, key, replyThread, thinkingTS, profile, result.Messages)
	}

	if err := a.messenger.UpdateMessage(ctx, in.ChannelID, thinkingTS, conv.MarkdownToSlack([]byte(result.Reply))); err != nil {
		return fmt.Errorf("update reply: %w", err)
	}

	if result.RequiresEscalation {
		a.logEscalation(ctx, key, in, replyThread, profile, result.Messages)
		if _, err := a.messenger.PostEscalationPrompt(ctx, in.ChannelID, replyThread, escalationPromptText, in.UserID); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to post escalation prompt")
		}
	}
	return nil
}

// CreateTicketForConversation runs the ticket sub-flow for an existing
// conversation, used by the escalation dialog's confirm button.
func (a *Assistant) CreateTicketForConversation(ctx context.Context, key, channelID, threadTS, userID string) error {
	unlock := a.conversations.Lock(key)
	defer unlock()

	history, ok, err := a.conversations.Load(ctx, key)
	if err != nil || !ok {
		_, postErr := a.messenger.PostMessage(ctx, channelID, threadTS, draftFailedText)
		if postErr != nil {
			return postErr
		}
		return err
	}

	profile, err := a.messenger.UserProfile(ctx, userID)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to resolve user profile")
	}

	thinkingTS, err := a.messenger.PostThinking(ctx, channelID, threadTS)
	if err != nil {
		return fmt.Errorf("post placeholder: %w", err)
	}

	in := Inbound{ChannelID: channelID, ThreadTS: threadTS, UserID: userID}
	return a.fileTicket(ctx, in, key, threadTS, thinkingTS, profile, history)
}

// DeclineTicket handles the escalation dialog's decline button. The
// open issue is closed along with the cached conversation; declining is
// an outcome, not a deferral.
func (a *Assistant) DeclineTicket(ctx context.Context, key, channelID, threadTS string) error {
	if err := a.issues.ResolveByConversation(ctx, key); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to resolve issue")
	}
	if err := a.conversations.Resolve(ctx, key); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to resolve conversation")
	}
	_, err := a.messenger.PostMessage(ctx, channelID, threadTS, noTicketText)
	return err
}

// ConversationKey rebuilds the cache key for an interaction callback,
// which carries channel and thread but not the original event kind.
func (a *Assistant) ConversationKey(directMessage bool, channelID, threadRoot string) string {
	kind := core.ChannelMentionReply
	if directMessage {
		kind = core.ChannelDMReply
		if threadRoot == "" {
			kind = core.ChannelDMMessage
		}
	}
	return a.conversations.Key(kind, channelID, threadRoot)
}

// classify determines conversation kind and thread root, or reports the
// message as not addressed to the bot.
func (a *Assistant) classify(ctx context.Context, in Inbound) (core.ChannelKind, string, bool, error) {
	if in.DirectMessage {
		if in.ThreadTS == "" {
			return core.ChannelDMMessage, "", true, nil
		}
		return core.ChannelDMReply, in.ThreadTS, true, nil
	}

	if in.Mention {
		root := in.ThreadTS
		if root == "" {
			// A fresh mention starts a thread rooted at the mention
			// itself.
			root = in.TS
		}
		return core.ChannelMentionReply, root, true, nil
	}

	if in.ThreadTS == "" {
		return "", "", false, nil
	}

	involved, err := a.messenger.BotInThread(ctx, in.ChannelID, in.ThreadTS)
	if err != nil {
		return "", "", false, fmt.Errorf("check thread participation: %w", err)
	}
	if !involved {
		return "", "", false, nil
	}
	return core.ChannelMentionReply, in.ThreadTS, true, nil
}

func (a *Assistant) fileTicket(ctx context.Context, in Inbound, key, replyThread, thinkingTS string, profile core.Profile, transcript []core.Message) error {
	logger := log.FromCtx(ctx).With().Str("key", key).Logger()

	if !a.zendeskConfigured {
		return a.messenger.UpdateMessage(ctx, in.ChannelID, thinkingTS, zendeskMissingText)
	}

	draft, err := a.drafter.Draft(ctx, transcript, profile)
	if err != nil {
		logger.Warn().Err(err).Msg("ticket draft rejected, nothing filed")
		return a.messenger.UpdateMessage(ctx, in.ChannelID, thinkingTS, draftFailedText)
	}

	created, err := a.tickets.CreateTicket(ctx, *draft)
	if err != nil {
		logger.Error().Err(err).Msg("ticket creation failed")
		return a.messenger.UpdateMessage(ctx, in.ChannelID, thinkingTS, errorText)
	}

	issueID, err := a.openIssue(ctx, key, profile, draft, transcript)
	if err != nil {
		logger.Error().Err(err).Msg("failed to log issue")
	} else if err := a.issues.AttachTicket(ctx, issueID, created.ID); err != nil {
		logger.Error().Err(err).Msg("failed to attach ticket to issue")
	}

	confirmation := fmt.Sprintf("I have created ticket #%d: *%s*. The team will get back to you soon. I'll check in later to make sure it gets resolved.", created.ID, created.Subject)
	if err := a.messenger.UpdateMessage(ctx, in.ChannelID, thinkingTS, confirmation); err != nil {
		return fmt.Errorf("update confirmation: %w", err)
	}

	a.followups.Schedule(ctx, followup.Check{
		Key:       key,
		ChannelID: in.ChannelID,
		ThreadTS:  replyThread,
	})
	return nil
}

func (a *Assistant) openIssue(ctx context.Context, key string, profile core.Profile, draft *core.Ticket, transcript []core.Message) (int64, error) {
	if existing, err := a.issues.OpenByConversation(ctx, key); err == nil && existing != nil {
		if err := a.issues.UpdateTranscript(ctx, existing.ID, transcript); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("failed to update issue transcript")
		}
		return existing.ID, nil
	}
	return a.issues.Create(ctx, sqlite.Issue{
		ConversationKey: key,
		EmployeeName:    profile.Name,
		EmployeeEmail:   profile.Email,
		Category:        a.drafter.Categorize(ctx, draft.Subject+" "+draft.Comment.Body),
		Subject:         draft.Subject,
		Transcript:      transcript,
	})
}

// logEscalation opens an issue for an escalated conversation and queues
// a resolution check, so the issue gets closed even if the user never
// answers the ticket prompt.
func (a *Assistant) logEscalation(ctx context.Context, key string, in Inbound, replyThread string, profile core.Profile, transcript []core.Message) {
	logger := log.FromCtx(ctx)

	existing, err := a.issues.OpenByConversation(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg("failed to check open issues")
		return
	}
	if existing != nil {
		// Already tracked; refreshIssue keeps its transcript current.
		return
	}

	if _, err := a.issues.Create(ctx, sqlite.Issue{
		ConversationKey: key,
		EmployeeName:    profile.Name,
		EmployeeEmail:   profile.Email,
		Category:        a.drafter.Categorize(ctx, in.Text),
		Subject:         in.Text,
		Transcript:      transcript,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to log escalation issue")
		return
	}

	a.followups.Schedule(ctx, followup.Check{
		Key:       key,
		ChannelID: in.ChannelID,
		ThreadTS:  replyThread,
	})
}

// refreshIssue keeps the open issue's transcript in step with the
// conversation on every turn after the one that opened it.
func (a *Assistant) refreshIssue(ctx context.Context, key string, transcript []core.Message) {
	existing, err := a.issues.OpenByConversation(ctx, key)
	if err != nil || existing == nil {
		return
	}
	if err := a.issues.UpdateTranscript(ctx, existing.ID, transcript); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to update issue transcript")
	}
}
