package slackapi

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/slack-go/slack"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

const thinkingText = "Alfred is thinking :hourglass_flowing_sand:"

// Client wraps the Slack Web API with the handful of operations the bot
// needs: posting and editing replies, walking threads, and looking up
// who it is talking to.
type Client struct {
	api       *slack.Client
	botUserID string
}

func NewClient(ctx context.Context, cfg config.SlackConfig) (*Client, error) {
	api := slack.New(cfg.BotToken)

	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack auth test: %w", err)
	}
	log.FromCtx(ctx).Info().
		Str("bot_user_id", auth.UserID).
		Str("team", auth.Team).
		Msg("slack authenticated")

	return &Client{api: api, botUserID: auth.UserID}, nil
}

// BotUserID is the authed bot's member ID, used for conversation keys
// and mention detection.
func (c *Client) BotUserID() string {
	return c.botUserID
}

// PostMessage sends text to a channel, threaded under threadTS when it
// is non-empty. Returns the new message timestamp.
func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	return ts, nil
}

// PostThinking posts the placeholder shown while the model works. The
// returned timestamp is later passed to UpdateMessage with the real
// reply.
func (c *Client) PostThinking(ctx context.Context, channelID, threadTS string) (string, error) {
	return c.PostMessage(ctx, channelID, threadTS, thinkingText)
}

// UpdateMessage replaces the text of an already posted message.
func (c *Client) UpdateMessage(ctx context.Context, channelID, ts, text string) error {
	if _, _, _, err := c.api.UpdateMessageContext(ctx, channelID, ts, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// PostEscalationPrompt posts the yes/no block asking whether to file a
// ticket. The asking user's ID travels as the button value so the
// interaction handler can reject clicks from anyone else.
func (c *Client) PostEscalationPrompt(ctx context.Context, channelID, threadTS, text, askerID string) (string, error) {
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		slack.NewActionBlock("escalation",
			slack.NewButtonBlockElement("escalation_yes", askerID,
				slack.NewTextBlockObject(slack.PlainTextType, "Create a ticket", false, false)),
			slack.NewButtonBlockElement("escalation_no", askerID,
				slack.NewTextBlockObject(slack.PlainTextType, "No thanks", false, false)),
		),
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("post escalation prompt: %w", err)
	}
	return ts, nil
}

// ThreadMessages returns every message in a thread, oldest first.
func (c *Client) ThreadMessages(ctx context.Context, channelID, threadTS string) ([]slack.Message, error) {
	var all []slack.Message
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
	}
	for {
		msgs, hasMore, nextCursor, err := c.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("get thread replies: %w", err)
		}
		all = append(all, msgs...)
		if !hasMore {
			return all, nil
		}
		params.Cursor = nextCursor
	}
}

// BotInThread reports whether the bot has participated in (or was
// mentioned in) a thread. Replies in foreign threads are ignored.
func (c *Client) BotInThread(ctx context.Context, channelID, threadTS string) (bool, error) {
	msgs, err := c.ThreadMessages(ctx, channelID, threadTS)
	if err != nil {
		return false, err
	}
	mention := fmt.Sprintf("<@%s>", c.botUserID)
	for _, m := range msgs {
		if m.User == c.botUserID || m.BotID != "" && m.Username == core.AssistantName {
			return true, nil
		}
		if strings.Contains(m.Text, mention) {
			return true, nil
		}
	}
	return false, nil
}

// UserProfile resolves a member ID to the employee behind it.
func (c *Client) UserProfile(ctx context.Context, userID string) (core.Profile, error) {
	profile, err := c.api.GetUserProfileContext(ctx, &slack.GetUserProfileParameters{UserID: userID})
	if err != nil {
		return core.Profile{}, fmt.Errorf("get user profile: %w", err)
	}

	name := profile.DisplayName
	if name == "" {
		name = profile.RealName
	}
	return core.Profile{Name: name, Email: profile.Email}, nil
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

// StripMentions removes member mention tags from message text so the
// model never sees raw Slack markup.
func StripMentions(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}
