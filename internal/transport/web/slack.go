package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/deskflow/alfred/internal/providers/slackapi"
	"github.com/deskflow/alfred/internal/service/assistant"
	"github.com/deskflow/alfred/pkg/log"
)

func (s *Server) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	logger := log.FromCtx(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		logger.Warn().Err(err).Msg("failed to parse slack event")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		s.dispatchCallback(event.InnerEvent)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusOK)
	}
}

// dispatchCallback acks immediately and processes the event in the
// background; Slack retries webhooks that take longer than 3 seconds.
func (s *Server) dispatchCallback(inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		in := assistant.Inbound{
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Text:      slackapi.StripMentions(ev.Text),
			TS:        ev.TimeStamp,
			ThreadTS:  ev.ThreadTimeStamp,
			Mention:   true,
		}
		s.handleAsync(in)

	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.SubType == "message_changed" || ev.SubType == "message_deleted" {
			return
		}
		// Channel mentions arrive twice, as app_mention and as message;
		// the mention handler owns those.
		if ev.ChannelType != "im" && strings.Contains(ev.Text, "<@") {
			return
		}
		in := assistant.Inbound{
			ChannelID:     ev.Channel,
			UserID:        ev.User,
			Text:          slackapi.StripMentions(ev.Text),
			TS:            ev.TimeStamp,
			ThreadTS:      ev.ThreadTimeStamp,
			DirectMessage: ev.ChannelType == "im",
			HasFiles:      ev.SubType == "file_share",
		}
		s.handleAsync(in)
	}
}

func (s *Server) handleAsync(in assistant.Inbound) {
	go func() {
		if err := s.assistant.HandleMessage(s.appCtx, in); err != nil {
			log.FromCtx(s.appCtx).Error().Err(err).
				Str("channel", in.ChannelID).
				Msg("failed to handle slack message")
		}
	}()
}

func (s *Server) handleSlackInteractions(w http.ResponseWriter, r *http.Request) {
	logger := log.FromCtx(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &callback); err != nil {
		logger.Warn().Err(err).Msg("failed to parse interaction payload")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if callback.Type != slack.InteractionTypeBlockActions || len(callback.ActionCallback.BlockActions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	action := callback.ActionCallback.BlockActions[0]
	if action.Value != "" && action.Value != callback.User.ID {
		// Only the user the prompt was addressed to may answer it.
		logger.Info().Str("user", callback.User.ID).Str("asker", action.Value).Msg("ignoring escalation click from another user")
		w.WriteHeader(http.StatusOK)
		return
	}
	channelID := callback.Channel.ID
	isDM := strings.HasPrefix(channelID, "D")
	threadTS := callback.Message.ThreadTimestamp
	if threadTS == "" && !isDM {
		// In a channel the prompt itself roots the thread.
		threadTS = callback.Message.Timestamp
	}
	key := s.assistant.ConversationKey(isDM, channelID, threadTS)
	userID := callback.User.ID

	go func() {
		ctx := s.appCtx
		var err error
		switch action.ActionID {
		case "escalation_yes":
			err = s.assistant.CreateTicketForConversation(ctx, key, channelID, threadTS, userID)
		case "escalation_no":
			err = s.assistant.DeclineTicket(ctx, key, channelID, threadTS)
		}
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("action", action.ActionID).Msg("interaction failed")
		}
	}()

	w.WriteHeader(http.StatusOK)
}
