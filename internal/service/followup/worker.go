package followup

import (
	"context"
	"sync"
	"time"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

const nudgeText = "Hi, just checking in. Has your issue been resolved, or is there anything else I can help you with?"

// ConversationReader reads cached conversation state.
type ConversationReader interface {
	Load(ctx context.Context, key string) ([]core.Message, bool, error)
}

// IssueResolver closes issue records once a conversation goes quiet.
type IssueResolver interface {
	ResolveByConversation(ctx context.Context, conversationKey string) error
}

// Notifier posts the check-in message back to the user.
type Notifier interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error)
}

// Check is one scheduled follow-up on a conversation.
type Check struct {
	Key       string
	ChannelID string
	ThreadTS  string
}

// Worker runs delayed follow-ups: after the configured delay it looks at
// the conversation cache. An expired conversation means the user walked
// away satisfied, so the issue is marked resolved; a live one gets a
// check-in nudge.
type Worker struct {
	conversations ConversationReader
	issues        IssueResolver
	notifier      Notifier
	delay         time.Duration

	checks chan Check
	wg     sync.WaitGroup
}

func NewWorker(conversations ConversationReader, issues IssueResolver, notifier Notifier, delay time.Duration) *Worker {
	return &Worker{
		conversations: conversations,
		issues:        issues,
		notifier:      notifier,
		delay:         delay,
		checks:        make(chan Check, 64),
	}
}

// Schedule queues a follow-up check. Fire and forget; a full queue drops
// the check rather than blocking the caller.
func (w *Worker) Schedule(ctx context.Context, check Check) {
	select {
	case w.checks <- check:
	default:
		log.FromCtx(ctx).Warn().Str("key", check.Key).Msg("follow-up queue full, check dropped")
	}
}

func (w *Worker) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx).With().Str("component", "followup_worker").Logger()
	logger.Info().Dur("delay", w.delay).Msg("starting follow-up worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down follow-up worker")
			return nil
		case check := <-w.checks:
			w.wg.Add(1)
			go func(check Check) {
				defer w.wg.Done()
				select {
				case <-ctx.Done():
				case <-time.After(w.delay):
					w.runCheck(ctx, check)
				}
			}(check)
		}
	}
}

func (w *Worker) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return nil
	}
}

func (w *Worker) runCheck(ctx context.Context, check Check) {
	logger := log.FromCtx(ctx).With().Str("key", check.Key).Logger()

	_, alive, err := w.conversations.Load(ctx, check.Key)
	if err != nil {
		logger.Error().Err(err).Msg("follow-up check failed")
		return
	}

	if !alive {
		if err := w.issues.ResolveByConversation(ctx, check.Key); err != nil {
			logger.Error().Err(err).Msg("failed to resolve issue")
			return
		}
		logger.Debug().Msg("conversation expired, issue resolved")
		return
	}

	if _, err := w.notifier.PostMessage(ctx, check.ChannelID, check.ThreadTS, nudgeText); err != nil {
		logger.Error().Err(err).Msg("failed to post follow-up nudge")
		return
	}
	logger.Debug().Msg("follow-up nudge posted")
}
