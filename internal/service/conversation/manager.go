package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deskflow/alfred/internal/core"
	"github.com/deskflow/alfred/pkg/log"
)

const (
	// ThreadTTL keeps threaded conversations alive for a day; thread
	// participants come back after meetings and lunch breaks.
	ThreadTTL = 24 * time.Hour
	// DirectTTL expires top-level DM conversations after an hour.
	DirectTTL = time.Hour
)

// Manager owns conversation state: key derivation, cache reads and
// writes with the right TTL, and per-conversation serialization so two
// in-flight turns never interleave their read-modify-write cycles.
type Manager struct {
	store core.ConversationStore
	botID string

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(store core.ConversationStore, botID string) *Manager {
	return &Manager{
		store: store,
		botID: botID,
		locks: make(map[string]*keyLock),
	}
}

// Key derives the cache key for a message. Threaded conversations key on
// the thread root so every reply in the thread shares one transcript;
// top-level DMs key on the channel.
func (m *Manager) Key(kind core.ChannelKind, channelID, threadRoot string) string {
	if kind.Threaded() {
		return fmt.Sprintf("%s:%s", m.botID, threadRoot)
	}
	return fmt.Sprintf("%s:%s", m.botID, channelID)
}

// Lock serializes work on one conversation. The returned func releases
// the lock; locks are reference counted and freed when idle.
func (m *Manager) Lock(key string) func() {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		m.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Load returns the cached transcript for key, ok=false when the
// conversation is new or has expired.
func (m *Manager) Load(ctx context.Context, key string) ([]core.Message, bool, error) {
	messages, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load conversation %q: %w", key, err)
	}
	return messages, ok, nil
}

// Save stores the transcript with the TTL matching the channel kind.
// Every save resets the expiry clock.
func (m *Manager) Save(ctx context.Context, key string, kind core.ChannelKind, messages []core.Message) error {
	ttl := DirectTTL
	if kind.Threaded() {
		ttl = ThreadTTL
	}
	if err := m.store.Put(ctx, key, messages, ttl); err != nil {
		return fmt.Errorf("save conversation %q: %w", key, err)
	}
	log.FromCtx(ctx).Debug().
		Str("key", key).
		Int("messages", len(messages)).
		Dur("ttl", ttl).
		Msg("conversation saved")
	return nil
}

// Resolve drops the conversation from the cache. A later message on the
// same key starts a fresh conversation.
func (m *Manager) Resolve(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("resolve conversation %q: %w", key, err)
	}
	return nil
}
