package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deskflow/alfred/internal/config"
	"github.com/deskflow/alfred/internal/core"
)

// ConversationStore keeps conversation transcripts in Redis, one JSON
// value per conversation key. Expiry is delegated to Redis TTLs.
type ConversationStore struct {
	client *redis.Client
}

var _ core.ConversationStore = (*ConversationStore)(nil)

func NewConversationStore(ctx context.Context, cfg config.RedisConfig) (*ConversationStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return &ConversationStore{client: client}, nil
}

func (s *ConversationStore) Put(ctx context.Context, key string, messages []core.Message, ttl time.Duration) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *ConversationStore) Get(ctx context.Context, key string) ([]core.Message, bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}

	var messages []core.Message
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil, false, fmt.Errorf("decode conversation %q: %w", key, err)
	}
	return messages, true, nil
}

func (s *ConversationStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %q: %w", key, err)
	}
	return nil
}

func (s *ConversationStore) Close() error {
	return s.client.Close()
}
