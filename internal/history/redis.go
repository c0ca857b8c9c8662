package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisConversationsKey = "relay:history:conversations"
	redisMessagesKeyFmt   = "relay:history:messages:%s"
)

// RedisStore stores conversation lists and message lists as JSON values.
// An optional TTL lets deployments expire idle history instead of growing
// the keyspace forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := s.load(ctx, redisConversationsKey, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) SaveConversations(ctx context.Context, conversations []Conversation) error {
	return s.save(ctx, redisConversationsKey, conversations)
}

func (s *RedisStore) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	if err := s.load(ctx, messagesKey(conversationID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) SaveMessages(ctx context.Context, conversationID string, messages []Message) error {
	return s.save(ctx, messagesKey(conversationID), messages)
}

func (s *RedisStore) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, messagesKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	conversations, err := s.Conversations(ctx)
	if err != nil {
		return err
	}
	kept := conversations[:0]
	for _, c := range conversations {
		if c.ID != conversationID {
			kept = append(kept, c)
		}
	}
	return s.SaveConversations(ctx, kept)
}

func (s *RedisStore) Close() error { return nil }

func (s *RedisStore) load(ctx context.Context, key string, dst any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func messagesKey(conversationID string) string {
	return fmt.Sprintf(redisMessagesKeyFmt, conversationID)
}
