package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/types"
)

const (
	redisConvPrefix = "webbridge:conv:" // hash: chat_url, model
	redisURLPrefix  = "webbridge:url:"  // chat URL -> fingerprint
	redisMsgsPrefix = "webbridge:msgs:" // list of JSON messages
)

// RedisStore is a Store backed by Redis. Staleness is handled by key TTLs
// instead of a sweep: every write refreshes the conversation's TTL to the
// configured max age, so Evict has nothing to do and always reports zero.
type RedisStore struct {
	client *redis.Client
	maxAge time.Duration
	logger *zap.Logger
}

// NewRedisStore verifies connectivity and returns the store.
func NewRedisStore(ctx context.Context, client *redis.Client, maxAge time.Duration, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{
		client: client,
		maxAge: maxAge,
		logger: logger.With(zap.String("component", "conversation_cache_redis")),
	}, nil
}

// FindMatching looks up the chat URL stored for the history's prefix.
func (s *RedisStore) FindMatching(ctx context.Context, messages types.History, model string) (string, bool, error) {
	fingerprint, ok := PrefixFingerprint(messages, model)
	if !ok {
		return "", false, nil
	}

	url, err := s.client.HGet(ctx, redisConvPrefix+fingerprint, "chat_url").Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("conversation lookup failed: %w", err)
	}
	return url, true, nil
}

// StoreConversation records the conversation, its URL index, and its
// messages in one pipeline.
func (s *RedisStore) StoreConversation(ctx context.Context, messages types.History, model, chatURL string) error {
	fingerprint := Fingerprint(messages, model)

	encoded := make([]any, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		encoded = append(encoded, data)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, redisConvPrefix+fingerprint, "chat_url", chatURL, "model", model)
	pipe.Set(ctx, redisURLPrefix+chatURL, fingerprint, s.maxAge)
	msgsKey := redisMsgsPrefix + fingerprint
	pipe.Del(ctx, msgsKey)
	if len(encoded) > 0 {
		pipe.RPush(ctx, msgsKey, encoded...)
	}
	pipe.Expire(ctx, redisConvPrefix+fingerprint, s.maxAge)
	pipe.Expire(ctx, msgsKey, s.maxAge)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}

	s.logger.Debug("stored conversation",
		zap.String("fingerprint", fingerprint),
		zap.String("chat_url", chatURL),
		zap.Int("messages", len(messages)))
	return nil
}

// UpdateConversation appends the exchanged turn and refreshes TTLs. Unknown
// URLs are a silent no-op.
func (s *RedisStore) UpdateConversation(ctx context.Context, chatURL string, userMessage types.Message, response string) error {
	fingerprint, err := s.client.Get(ctx, redisURLPrefix+chatURL).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve conversation: %w", err)
	}

	userData, err := json.Marshal(userMessage)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	assistantData, err := json.Marshal(types.NewAssistantMessage(response))
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, redisMsgsPrefix+fingerprint, userData, assistantData)
	pipe.Expire(ctx, redisConvPrefix+fingerprint, s.maxAge)
	pipe.Expire(ctx, redisURLPrefix+chatURL, s.maxAge)
	pipe.Expire(ctx, redisMsgsPrefix+fingerprint, s.maxAge)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// Evict is a no-op: key TTLs already bound conversation lifetime.
func (s *RedisStore) Evict(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// Messages returns the stored messages of a conversation in insertion order.
func (s *RedisStore) Messages(ctx context.Context, fingerprint string) (types.History, error) {
	raw, err := s.client.LRange(ctx, redisMsgsPrefix+fingerprint, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	history := make(types.History, 0, len(raw))
	for _, item := range raw {
		var msg types.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode stored message: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
