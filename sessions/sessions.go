package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tripmate/config"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	sessionTTL = 24 * time.Hour
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps the chat history of a plan.
type Store interface {
	Append(ctx context.Context, planID string, msgs ...Message) error
	History(ctx context.Context, planID string) ([]Message, error)
}

func key(planID string) string {
	return fmt.Sprintf("chat:%s", planID)
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings; callers fall back to a MemoryStore on error.
func NewRedisStore(ctx context.Context, cfg config.Redis) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: sessionTTL}, nil
}

func (s *RedisStore) Append(ctx context.Context, planID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, data)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key(planID), values...)
	pipe.Expire(ctx, key(planID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat history: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, planID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, key(planID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat history: %w", err)
	}
	history := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		history = append(history, m)
	}
	return history, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type memoryEntry struct {
	messages  []Message
	expiresAt time.Time
}

// MemoryStore is the single-process fallback when Redis is not reachable.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ttl:     sessionTTL,
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Append(_ context.Context, planID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[planID]
	if !ok || now.After(e.expiresAt) {
		e = &memoryEntry{}
		s.entries[planID] = e
	}
	e.messages = append(e.messages, msgs...)
	e.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) History(_ context.Context, planID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[planID]
	if !ok {
		return []Message{}, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, planID)
		return []Message{}, nil
	}
	return append([]Message(nil), e.messages...), nil
}
