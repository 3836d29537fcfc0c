package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hansik-ai/hansik/internal/model"
)

const redisKeyPrefix = "hansik:session:"

// RedisStore keeps each session as one JSON value with the idle TTL applied
// as the key's expiry; every read re-arms it.
type RedisStore struct {
	client   *redis.Client
	maxTurns int
	ttl      time.Duration
}

type redisSession struct {
	History   []Message        `json:"history"`
	CreatedAt time.Time        `json:"created_at"`
	Pending   *PendingDecision `json:"pending,omitempty"`
}

func NewRedisStore(client *redis.Client, maxTurns int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, maxTurns: maxTurns, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.save(ctx, id, &redisSession{CreatedAt: time.Now()}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*redisSession, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session read: %w", err)
	}
	var sess redisSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	// Reading refreshes the idle timer.
	s.client.Expire(ctx, s.key(id), s.ttl)
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, id string, sess *redisSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	return nil
}

func (s *RedisStore) AddMessage(ctx context.Context, id, role, content string) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	sess.History = append(sess.History, Message{Role: role, Content: content, Timestamp: time.Now()})
	if limit := historyCap(s.maxTurns); len(sess.History) > limit {
		sess.History = sess.History[len(sess.History)-limit:]
	}
	return s.save(ctx, id, sess)
}

func (s *RedisStore) History(ctx context.Context, id string) ([]Message, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

func (s *RedisStore) ContextSummary(ctx context.Context, id string, maxTurns int) (string, error) {
	sess, err := s.load(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return summarize(sess.History, maxTurns), nil
}

func (s *RedisStore) PendingDecision(ctx context.Context, id string) (*PendingDecision, error) {
	sess, err := s.load(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess.Pending, nil
}

func (s *RedisStore) SetPendingDecision(ctx context.Context, id string, d *PendingDecision) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	sess.Pending = d
	return s.save(ctx, id, sess)
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var count int
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("session scan: %w", err)
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}
