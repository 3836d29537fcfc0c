package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hansik-ai/hansik/internal/model"
)

// MemoryStore is the default in-process backend.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

type memorySession struct {
	history      []Message
	createdAt    time.Time
	lastAccessed time.Time
	pending      *PendingDecision
}

func NewMemoryStore(maxTurns int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := s.now()
	s.mu.Lock()
	s.sessions[id] = &memorySession{createdAt: now, lastAccessed: now}
	s.mu.Unlock()
	return id, nil
}

// get returns the live session, expiring it inline when the idle TTL has
// passed. Callers hold s.mu.
func (s *MemoryStore) get(id string) *memorySession {
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	now := s.now()
	if now.Sub(sess.lastAccessed) > s.ttl {
		delete(s.sessions, id)
		return nil
	}
	sess.lastAccessed = now
	return sess
}

func (s *MemoryStore) AddMessage(ctx context.Context, id, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(id)
	if sess == nil {
		return model.ErrSessionNotFound
	}
	sess.history = append(sess.history, Message{Role: role, Content: content, Timestamp: s.now()})
	if limit := historyCap(s.maxTurns); len(sess.history) > limit {
		sess.history = sess.history[len(sess.history)-limit:]
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(id)
	if sess == nil {
		return nil, model.ErrSessionNotFound
	}
	out := make([]Message, len(sess.history))
	copy(out, sess.history)
	return out, nil
}

func (s *MemoryStore) ContextSummary(ctx context.Context, id string, maxTurns int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(id)
	if sess == nil {
		return "", nil
	}
	return summarize(sess.history, maxTurns), nil
}

func (s *MemoryStore) PendingDecision(ctx context.Context, id string) (*PendingDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(id)
	if sess == nil {
		return nil, nil
	}
	return sess.pending, nil
}

func (s *MemoryStore) SetPendingDecision(ctx context.Context, id string, d *PendingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(id)
	if sess == nil {
		return model.ErrSessionNotFound
	}
	sess.pending = d
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Opportunistic sweep so the count reflects live sessions only.
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastAccessed) > s.ttl {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions), nil
}
