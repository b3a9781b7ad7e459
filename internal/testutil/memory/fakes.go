package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/infrastructure/collaborator"
)

// RateLimiter is a cache.RateLimiter that counts per-key hits in
// memory. Set Deny to force the next Allow to refuse; set Err to
// simulate an index outage.
type RateLimiter struct {
	mu    sync.Mutex
	hits  map[string]int
	Deny  bool
	Err   error
	Calls int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{hits: make(map[string]int)}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Err != nil {
		return false, r.Err
	}
	if r.Deny {
		return false, nil
	}
	r.hits[key]++
	return r.hits[key] <= limit, nil
}

func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hits, key)
	return nil
}

// SessionIndex is a cache.SessionIndex over an in-memory map. Set Err
// to simulate an outage; Forget drops a key to exercise the store
// fallback path.
type SessionIndex struct {
	mu    sync.Mutex
	state map[uuid.UUID]string
	Err   error
}

func NewSessionIndex() *SessionIndex {
	return &SessionIndex{state: make(map[uuid.UUID]string)}
}

func (s *SessionIndex) MarkLive(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.state[sessionID] = "live"
	return nil
}

func (s *SessionIndex) MarkRevoked(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.state[sessionID] = "revoked"
	return nil
}

func (s *SessionIndex) Check(ctx context.Context, sessionID uuid.UUID) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, false, s.Err
	}
	val, ok := s.state[sessionID]
	if !ok {
		return false, false, nil
	}
	return val == "live", true, nil
}

func (s *SessionIndex) Forget(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, sessionID)
}

// Notifier captures every message handed to it.
type Notifier struct {
	mu       sync.Mutex
	Err      error
	messages []SentMessage
}

type SentMessage struct {
	Recipient collaborator.Contact
	Message   string
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Send(ctx context.Context, recipient collaborator.Contact, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, SentMessage{Recipient: recipient, Message: message})
	return nil
}

func (n *Notifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.messages...)
}

// ContentStore records published payloads and returns deterministic
// references.
type ContentStore struct {
	mu        sync.Mutex
	Err       error
	published int
}

func NewContentStore() *ContentStore {
	return &ContentStore{}
}

func (c *ContentStore) Publish(ctx context.Context, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	c.published++
	return "mem://object", nil
}

func (c *ContentStore) Published() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}
