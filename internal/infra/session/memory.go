package session

import (
	"context"
	"time"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/cache"
)

// MemoryStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are forgotten.
type MemoryStore struct {
	items *cache.InMemory[[]byte]
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: cache.New[[]byte](ttl)}
}

// Load returns a copy of the stored session, or nil when there is none.
func (s *MemoryStore) Load(_ context.Context, key string) (*chatdomain.Session, error) {
	b, ok := s.items.Get(key)
	if !ok {
		return nil, nil
	}
	return decode(key, b)
}

// Save replaces the stored session and refreshes its TTL.
func (s *MemoryStore) Save(_ context.Context, sess *chatdomain.Session) error {
	b, err := encode(sess)
	if err != nil {
		return err
	}
	s.items.Set(sess.Key, b)
	return nil
}

// Delete forgets a session.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	return s.items.Len()
}

// Close stops the expiry goroutine.
func (s *MemoryStore) Close() error {
	s.items.Close()
	return nil
}
