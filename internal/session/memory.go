package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryStore keeps sessions in process memory. Expired entries stay until
// the cleanup loop or a lookup removes them.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	logger   zerolog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		logger:   logger.With().Str("component", "memory_store").Logger(),
	}
}

func (s *MemoryStore) Set(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = *sess
	s.logger.Debug().
		Str("session_id", sess.ID).
		Time("expires_at", sess.ExpiresAt).
		Msg("Stored session")
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return &sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return errNotFound(id)
	}
	delete(s.sessions, id)
	s.logger.Debug().Str("session_id", id).Msg("Deleted session")
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess := sess
		out = append(out, &sess)
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Close drops every session.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sessions)
	s.sessions = make(map[string]Session)
	s.logger.Info().Int("cleared_sessions", n).Msg("Memory store closed")
	return nil
}
