package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is the sliding expiry applied when none is configured.
const DefaultTimeout = time.Hour

// Manager creates, validates and ends sessions.
type Manager interface {
	// CreateSession stores a new session for an initialize request.
	CreateSession(ctx context.Context, client ClientInfo) (*Session, error)
	// ValidateSession checks format, existence and expiry.
	ValidateSession(ctx context.Context, id string) (*Session, error)
	// RefreshSession pushes the expiry of a valid session forward.
	RefreshSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	CleanupExpiredSessions(ctx context.Context) (int, error)
	ActiveSessionCount(ctx context.Context) (int, error)
}

// Observer is told about session lifecycle events.
type Observer interface {
	SessionCreated()
	// SessionEnded is called with reason "deleted" or "expired".
	SessionEnded(reason string, age time.Duration)
}

// ManagerConfig configures a DefaultManager.
type ManagerConfig struct {
	Timeout  time.Duration
	Observer Observer
}

// DefaultManager implements Manager on top of a Store.
type DefaultManager struct {
	store    Store
	timeout  time.Duration
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewManager creates a manager backed by store.
func NewManager(store Store, cfg ManagerConfig, logger zerolog.Logger) *DefaultManager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &DefaultManager{
		store:    store,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		now:      time.Now,
	}
}

func (m *DefaultManager) CreateSession(ctx context.Context, client ClientInfo) (*Session, error) {
	id, err := NewID()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to generate session ID")
		return nil, err
	}

	now := m.now()
	sess := &Session{
		ID:         id,
		CreatedAt:  now,
		LastAccess: now,
		ExpiresAt:  now.Add(m.timeout),
		Client:     client,
	}
	if err := m.store.Set(ctx, sess); err != nil {
		m.logger.Error().
			Err(err).
			Str("session_id", id).
			Msg("Failed to store session")
		return nil, errStorage("create", err)
	}

	if m.observer != nil {
		m.observer.SessionCreated()
	}
	m.logger.Info().
		Str("session_id", id).
		Str("client_name", client.Name).
		Str("remote_addr", client.RemoteAddr).
		Time("expires_at", sess.ExpiresAt).
		Msg("Session created")
	return sess, nil
}

func (m *DefaultManager) ValidateSession(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if CodeOf(err) == CodeNotFound {
			return nil, err
		}
		return nil, errStorage("get", err)
	}

	now := m.now()
	if sess.IsExpired(now) {
		m.logger.Debug().
			Str("session_id", id).
			Time("expires_at", sess.ExpiresAt).
			Msg("Session expired")
		m.expire(ctx, sess, now)
		return nil, errExpired(id)
	}
	return sess, nil
}

func (m *DefaultManager) RefreshSession(ctx context.Context, id string) (*Session, error) {
	sess, err := m.ValidateSession(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.touch(m.now(), m.timeout)
	if err := m.store.Set(ctx, sess); err != nil {
		m.logger.Warn().
			Err(err).
			Str("session_id", id).
			Msg("Failed to refresh session")
		return nil, errStorage("refresh", err)
	}
	return sess, nil
}

func (m *DefaultManager) DeleteSession(ctx context.Context, id string) error {
	sess, err := m.ValidateSession(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		if CodeOf(err) == CodeNotFound {
			return err
		}
		return errStorage("delete", err)
	}

	if m.observer != nil {
		m.observer.SessionEnded("deleted", sess.Age(m.now()))
	}
	m.logger.Info().Str("session_id", id).Msg("Session deleted")
	return nil
}

func (m *DefaultManager) CleanupExpiredSessions(ctx context.Context) (int, error) {
	sessions, err := m.store.List(ctx)
	if err != nil {
		return 0, errStorage("list", err)
	}

	now := m.now()
	deleted := 0
	for _, sess := range sessions {
		if sess.IsExpired(now) && m.expire(ctx, sess, now) {
			deleted++
		}
	}
	return deleted, nil
}

func (m *DefaultManager) ActiveSessionCount(ctx context.Context) (int, error) {
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, errStorage("count", err)
	}
	return n, nil
}

// expire removes an expired session and reports whether it was removed.
func (m *DefaultManager) expire(ctx context.Context, sess *Session, now time.Time) bool {
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		if CodeOf(err) != CodeNotFound {
			m.logger.Warn().
				Err(err).
				Str("session_id", sess.ID).
				Msg("Failed to delete expired session")
		}
		return false
	}
	if m.observer != nil {
		m.observer.SessionEnded("expired", sess.Age(now))
	}
	return true
}
