package session

import (
	"context"
	"time"
)

// HeaderName carries the session ID on streamable HTTP requests.
const HeaderName = "Mcp-Session-Id"

// Session is one initialized MCP client on the HTTP transport. It never
// holds issue tracker data.
type Session struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastAccess time.Time  `json:"last_access"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Client     ClientInfo `json:"client"`
}

// ClientInfo describes the client that opened the session.
type ClientInfo struct {
	RemoteAddr      string `json:"remote_addr"`
	UserAgent       string `json:"user_agent"`
	Name            string `json:"name,omitempty"`
	Version         string `json:"version,omitempty"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Age is the time since the session was created.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

func (s *Session) touch(now time.Time, timeout time.Duration) {
	s.LastAccess = now
	s.ExpiresAt = now.Add(timeout)
}

// Store persists sessions. Implementations must return a *Error with
// CodeNotFound from Get and Delete when the ID is unknown.
type Store interface {
	// Set stores the session until its ExpiresAt.
	Set(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// List returns copies of every stored session.
	List(ctx context.Context) ([]*Session, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
