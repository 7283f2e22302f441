package telemetry

import (
	"time"

	"linear-mcp/internal/linear"
	"linear-mcp/internal/session"
)

var (
	_ session.Observer = (*Metrics)(nil)
	_ linear.Observer  = (*Metrics)(nil)
)

// SessionCreated records a new session.
func (m *Metrics) SessionCreated() {
	m.MCPSessionsActive.Inc()
	m.MCPSessionsTotal.WithLabelValues("created").Inc()
}

// SessionEnded records a deleted or expired session.
func (m *Metrics) SessionEnded(reason string, age time.Duration) {
	m.MCPSessionsActive.Dec()
	m.MCPSessionsTotal.WithLabelValues(reason).Inc()
	m.MCPSessionDuration.WithLabelValues(reason).Observe(age.Seconds())
}
