package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// SessionCounter reports how many sessions the store holds.
type SessionCounter interface {
	ActiveSessionCount(ctx context.Context) (int, error)
}

// SystemMetricsCollector samples runtime gauges periodically.
type SystemMetricsCollector struct {
	metrics  *Metrics
	sessions SessionCounter
	logger   zerolog.Logger
	interval time.Duration
}

// NewSystemMetricsCollector creates a collector sampling every interval.
func NewSystemMetricsCollector(metrics *Metrics, logger zerolog.Logger, interval time.Duration) *SystemMetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemMetricsCollector{
		metrics:  metrics,
		logger:   logger.With().Str("component", "system_metrics").Logger(),
		interval: interval,
	}
}

// WithSessions makes every sample reset mcp_sessions_active from counter.
// Stores that expire sessions on their own (Redis TTL) never report those
// expiries to the observer, so the gauge would otherwise only grow.
func (c *SystemMetricsCollector) WithSessions(counter SessionCounter) *SystemMetricsCollector {
	c.sessions = counter
	return c
}

// Run samples immediately and then on every tick until ctx is done.
func (c *SystemMetricsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Debug().Dur("interval", c.interval).Msg("Starting system metrics collection")
	c.Collect(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect takes one sample.
func (c *SystemMetricsCollector) Collect(ctx context.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.metrics.UpdateSystemMetrics(runtime.NumGoroutine(), m.Alloc)

	if c.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := c.sessions.ActiveSessionCount(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to count sessions")
		return
	}
	c.metrics.MCPSessionsActive.Set(float64(n))
}
