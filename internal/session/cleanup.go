package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCleanupInterval is how often expired sessions are swept.
const DefaultCleanupInterval = 5 * time.Minute

// CleanupService periodically removes expired sessions.
type CleanupService struct {
	manager  Manager
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	stopped chan struct{}
}

// NewCleanupService creates a stopped cleanup service.
func NewCleanupService(manager Manager, interval time.Duration, logger zerolog.Logger) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupService{
		manager:  manager,
		interval: interval,
		logger:   logger.With().Str("component", "session_cleanup").Logger(),
	}
}

// Start launches the sweep loop. It is a no-op if already running.
func (c *CleanupService) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})

	c.logger.Info().Dur("interval", c.interval).Msg("Starting session cleanup")
	go c.run(ctx, c.stop, c.stopped)
}

// Stop ends the sweep loop and waits for it to exit.
func (c *CleanupService) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	close(c.stop)
	<-c.stopped
	c.running = false
	c.logger.Info().Msg("Session cleanup stopped")
}

// IsRunning reports whether the sweep loop is active.
func (c *CleanupService) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// RunOnce performs a single sweep.
func (c *CleanupService) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	deleted, err := c.manager.CleanupExpiredSessions(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Session cleanup failed")
		return 0, err
	}

	ev := c.logger.Debug()
	if deleted > 0 {
		ev = c.logger.Info()
	}
	ev.Int("deleted_count", deleted).
		Dur("duration", time.Since(start)).
		Msg("Session cleanup completed")
	return deleted, nil
}

func (c *CleanupService) run(ctx context.Context, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			_, _ = c.RunOnce(sweepCtx)
			cancel()
		}
	}
}
