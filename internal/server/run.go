package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"linear-mcp/internal/session"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// OpenSessionStore returns the Redis store when cfg.RedisURL is set and the
// memory store otherwise.
func OpenSessionStore(cfg Config, logger zerolog.Logger) (session.Store, error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(logger), nil
	}
	return session.NewRedisStore(session.RedisOptions{URL: cfg.RedisURL}, logger)
}

// ListenAndServe serves handler on cfg.Addr until ctx is done, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, cfg Config, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
