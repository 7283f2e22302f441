package session

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"linear-mcp/internal/jsonrpc"
)

// ErrCodeSession is the JSON-RPC error code used in HTTP-level session
// failures.
const ErrCodeSession jsonrpc.ErrorCode = -32001

type contextKey struct{}

// WithSession returns a context carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached by Middleware, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// Middleware validates the Mcp-Session-Id header when it is present,
// refreshes the session and stores it in the request context. Requests
// without the header pass through; the transport decides whether the
// method needs one.
func Middleware(manager Manager, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "session_middleware").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderName)
			if id == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := manager.RefreshSession(r.Context(), id)
			if err != nil {
				logger.Debug().
					Err(err).
					Str("session_id", id).
					Str("path", r.URL.Path).
					Msg("Session rejected")
				WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// StatusFor maps a session error to an HTTP status.
func StatusFor(err error) int {
	switch CodeOf(err) {
	case CodeInvalid:
		return http.StatusBadRequest
	case CodeNotFound, CodeExpired:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON-RPC error body with a matching status.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := CodeOf(err)
	if code == "" {
		code = CodeStorage
	}
	render.Status(r, StatusFor(err))
	render.JSON(w, r, jsonrpc.NewErrorResponse(nil, jsonrpc.NewError(ErrCodeSession, err.Error(), map[string]string{"code": code})))
}
