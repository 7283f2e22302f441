package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"linear-mcp/internal/jsonrpc"
	"linear-mcp/internal/session"
)

// HTTPTransport serves the streamable HTTP transport on a single endpoint.
// It expects session.Middleware in front of it when sessions are enabled.
type HTTPTransport struct {
	handler        *Handler
	sessions       session.Manager
	requireSession bool
	logger         zerolog.Logger
}

// HTTPOptions configures an HTTPTransport.
type HTTPOptions struct {
	// Sessions issues Mcp-Session-Id on initialize. Nil disables sessions.
	Sessions session.Manager
	// RequireSession rejects non-initialize requests without a session.
	RequireSession bool
}

// NewHTTPTransport creates the HTTP transport for handler.
func NewHTTPTransport(handler *Handler, opts HTTPOptions, logger zerolog.Logger) *HTTPTransport {
	return &HTTPTransport{
		handler:        handler,
		sessions:       opts.Sessions,
		requireSession: opts.RequireSession && opts.Sessions != nil,
		logger:         logger.With().Str("component", "http_transport").Logger(),
	}
}

func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodDelete:
		t.handleDelete(w, r)
	default:
		// no server-initiated stream
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (t *HTTPTransport) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxMessageSize))
	if err != nil {
		t.writeJSON(w, r, http.StatusRequestEntityTooLarge, jsonrpc.NewErrorResponse(nil, jsonrpc.NewError(jsonrpc.InvalidRequest, "Request body too large", nil)))
		return
	}

	msg, err := jsonrpc.ParseMessage(body)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = jsonrpc.NewError(jsonrpc.ParseError, "Parse error", nil)
		}
		t.writeJSON(w, r, http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, rpcErr))
		return
	}

	ctx := r.Context()
	sess, hasSession := session.FromContext(ctx)
	req, isRequest := msg.(*jsonrpc.Request)

	initialize := isRequest && req.Method == MethodInitialize
	if !initialize && t.requireSession && !hasSession {
		t.writeJSON(w, r, http.StatusBadRequest, jsonrpc.NewErrorResponse(idOf(req), jsonrpc.NewError(jsonrpc.InvalidRequest, fmt.Sprintf("Missing %s header", session.HeaderName), nil)))
		return
	}

	if hasSession {
		ctx = WithScope(ctx, sess.ID)
	}

	resp := t.handler.Handle(ctx, msg)

	if initialize && t.sessions != nil && resp != nil && resp.Error == nil {
		created, err := t.sessions.CreateSession(ctx, clientInfo(r, req))
		if err != nil {
			t.logger.Error().Err(err).Msg("Failed to create session")
			session.WriteError(w, r, err)
			return
		}
		w.Header().Set(session.HeaderName, created.ID)
	}

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if wantsEventStream(r) {
		t.writeEvent(w, resp)
		return
	}
	t.writeJSON(w, r, http.StatusOK, resp)
}

func (t *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	if t.sessions == nil {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Sessions are disabled", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, fmt.Sprintf("Missing %s header", session.HeaderName), http.StatusBadRequest)
		return
	}
	if err := t.sessions.DeleteSession(r.Context(), sess.ID); err != nil {
		session.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (t *HTTPTransport) writeJSON(w http.ResponseWriter, r *http.Request, status int, resp *jsonrpc.Response) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func (t *HTTPTransport) writeEvent(w http.ResponseWriter, resp *jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// wantsEventStream reports whether the client accepts SSE but not JSON.
func wantsEventStream(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/event-stream") &&
		!strings.Contains(accept, "application/json") &&
		!strings.Contains(accept, "*/*")
}

func clientInfo(r *http.Request, req *jsonrpc.Request) session.ClientInfo {
	info := session.ClientInfo{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	var params InitializeParams
	if err := json.Unmarshal(req.Params, &params); err == nil {
		info.Name = params.ClientInfo.Name
		info.Version = params.ClientInfo.Version
		info.ProtocolVersion = NegotiateVersion(params.ProtocolVersion)
	}
	return info
}

func idOf(req *jsonrpc.Request) any {
	if req == nil {
		return nil
	}
	return req.ID
}
