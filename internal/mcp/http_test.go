package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linear-mcp/internal/session"
)

func newHTTPTestServer(t *testing.T, withSessions bool) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()

	opts := HTTPOptions{}
	var handler http.Handler
	if withSessions {
		store := session.NewMemoryStore(logger)
		t.Cleanup(func() { store.Close() })
		manager := session.NewManager(store, session.ManagerConfig{Timeout: time.Hour}, logger)
		opts = HTTPOptions{Sessions: manager, RequireSession: true}
		handler = session.Middleware(manager, logger)(NewHTTPTransport(newTestHandler(), opts, logger))
	} else {
		handler = NewHTTPTransport(newTestHandler(), opts, logger)
	}

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, sessionID, accept, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if sessionID != "" {
		req.Header.Set(session.HeaderName, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"c","version":"1"}}}`

func initSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := post(t, srv, "", "application/json, text/event-stream", initializeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(session.HeaderName)
	require.NotEmpty(t, id)
	return id
}

func TestHTTPTransport_InitializeAndCall(t *testing.T) {
	srv := newHTTPTestServer(t, true)
	id := initSession(t, srv)
	assert.NoError(t, session.ValidateID(id))

	resp := post(t, srv, id, "application/json, text/event-stream", `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body struct {
		ID     float64        `json:"id"`
		Result CallToolResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(2), body.ID)
	assert.False(t, body.Result.IsError)
}

func TestHTTPTransport_SessionRequired(t *testing.T) {
	srv := newHTTPTestServer(t, true)

	resp := post(t, srv, "", "application/json", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	unknown, err := session.NewID()
	require.NoError(t, err)
	resp = post(t, srv, unknown, "application/json", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPTransport_NotificationAccepted(t *testing.T) {
	srv := newHTTPTestServer(t, true)
	id := initSession(t, srv)

	resp := post(t, srv, id, "application/json", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Empty(t, body)
}

func TestHTTPTransport_EventStream(t *testing.T) {
	srv := newHTTPTestServer(t, true)
	id := initSession(t, srv)

	resp := post(t, srv, id, "text/event-stream", `{"jsonrpc":"2.0","id":"p","method":"ping"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":\"p\",\"result\":{}}\n\n", string(body))
}

func TestHTTPTransport_DeleteSession(t *testing.T) {
	srv := newHTTPTestServer(t, true)
	id := initSession(t, srv)

	del := func() int {
		req, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set(session.HeaderName, id)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, del())
	assert.Equal(t, http.StatusNotFound, del())

	resp := post(t, srv, id, "application/json", `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPTransport_GetNotAllowed(t *testing.T) {
	srv := newHTTPTestServer(t, true)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "POST, DELETE", resp.Header.Get("Allow"))
}

func TestHTTPTransport_ParseError(t *testing.T) {
	srv := newHTTPTestServer(t, true)

	resp := post(t, srv, "", "application/json", `{"jsonrpc":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		ID    any `json:"id"`
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Nil(t, body.ID)
	assert.Equal(t, -32700, body.Error.Code)
}

func TestHTTPTransport_FailedInitializeCreatesNoSession(t *testing.T) {
	srv := newHTTPTestServer(t, true)

	resp := post(t, srv, "", "application/json", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":"bad"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(session.HeaderName))
}

func TestHTTPTransport_WithoutSessions(t *testing.T) {
	srv := newHTTPTestServer(t, false)

	resp := post(t, srv, "", "application/json", initializeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(session.HeaderName))

	resp = post(t, srv, "", "application/json", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, del.StatusCode)
}
