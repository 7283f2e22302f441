package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (o *recordingObserver) ObserveLinearRequest(operation, outcome string, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string][]string)
	}
	o.outcomes[operation] = append(o.outcomes[operation], outcome)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{APIKey: "  "}, zerolog.Nop())
	assert.Error(t, err)
}

func TestClient_SendsHeaders(t *testing.T) {
	var got http.Header
	var body graphQLRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"data":{"viewer":{"id":"u1","name":"Alice","email":"alice@example.com"}}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIURL: srv.URL, APIKey: testAPIKey, UserAgent: "linear-mcp/test"}, zerolog.Nop())
	require.NoError(t, err)

	user, err := client.Viewer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	assert.Equal(t, testAPIKey, got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "linear-mcp/test", got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get("X-Request-Id"))
	assert.Equal(t, "Viewer", body.OperationName)
}

// TestClient_RejectedCredential checks that every operation reports a
// rejected credential as a remote error.
func TestClient_RejectedCredential(t *testing.T) {
	f := newFakeLinear()
	f.apiKey = "lin_api_other"
	client := newTestClient(t, f)
	ctx := context.Background()

	calls := map[string]func() error{
		"get_issue": func() error { _, err := client.GetIssue(ctx, "SRE-1"); return err },
		"search_issues": func() error {
			_, err := client.SearchIssues(ctx, SearchParams{Query: "x"})
			return err
		},
		"list_teams": func() error { _, err := client.ListTeams(ctx); return err },
		"update_issue_status": func() error {
			_, err := client.UpdateIssueStatus(ctx, "SRE-1", "Done")
			return err
		},
		"update_issue": func() error {
			_, err := client.UpdateIssue(ctx, "SRE-1", IssueUpdate{Title: Some("x")})
			return err
		},
		"add_comment": func() error { _, err := client.AddComment(ctx, "SRE-1", "ok"); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Equal(t, KindRemote, KindOf(err))
			assert.Contains(t, err.Error(), "credential rejected")
		})
	}
}

func TestClient_RemoteFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		contains string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"errors":[{"message":"Rate limit exceeded","extensions":{"code":"RATELIMITED"}}]}`, contains: "RATELIMITED"},
		{name: "server error", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, contains: "502"},
		{name: "graphql errors", status: http.StatusOK, body: `{"errors":[{"message":"Field 'foo' doesn't exist"}]}`, contains: "Field 'foo'"},
		{name: "malformed body", status: http.StatusOK, body: `{"data":`, contains: "decode"},
		{name: "null data", status: http.StatusOK, body: `{"data":null}`, contains: "no data"},
		{name: "wrong shape", status: http.StatusOK, body: `{"data":{"teams":{"nodes":"nope"}}}`, contains: "shape"},
		{name: "missing connection", status: http.StatusOK, body: `{"data":{}}`, contains: "teams connection missing"},
		{name: "team without states", status: http.StatusOK, body: `{"data":{"teams":{"nodes":[{"id":"t","key":"K","name":"N"}]}}}`, contains: "without states"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			obs := &recordingObserver{}
			client, err := NewClient(Config{APIURL: srv.URL, APIKey: testAPIKey, Observer: obs}, zerolog.Nop())
			require.NoError(t, err)

			_, err = client.ListTeams(context.Background())
			require.Error(t, err)
			assert.Equal(t, KindRemote, KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, []string{string(KindRemote)}, obs.outcomes["ListTeams"])
		})
	}
}

func TestClient_UnsuccessfulMutation(t *testing.T) {
	f := newFakeLinear()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.OperationName == "CreateComment" {
			fmt.Fprint(w, `{"data":{"commentCreate":{"success":false,"comment":null}}}`)
			return
		}
		f.mu.Lock()
		data, _ := f.resolve(req)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIURL: srv.URL, APIKey: testAPIKey}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.AddComment(context.Background(), "SRE-1", "hello")
	require.Error(t, err)
	assert.Equal(t, KindRemote, KindOf(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	obs := &recordingObserver{}
	client, err := NewClient(Config{APIURL: srv.URL, APIKey: testAPIKey, Timeout: 50 * time.Millisecond, Observer: obs}, zerolog.Nop())
	require.NoError(t, err)

	start := time.Now()
	_, err = client.ListTeams(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{string(KindTimeout)}, obs.outcomes["ListTeams"])
}

func TestClient_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(Config{APIURL: srv.URL, APIKey: testAPIKey, Timeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = client.ListTeams(ctx)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(Config{APIURL: url, APIKey: testAPIKey}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.GetIssue(context.Background(), "SRE-1")
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestClient_NoRetries(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIURL: srv.URL, APIKey: testAPIKey}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.ListTeams(context.Background())
	require.Error(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", NewNotFoundError("x"))))
	assert.Equal(t, KindRemote, KindOf(fmt.Errorf("plain")))
	assert.True(t, IsKind(NewInvalidArgumentError("bad"), KindInvalidArgument))
	assert.False(t, IsKind(nil, KindInvalidArgument))
}
