package linear

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "lin_api_test"

// fakeLinear is an in-memory stand-in for the Linear GraphQL API that
// understands exactly the operations this package sends.
type fakeLinear struct {
	mu       sync.Mutex
	apiKey   string
	teams    []*wireTeam
	issues   []*wireIssue
	users    []wireUser
	calls    []string
	requests []graphQLRequest
	nextID   int
}

func newFakeLinear() *fakeLinear {
	sre := &wireTeam{ID: "team-sre", Key: "SRE", Name: "Site Reliability", States: &connection[wireState]{Nodes: []wireState{
		{ID: "st-done", Name: "Done", Type: "completed", Position: 3},
		{ID: "st-backlog", Name: "Backlog", Type: "backlog", Position: 0},
		{ID: "st-progress", Name: "In Progress", Type: "started", Position: 2},
		{ID: "st-todo", Name: "Todo", Type: "unstarted", Position: 1},
		{ID: "st-canceled", Name: "Canceled", Type: "canceled", Position: 4},
	}}}
	ops := &wireTeam{ID: "team-ops", Key: "OPS", Name: "Operations", States: &connection[wireState]{Nodes: []wireState{
		{ID: "op-todo", Name: "Todo", Type: "unstarted", Position: 0},
		{ID: "op-doing", Name: "Doing", Type: "started", Position: 1},
		{ID: "op-shipped", Name: "Shipped", Type: "completed", Position: 2},
	}}}

	alice := wireUser{ID: "user-alice", Name: "Alice", Email: "alice@example.com"}
	desc := "Users are logged out after five minutes"
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	f := &fakeLinear{
		apiKey: testAPIKey,
		teams:  []*wireTeam{sre, ops},
		users: []wireUser{
			alice,
			{ID: "user-bob", Name: "Bob", Email: "bob@example.com"},
			{ID: "user-dup1", Name: "Dup One", Email: "shared@example.com"},
			{ID: "user-dup2", Name: "Dup Two", Email: "shared@example.com"},
		},
	}
	f.issues = []*wireIssue{
		{
			ID: "issue-1", Identifier: "SRE-1", Title: "Fix login timeout", Description: &desc,
			Priority: 2, PriorityLabel: "High", URL: "https://linear.app/acme/issue/SRE-1",
			CreatedAt: created, UpdatedAt: created,
			State: &sre.States.Nodes[3], Assignee: &alice, Team: sre,
			Labels:   &connection[wireLabel]{Nodes: []wireLabel{{ID: "lbl-bug", Name: "bug", Color: "#ff0000"}}},
			Project:  &wireProject{ID: "proj-auth", Name: "Auth"},
			Comments: &connection[wireComment]{},
		},
		{
			ID: "issue-2", Identifier: "SRE-2", Title: "Rotate certificates",
			Priority: 3, PriorityLabel: "Normal", CreatedAt: created, UpdatedAt: created,
			State: &sre.States.Nodes[1], Team: sre,
			Labels: &connection[wireLabel]{}, Comments: &connection[wireComment]{},
		},
		{
			ID: "issue-3", Identifier: "OPS-1", Title: "Pager rota",
			Priority: 0, PriorityLabel: "No priority", CreatedAt: created, UpdatedAt: created,
			State: &ops.States.Nodes[0], Team: ops,
			Labels: &connection[wireLabel]{}, Comments: &connection[wireComment]{},
		},
	}
	return f
}

// newTestClient starts a server backed by f and returns a client for it.
func newTestClient(t *testing.T, f *fakeLinear) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{APIURL: srv.URL, APIKey: testAPIKey, Timeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func (f *fakeLinear) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLinear) lastRequest(operation string) (graphQLRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].OperationName == operation {
			return f.requests[i], true
		}
	}
	return graphQLRequest{}, false
}

func (f *fakeLinear) issue(identifier string) *wireIssue {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, is := range f.issues {
		if is.Identifier == identifier {
			return is
		}
	}
	return nil
}

func (f *fakeLinear) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("Authorization") != f.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errors":[{"message":"Authentication required, not authenticated","extensions":{"code":"AUTHENTICATION_ERROR"}}]}`)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":[{"message":"bad request"}]}`)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.OperationName)
	f.requests = append(f.requests, req)
	data, gqlErr := f.resolve(req)
	f.mu.Unlock()

	if gqlErr != "" {
		json.NewEncoder(w).Encode(map[string]any{"errors": []map[string]any{{"message": gqlErr}}})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// resolve runs with f.mu held.
func (f *fakeLinear) resolve(req graphQLRequest) (any, string) {
	vars := req.Variables
	switch req.OperationName {
	case "Viewer":
		return map[string]any{"viewer": f.users[0]}, ""

	case "GetIssue":
		filter := asMap(vars["filter"])
		key := str(asMap(asMap(filter["team"])["key"])["eqIgnoreCase"])
		number := int(asMap(filter["number"])["eq"].(float64))
		nodes := []*wireIssue{}
		for _, is := range f.issues {
			if strings.EqualFold(is.Identifier, fmt.Sprintf("%s-%d", key, number)) {
				nodes = append(nodes, is)
			}
		}
		return map[string]any{"issues": map[string]any{"nodes": nodes}}, ""

	case "SearchIssues":
		first := int(vars["first"].(float64))
		nodes := []*wireIssue{}
		for _, is := range f.issues {
			if matchesIssueFilter(is, asMap(vars["filter"])) {
				nodes = append(nodes, is)
			}
		}
		hasNext := false
		if len(nodes) > first {
			nodes, hasNext = nodes[:first], true
		}
		var cursor any
		if len(nodes) > 0 {
			cursor = nodes[len(nodes)-1].ID
		}
		return map[string]any{"issues": map[string]any{
			"nodes":    nodes,
			"pageInfo": map[string]any{"hasNextPage": hasNext, "endCursor": cursor},
		}}, ""

	case "ListTeams":
		return map[string]any{"teams": map[string]any{"nodes": f.teams}}, ""

	case "FindTeam":
		nodes := []map[string]any{}
		for _, team := range f.teams {
			if strings.EqualFold(team.Key, str(vars["key"])) {
				nodes = append(nodes, map[string]any{"id": team.ID, "key": team.Key, "name": team.Name})
			}
		}
		return map[string]any{"teams": map[string]any{"nodes": nodes}}, ""

	case "FindWorkflowStates":
		filter := asMap(vars["filter"])
		name := str(asMap(filter["name"])["eq"])
		teamKey := str(asMap(asMap(filter["team"])["key"])["eqIgnoreCase"])
		nodes := []wireState{}
		for _, team := range f.teams {
			if teamKey != "" && !strings.EqualFold(team.Key, teamKey) {
				continue
			}
			for _, st := range team.States.Nodes {
				if st.Name == name {
					nodes = append(nodes, st)
				}
			}
		}
		return map[string]any{"workflowStates": map[string]any{"nodes": nodes}}, ""

	case "FindUsers":
		nodes := []wireUser{}
		for _, u := range f.users {
			if strings.EqualFold(u.Email, str(vars["email"])) {
				nodes = append(nodes, u)
			}
		}
		return map[string]any{"users": map[string]any{"nodes": nodes}}, ""

	case "UpdateIssue":
		var target *wireIssue
		for _, is := range f.issues {
			if is.ID == str(vars["id"]) {
				target = is
			}
		}
		if target == nil {
			return nil, "Entity not found: Issue"
		}
		input := asMap(vars["input"])
		if v, ok := input["title"]; ok {
			target.Title = str(v)
		}
		if v, ok := input["description"]; ok {
			d := str(v)
			target.Description = &d
		}
		if v, ok := input["priority"]; ok {
			target.Priority = v.(float64)
		}
		if v, ok := input["assigneeId"]; ok {
			target.Assignee = nil
			for i := range f.users {
				if f.users[i].ID == str(v) {
					u := f.users[i]
					target.Assignee = &u
				}
			}
		}
		if v, ok := input["stateId"]; ok {
			for i := range target.Team.States.Nodes {
				if target.Team.States.Nodes[i].ID == str(v) {
					target.State = &target.Team.States.Nodes[i]
				}
			}
		}
		return map[string]any{"issueUpdate": map[string]any{"success": true, "issue": target}}, ""

	case "CreateComment":
		input := asMap(vars["input"])
		for _, is := range f.issues {
			if is.ID == str(input["issueId"]) {
				f.nextID++
				comment := wireComment{
					ID:        fmt.Sprintf("comment-%d", f.nextID),
					Body:      str(input["body"]),
					CreatedAt: time.Date(2026, 2, 1, 0, 0, f.nextID, 0, time.UTC),
					User:      &f.users[0],
				}
				is.Comments.Nodes = append(is.Comments.Nodes, comment)
				return map[string]any{"commentCreate": map[string]any{"success": true, "comment": comment}}, ""
			}
		}
		return nil, "Entity not found: Issue"
	}
	return nil, "unknown operation " + req.OperationName
}

func matchesIssueFilter(is *wireIssue, filter map[string]any) bool {
	if filter == nil {
		return true
	}
	for _, raw := range filter["and"].([]any) {
		clause := asMap(raw)
		switch {
		case clause["or"] != nil:
			matched := false
			for _, alt := range clause["or"].([]any) {
				alt := asMap(alt)
				if t := asMap(alt["title"]); t != nil && containsFold(is.Title, str(t["containsIgnoreCase"])) {
					matched = true
				}
				if d := asMap(alt["description"]); d != nil && is.Description != nil && containsFold(*is.Description, str(d["containsIgnoreCase"])) {
					matched = true
				}
			}
			if !matched {
				return false
			}
		case clause["team"] != nil:
			if !strings.EqualFold(is.Team.Key, str(asMap(asMap(clause["team"])["key"])["eqIgnoreCase"])) {
				return false
			}
		case clause["state"] != nil:
			if is.State == nil || is.State.Name != str(asMap(asMap(clause["state"])["name"])["eq"]) {
				return false
			}
		case clause["assignee"] != nil:
			if is.Assignee == nil || !strings.EqualFold(is.Assignee.Email, str(asMap(asMap(clause["assignee"])["email"])["eqIgnoreCase"])) {
				return false
			}
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
