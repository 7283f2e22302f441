package linear

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultSearchLimit is the page size used when none is given.
	DefaultSearchLimit = 20
	// MaxSearchLimit caps the page size of a search.
	MaxSearchLimit = 50
)

// Viewer returns the user the credential belongs to. It is the cheapest way
// to check that the credential is accepted.
func (c *Client) Viewer(ctx context.Context) (*User, error) {
	var data viewerData
	if err := c.do(ctx, "Viewer", viewerQuery, nil, &data); err != nil {
		return nil, err
	}
	if data.Viewer == nil || data.Viewer.ID == "" {
		return nil, shapeError("viewer missing")
	}
	return data.Viewer.toUser(), nil
}

// GetIssue fetches one issue by identifier, e.g. "SRE-152".
func (c *Client) GetIssue(ctx context.Context, identifier string) (*Issue, error) {
	ref, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	wi, err := c.lookupIssue(ctx, ref)
	if err != nil {
		return nil, err
	}
	return wi.toIssue()
}

// lookupIssue resolves ref to the raw issue, including its team's states.
func (c *Client) lookupIssue(ctx context.Context, ref IssueRef) (*wireIssue, error) {
	variables := map[string]any{
		"filter": map[string]any{
			"team":   map[string]any{"key": map[string]any{"eqIgnoreCase": ref.TeamKey}},
			"number": map[string]any{"eq": ref.Number},
		},
	}
	var data issuesData
	if err := c.do(ctx, "GetIssue", getIssueQuery, variables, &data); err != nil {
		return nil, err
	}
	if data.Issues == nil {
		return nil, shapeError("issues connection missing")
	}
	for i := range data.Issues.Nodes {
		if strings.EqualFold(data.Issues.Nodes[i].Identifier, ref.String()) {
			return &data.Issues.Nodes[i], nil
		}
	}
	return nil, NewNotFoundError("issue %s not found", ref)
}

// SearchIssues returns one page of issues matching all supplied filters.
func (c *Client) SearchIssues(ctx context.Context, params SearchParams) (*IssuePage, error) {
	limit, err := params.PageSize()
	if err != nil {
		return nil, err
	}

	variables := map[string]any{"first": limit}
	if filter := searchFilter(params); filter != nil {
		variables["filter"] = filter
	}
	if after := strings.TrimSpace(params.After); after != "" {
		variables["after"] = after
	}

	var data issuesData
	if err := c.do(ctx, "SearchIssues", searchIssuesQuery, variables, &data); err != nil {
		return nil, err
	}
	if data.Issues == nil {
		return nil, shapeError("issues connection missing")
	}

	page := &IssuePage{Issues: make([]IssueSummary, 0, len(data.Issues.Nodes))}
	for i := range data.Issues.Nodes {
		summary, err := data.Issues.Nodes[i].toSummary()
		if err != nil {
			return nil, err
		}
		page.Issues = append(page.Issues, summary)
	}
	if pi := data.Issues.PageInfo; pi != nil {
		page.PageInfo.HasNextPage = pi.HasNextPage
		if pi.EndCursor != nil {
			page.PageInfo.EndCursor = *pi.EndCursor
		}
	}

	// An empty page is only a valid answer if every filter names something
	// that exists; otherwise the caller would mistake a typo for "no match".
	if len(page.Issues) == 0 {
		if err := c.checkSearchFilters(ctx, params); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// searchFilter builds the IssueFilter for params, or nil when nothing narrows
// the search.
func searchFilter(params SearchParams) map[string]any {
	var clauses []map[string]any
	if q := strings.TrimSpace(params.Query); q != "" {
		clauses = append(clauses, map[string]any{"or": []map[string]any{
			{"title": map[string]any{"containsIgnoreCase": q}},
			{"description": map[string]any{"containsIgnoreCase": q}},
		}})
	}
	if key := strings.TrimSpace(params.TeamKey); key != "" {
		clauses = append(clauses, map[string]any{"team": map[string]any{"key": map[string]any{"eqIgnoreCase": key}}})
	}
	if name := strings.TrimSpace(params.StateName); name != "" {
		clauses = append(clauses, map[string]any{"state": map[string]any{"name": map[string]any{"eq": name}}})
	}
	if email := strings.TrimSpace(params.AssigneeEmail); email != "" {
		clauses = append(clauses, map[string]any{"assignee": map[string]any{"email": map[string]any{"eqIgnoreCase": email}}})
	}
	if len(clauses) == 0 {
		return nil
	}
	return map[string]any{"and": clauses}
}

// checkSearchFilters verifies that each supplied lookup filter resolves.
func (c *Client) checkSearchFilters(ctx context.Context, params SearchParams) error {
	teamKey := strings.TrimSpace(params.TeamKey)
	if teamKey != "" {
		var data teamsData
		if err := c.do(ctx, "FindTeam", findTeamQuery, map[string]any{"key": teamKey}, &data); err != nil {
			return err
		}
		if data.Teams == nil {
			return shapeError("teams connection missing")
		}
		if len(data.Teams.Nodes) == 0 {
			return NewInvalidArgumentError("unknown team key %q", teamKey)
		}
	}

	if stateName := strings.TrimSpace(params.StateName); stateName != "" {
		filter := map[string]any{"name": map[string]any{"eq": stateName}}
		if teamKey != "" {
			filter["team"] = map[string]any{"key": map[string]any{"eqIgnoreCase": teamKey}}
		}
		var data workflowStatesData
		if err := c.do(ctx, "FindWorkflowStates", findWorkflowStatesQuery, map[string]any{"filter": filter}, &data); err != nil {
			return err
		}
		if data.WorkflowStates == nil {
			return shapeError("workflowStates connection missing")
		}
		if len(data.WorkflowStates.Nodes) == 0 {
			if teamKey != "" {
				return NewInvalidArgumentError("team %s has no workflow state named %q", teamKey, stateName)
			}
			return NewInvalidArgumentError("no workflow state named %q", stateName)
		}
	}

	if email := strings.TrimSpace(params.AssigneeEmail); email != "" {
		users, err := c.findUsers(ctx, email)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return NewInvalidArgumentError("no user with email %q", email)
		}
	}
	return nil
}

func (c *Client) findUsers(ctx context.Context, email string) ([]wireUser, error) {
	var data usersData
	if err := c.do(ctx, "FindUsers", findUsersQuery, map[string]any{"email": email}, &data); err != nil {
		return nil, err
	}
	if data.Users == nil {
		return nil, shapeError("users connection missing")
	}
	return data.Users.Nodes, nil
}

// ListTeams returns every team visible to the credential with its workflow
// states ordered by position.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var data teamsData
	if err := c.do(ctx, "ListTeams", listTeamsQuery, nil, &data); err != nil {
		return nil, err
	}
	if data.Teams == nil {
		return nil, shapeError("teams connection missing")
	}
	teams := make([]Team, 0, len(data.Teams.Nodes))
	for i := range data.Teams.Nodes {
		team, err := data.Teams.Nodes[i].toTeam()
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// UpdateIssueStatus moves an issue to the workflow state of its team whose
// name equals stateName exactly.
func (c *Client) UpdateIssueStatus(ctx context.Context, identifier, stateName string) (*Issue, error) {
	ref, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(stateName) == "" {
		return nil, NewInvalidArgumentError("state_name is required")
	}

	wi, err := c.lookupIssue(ctx, ref)
	if err != nil {
		return nil, err
	}
	if wi.Team == nil || wi.Team.States == nil {
		return nil, shapeError("issue %s without team states", ref)
	}

	var target *wireState
	available := make([]string, 0, len(wi.Team.States.Nodes))
	for i := range wi.Team.States.Nodes {
		state := &wi.Team.States.Nodes[i]
		available = append(available, state.Name)
		if state.Name == stateName {
			target = state
		}
	}
	if target == nil {
		return nil, NewInvalidArgumentError("team %s has no workflow state named %q; available states: %s",
			wi.Team.Key, stateName, strings.Join(available, ", "))
	}

	return c.applyUpdate(ctx, wi.ID, map[string]any{"stateId": target.ID})
}

// UpdateIssue applies a partial update. Fields not set in update are left
// untouched; an empty update returns the issue unchanged.
func (c *Client) UpdateIssue(ctx context.Context, identifier string, update IssueUpdate) (*Issue, error) {
	ref, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	input := map[string]any{}
	if title, ok := update.Title.Get(); ok {
		if strings.TrimSpace(title) == "" {
			return nil, NewInvalidArgumentError("title must not be empty")
		}
		input["title"] = title
	}
	if description, ok := update.Description.Get(); ok {
		input["description"] = description
	}
	if priority, ok := update.Priority.Get(); ok {
		if priority < MinPriority || priority > MaxPriority {
			return nil, NewInvalidArgumentError("priority must be between %d and %d, got %d", MinPriority, MaxPriority, priority)
		}
		input["priority"] = priority
	}

	wi, err := c.lookupIssue(ctx, ref)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return wi.toIssue()
	}

	if email, ok := update.AssigneeEmail.Get(); ok {
		email = strings.TrimSpace(email)
		if email == "" {
			input["assigneeId"] = nil
		} else {
			users, err := c.findUsers(ctx, email)
			if err != nil {
				return nil, err
			}
			switch len(users) {
			case 0:
				return nil, NewNotFoundError("no user with email %q", email)
			case 1:
				input["assigneeId"] = users[0].ID
			default:
				return nil, NewInvalidArgumentError("email %q matches %d users", email, len(users))
			}
		}
	}

	return c.applyUpdate(ctx, wi.ID, input)
}

func (c *Client) applyUpdate(ctx context.Context, issueID string, input map[string]any) (*Issue, error) {
	var data issueUpdateData
	if err := c.do(ctx, "UpdateIssue", updateIssueMutation, map[string]any{"id": issueID, "input": input}, &data); err != nil {
		return nil, err
	}
	if data.IssueUpdate == nil {
		return nil, shapeError("issueUpdate payload missing")
	}
	if !data.IssueUpdate.Success {
		return nil, NewRemoteError("Linear API reported the issue update as unsuccessful", nil)
	}
	if data.IssueUpdate.Issue == nil {
		return nil, shapeError("issueUpdate without issue")
	}
	return data.IssueUpdate.Issue.toIssue()
}

// AddComment appends a comment to an issue.
func (c *Client) AddComment(ctx context.Context, identifier, body string) (*Comment, error) {
	ref, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, NewInvalidArgumentError("comment body must not be empty")
	}

	wi, err := c.lookupIssue(ctx, ref)
	if err != nil {
		return nil, err
	}

	variables := map[string]any{"input": map[string]any{"issueId": wi.ID, "body": body}}
	var data commentCreateData
	if err := c.do(ctx, "CreateComment", createCommentMutation, variables, &data); err != nil {
		return nil, err
	}
	if data.CommentCreate == nil {
		return nil, shapeError("commentCreate payload missing")
	}
	if !data.CommentCreate.Success {
		return nil, NewRemoteError(fmt.Sprintf("Linear API reported the comment on %s as unsuccessful", ref), nil)
	}
	if data.CommentCreate.Comment == nil {
		return nil, shapeError("commentCreate without comment")
	}
	comment, err := data.CommentCreate.Comment.toComment()
	if err != nil {
		return nil, err
	}
	return &comment, nil
}
