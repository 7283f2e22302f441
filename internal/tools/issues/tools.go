package issues

import (
	"context"
	"encoding/json"

	"linear-mcp/internal/linear"
	"linear-mcp/internal/tools"
)

// GetIssueTool fetches one issue.
type GetIssueTool struct {
	*tools.DefaultTool
	svc Service
}

// NewGetIssueTool creates the get_issue tool.
func NewGetIssueTool(svc Service) *GetIssueTool {
	return &GetIssueTool{
		DefaultTool: tools.NewDefaultTool("get_issue",
			"Get a Linear issue by its identifier (e.g. 'SRE-152'), including title, description, status, assignee, labels, project and comments.",
			tools.ObjectSchema(map[string]any{"identifier": identifierProperty}, "identifier"),
			withTitle(readOnly, "Get issue")),
		svc: svc,
	}
}

type getIssueArgs struct {
	Identifier string `json:"identifier"`
}

// Call executes the tool.
func (t *GetIssueTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params getIssueArgs
	if err := tools.DecodeArgs(args, &params); err != nil {
		return nil, err
	}
	if err := requireIdentifier(params.Identifier); err != nil {
		return nil, err
	}
	return respond(t.svc.GetIssue(ctx, params.Identifier))
}

// SearchIssuesTool searches issues with optional filters.
type SearchIssuesTool struct {
	*tools.DefaultTool
	svc Service
}

// NewSearchIssuesTool creates the search_issues tool.
func NewSearchIssuesTool(svc Service) *SearchIssuesTool {
	return &SearchIssuesTool{
		DefaultTool: tools.NewDefaultTool("search_issues",
			"Search Linear issues. The text query matches title or description; all supplied filters must match. An unknown team key, state name or assignee email is reported as an error. Results are paginated: pass page_info.end_cursor as 'after' to fetch the next page.",
			tools.ObjectSchema(map[string]any{
				"query":          tools.StringProperty("Text to look for in the title or description"),
				"team_key":       tools.StringProperty("Only issues of this team, e.g. 'SRE'"),
				"state_name":     tools.StringProperty("Only issues in this workflow state, e.g. 'In Progress' (see list_teams)"),
				"assignee_email": tools.StringProperty("Only issues assigned to the user with this email"),
				"limit":          tools.IntegerProperty("Maximum number of results (default 20)", 1, linear.MaxSearchLimit),
				"after":          tools.StringProperty("Cursor from a previous page's page_info.end_cursor"),
			}),
			withTitle(readOnly, "Search issues")),
		svc: svc,
	}
}

type searchIssuesArgs struct {
	Query         string `json:"query"`
	TeamKey       string `json:"team_key"`
	StateName     string `json:"state_name"`
	AssigneeEmail string `json:"assignee_email"`
	Limit         linear.Optional[int] `json:"limit"`
	After         string               `json:"after"`
}

// Call executes the tool.
func (t *SearchIssuesTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params searchIssuesArgs
	if err := tools.DecodeArgs(args, &params); err != nil {
		return nil, err
	}
	search := linear.SearchParams{
		Query:         params.Query,
		TeamKey:       params.TeamKey,
		StateName:     params.StateName,
		AssigneeEmail: params.AssigneeEmail,
		Limit:         params.Limit,
		After:         params.After,
	}
	if _, err := search.PageSize(); err != nil {
		return nil, toToolError(err)
	}
	return respond(t.svc.SearchIssues(ctx, search))
}

// ListTeamsTool lists teams and their workflow states.
type ListTeamsTool struct {
	*tools.DefaultTool
	svc Service
}

// NewListTeamsTool creates the list_teams tool.
func NewListTeamsTool(svc Service) *ListTeamsTool {
	return &ListTeamsTool{
		DefaultTool: tools.NewDefaultTool("list_teams",
			"List all Linear teams with their keys and workflow states (name and category, in order). Use it to find valid state_name values.",
			nil,
			withTitle(readOnly, "List teams")),
		svc: svc,
	}
}

type teamList struct {
	Teams []linear.Team `json:"teams"`
}

// Call executes the tool.
func (t *ListTeamsTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params struct{}
	if err := tools.DecodeArgs(args, &params); err != nil {
		return nil, err
	}
	teams, err := t.svc.ListTeams(ctx)
	return respond(teamList{Teams: teams}, err)
}

// UpdateIssueStatusTool moves an issue to another workflow state.
type UpdateIssueStatusTool struct {
	*tools.DefaultTool
	svc Service
}

// NewUpdateIssueStatusTool creates the update_issue_status tool.
func NewUpdateIssueStatusTool(svc Service) *UpdateIssueStatusTool {
	return &UpdateIssueStatusTool{
		DefaultTool: tools.NewDefaultTool("update_issue_status",
			"Move an issue to another workflow state of its team. The state name must match exactly (e.g. 'In Progress', 'Done').",
			tools.ObjectSchema(map[string]any{
				"identifier": identifierProperty,
				"state_name": tools.StringProperty("The target workflow state name"),
			}, "identifier", "state_name"),
			withTitle(idempotentWrite, "Update issue status")),
		svc: svc,
	}
}

type updateIssueStatusArgs struct {
	Identifier string `json:"identifier"`
	StateName  string `json:"state_name"`
}

// Call executes the tool.
func (t *UpdateIssueStatusTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params updateIssueStatusArgs
	if err := tools.DecodeArgs(args, &params); err != nil {
		return nil, err
	}
	if err := requireIdentifier(params.Identifier); err != nil {
		return nil, err
	}
	return respond(t.svc.UpdateIssueStatus(ctx, params.Identifier, params.StateName))
}

// UpdateIssueTool applies a partial update to an issue.
type UpdateIssueTool struct {
	*tools.DefaultTool
	svc Service
}

// NewUpdateIssueTool creates the update_issue tool.
func NewUpdateIssueTool(svc Service) *UpdateIssueTool {
	return &UpdateIssueTool{
		DefaultTool: tools.NewDefaultTool("update_issue",
			"Update issue fields. Only the fields you pass are changed. Pass an empty assignee_email to unassign.",
			tools.ObjectSchema(map[string]any{
				"identifier":     identifierProperty,
				"title":          tools.StringProperty("New title"),
				"description":    tools.StringProperty("New description (markdown)"),
				"priority":       tools.IntegerProperty("New priority: 0=none, 1=urgent, 2=high, 3=normal, 4=low", linear.MinPriority, linear.MaxPriority),
				"assignee_email": tools.StringProperty("Email of the user to assign"),
			}, "identifier"),
			withTitle(idempotentWrite, "Update issue")),
		svc: svc,
	}
}

type updateIssueArgs struct {
	Identifier    string                  `json:"identifier"`
	Title         linear.Optional[string] `json:"title"`
	Description   linear.Optional[string] `json:"description"`
	Priority      linear.Optional[int]    `json:"priority"`
	AssigneeEmail linear.Optional[string] `json:"assignee_email"`
}

// Call executes the tool.
func (t *UpdateIssueTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params updateIssueArgs
	if err := tools.DecodeArgs(args, &params); err != nil {
		return nil, err
	}
	if err := requireIdentifier(params.Identifier); err != nil {
		return nil, err
	}
	return respond(t.svc.UpdateIssue(ctx, params.Identifier, linear.IssueUpdate{
		Title:         params.Title,
		Description:   params.Description,
		Priority:      params.Priority,
		AssigneeEmail: params.AssigneeEmail,
	}))
}

// AddCommentTool adds a comment to an issue.
type AddCommentTool struct {
	*tools.DefaultTool
	svc Service
}

// NewAddCommentTool creates the add_comment tool.
func NewAddCommentTool(svc Service) *AddCommentTool {
	return &AddCommentTool{
		DefaultTool: tools.NewDefaultTool("add_comment",
			"Add a comment to an issue. The body supports markdown and must not be blank.",
			tools.ObjectSchema(map[string]any{
				"identifier": identifierProperty,
				"body":       tools.StringProperty("The comment text"),
			}, "identifier", "body"),
			withTitle(appendWrite, "Add comment")),
		svc: svc,
	}
}

type addCommentArgs struct {
	Identifier string `json:"identifier"`
	Body       string `json:"body"`
}

// Call executes the tool.
func (t *AddCommentTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var params addCommentArgs
	if err := tools.DecodeArgs(args, &params); err != nil {
		return nil, err
	}
	if err := requireIdentifier(params.Identifier); err != nil {
		return nil, err
	}
	return respond(t.svc.AddComment(ctx, params.Identifier, params.Body))
}
