package linear

import "time"

// Priority bounds accepted by the Linear API: 0 none, 1 urgent, 2 high,
// 3 normal, 4 low.
const (
	MinPriority = 0
	MaxPriority = 4
)

// WorkflowState is a named status scoped to a team.
type WorkflowState struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Position float64 `json:"position,omitempty"`
}

// User is a Linear workspace member.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// TeamRef identifies the team an issue belongs to.
type TeamRef struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Team is a team together with its workflow states ordered by position.
type Team struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Name   string          `json:"name"`
	States []WorkflowState `json:"states"`
}

// Label is an issue label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Project is the project an issue belongs to.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is a comment on an issue.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Author    string    `json:"author,omitempty"`
}

// Issue is the full view of an issue returned by lookups and updates.
type Issue struct {
	ID            string         `json:"id"`
	Identifier    string         `json:"identifier"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Priority      int            `json:"priority"`
	PriorityLabel string         `json:"priority_label"`
	URL           string         `json:"url"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	State         *WorkflowState `json:"state,omitempty"`
	Assignee      *User          `json:"assignee,omitempty"`
	Team          *TeamRef       `json:"team,omitempty"`
	Labels        []Label        `json:"labels"`
	Project       *Project       `json:"project,omitempty"`
	Comments      []Comment      `json:"comments"`
}

// IssueSummary is the condensed issue view returned by searches.
type IssueSummary struct {
	ID            string         `json:"id"`
	Identifier    string         `json:"identifier"`
	Title         string         `json:"title"`
	Priority      int            `json:"priority"`
	PriorityLabel string         `json:"priority_label"`
	URL           string         `json:"url"`
	State         *WorkflowState `json:"state,omitempty"`
	Assignee      *User          `json:"assignee,omitempty"`
	Team          *TeamRef       `json:"team,omitempty"`
}

// PageInfo describes where a page sits in a paginated result.
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor,omitempty"`
}

// IssuePage is one page of search results.
type IssuePage struct {
	Issues   []IssueSummary `json:"issues"`
	PageInfo PageInfo       `json:"page_info"`
}

// SearchParams narrows an issue search. Blank strings are not applied as
// filters; all supplied filters must hold.
type SearchParams struct {
	Query         string
	TeamKey       string
	StateName     string
	AssigneeEmail string
	Limit         Optional[int]
	After         string
}

// PageSize returns the number of issues to request: the default when no
// limit was supplied, capped at MaxSearchLimit. A supplied limit below 1 is
// an invalid argument.
func (p SearchParams) PageSize() (int, error) {
	limit, ok := p.Limit.Get()
	switch {
	case !ok:
		return DefaultSearchLimit, nil
	case limit < 1:
		return 0, NewInvalidArgumentError("limit must be at least 1, got %d", limit)
	case limit > MaxSearchLimit:
		return MaxSearchLimit, nil
	}
	return limit, nil
}

// IssueUpdate is a partial issue update. Only set fields are sent.
type IssueUpdate struct {
	Title         Optional[string]
	Description   Optional[string]
	Priority      Optional[int]
	AssigneeEmail Optional[string]
}

// IsEmpty reports whether no field was supplied.
func (u IssueUpdate) IsEmpty() bool {
	return !u.Title.IsSet() && !u.Description.IsSet() && !u.Priority.IsSet() && !u.AssigneeEmail.IsSet()
}
