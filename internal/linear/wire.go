package linear

import (
	"fmt"
	"sort"
	"time"
)

// Shapes of the Linear GraphQL responses. These are decoded strictly and
// converted to the exported types; a missing required object is reported as
// a remote error instead of surfacing zero values.

type connection[T any] struct {
	Nodes    []T       `json:"nodes"`
	PageInfo *pageInfo `json:"pageInfo"`
}

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type wireState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Position float64 `json:"position"`
}

type wireUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type wireTeam struct {
	ID     string                 `json:"id"`
	Key    string                 `json:"key"`
	Name   string                 `json:"name"`
	States *connection[wireState] `json:"states"`
}

type wireLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type wireProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireComment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	User      *wireUser `json:"user"`
}

type wireIssue struct {
	ID            string                   `json:"id"`
	Identifier    string                   `json:"identifier"`
	Title         string                   `json:"title"`
	Description   *string                  `json:"description"`
	Priority      float64                  `json:"priority"`
	PriorityLabel string                   `json:"priorityLabel"`
	URL           string                   `json:"url"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
	State         *wireState               `json:"state"`
	Assignee      *wireUser                `json:"assignee"`
	Team          *wireTeam                `json:"team"`
	Labels        *connection[wireLabel]   `json:"labels"`
	Project       *wireProject             `json:"project"`
	Comments      *connection[wireComment] `json:"comments"`
}

type issuesData struct {
	Issues *connection[wireIssue] `json:"issues"`
}

type teamsData struct {
	Teams *connection[wireTeam] `json:"teams"`
}

type workflowStatesData struct {
	WorkflowStates *connection[wireState] `json:"workflowStates"`
}

type usersData struct {
	Users *connection[wireUser] `json:"users"`
}

type viewerData struct {
	Viewer *wireUser `json:"viewer"`
}

type issueUpdateData struct {
	IssueUpdate *struct {
		Success bool       `json:"success"`
		Issue   *wireIssue `json:"issue"`
	} `json:"issueUpdate"`
}

type commentCreateData struct {
	CommentCreate *struct {
		Success bool         `json:"success"`
		Comment *wireComment `json:"comment"`
	} `json:"commentCreate"`
}

func shapeError(format string, args ...any) *Error {
	return NewRemoteError(fmt.Sprintf("unexpected response shape: "+format, args...), nil)
}

func (s *wireState) toState() *WorkflowState {
	if s == nil {
		return nil
	}
	return &WorkflowState{ID: s.ID, Name: s.Name, Type: s.Type, Position: s.Position}
}

func (u *wireUser) toUser() *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (t *wireTeam) toRef() *TeamRef {
	if t == nil {
		return nil
	}
	return &TeamRef{ID: t.ID, Key: t.Key, Name: t.Name}
}

func (t *wireTeam) toTeam() (Team, error) {
	if t.ID == "" || t.Key == "" {
		return Team{}, shapeError("team without id or key")
	}
	if t.States == nil {
		return Team{}, shapeError("team %s without states", t.Key)
	}
	return Team{ID: t.ID, Key: t.Key, Name: t.Name, States: orderedStates(t.States.Nodes)}, nil
}

// orderedStates converts states and sorts them by their position within the team.
func orderedStates(nodes []wireState) []WorkflowState {
	states := make([]WorkflowState, 0, len(nodes))
	for i := range nodes {
		states = append(states, *nodes[i].toState())
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Position < states[j].Position
	})
	return states
}

func (c *wireComment) toComment() (Comment, error) {
	if c.ID == "" {
		return Comment{}, shapeError("comment without id")
	}
	comment := Comment{ID: c.ID, Body: c.Body, CreatedAt: c.CreatedAt}
	if c.User != nil {
		comment.Author = c.User.Name
	}
	return comment, nil
}

func (i *wireIssue) toIssue() (*Issue, error) {
	if i.ID == "" || i.Identifier == "" {
		return nil, shapeError("issue without id or identifier")
	}
	issue := &Issue{
		ID:            i.ID,
		Identifier:    i.Identifier,
		Title:         i.Title,
		Priority:      int(i.Priority),
		PriorityLabel: i.PriorityLabel,
		URL:           i.URL,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
		State:         i.State.toState(),
		Assignee:      i.Assignee.toUser(),
		Team:          i.Team.toRef(),
		Labels:        []Label{},
		Comments:      []Comment{},
	}
	if i.Description != nil {
		issue.Description = *i.Description
	}
	if i.Project != nil {
		issue.Project = &Project{ID: i.Project.ID, Name: i.Project.Name}
	}
	if i.Labels != nil {
		for _, l := range i.Labels.Nodes {
			issue.Labels = append(issue.Labels, Label{ID: l.ID, Name: l.Name, Color: l.Color})
		}
	}
	if i.Comments != nil {
		for idx := range i.Comments.Nodes {
			comment, err := i.Comments.Nodes[idx].toComment()
			if err != nil {
				return nil, err
			}
			issue.Comments = append(issue.Comments, comment)
		}
		sort.SliceStable(issue.Comments, func(a, b int) bool {
			return issue.Comments[a].CreatedAt.Before(issue.Comments[b].CreatedAt)
		})
	}
	return issue, nil
}

func (i *wireIssue) toSummary() (IssueSummary, error) {
	if i.ID == "" || i.Identifier == "" {
		return IssueSummary{}, shapeError("issue without id or identifier")
	}
	return IssueSummary{
		ID:            i.ID,
		Identifier:    i.Identifier,
		Title:         i.Title,
		Priority:      int(i.Priority),
		PriorityLabel: i.PriorityLabel,
		URL:           i.URL,
		State:         i.State.toState(),
		Assignee:      i.Assignee.toUser(),
		Team:          i.Team.toRef(),
	}, nil
}
