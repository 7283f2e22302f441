// Package issues exposes Linear issue operations as MCP tools.
package issues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"linear-mcp/internal/linear"
	"linear-mcp/internal/tools"
)

// Service is the set of Linear operations the tools depend on.
// *linear.Client implements it.
type Service interface {
	GetIssue(ctx context.Context, identifier string) (*linear.Issue, error)
	SearchIssues(ctx context.Context, params linear.SearchParams) (*linear.IssuePage, error)
	ListTeams(ctx context.Context) ([]linear.Team, error)
	UpdateIssueStatus(ctx context.Context, identifier, stateName string) (*linear.Issue, error)
	UpdateIssue(ctx context.Context, identifier string, update linear.IssueUpdate) (*linear.Issue, error)
	AddComment(ctx context.Context, identifier, body string) (*linear.Comment, error)
}

// All returns the six issue tools bound to svc.
func All(svc Service) []tools.Tool {
	return []tools.Tool{
		NewGetIssueTool(svc),
		NewSearchIssuesTool(svc),
		NewListTeamsTool(svc),
		NewUpdateIssueStatusTool(svc),
		NewUpdateIssueTool(svc),
		NewAddCommentTool(svc),
	}
}

// Register adds every issue tool to registry.
func Register(registry *tools.Registry, svc Service) {
	for _, tool := range All(svc) {
		registry.Register(tool)
	}
}

// respond encodes a successful payload or converts err into a *tools.Error
// carrying the failure kind.
func respond(v any, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, toToolError(err)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, &tools.Error{Code: string(linear.KindRemote), Message: fmt.Sprintf("could not encode result: %v", err)}
	}
	return payload, nil
}

func toToolError(err error) error {
	var toolErr *tools.Error
	if errors.As(err, &toolErr) {
		return toolErr
	}
	var linErr *linear.Error
	if errors.As(err, &linErr) {
		return &tools.Error{Code: string(linErr.Kind), Message: linErr.Message}
	}
	return &tools.Error{Code: string(linear.KindRemote), Message: err.Error()}
}

func requireIdentifier(identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return &tools.Error{Code: string(linear.KindInvalidArgument), Message: "identifier is required"}
	}
	return nil
}

var (
	readOnly = tools.Annotations{
		ReadOnlyHint:  tools.Bool(true),
		OpenWorldHint: tools.Bool(true),
	}
	idempotentWrite = tools.Annotations{
		ReadOnlyHint:    tools.Bool(false),
		DestructiveHint: tools.Bool(false),
		IdempotentHint:  tools.Bool(true),
		OpenWorldHint:   tools.Bool(true),
	}
	appendWrite = tools.Annotations{
		ReadOnlyHint:    tools.Bool(false),
		DestructiveHint: tools.Bool(false),
		IdempotentHint:  tools.Bool(false),
		OpenWorldHint:   tools.Bool(true),
	}
)

func withTitle(a tools.Annotations, title string) tools.Annotations {
	a.Title = title
	return a
}

var identifierProperty = tools.StringProperty("The issue identifier, e.g. 'SRE-152' or 'ENG-123'")
