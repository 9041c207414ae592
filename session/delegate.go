package session

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDefinition describes one tool the host delegate exposes to the agent,
// reusing mcp-go's own schema types so the shape matches the wider MCP tool
// ecosystem rather than inventing a parallel one.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema mcp.ToolInputSchema
}

// CallToolResponse is the delegate's answer to tools/call.
type CallToolResponse struct {
	Success bool
	Content []mcp.Content
}

// PermissionOption is one choice offered to the delegate by a
// session/request_permission inbound request.
type PermissionOption struct {
	OptionID string
	Name     string
	Kind     string
}

// RequestPermissionRequest is the decoded body of an inbound
// session/request_permission call.
type RequestPermissionRequest struct {
	SessionID   string
	Description string
	ToolCall    *ToolCall
	Options     []PermissionOption
	Content     []ContentBlock
}

// RejectOnceOptionID is the option id used when no delegate is attached and
// a permission request must still be answered: the engine responds with a
// rejection outcome using this option id.
const RejectOnceOptionID = "reject_once"

// ErrNoDelegate is returned by the default hook implementations so callers
// see a stable, typed reason for "unimplemented", rather than a bespoke
// error per hook.
var ErrNoDelegate = errors.New("session: no delegate attached for this hook")

// Delegate is the host application's hook surface. The engine does not
// serialize calls into it: inbound requests are serviced concurrently and
// updates arrive from the merger, so its methods may be called from several
// goroutines at once. A host need only implement the hooks relevant to it;
// Default* gives a safe refuse-by-default fallback for everything else.
type Delegate interface {
	OnUpdate(sessionID string, update SessionUpdate)
	ChoosePermission(ctx context.Context, req RequestPermissionRequest) (string, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, name string, arguments []byte) (CallToolResponse, error)
}

// DefaultDelegate refuses every hook it doesn't override; embed it in a
// host delegate to pick up safe defaults for hooks that host doesn't need.
type DefaultDelegate struct{}

func (DefaultDelegate) OnUpdate(sessionID string, update SessionUpdate) {}

func (DefaultDelegate) ChoosePermission(ctx context.Context, req RequestPermissionRequest) (string, error) {
	return RejectOnceOptionID, nil
}

func (DefaultDelegate) ReadFile(ctx context.Context, path string) (string, error) {
	return "", ErrNoDelegate
}

func (DefaultDelegate) WriteFile(ctx context.Context, path, content string) error {
	return ErrNoDelegate
}

func (DefaultDelegate) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	return nil, nil
}

func (DefaultDelegate) CallTool(ctx context.Context, name string, arguments []byte) (CallToolResponse, error) {
	return CallToolResponse{}, ErrNoDelegate
}
