package session

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/wire"
)

// requestPermissionParams is the wire shape of an inbound
// session/request_permission call.
type requestPermissionParams struct {
	SessionID   string          `json:"sessionId"`
	Description string          `json:"description,omitempty"`
	ToolCall    *ToolCall       `json:"toolCall,omitempty"`
	Content     []ContentBlock  `json:"content,omitempty"`
	Options     []struct {
		OptionID string `json:"optionId"`
		Name     string `json:"name"`
		Kind     string `json:"kind,omitempty"`
	} `json:"options,omitempty"`
}

type permissionOutcome struct {
	Outcome  string `json:"outcome"`
	OptionID string `json:"optionId,omitempty"`
}

type requestPermissionResult struct {
	Outcome permissionOutcome `json:"outcome"`
}

// handleRequestPermission answers session/request_permission.
func (e *Engine) handleRequestPermission(ctx context.Context, method string, raw json.RawMessage) (any, *wire.RPCError) {
	var params requestPermissionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &wire.RPCError{Code: wire.CodeInvalidParams, Message: "invalid session/request_permission params: " + err.Error()}
	}

	if e.delegate == nil {
		return requestPermissionResult{Outcome: permissionOutcome{Outcome: "selected", OptionID: RejectOnceOptionID}}, nil
	}

	options := make([]PermissionOption, len(params.Options))
	for i, o := range params.Options {
		options[i] = PermissionOption{OptionID: o.OptionID, Name: o.Name, Kind: o.Kind}
	}

	chosen, err := e.delegate.ChoosePermission(ctx, RequestPermissionRequest{
		SessionID:   params.SessionID,
		Description: params.Description,
		ToolCall:    params.ToolCall,
		Options:     options,
		Content:     params.Content,
	})
	if err != nil {
		chosen = RejectOnceOptionID
	}
	return requestPermissionResult{Outcome: permissionOutcome{Outcome: "selected", OptionID: chosen}}, nil
}

type readTextFileParams struct {
	Path string `json:"path"`
}

type readTextFileResult struct {
	Content string `json:"content"`
}

// handleReadTextFile answers fs/read_text_file.
func (e *Engine) handleReadTextFile(ctx context.Context, method string, raw json.RawMessage) (any, *wire.RPCError) {
	var params readTextFileParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &wire.RPCError{Code: wire.CodeInvalidParams, Message: "invalid fs/read_text_file params: " + err.Error()}
	}
	if e.delegate == nil {
		return nil, &wire.RPCError{Code: wire.CodeResourceNotFound, Message: ErrNoDelegate.Error()}
	}
	content, err := e.delegate.ReadFile(ctx, params.Path)
	if err != nil {
		return nil, &wire.RPCError{Code: wire.CodeResourceNotFound, Message: err.Error()}
	}
	return readTextFileResult{Content: content}, nil
}

type writeTextFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type writeTextFileResult struct {
	Success bool `json:"success"`
}

// handleWriteTextFile answers fs/write_text_file.
func (e *Engine) handleWriteTextFile(ctx context.Context, method string, raw json.RawMessage) (any, *wire.RPCError) {
	var params writeTextFileParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &wire.RPCError{Code: wire.CodeInvalidParams, Message: "invalid fs/write_text_file params: " + err.Error()}
	}
	if e.delegate == nil {
		return nil, &wire.RPCError{Code: wire.CodeInternalError, Message: ErrNoDelegate.Error()}
	}
	if err := e.delegate.WriteFile(ctx, params.Path, params.Content); err != nil {
		return nil, &wire.RPCError{Code: wire.CodeInternalError, Message: err.Error()}
	}
	return writeTextFileResult{Success: true}, nil
}

type toolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

type toolsListResult struct {
	Tools []toolDescriptor `json:"tools"`
}

// handleToolsList answers tools/list.
func (e *Engine) handleToolsList(ctx context.Context, method string, raw json.RawMessage) (any, *wire.RPCError) {
	if e.delegate == nil {
		return toolsListResult{Tools: []toolDescriptor{}}, nil
	}
	defs, err := e.delegate.ListTools(ctx)
	if err != nil {
		logger.Warn("session: tools/list delegate error: %v", err)
		return toolsListResult{Tools: []toolDescriptor{}}, nil
	}
	out := make([]toolDescriptor, len(defs))
	for i, d := range defs {
		out[i] = toolDescriptor{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
	}
	return toolsListResult{Tools: out}, nil
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type toolsCallResult struct {
	Success bool `json:"success"`
	Content []any `json:"content"`
}

// handleToolsCall answers tools/call.
func (e *Engine) handleToolsCall(ctx context.Context, method string, raw json.RawMessage) (any, *wire.RPCError) {
	var params toolsCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &wire.RPCError{Code: wire.CodeInvalidParams, Message: "invalid tools/call params: " + err.Error()}
	}
	if e.delegate == nil {
		return nil, &wire.RPCError{Code: wire.CodeMethodNotFound, Message: "Method not found: tools/call"}
	}
	resp, err := e.delegate.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, &wire.RPCError{Code: wire.CodeInternalError, Message: err.Error()}
	}
	content := make([]any, len(resp.Content))
	for i, c := range resp.Content {
		content[i] = c
	}
	return toolsCallResult{Success: resp.Success, Content: content}, nil
}
