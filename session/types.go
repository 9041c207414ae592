// Package session implements the ACP method vocabulary on top of the
// router: version negotiation, session creation/loading, prompt turns,
// mid-turn cancellation, mode/model switching, inbound delegate-backed
// requests, and the streaming-update merger.
package session

import "encoding/json"

// ProtocolVersion is the version this host offers by default during
// negotiation.
const ProtocolVersion = 1

// Version is a semantic agent/client version triple as exchanged during
// initialize.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// ClientInfo identifies this host to the agent.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// AgentInfo identifies the agent to the host.
type AgentInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// FileSystemCapability advertises which filesystem delegate hooks the host
// implements.
type FileSystemCapability struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// ClientCapabilities is what this host advertises during initialize.
type ClientCapabilities struct {
	Fs FileSystemCapability `json:"fs"`
}

// PromptCapabilities describes which content modalities the agent accepts
// in a prompt.
type PromptCapabilities struct {
	Image           bool `json:"image,omitempty"`
	Audio           bool `json:"audio,omitempty"`
	EmbeddedContext bool `json:"embeddedContext,omitempty"`
}

// AgentCapabilities is what the agent advertises back during initialize;
// capability bits gate later operations.
type AgentCapabilities struct {
	LoadSession        bool               `json:"loadSession,omitempty"`
	PromptCapabilities PromptCapabilities `json:"promptCapabilities,omitempty"`
}

// AuthMethod is one authentication option the agent advertises.
type AuthMethod struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

// InitializeRequest is sent once, first, on every connection.
type InitializeRequest struct {
	ProtocolVersion    int                 `json:"protocolVersion"`
	SupportedVersions  []Version           `json:"supportedVersions,omitempty"`
	ClientCapabilities ClientCapabilities  `json:"capabilities"`
	ClientInfo         ClientInfo          `json:"clientInfo"`
}

// InitializeResponse is the agent's reply, cached by the engine for the
// life of the connection.
type InitializeResponse struct {
	ProtocolVersion   int               `json:"protocolVersion"`
	AgentCapabilities AgentCapabilities `json:"agentCapabilities"`
	AgentInfo         AgentInfo         `json:"agentInfo"`
	AuthMethods       []AuthMethod      `json:"authMethods,omitempty"`
}

// ModelOption is one entry in a session's available-models list.
type ModelOption struct {
	ID          string `json:"modelId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ModeOption is one entry in a session's available-modes list.
type ModeOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MCPServerConfig is an opaque MCP server descriptor passed through to the
// agent unexamined: agent-specific configuration shapes are treated as
// opaque metadata blobs rather than parsed.
type MCPServerConfig = json.RawMessage

// NewSessionRequest creates a fresh session.
type NewSessionRequest struct {
	Cwd        string            `json:"cwd"`
	MCPServers []MCPServerConfig `json:"mcpServers,omitempty"`
	Model      string            `json:"model,omitempty"`
	Meta       json.RawMessage   `json:"_meta,omitempty"`
}

// NewSessionResponse carries the agent's initial per-session state.
type NewSessionResponse struct {
	SessionID string        `json:"sessionId"`
	Models    []ModelOption `json:"models,omitempty"`
	Model     string        `json:"currentModelId,omitempty"`
	Modes     []ModeOption  `json:"modes,omitempty"`
	Mode      string        `json:"currentModeId,omitempty"`
}

// LoadSessionRequest resumes a session the agent already knows about.
type LoadSessionRequest struct {
	SessionID string `json:"sessionId"`
	Cwd       string `json:"cwd,omitempty"`
}

// LoadSessionResponse mirrors NewSessionResponse's per-session state.
type LoadSessionResponse struct {
	Models []ModelOption `json:"models,omitempty"`
	Model  string        `json:"currentModelId,omitempty"`
	Modes  []ModeOption  `json:"modes,omitempty"`
	Mode   string        `json:"currentModeId,omitempty"`
}

// ContentBlockKind discriminates a ContentBlock's payload.
type ContentBlockKind string

const (
	ContentText     ContentBlockKind = "text"
	ContentImage    ContentBlockKind = "image"
	ContentAudio    ContentBlockKind = "audio"
	ContentResource ContentBlockKind = "resource"
)

// ContentBlock is one piece of prompt or streamed content. Only the fields
// relevant to Type are populated.
type ContentBlock struct {
	Type     ContentBlockKind `json:"type"`
	Text     string           `json:"text,omitempty"`
	MimeType string           `json:"mimeType,omitempty"`
	Data     string           `json:"data,omitempty"`
	URI      string           `json:"uri,omitempty"`
}

// TextBlock is a convenience constructor for a plain text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentText, Text: text}
}

// PromptRequest sends one turn of content to the current session.
type PromptRequest struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// StopReason is why a prompt turn ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopCancelled StopReason = "cancelled"
	StopError     StopReason = "error"
)

// TokenUsage is optional per-turn token accounting the agent may report.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`
}

// PromptResponse is the terminal result of one prompt turn.
type PromptResponse struct {
	StopReason StopReason  `json:"stopReason"`
	Usage      *TokenUsage `json:"usage,omitempty"`
}

// CancelNotification is the fire-and-forget body of session/cancel.
type CancelNotification struct {
	SessionID string `json:"sessionId"`
}

// SetModelRequest / SetModeRequest mutate current session state.
type SetModelRequest struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
}

type SetModeRequest struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// SetConfigOptionRequest mutates a named agent-defined configuration option
// on the current session. Unlike set_mode/set_model this is non-fatal on
// failure: the engine logs and leaves the cached state untouched rather
// than returning it to the caller as a hard error.
type SetConfigOptionRequest struct {
	SessionID string `json:"sessionId"`
	OptionID  string `json:"optionId"`
	Value     string `json:"value"`
}

// AgentManifest describes the agent's own self-reported identity and
// health; returned by GetAgentManifest.
type AgentManifest struct {
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	Status             string          `json:"status,omitempty"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
	InputContentTypes  []string        `json:"inputContentTypes,omitempty"`
	OutputContentTypes []string        `json:"outputContentTypes,omitempty"`
}
