package session

import "encoding/json"

// ToolCallStatus is the lifecycle state of one tool call snapshot.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallComplete  ToolCallStatus = "complete"
	ToolCallFailed    ToolCallStatus = "failed"
	ToolCallCancelled ToolCallStatus = "cancelled"
)

// ToolCallKind is the category of action a tool call performs; only
// edit-kind calls carry diffable before/after text.
type ToolCallKind string

const (
	ToolKindRead    ToolCallKind = "read"
	ToolKindEdit    ToolCallKind = "edit"
	ToolKindExecute ToolCallKind = "execute"
	ToolKindSearch  ToolCallKind = "search"
	ToolKindOther   ToolCallKind = "other"
)

// ToolCall is a snapshot of one tool invocation as reported by the agent.
// Each tool_call/tool_call_update notification yields a new snapshot; the
// merger appends snapshots and does not combine them by id.
type ToolCall struct {
	ID     string         `json:"toolCallId"`
	Title  string         `json:"title,omitempty"`
	Kind   ToolCallKind   `json:"kind,omitempty"`
	Status ToolCallStatus `json:"status"`
	// RawInput is the tool's own argument shape, left undecoded.
	RawInput json.RawMessage `json:"rawInput,omitempty"`
	// Content holds completed output (e.g. a diff's old/new text).
	Content []ContentBlock `json:"content,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// PlanEntryStatus is the lifecycle state of one plan step.
type PlanEntryStatus string

const (
	PlanPending    PlanEntryStatus = "pending"
	PlanInProgress PlanEntryStatus = "in_progress"
	PlanComplete   PlanEntryStatus = "complete"
	PlanFailed     PlanEntryStatus = "failed"
	PlanSkipped    PlanEntryStatus = "skipped"
)

// PlanEntry is one step in a plan snapshot.
type PlanEntry struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Status   PlanEntryStatus `json:"status"`
	Children []PlanEntry     `json:"children,omitempty"`
}

// Plan is the agent's latest self-reported task breakdown.
type Plan struct {
	Title   string      `json:"title,omitempty"`
	Entries []PlanEntry `json:"entries"`
}

// Command is one slash-command the agent currently advertises.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionUpdate is the merged, delegate-visible shape of one or more
// session/update notifications. Every
// field is optional; a field absent from a given delivery means nothing
// new arrived for it.
type SessionUpdate struct {
	MessageChunks []ContentBlock `json:"messageChunks,omitempty"`
	ThoughtChunks []ContentBlock `json:"thoughtChunks,omitempty"`
	ToolCalls     []ToolCall     `json:"toolCalls,omitempty"`
	Plan          *Plan          `json:"plan,omitempty"`
	Commands      []Command      `json:"commands,omitempty"`
	Modes         []ModeOption   `json:"modes,omitempty"`
}

// Empty reports whether this update carries nothing new, so the merger can
// skip delivering a no-op flush.
func (u SessionUpdate) Empty() bool {
	return len(u.MessageChunks) == 0 && len(u.ThoughtChunks) == 0 &&
		len(u.ToolCalls) == 0 && u.Plan == nil && len(u.Commands) == 0 && len(u.Modes) == 0
}

// parseSessionUpdate decodes one session/update notification's params into
// (sessionID, SessionUpdate). It accepts both wire shapes the agent may use:
// an envelope with a nested "update" object carrying a "sessionUpdate"
// discriminator (the form seen from real ACP agents), and a flattened
// object where the discriminator and payload fields sit at the top level.
func parseSessionUpdate(params json.RawMessage) (string, SessionUpdate, error) {
	var probe struct {
		SessionID     string          `json:"sessionId"`
		SessionUpdate string          `json:"sessionUpdate"`
		Update        json.RawMessage `json:"update"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return "", SessionUpdate{}, err
	}

	// Tagged-nested form: {"sessionId":..., "update": {"sessionUpdate": ...}}.
	if len(probe.Update) > 0 {
		var tagged struct {
			SessionUpdate string `json:"sessionUpdate"`
		}
		if err := json.Unmarshal(probe.Update, &tagged); err == nil && tagged.SessionUpdate != "" {
			update, err := decodeUpdatePayload(tagged.SessionUpdate, probe.Update)
			return probe.SessionID, update, err
		}
	}

	// Flattened form: the discriminator sits next to sessionId directly.
	if probe.SessionUpdate != "" {
		update, err := decodeUpdatePayload(probe.SessionUpdate, params)
		return probe.SessionID, update, err
	}

	return probe.SessionID, SessionUpdate{}, nil
}

func decodeUpdatePayload(kind string, raw json.RawMessage) (SessionUpdate, error) {
	switch kind {
	case "agent_message_chunk":
		chunk, err := decodeContentField(raw)
		return SessionUpdate{MessageChunks: chunk}, err

	case "agent_thought_chunk":
		chunk, err := decodeContentField(raw)
		return SessionUpdate{ThoughtChunks: chunk}, err

	case "user_message_chunk":
		// Echoed back to the delegate as a message chunk like the agent's own.
		chunk, err := decodeContentField(raw)
		return SessionUpdate{MessageChunks: chunk}, err

	case "tool_call", "tool_call_update":
		var tc ToolCall
		if err := json.Unmarshal(raw, &tc); err != nil {
			return SessionUpdate{}, err
		}
		return SessionUpdate{ToolCalls: []ToolCall{tc}}, nil

	case "plan":
		var p struct {
			Entries []PlanEntry `json:"entries"`
			Title   string      `json:"title"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return SessionUpdate{}, err
		}
		return SessionUpdate{Plan: &Plan{Title: p.Title, Entries: p.Entries}}, nil

	case "available_commands_update":
		var c struct {
			AvailableCommands []Command `json:"availableCommands"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return SessionUpdate{}, err
		}
		return SessionUpdate{Commands: c.AvailableCommands}, nil

	case "current_mode_update", "config_option_update", "session_info_update":
		var m struct {
			AvailableModes []ModeOption `json:"availableModes"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return SessionUpdate{}, err
		}
		return SessionUpdate{Modes: m.AvailableModes}, nil

	case "usage_update":
		// Token accounting, silently consumed — not part of the delegate's
		// streaming-update surface.
		return SessionUpdate{}, nil

	default:
		return SessionUpdate{}, nil
	}
}

// decodeContentField pulls a "content" array of ContentBlock out of raw,
// falling back to a single "text" string field some agents emit directly.
func decodeContentField(raw json.RawMessage) ([]ContentBlock, error) {
	var withContent struct {
		Content []ContentBlock `json:"content"`
		Text    string         `json:"text"`
	}
	if err := json.Unmarshal(raw, &withContent); err != nil {
		return nil, err
	}
	if len(withContent.Content) > 0 {
		return withContent.Content, nil
	}
	if withContent.Text != "" {
		return []ContentBlock{TextBlock(withContent.Text)}, nil
	}
	return nil, nil
}
