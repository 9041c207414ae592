package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mark3labs/acphost/acperrors"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/router"
)

// connState is the per-connection state machine position.
type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateInitialized
	stateSessionActive
	stateDisconnected
)

// ErrNoActiveSession is returned by prompt/cancel/set_* when no session has
// been created or loaded yet.
var ErrNoActiveSession = errors.New("session: no active session")

// ErrCapabilityNotAdvertised is returned when an operation requires a
// capability bit the agent did not advertise during initialize.
var ErrCapabilityNotAdvertised = errors.New("session: capability not advertised by agent")

// ErrDisconnected is returned by prompt/cancel/set_* calls made after the
// connection has been torn down.
var ErrDisconnected = errors.New("session: disconnected")

// Engine implements the ACP method vocabulary on top of a Router. Its
// connection state and session table are guarded by mu. Delegate callbacks
// are not serialized: each inbound request is serviced on its own goroutine
// and batched updates are delivered from the merger's timer goroutine, so a
// delegate may receive concurrent calls.
type Engine struct {
	r        *router.Router
	delegate Delegate

	mu          sync.Mutex
	state       connState
	initResp    *InitializeResponse
	current     *sessionState
	sessions    map[string]*sessionState
}

// New builds an engine on top of r. SetDelegate may be called before or
// after Connect; a nil delegate is valid and uses refuse-by-default
// behavior throughout.
func New(r *router.Router) *Engine {
	e := &Engine{r: r, state: stateIdle, sessions: make(map[string]*sessionState)}
	r.OnNotification("session/update", e.onSessionUpdateNotification)
	r.OnRequest("session/request_permission", e.handleRequestPermission)
	r.OnRequest("fs/read_text_file", e.handleReadTextFile)
	r.OnRequest("fs/write_text_file", e.handleWriteTextFile)
	r.OnRequest("tools/list", e.handleToolsList)
	r.OnRequest("tools/call", e.handleToolsCall)
	return e
}

// SetDelegate attaches the host's hook implementation.
func (e *Engine) SetDelegate(d Delegate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delegate = d
}

// Connect performs transport connect + initialize handshake.
func (e *Engine) Connect(ctx context.Context, clientInfo ClientInfo) (*InitializeResponse, error) {
	e.mu.Lock()
	if e.state != stateIdle {
		e.mu.Unlock()
		return nil, acperrors.NewSessionError("connect", errors.New("called out of order"))
	}
	e.state = stateConnecting
	e.mu.Unlock()

	if err := e.r.Connect(ctx); err != nil {
		e.setState(stateDisconnected)
		return nil, err
	}

	go e.watchDisconnect()

	req := InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		SupportedVersions: []Version{{Major: 0, Minor: 3, Patch: 0}},
		ClientCapabilities: ClientCapabilities{
			Fs: FileSystemCapability{ReadTextFile: true, WriteTextFile: true},
		},
		ClientInfo: clientInfo,
	}

	var resp InitializeResponse
	if err := e.r.SendRequest(ctx, "initialize", req, &resp); err != nil {
		e.setState(stateDisconnected)
		return nil, err
	}

	e.mu.Lock()
	e.initResp = &resp
	e.state = stateInitialized
	e.mu.Unlock()

	return &resp, nil
}

func (e *Engine) watchDisconnect() {
	<-e.r.Done()
	e.mu.Lock()
	e.state = stateDisconnected
	sessions := e.sessions
	e.sessions = nil
	e.current = nil
	e.mu.Unlock()

	for _, s := range sessions {
		s.merger.Close()
	}
}

func (e *Engine) setState(s connState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// NewSession creates a fresh session and makes it current.
func (e *Engine) NewSession(ctx context.Context, req NewSessionRequest) (*NewSessionResponse, error) {
	e.mu.Lock()
	if e.state != stateInitialized && e.state != stateSessionActive {
		e.mu.Unlock()
		return nil, acperrors.NewSessionError("new_session", errors.New("requires an initialized connection"))
	}
	e.mu.Unlock()

	var resp NewSessionResponse
	if err := e.r.SendRequest(ctx, "session/new", req, &resp); err != nil {
		return nil, err
	}

	st := newSessionState(resp.SessionID)
	st.models = resp.Models
	st.modes = resp.Modes
	st.currentModel = resp.Model
	st.currentMode = resp.Mode
	st.merger = newMerger(func(u SessionUpdate) {
		e.deliverUpdate(st, u)
	})

	e.mu.Lock()
	e.sessions[resp.SessionID] = st
	e.current = st
	e.state = stateSessionActive
	e.mu.Unlock()

	return &resp, nil
}

// LoadSession resumes a session the agent already knows about; requires the
// agent to have advertised loadSession.
func (e *Engine) LoadSession(ctx context.Context, req LoadSessionRequest) (*LoadSessionResponse, error) {
	e.mu.Lock()
	initResp := e.initResp
	e.mu.Unlock()
	if initResp == nil || !initResp.AgentCapabilities.LoadSession {
		return nil, ErrCapabilityNotAdvertised
	}

	var resp LoadSessionResponse
	if err := e.r.SendRequest(ctx, "session/load", req, &resp); err != nil {
		return nil, err
	}

	st := newSessionState(req.SessionID)
	st.models = resp.Models
	st.modes = resp.Modes
	st.currentModel = resp.Model
	st.currentMode = resp.Mode
	st.merger = newMerger(func(u SessionUpdate) {
		e.deliverUpdate(st, u)
	})

	e.mu.Lock()
	e.sessions[req.SessionID] = st
	e.current = st
	e.state = stateSessionActive
	e.mu.Unlock()

	return &resp, nil
}

// Prompt sends one turn of content to the current session and blocks for
// its terminal result.
func (e *Engine) Prompt(ctx context.Context, content []ContentBlock) (*PromptResponse, error) {
	st, err := e.requireCurrent()
	if err != nil {
		return nil, err
	}
	st.beginTurn()

	var resp PromptResponse
	if err := e.r.SendRequest(ctx, "session/prompt", PromptRequest{SessionID: st.id, Prompt: content}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel sends session/cancel as a fire-and-forget notification; the
// outstanding prompt future (if any) resolves independently when the agent
// sends its terminal response.
func (e *Engine) Cancel(ctx context.Context) error {
	st, err := e.requireCurrent()
	if err != nil {
		return err
	}
	return e.r.SendNotification("session/cancel", CancelNotification{SessionID: st.id})
}

// SetSessionModel / SetSessionMode mutate the current session's cached
// state on success.
func (e *Engine) SetSessionModel(ctx context.Context, modelID string) error {
	st, err := e.requireCurrent()
	if err != nil {
		return err
	}
	if err := e.r.SendRequest(ctx, "session/set_model", SetModelRequest{SessionID: st.id, ModelID: modelID}, nil); err != nil {
		return err
	}
	e.mu.Lock()
	st.currentModel = modelID
	e.mu.Unlock()
	return nil
}

func (e *Engine) SetSessionMode(ctx context.Context, modeID string) error {
	st, err := e.requireCurrent()
	if err != nil {
		return err
	}
	if err := e.r.SendRequest(ctx, "session/set_mode", SetModeRequest{SessionID: st.id, ModeID: modeID}, nil); err != nil {
		return err
	}
	e.mu.Lock()
	st.currentMode = modeID
	e.mu.Unlock()
	return nil
}

// SetConfigOption mutates a named agent-defined option. Unlike set_mode/
// set_model, failure here is logged, not returned: it's a non-fatal
// mutation.
func (e *Engine) SetConfigOption(ctx context.Context, optionID, value string) {
	st, err := e.requireCurrent()
	if err != nil {
		logger.Debug("session: set_config_option with no active session: %v", err)
		return
	}
	if err := e.r.SendRequest(ctx, "session/set_config_option", SetConfigOptionRequest{SessionID: st.id, OptionID: optionID, Value: value}, nil); err != nil {
		logger.Warn("session: set_config_option %s failed: %v", optionID, err)
	}
}

// GetAgentManifest asks the agent for its self-reported identity.
func (e *Engine) GetAgentManifest(ctx context.Context, name string) (*AgentManifest, error) {
	e.mu.Lock()
	connected := e.state == stateInitialized || e.state == stateSessionActive
	e.mu.Unlock()
	if !connected {
		return nil, acperrors.NewSessionError("get_agent_manifest", errors.New("requires a connected agent"))
	}

	var resp AgentManifest
	params := map[string]string{}
	if name != "" {
		params["name"] = name
	}
	if err := e.r.SendRequest(ctx, "agents/get", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Disconnect tears down the transport via the router; watchDisconnect
// handles state/session teardown.
func (e *Engine) Disconnect() error {
	return e.r.Disconnect()
}

// CurrentTurnStats reports the current session's in-progress or most recent
// turn stats, for a host to poll into its own telemetry. ok is false when
// there is no active session.
func (e *Engine) CurrentTurnStats() (stats TurnStats, sessionID string, ok bool) {
	e.mu.Lock()
	st := e.current
	e.mu.Unlock()
	if st == nil {
		return TurnStats{}, "", false
	}
	return st.snapshot(), st.id, true
}

// CurrentSessionID reports the id of the current session, if any. Used by a
// host wiring router.OnTiming into telemetry, where the router itself has
// no notion of sessions.
func (e *Engine) CurrentSessionID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return "", false
	}
	return e.current.id, true
}

func (e *Engine) requireCurrent() (*sessionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateDisconnected {
		return nil, ErrDisconnected
	}
	if e.current == nil {
		return nil, ErrNoActiveSession
	}
	return e.current, nil
}

func (e *Engine) onSessionUpdateNotification(method string, params json.RawMessage) {
	sessionID, update, err := parseSessionUpdate(params)
	if err != nil {
		logger.Warn("session: malformed session/update: %v", err)
		return
	}

	e.mu.Lock()
	st, ok := e.sessions[sessionID]
	e.mu.Unlock()
	if !ok {
		logger.Debug("session: update for unknown session %s", sessionID)
		return
	}

	st.observeUpdate(update)
	st.merger.Accept(update)
}

func (e *Engine) deliverUpdate(st *sessionState, u SessionUpdate) {
	e.mu.Lock()
	d := e.delegate
	e.mu.Unlock()
	if d != nil {
		d.OnUpdate(st.id, u)
	}
}
