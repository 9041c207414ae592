package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/acphost/router"
	"github.com/mark3labs/acphost/transport"
	"github.com/mark3labs/acphost/wire"
)

// mockTransport is an in-memory transport.Transport double driven directly
// by the test, standing in for a real agent over a pipe or HTTP endpoint.
type mockTransport struct {
	mu         sync.Mutex
	written    [][]byte
	inbound    transport.InboundHandler
	disconnect transport.DisconnectHandler
}

func (m *mockTransport) Connect(ctx context.Context) error { return nil }
func (m *mockTransport) Disconnect() error {
	if m.disconnect != nil {
		m.disconnect(nil)
	}
	return nil
}
func (m *mockTransport) WriteFrame(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.written = append(m.written, cp)
	return nil
}
func (m *mockTransport) SetInboundHandler(h transport.InboundHandler)       { m.inbound = h }
func (m *mockTransport) SetDisconnectHandler(h transport.DisconnectHandler) { m.disconnect = h }

func (m *mockTransport) deliver(t *testing.T, raw string) {
	t.Helper()
	frame, err := wire.Classify([]byte(raw))
	if err != nil {
		t.Fatalf("classify fixture: %v", err)
	}
	m.inbound(frame)
}

func (m *mockTransport) waitForWrite(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		got := len(m.written)
		m.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d writes", n)
}

func (m *mockTransport) nth(i int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written[i]
}

type recordingDelegate struct {
	DefaultDelegate
	mu      sync.Mutex
	updates []SessionUpdate
	choose  func(RequestPermissionRequest) (string, error)
}

func (d *recordingDelegate) OnUpdate(sessionID string, u SessionUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
}

func (d *recordingDelegate) ChoosePermission(ctx context.Context, req RequestPermissionRequest) (string, error) {
	if d.choose != nil {
		return d.choose(req)
	}
	return DefaultDelegate{}.ChoosePermission(ctx, req)
}

func (d *recordingDelegate) snapshot() []SessionUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SessionUpdate, len(d.updates))
	copy(out, d.updates)
	return out
}

func newTestEngine() (*Engine, *mockTransport) {
	mt := &mockTransport{}
	r := router.New(mt)
	e := New(r)
	return e, mt
}

func TestInitializeRoundTrip(t *testing.T) {
	e, mt := newTestEngine()

	done := make(chan struct{})
	var resp *InitializeResponse
	var err error
	go func() {
		resp, err = e.Connect(context.Background(), ClientInfo{Name: "T", Version: "1"})
		close(done)
	}()

	mt.waitForWrite(t, 1)
	mt.deliver(t, `{"jsonrpc":"2.0","id":"1","result":{"protocolVersion":1,"agentCapabilities":{"loadSession":true,"promptCapabilities":{"image":true}},"agentInfo":{"name":"A","version":"9"}}}`)

	<-done
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if resp.AgentInfo.Name != "A" {
		t.Fatalf("agent name = %q", resp.AgentInfo.Name)
	}
	if !resp.AgentCapabilities.LoadSession {
		t.Fatal("expected loadSession capability")
	}
}

func TestPromptWithCancel(t *testing.T) {
	e, mt := newTestEngine()
	connectEngine(t, e, mt)

	newSessionDone := make(chan struct{})
	var sess *NewSessionResponse
	go func() {
		var err error
		sess, err = e.NewSession(context.Background(), NewSessionRequest{Cwd: "/tmp"})
		if err != nil {
			t.Errorf("new_session: %v", err)
		}
		close(newSessionDone)
	}()
	mt.waitForWrite(t, 2)
	mt.deliver(t, `{"jsonrpc":"2.0","id":"2","result":{"sessionId":"s1"}}`)
	<-newSessionDone
	if sess.SessionID != "s1" {
		t.Fatalf("sessionId = %q", sess.SessionID)
	}

	promptDone := make(chan struct{})
	var promptResp *PromptResponse
	go func() {
		var err error
		promptResp, err = e.Prompt(context.Background(), []ContentBlock{TextBlock("hi")})
		if err != nil {
			t.Errorf("prompt: %v", err)
		}
		close(promptDone)
	}()
	mt.waitForWrite(t, 3)

	mt.deliver(t, `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s1","update":{"sessionUpdate":"agent_message_chunk","content":[{"type":"text","text":"partial"}]}}}`)

	if err := e.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	mt.waitForWrite(t, 4)
	var cancelEnv struct {
		Method string `json:"method"`
		ID     *wire.ID `json:"id"`
	}
	if err := json.Unmarshal(mt.nth(3), &cancelEnv); err != nil {
		t.Fatalf("unmarshal cancel frame: %v", err)
	}
	if cancelEnv.Method != "session/cancel" {
		t.Fatalf("expected session/cancel notification, got %q", cancelEnv.Method)
	}
	if cancelEnv.ID != nil {
		t.Fatal("cancel notification must carry no id")
	}

	mt.deliver(t, `{"jsonrpc":"2.0","id":"3","result":{"stopReason":"cancelled"}}`)
	<-promptDone
	if promptResp.StopReason != StopCancelled {
		t.Fatalf("stopReason = %q, want cancelled", promptResp.StopReason)
	}
}

func TestPermissionRoundTrip(t *testing.T) {
	e, mt := newTestEngine()
	connectEngine(t, e, mt)

	d := &recordingDelegate{choose: func(req RequestPermissionRequest) (string, error) {
		return "allow_once", nil
	}}
	e.SetDelegate(d)

	mt.deliver(t, `{"jsonrpc":"2.0","id":"42","method":"session/request_permission","params":{"options":[{"optionId":"allow_once","name":"Allow","kind":"allow_once"},{"optionId":"reject_once","name":"Deny","kind":"reject_once"}]}}`)

	deadline := time.Now().Add(2 * time.Second)
	var last []byte
	for time.Now().Before(deadline) {
		mt.mu.Lock()
		if len(mt.written) > 1 {
			last = mt.written[len(mt.written)-1]
		}
		mt.mu.Unlock()
		if last != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if last == nil {
		t.Fatal("expected a permission response to be written")
	}

	var env struct {
		ID     string `json:"id"`
		Result requestPermissionResult `json:"result"`
	}
	if err := json.Unmarshal(last, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.ID != "42" {
		t.Fatalf("id = %q", env.ID)
	}
	if env.Result.Outcome.OptionID != "allow_once" {
		t.Fatalf("optionId = %q", env.Result.Outcome.OptionID)
	}
}

func TestUpdateBatching(t *testing.T) {
	e, mt := newTestEngine()
	connectEngine(t, e, mt)
	d := &recordingDelegate{}
	e.SetDelegate(d)

	newSessionDone := make(chan struct{})
	go func() {
		e.NewSession(context.Background(), NewSessionRequest{Cwd: "/tmp"})
		close(newSessionDone)
	}()
	mt.waitForWrite(t, 2)
	mt.deliver(t, `{"jsonrpc":"2.0","id":"2","result":{"sessionId":"s1"}}`)
	<-newSessionDone

	for _, text := range []string{"a", "b", "c", "d", "e"} {
		mt.deliver(t, `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s1","update":{"sessionUpdate":"agent_message_chunk","content":[{"type":"text","text":"`+text+`"}]}}}`)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(d.snapshot()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	updates := d.snapshot()
	if len(updates) != 1 {
		t.Fatalf("expected exactly one batched delivery, got %d", len(updates))
	}
	var got []string
	for _, c := range updates[0].MessageChunks {
		got = append(got, c.Text)
	}
	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunks = %v, want %v", got, want)
		}
	}
}

func TestUnknownInboundMethodRepliesMethodNotFound(t *testing.T) {
	e, mt := newTestEngine()
	_ = e
	mt.deliver(t, `{"jsonrpc":"2.0","id":"7","method":"bogus/method","params":{}}`)

	mt.waitForWrite(t, 1)
	var env struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(mt.nth(0), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error.Code != wire.CodeMethodNotFound {
		t.Fatalf("code = %d", env.Error.Code)
	}
}

func TestDisconnectCancelsInFlightPrompt(t *testing.T) {
	e, mt := newTestEngine()
	connectEngine(t, e, mt)

	newSessionDone := make(chan struct{})
	go func() {
		e.NewSession(context.Background(), NewSessionRequest{Cwd: "/tmp"})
		close(newSessionDone)
	}()
	mt.waitForWrite(t, 2)
	mt.deliver(t, `{"jsonrpc":"2.0","id":"2","result":{"sessionId":"s1"}}`)
	<-newSessionDone

	promptDone := make(chan error, 1)
	go func() {
		_, err := e.Prompt(context.Background(), []ContentBlock{TextBlock("hi")})
		promptDone <- err
	}()
	mt.waitForWrite(t, 3)

	mt.disconnect(nil)

	select {
	case err := <-promptDone:
		if err == nil {
			t.Fatal("expected prompt to fail on disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt never resolved after disconnect")
	}

	if _, err := e.Prompt(context.Background(), []ContentBlock{TextBlock("again")}); err == nil {
		t.Fatal("expected a follow-up call to fail after disconnect")
	}
}

func connectEngine(t *testing.T, e *Engine, mt *mockTransport) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		e.Connect(context.Background(), ClientInfo{Name: "T", Version: "1"})
		close(done)
	}()
	mt.waitForWrite(t, 1)
	mt.deliver(t, `{"jsonrpc":"2.0","id":"1","result":{"protocolVersion":1,"agentCapabilities":{"loadSession":true},"agentInfo":{"name":"A","version":"9"}}}`)
	<-done
}
