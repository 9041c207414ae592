package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/acphost/acperrors"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/wire"
)

// pollInterval is how often GET <base>/messages is polled for inbound
// traffic.
const pollInterval = 500 * time.Millisecond

// HTTPTransport exchanges JSON-RPC frames with a remote agent over plain
// HTTP: outbound frames are POSTed, inbound traffic is obtained by polling.
// It is otherwise stateless between requests.
type HTTPTransport struct {
	baseURL string
	client  *http.Client

	inbound    InboundHandler
	disconnect DisconnectHandler

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	stopped   chan struct{}

	disconnectOnce sync.Once
}

// NewHTTPTransport builds a transport against baseURL. If client is nil, a
// default http.Client is used.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{baseURL: baseURL, client: client}
}

func (t *HTTPTransport) SetInboundHandler(h InboundHandler)       { t.inbound = h }
func (t *HTTPTransport) SetDisconnectHandler(h DisconnectHandler) { t.disconnect = h }

// Connect verifies reachability with a GET to the base URL and starts the
// background poller.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return acperrors.NewTransportError("build connect request", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return acperrors.NewTransportError("connect", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return acperrors.NewTransportError("connect", fmt.Errorf("agent returned %s", resp.Status))
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.connected = true
	t.cancel = cancel
	t.stopped = make(chan struct{})
	t.mu.Unlock()

	go t.pollLoop(pollCtx)

	return nil
}

func (t *HTTPTransport) pollLoop(ctx context.Context) {
	defer close(t.stopped)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

// pollOnce issues one GET <base>/messages and dispatches whatever it finds.
// Transient poll failures are tolerated by continuing the loop silently:
// errors are logged, never surfaced or fatal.
func (t *HTTPTransport) pollOnce(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/messages", nil)
	if err != nil {
		logger.Debug("transport: poll request build failed: %v", err)
		return
	}
	resp, err := t.client.Do(req)
	if err != nil {
		logger.Debug("transport: poll failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Debug("transport: poll returned %s", resp.Status)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Debug("transport: poll body read failed: %v", err)
		return
	}
	if len(body) == 0 {
		return
	}

	for _, raw := range splitFrames(body) {
		frame, err := wire.Classify(raw)
		if err != nil {
			logger.Warn("transport: discarding unparsable frame: %v", err)
			continue
		}
		if t.inbound != nil {
			t.inbound(frame)
		}
	}
}

// splitFrames normalizes a poll response body into individual frame
// payloads, whether it is a single JSON object or an array of them.
func splitFrames(body []byte) [][]byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil
		}
		out := make([][]byte, len(raws))
		for i, r := range raws {
			out[i] = []byte(r)
		}
		return out
	}
	return [][]byte{trimmed}
}

// WriteFrame POSTs one already-encoded frame to <base>/message.
func (t *HTTPTransport) WriteFrame(data []byte) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	req, err := http.NewRequest(http.MethodPost, t.baseURL+"/message", bytes.NewReader(data))
	if err != nil {
		return acperrors.NewTransportError("build send request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return acperrors.NewTransportError("send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return acperrors.NewTransportError("send", fmt.Errorf("agent returned %s", resp.Status))
	}

	// A response delivered inline on the POST is itself a frame to classify,
	// rather than waiting for it to reappear on the next poll.
	body, err := io.ReadAll(resp.Body)
	if err == nil {
		for _, raw := range splitFrames(body) {
			frame, ferr := wire.Classify(raw)
			if ferr != nil {
				continue
			}
			if t.inbound != nil {
				t.inbound(frame)
			}
		}
	}

	return nil
}

// Disconnect stops the poller. Idempotent.
func (t *HTTPTransport) Disconnect() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	cancel := t.cancel
	stopped := t.stopped
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		<-stopped
	}

	t.disconnectOnce.Do(func() {
		if t.disconnect != nil {
			t.disconnect(nil)
		}
	})
	return nil
}
