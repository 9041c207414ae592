package session

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// defaultBatchWindow is the batch interval used unless ACP_BATCH_MS
// overrides it.
const defaultBatchWindow = 50 * time.Millisecond

// batchingEnabled / batchWindow read the environment once per merger
// construction; a toggle mid-connection is not expected to take effect
// until the next session.
func batchingEnabled() bool {
	return os.Getenv("ACP_BATCHING") != "0"
}

func batchWindow() time.Duration {
	if s := os.Getenv("ACP_BATCH_MS"); s != "" {
		if ms, err := strconv.Atoi(s); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultBatchWindow
}

// merger coalesces a burst of per-session updates into a single delivery
// per flush window. One merger instance serves one
// session; the engine owns a map of these keyed by session id.
type merger struct {
	mu       sync.Mutex
	enabled  bool
	window   time.Duration
	buf      SessionUpdate
	timer    *time.Timer
	deliver  func(SessionUpdate)
}

func newMerger(deliver func(SessionUpdate)) *merger {
	return &merger{
		enabled: batchingEnabled(),
		window:  batchWindow(),
		deliver: deliver,
	}
}

// Accept merges one incoming update into the buffer and, on the first
// update since the last flush, arms a one-shot timer for the batch window.
// With batching disabled, the update is delivered immediately and verbatim.
func (m *merger) Accept(u SessionUpdate) {
	if u.Empty() {
		return
	}
	if !m.enabled {
		m.deliver(u)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf.MessageChunks = append(m.buf.MessageChunks, u.MessageChunks...)
	m.buf.ThoughtChunks = append(m.buf.ThoughtChunks, u.ThoughtChunks...)
	m.buf.ToolCalls = append(m.buf.ToolCalls, u.ToolCalls...)
	if u.Plan != nil {
		m.buf.Plan = u.Plan
	}
	if len(u.Commands) > 0 {
		m.buf.Commands = u.Commands
	}
	if len(u.Modes) > 0 {
		m.buf.Modes = u.Modes
	}

	if m.timer == nil {
		m.timer = time.AfterFunc(m.window, m.flush)
	}
}

// flush atomically takes the buffer and delivers it, provided it isn't
// empty. m.timer stays non-nil until deliver has returned, so a concurrent
// Accept cannot arm the next flush until this one is fully done; deliveries
// never reorder or overlap across flush windows. Updates accepted while
// deliver was running arm the next flush as soon as it returns.
func (m *merger) flush() {
	m.mu.Lock()
	out := m.buf
	m.buf = SessionUpdate{}
	m.mu.Unlock()

	if !out.Empty() {
		m.deliver(out)
	}

	m.mu.Lock()
	m.timer = nil
	if !m.buf.Empty() {
		m.timer = time.AfterFunc(m.window, m.flush)
	}
	m.mu.Unlock()
}

// Close flushes any pending buffer synchronously, used on disconnect so no
// accepted chunk is silently dropped.
func (m *merger) Close() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	out := m.buf
	m.buf = SessionUpdate{}
	m.mu.Unlock()

	if !out.Empty() {
		m.deliver(out)
	}
}
