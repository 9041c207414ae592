package session

import (
	"sync"
	"time"
)

// sessionState is the per-session record the engine maintains. The current
// model and mode are updated under the engine's mu; the timing counters are
// touched from Prompt and from the inbound session/update path and are
// guarded by their own mutex.
type sessionState struct {
	id string

	models    []ModelOption
	modes     []ModeOption
	currentModel string
	currentMode  string

	merger *merger

	timingMu       sync.Mutex
	turnSeq        int
	turnStart      time.Time
	firstChunkAt   time.Time
	firstToolCallAt time.Time
	chunkCount     int
	byteCount      int64
	toolCallStart  map[string]time.Time
}

func newSessionState(id string) *sessionState {
	return &sessionState{id: id, toolCallStart: make(map[string]time.Time)}
}

// TurnStats is a point-in-time snapshot of the current turn's observed
// latency and volume, safe to read concurrently with the turn's progress.
type TurnStats struct {
	TurnSeq         int
	FirstChunkMs    int64
	FirstToolCallMs int64
	ChunkCount      int
	ByteCount       int64
	OpenToolCalls   int
}

// snapshot reports s's current turn stats. FirstChunkMs/FirstToolCallMs are
// 0 until observed.
func (s *sessionState) snapshot() TurnStats {
	s.timingMu.Lock()
	defer s.timingMu.Unlock()

	st := TurnStats{
		TurnSeq:       s.turnSeq,
		ChunkCount:    s.chunkCount,
		ByteCount:     s.byteCount,
		OpenToolCalls: len(s.toolCallStart),
	}
	if !s.firstChunkAt.IsZero() {
		st.FirstChunkMs = s.firstChunkAt.Sub(s.turnStart).Milliseconds()
	}
	if !s.firstToolCallAt.IsZero() {
		st.FirstToolCallMs = s.firstToolCallAt.Sub(s.turnStart).Milliseconds()
	}
	return st
}

// beginTurn resets per-turn timing counters at the start of a prompt call.
func (s *sessionState) beginTurn() {
	s.timingMu.Lock()
	defer s.timingMu.Unlock()
	s.turnSeq++
	s.turnStart = time.Now()
	s.firstChunkAt = time.Time{}
	s.firstToolCallAt = time.Time{}
	s.chunkCount = 0
	s.byteCount = 0
}

// observeUpdate records first-chunk / first-tool-call latencies and
// chunk/byte counters as updates stream in. Purely additive bookkeeping;
// never gates delivery.
func (s *sessionState) observeUpdate(u SessionUpdate) {
	s.timingMu.Lock()
	defer s.timingMu.Unlock()

	now := time.Now()
	for _, c := range u.MessageChunks {
		s.chunkCount++
		s.byteCount += int64(len(c.Text))
		if s.firstChunkAt.IsZero() {
			s.firstChunkAt = now
		}
	}
	for _, tc := range u.ToolCalls {
		if s.firstToolCallAt.IsZero() {
			s.firstToolCallAt = now
		}
		switch tc.Status {
		case ToolCallRunning, ToolCallPending:
			if _, ok := s.toolCallStart[tc.ID]; !ok {
				s.toolCallStart[tc.ID] = now
			}
		case ToolCallComplete, ToolCallFailed, ToolCallCancelled:
			delete(s.toolCallStart, tc.ID)
		}
	}
}
