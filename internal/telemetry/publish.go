package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/router"
)

// RequestEvent mirrors router.RequestTiming for the wire, tagged with the
// session that was current when the request completed (see
// Publisher.ObserveRouter).
type RequestEvent struct {
	SessionID     string    `json:"sessionId,omitempty"`
	Method        string    `json:"method"`
	ElapsedMs     int64     `json:"elapsedMs"`
	RequestBytes  int       `json:"requestBytes"`
	ResponseBytes int       `json:"responseBytes"`
	Failed        bool      `json:"failed"`
	At            time.Time `json:"at"`
}

// TurnEvent is a snapshot of one session's prompt turn stats, taken whenever
// the host calls PublishTurn; the prompt command publishes one after the
// turn completes.
type TurnEvent struct {
	SessionID          string    `json:"sessionId"`
	TurnSeq            int       `json:"turnSeq"`
	FirstChunkMs       int64     `json:"firstChunkMs,omitempty"`
	FirstToolCallMs    int64     `json:"firstToolCallMs,omitempty"`
	ChunkCount         int       `json:"chunkCount"`
	ByteCount          int64     `json:"byteCount"`
	OpenToolCalls      int       `json:"openToolCalls"`
	At                 time.Time `json:"at"`
}

// Publisher is the thin, non-blocking facade a host publishes router timing
// and turn stats through. A nil *Publisher is valid and every method is then a
// no-op, so telemetry stays fully optional.
type Publisher struct {
	bus *Bus
}

// NewPublisher wraps bus. Passing a nil bus yields a no-op publisher.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

// PublishRequest fires a RequestEvent for one completed round trip.
// Publishing is fire-and-forget: a telemetry hiccup never blocks or fails
// the request/response path it is observing.
func (p *Publisher) PublishRequest(ev RequestEvent) {
	if p == nil || p.bus == nil {
		return
	}
	ev.At = now()
	subject := sessionlessSubject
	if ev.SessionID != "" {
		subject = SubjectForEvent(ev.SessionID, EventTypeRequest)
	}
	p.publish(subject, ev)
}

// PublishTurn fires a TurnEvent for one session's turn progress.
func (p *Publisher) PublishTurn(ev TurnEvent) {
	if p == nil || p.bus == nil {
		return
	}
	ev.At = now()
	p.publish(SubjectForEvent(ev.SessionID, EventTypeTurn), ev)
}

// ObserveRouter adapts a router.RequestTiming observation into a
// RequestEvent, tagging it with whichever session was current when the
// request completed. Intended to be wired directly as a router.OnTiming
// callback: r.OnTiming(func(rt router.RequestTiming) { pub.ObserveRouter(sid, rt) }).
func (p *Publisher) ObserveRouter(sessionID string, rt router.RequestTiming) {
	p.PublishRequest(RequestEvent{
		SessionID:     sessionID,
		Method:        rt.Method,
		ElapsedMs:     rt.ElapsedMs,
		RequestBytes:  rt.RequestBytes,
		ResponseBytes: rt.ResponseBytes,
		Failed:        rt.Failed,
	})
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("telemetry: marshal event for %s: %v", subject, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if _, err := p.bus.js.Publish(ctx, subject, data); err != nil {
			logger.Debug("telemetry: publish to %s failed: %v", subject, err)
		}
	}()
}

func now() time.Time { return time.Now() }
