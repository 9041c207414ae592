package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/acphost/internal/logger"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName holds timing events, within setupStream's age and count
	// limits.
	StreamName = "acphost_timing"

	// EventTypeRequest is a completed router request/response round trip.
	EventTypeRequest = "request"
	// EventTypeTurn is a completed or in-progress prompt turn's stats.
	EventTypeTurn = "turn"
)

// subjectPrefix is the fixed root every published subject falls under.
const subjectPrefix = "acphost.timing"

// SubjectForSession returns the wildcard subject pattern for all timing
// events belonging to one session. A connection-level event (not yet tied
// to a session, e.g. the initialize round trip) uses sessionlessSubject.
func SubjectForSession(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", subjectPrefix, sessionID)
}

// SubjectForEvent returns the specific subject for one event type within a
// session.
func SubjectForEvent(sessionID, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, sessionID, eventType)
}

// sessionlessSubject is where events are published before any session has
// been created, keyed under a fixed pseudo-session.
const sessionlessSubject = "acphost.timing._connection.request"

// setupStream provisions the memory-backed stream used for the lifetime of
// this bus. A short MaxAge keeps it from growing unbounded on a long-running
// connection, since nothing here is meant to be replayed after the process
// exits.
func setupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subjectPrefix + ".>"},
		Storage:  jetstream.MemoryStorage,
		MaxAge:   1 * time.Hour,
		MaxMsgs:  100_000,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: setup stream: %w", err)
	}
	logger.Debug("telemetry: stream %s ready (memory storage)", StreamName)
	return stream, nil
}
