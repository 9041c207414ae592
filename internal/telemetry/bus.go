// Package telemetry carries per-request and per-turn timing observations
// over an embedded, in-process-only NATS/JetStream bus, in the style of the
// teacher's internal/nats package. Unlike that package's session store,
// nothing here ever touches disk: the server runs with DontListen set and
// every stream is memory-backed, so the bus exists only for the lifetime of
// one host process and is never a resumable record.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/acphost/internal/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Bus is an embedded, in-process NATS/JetStream deployment scoped to one
// host connection. Router timing and per-session turn stats are published
// to it; a host application (or the demo CLI's doctor command) subscribes
// to observe them without parsing log lines.
type Bus struct {
	ns     *server.Server
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// StartBus boots the embedded server with no TCP listener, connects
// in-process, and provisions the timing stream. Callers must call Shutdown
// when the host connection ends.
func StartBus(ctx context.Context) (*Bus, error) {
	opts := &server.Options{
		JetStream:  true,
		DontListen: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create embedded server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		return nil, errors.New("telemetry: embedded server failed to start within timeout")
	}

	nc, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("telemetry: connect in-process: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("telemetry: jetstream context: %w", err)
	}

	stream, err := setupStream(ctx, js)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, err
	}

	logger.Debug("telemetry: embedded bus ready, stream %s", StreamName)
	return &Bus{ns: ns, nc: nc, js: js, stream: stream}, nil
}

// JetStream exposes the underlying context for callers that want to build
// their own consumers. Tail does not use it; it subscribes over core NATS.
func (b *Bus) JetStream() jetstream.JetStream { return b.js }

// Shutdown drains the connection and stops the embedded server, both with a
// bounded grace period so a slow subscriber never hangs process exit.
func (b *Bus) Shutdown() error {
	if b == nil {
		return nil
	}
	logger.Debug("telemetry: shutting down embedded bus")

	if b.nc != nil {
		drainDone := make(chan error, 1)
		go func() { drainDone <- b.nc.Drain() }()
		select {
		case err := <-drainDone:
			if err != nil {
				logger.Warn("telemetry: drain failed, forcing close: %v", err)
				b.nc.Close()
			}
		case <-time.After(2 * time.Second):
			logger.Warn("telemetry: drain timed out, forcing close")
			b.nc.Close()
		}
	}

	if b.ns != nil {
		b.ns.Shutdown()
		done := make(chan struct{})
		go func() { b.ns.WaitForShutdown(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			return errors.New("telemetry: embedded server shutdown timed out")
		}
	}
	return nil
}
