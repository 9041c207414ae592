// Package transport owns the full-duplex byte channel to an ACP agent,
// either a spawned child process communicating over stdio pipes, or a
// remote HTTP endpoint. Both variants serialize outbound frames and deliver
// inbound frames as discrete classified messages through the same contract
//; correlation of requests to responses is the router's job,
// layered on top.
package transport

import (
	"context"
	"errors"

	"github.com/mark3labs/acphost/wire"
)

// InboundHandler receives every classified inbound frame in the exact order
// the decoder produced them from the byte stream.
type InboundHandler func(wire.Frame)

// DisconnectHandler is invoked at most once when the transport detects the
// connection ended, whether requested (Disconnect) or not (child exit, EOF,
// broken pipe). The HTTP transport treats request failures as transient and
// invokes it only from Disconnect. err is nil only for a caller-requested
// disconnect; otherwise it describes why the connection died.
type DisconnectHandler func(err error)

// ErrNotConnected is returned by send operations before Connect or after
// Disconnect.
var ErrNotConnected = errors.New("transport: not connected")

// ErrAlreadyConnected is returned by Connect when called on an already
// connected transport.
var ErrAlreadyConnected = errors.New("transport: already connected")

// ErrDisconnected is the terminal error delivered to every pending caller
// when the connection ends. Disconnect is terminal: a transport is not
// reused across connects.
var ErrDisconnected = errors.New("transport: disconnected")

// ErrUnsupportedPlatform is returned by Connect on a process transport built
// for a platform without child-process APIs.
var ErrUnsupportedPlatform = errors.New("transport: process spawning unsupported on this platform")

// Transport is the shared contract implemented by the process and HTTP
// variants. It owns the byte channel only: framing, delivery of
// inbound frames in arrival order, and mutually-exclusive writes. It does
// not assign ids or track in-flight requests — that is the router's job.
type Transport interface {
	// Connect establishes the channel (spawns the child, or verifies HTTP
	// reachability). No reuse across connects; each Transport instance
	// connects at most once.
	Connect(ctx context.Context) error

	// Disconnect tears the channel down. Idempotent; a second call returns
	// nil without effect. Triggers the registered DisconnectHandler with a
	// nil error (a caller-requested disconnect, not a failure).
	Disconnect() error

	// WriteFrame writes one already-encoded frame (newline included).
	// Concurrent callers are serialized so frames are never interleaved.
	WriteFrame(data []byte) error

	// SetInboundHandler registers the callback invoked for every classified
	// inbound frame. Must be called before Connect.
	SetInboundHandler(h InboundHandler)

	// SetDisconnectHandler registers the callback invoked when the
	// connection ends, whether by caller request or by failure. Must be
	// called before Connect.
	SetDisconnectHandler(h DisconnectHandler)
}
