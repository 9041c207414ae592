// Package router assigns request ids, correlates responses back to their
// callers, and dispatches inbound requests and notifications to handlers
// registered by the session engine. It is the only owner of the
// pending-request map and the id counter; the transport it sits on top of
// knows nothing about correlation.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/acphost/acperrors"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/transport"
	"github.com/mark3labs/acphost/wire"
)

// NotificationHandler receives an inbound notification's raw params.
type NotificationHandler func(method string, params json.RawMessage)

// RequestHandler services an inbound request and returns either a result
// value to encode, or an *wire.RPCError to send as a JSON-RPC error.
type RequestHandler func(ctx context.Context, method string, params json.RawMessage) (any, *wire.RPCError)

// Router sits directly on top of a transport.Transport, assigning ids to
// outbound requests and routing inbound frames to the handlers registered
// by the session engine.
type Router struct {
	tr transport.Transport

	ids     idCounter
	pending *pendingMap

	mu                sync.RWMutex
	notificationHandlers map[string]NotificationHandler
	requestHandlers      map[string]RequestHandler
	fallbackNotification NotificationHandler
	fallbackError        func(*wire.RPCError)

	timing   bool
	onTiming func(RequestTiming)

	disconnectOnce sync.Once
	disconnectErr  error
	disconnected   chan struct{}
}

// New wraps tr. SetInboundHandler/SetDisconnectHandler are called on tr as
// part of construction — callers must not also register their own.
func New(tr transport.Transport) *Router {
	r := &Router{
		tr:                   tr,
		pending:              newPendingMap(),
		notificationHandlers: make(map[string]NotificationHandler),
		requestHandlers:      make(map[string]RequestHandler),
		timing:               timingEnabled(),
		disconnected:         make(chan struct{}),
	}
	tr.SetInboundHandler(r.handleInbound)
	tr.SetDisconnectHandler(r.handleDisconnect)
	return r
}

// OnTiming subscribes to per-request timing observations (see RequestTiming
// doc). Call before Connect; it has no effect once requests are in flight
// if set later racily.
func (r *Router) OnTiming(f func(RequestTiming)) { r.onTiming = f }

// OnNotification registers the handler for a specific inbound notification
// method, e.g. "session/update".
func (r *Router) OnNotification(method string, h NotificationHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notificationHandlers[method] = h
}

// OnRequest registers the handler for a specific inbound request method,
// e.g. "session/request_permission".
func (r *Router) OnRequest(method string, h RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestHandlers[method] = h
}

// OnUnknownError is invoked when an inbound error frame arrives with a null
// id.
func (r *Router) OnUnknownError(f func(*wire.RPCError)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbackError = f
}

// Connect resets the id counter — a fresh connection starts ids at 1 again —
// and connects the underlying transport.
func (r *Router) Connect(ctx context.Context) error {
	r.ids.Reset()
	return r.tr.Connect(ctx)
}

// Disconnect tears down the transport and fails every pending caller.
func (r *Router) Disconnect() error {
	return r.tr.Disconnect()
}

// Done is closed once the router has observed a disconnect, by request or
// failure. Err returns the reason (nil for a caller-requested disconnect).
func (r *Router) Done() <-chan struct{} { return r.disconnected }
func (r *Router) Err() error            { return r.disconnectErr }

// SendRequest assigns the next id, writes the request, and blocks until a
// response, error, cancellation, or disconnect resolves it. On
// success it unmarshals the raw result into out (which may be nil to
// discard it).
func (r *Router) SendRequest(ctx context.Context, method string, params any, out any) error {
	id := r.ids.Next()
	data, err := wire.EncodeRequest(id, method, params)
	if err != nil {
		return fmt.Errorf("router: encode %s: %w", method, err)
	}

	entry := &pendingEntry{
		method: method,
		result: make(chan pendingResult, 1),
		bytes:  len(data),
	}
	key := id.String()
	r.pending.put(key, entry)

	start := time.Now()
	if err := r.tr.WriteFrame(data); err != nil {
		r.pending.remove(key)
		return fmt.Errorf("router: send %s: %w", method, err)
	}

	select {
	case res := <-entry.result:
		r.emitTiming(method, start, len(data), len(res.raw), res.err != nil)
		if res.err != nil {
			if rpcErr, ok := res.err.(*wire.RPCError); ok {
				var errData []byte
				if rpcErr.Data != nil {
					errData, _ = json.Marshal(rpcErr.Data)
				}
				return &acperrors.ProtocolError{Code: rpcErr.Code, Message: rpcErr.Message, Data: errData}
			}
			return res.err
		}
		if out == nil || len(res.raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(res.raw, out); err != nil {
			return fmt.Errorf("router: decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		r.pending.remove(key)
		r.emitTiming(method, start, len(data), 0, true)
		return ctx.Err()
	case <-r.disconnected:
		r.pending.remove(key)
		r.emitTiming(method, start, len(data), 0, true)
		if r.disconnectErr != nil {
			return r.disconnectErr
		}
		return transport.ErrDisconnected
	}
}

// SendNotification writes a fire-and-forget frame with no id.
func (r *Router) SendNotification(method string, params any) error {
	data, err := wire.EncodeNotification(method, params)
	if err != nil {
		return fmt.Errorf("router: encode %s: %w", method, err)
	}
	return r.tr.WriteFrame(data)
}

// respond writes a response or error frame for an inbound request.
func (r *Router) respond(id wire.ID, result any, rpcErr *wire.RPCError) {
	var data []byte
	var err error
	if rpcErr != nil {
		data, err = wire.EncodeError(id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	} else {
		data, err = wire.EncodeResponse(id, result)
	}
	if err != nil {
		logger.Error("router: encode response for id %s: %v", id, err)
		return
	}
	if err := r.tr.WriteFrame(data); err != nil {
		logger.Warn("router: write response for id %s: %v", id, err)
	}
}

func (r *Router) handleInbound(f wire.Frame) {
	switch f.Kind {
	case wire.KindResponseFrame, wire.KindErrorFrame:
		r.handleCorrelated(f)
	case wire.KindInboundRequestFrame:
		r.handleRequest(f)
	case wire.KindNotificationFrame:
		r.handleNotification(f)
	}
}

func (r *Router) handleCorrelated(f wire.Frame) {
	key := f.ID.String()
	entry, ok := r.pending.take(key)
	if !ok {
		if f.Kind == wire.KindErrorFrame && f.ID.IsNull() {
			r.mu.RLock()
			cb := r.fallbackError
			r.mu.RUnlock()
			if cb != nil {
				cb(f.Err)
			}
			return
		}
		// Unknown id: logged and discarded rather than treated as a protocol
		// violation, since a late response for a cancelled or timed-out
		// request is expected, not exceptional.
		logger.Debug("router: discarding response/error with unknown id %s", f.ID)
		return
	}

	if f.Kind == wire.KindErrorFrame {
		entry.result <- pendingResult{err: f.Err}
		return
	}
	entry.result <- pendingResult{raw: []byte(f.Result)}
}

func (r *Router) handleRequest(f wire.Frame) {
	r.mu.RLock()
	h, ok := r.requestHandlers[f.Method]
	r.mu.RUnlock()

	if !ok {
		r.respond(f.ID, nil, &wire.RPCError{
			Code:    wire.CodeMethodNotFound,
			Message: "Method not found: " + f.Method,
		})
		return
	}

	go func() {
		var result any
		var rpcErr *wire.RPCError
		if err := acperrors.Recover(func() error {
			result, rpcErr = h(context.Background(), f.Method, f.Params)
			return nil
		}); err != nil {
			logger.Error("router: recovered panic handling %s: %v", f.Method, err)
			result, rpcErr = nil, &wire.RPCError{Code: wire.CodeInternalError, Message: "Internal error: " + err.Error()}
		}
		r.respond(f.ID, result, rpcErr)
	}()
}

func (r *Router) handleNotification(f wire.Frame) {
	r.mu.RLock()
	h, ok := r.notificationHandlers[f.Method]
	fallback := r.fallbackNotification
	r.mu.RUnlock()

	if ok {
		h(f.Method, f.Params)
		return
	}
	if fallback != nil {
		fallback(f.Method, f.Params)
		return
	}
	logger.Debug("router: dropping unknown notification %s", f.Method)
}

func (r *Router) handleDisconnect(err error) {
	r.disconnectOnce.Do(func() {
		r.disconnectErr = err
		for _, entry := range r.pending.drain() {
			reason := err
			if reason == nil {
				reason = transport.ErrDisconnected
			}
			entry.result <- pendingResult{err: reason}
		}
		close(r.disconnected)
	})
}
