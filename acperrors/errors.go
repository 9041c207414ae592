// Package acperrors collects the typed error variants the SDK's layers
// raise, plus panic-safe recovery and shutdown-path error aggregation in
// the style of the teacher's internal/errors package (ierr.Recover,
// ierr.PanicError, ierr.MultiError, ierr.NewTransientError, as used by its
// orchestrator).
package acperrors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// TransportError reports a failure in the byte-plumbing layer: a process
// that failed to spawn, a pipe that closed, an HTTP request that failed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError for operation op.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// ProtocolError wraps a JSON-RPC error returned by the agent, keeping the
// numeric code alongside the message so a caller can branch on it without
// string matching.
type ProtocolError struct {
	Code    int
	Message string
	Data    []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// SessionError reports a failure in session-engine-level sequencing: an
// operation attempted in the wrong connection state, an unadvertised
// capability, a turn that ended in a way the caller didn't expect.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("session: %s: %v", e.Op, e.Err) }
func (e *SessionError) Unwrap() error { return e.Err }

// NewSessionError wraps err as a SessionError for operation op.
func NewSessionError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SessionError{Op: op, Err: err}
}

// CodecError reports a failure decoding or classifying a wire frame: a line
// that isn't valid JSON, a frame that matches none of the known shapes.
type CodecError struct {
	Line []byte
	Err  error
}

func (e *CodecError) Error() string {
	const maxEcho = 200
	line := e.Line
	if len(line) > maxEcho {
		line = line[:maxEcho]
	}
	return fmt.Sprintf("codec: %v (line: %q)", e.Err, line)
}
func (e *CodecError) Unwrap() error { return e.Err }

// TransientError marks a failure that is expected to be retryable or
// recoverable — a shutdown step that timed out, a poll that failed once.
// It is still an error (callers that want hard failures still see one) but
// lets a MultiError's caller distinguish "this mattered" from "this is
// background noise".
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as a TransientError for operation op.
func NewTransientError(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// PanicError wraps a recovered panic value along with the stack trace
// captured at the moment of recovery, so callers can log it without the
// process going down.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover runs fn and converts any panic into a *PanicError, so a single
// misbehaving delegate callback (host application code we don't control)
// cannot take down the connection that invoked it.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, StackTrace: string(debug.Stack())}
		}
	}()
	return fn()
}

// MultiError aggregates independent failures encountered while tearing
// down several subsystems at once, so a shutdown path can report every
// failure instead of only the first.
type MultiError struct {
	errs []error
}

// Append records err, if non-nil.
func (m *MultiError) Append(err error) {
	if err != nil {
		m.errs = append(m.errs, err)
	}
}

// ErrOrNil returns nil if no error was appended, the sole error if exactly
// one was, or m itself otherwise.
func (m *MultiError) ErrOrNil() error {
	switch len(m.errs) {
	case 0:
		return nil
	case 1:
		return m.errs[0]
	default:
		return m
	}
}

func (m *MultiError) Error() string {
	if len(m.errs) == 1 {
		return m.errs[0].Error()
	}
	msg := fmt.Sprintf("%d errors occurred:", len(m.errs))
	for _, e := range m.errs {
		msg += "\n\t* " + e.Error()
	}
	return msg
}

// Unwrap exposes the aggregated errors to errors.Is / errors.As.
func (m *MultiError) Unwrap() []error { return m.errs }

// Is reports whether any aggregated error matches target.
func (m *MultiError) Is(target error) bool {
	for _, e := range m.errs {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}
