//go:build js

package transport

import "context"

// ProcessConfig mirrors the full-platform type so callers compile unchanged;
// the fields are inert here.
type ProcessConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// ProcessTransport has no usable implementation on platforms without
// process-spawning APIs. Use HTTPTransport instead.
type ProcessTransport struct{}

// NewProcessTransport returns a transport whose Connect always fails with
// ErrUnsupportedPlatform.
func NewProcessTransport(cfg ProcessConfig) *ProcessTransport { return &ProcessTransport{} }

func (t *ProcessTransport) Connect(ctx context.Context) error { return ErrUnsupportedPlatform }
func (t *ProcessTransport) Disconnect() error                 { return nil }
func (t *ProcessTransport) WriteFrame(data []byte) error      { return ErrUnsupportedPlatform }
func (t *ProcessTransport) SetInboundHandler(h InboundHandler)       {}
func (t *ProcessTransport) SetDisconnectHandler(h DisconnectHandler) {}
