//go:build !js

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/acphost/acperrors"
	"github.com/mark3labs/acphost/internal/logger"
	"github.com/mark3labs/acphost/wire"
)

// shutdownGrace is how long Disconnect waits after signaling the child
// before escalating to Kill.
const shutdownGrace = 2 * time.Second

// commonBinaryDirs are prefixed onto the inherited PATH before resolving the
// agent command, so a host launched from a minimal environment (a GUI app,
// a restrictive shell) still finds agents installed to the usual places.
var commonBinaryDirs = []string{
	filepath.Join(os.Getenv("HOME"), ".local", "bin"),
	filepath.Join(os.Getenv("HOME"), ".npm-global", "bin"),
	"/opt/homebrew/bin",
	"/usr/local/bin",
	"/usr/bin",
	"/bin",
	"/usr/sbin",
	"/sbin",
}

// ProcessConfig describes how to launch the agent subprocess.
type ProcessConfig struct {
	// Command is the agent executable, resolved against an augmented PATH.
	Command string
	// Args are passed to Command verbatim.
	Args []string
	// Dir is the subprocess working directory. Empty means inherit.
	Dir string
	// Env, if non-nil, replaces the inherited environment entirely.
	Env []string
}

// ProcessTransport spawns the agent as a child process and exchanges
// newline-delimited JSON-RPC frames over its stdio pipes.
type ProcessTransport struct {
	cfg ProcessConfig

	writeMu sync.Mutex
	stdin   io.WriteCloser

	cmd *exec.Cmd

	inbound    InboundHandler
	disconnect DisconnectHandler

	mu                  sync.Mutex
	connected           bool
	disconnectOnce      sync.Once
	done                chan struct{}
	disconnectRequested atomic.Bool
}

// NewProcessTransport builds a transport for the given subprocess
// configuration. Connect must be called before use.
func NewProcessTransport(cfg ProcessConfig) *ProcessTransport {
	return &ProcessTransport{cfg: cfg}
}

func (t *ProcessTransport) SetInboundHandler(h InboundHandler)       { t.inbound = h }
func (t *ProcessTransport) SetDisconnectHandler(h DisconnectHandler) { t.disconnect = h }

// Connect resolves the command against an augmented PATH, spawns it, and
// starts the background read loop. It returns once the process has started;
// it does not wait for the ACP handshake (that is the session engine's job).
func (t *ProcessTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.mu.Unlock()

	ignoreSIGPIPE()

	attemptID := uuid.NewString()

	path, err := t.resolveCommand()
	if err != nil {
		return acperrors.NewTransportError("resolve command", err)
	}
	logger.Debug("transport: launch attempt %s resolved %s", attemptID, path)

	cmd := exec.CommandContext(ctx, path, t.cfg.Args...)
	cmd.Dir = t.cfg.Dir
	if t.cfg.Env != nil {
		cmd.Env = t.cfg.Env
	} else {
		cmd.Env = t.augmentedEnv()
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return acperrors.NewTransportError("stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return acperrors.NewTransportError("stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return acperrors.NewTransportError("stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return acperrors.NewTransportError("start agent", err)
	}
	logger.Debug("transport: launch attempt %s started pid %d", attemptID, cmd.Process.Pid)

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.connected = true
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.drainStderr(stderr)
	go t.readLoop(stdout)

	return nil
}

// resolveCommand finds cfg.Command on an augmented PATH. Absolute or
// relative paths containing a separator are used as-is, matching exec's own
// convention.
func (t *ProcessTransport) resolveCommand() (string, error) {
	if t.cfg.Command == "" {
		return "", fmt.Errorf("no agent command configured")
	}
	if filepath.IsAbs(t.cfg.Command) || filepath.Base(t.cfg.Command) != t.cfg.Command {
		return t.cfg.Command, nil
	}

	oldPath := os.Getenv("PATH")
	defer os.Setenv("PATH", oldPath)
	os.Setenv("PATH", t.augmentedPath())

	resolved, err := exec.LookPath(t.cfg.Command)
	if err != nil {
		return "", fmt.Errorf("agent %q not found on PATH: %w", t.cfg.Command, err)
	}
	return resolved, nil
}

func (t *ProcessTransport) augmentedPath() string {
	prefix := ""
	for _, dir := range commonBinaryDirs {
		if dir == "" {
			continue
		}
		prefix += dir + string(os.PathListSeparator)
	}
	return prefix + os.Getenv("PATH")
}

func (t *ProcessTransport) augmentedEnv() []string {
	env := os.Environ()
	return append(env, "PATH="+t.augmentedPath())
}

func (t *ProcessTransport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		logger.Debug("agent stderr: %s", scanner.Text())
	}
}

func (t *ProcessTransport) readLoop(r io.Reader) {
	scanner := wire.NewLineScanner(r, 0)
	for scanner.Scan() {
		line := scanner.Bytes()
		if wire.SkippableLine(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)

		frame, err := wire.Classify(cp)
		if err != nil {
			logger.Warn("transport: discarding unparsable frame: %v", err)
			continue
		}
		if t.inbound != nil {
			t.inbound(frame)
		}
	}

	err := scanner.Err()
	t.finish(err)
}

// finish runs at most once, reaping the child and firing the disconnect
// handler with the reason the connection ended.
func (t *ProcessTransport) finish(readErr error) {
	t.disconnectOnce.Do(func() {
		t.mu.Lock()
		cmd := t.cmd
		done := t.done
		t.connected = false
		t.mu.Unlock()

		var waitErr error
		if cmd != nil {
			waitErr = cmd.Wait()
		}
		if done != nil {
			close(done)
		}

		var reason error
		if !t.disconnectRequested.Load() {
			reason = readErr
			if reason == nil {
				reason = waitErr
			}
			if reason == nil {
				reason = ErrDisconnected
			}
		}
		if t.disconnect != nil {
			t.disconnect(reason)
		}
	})
}

// WriteFrame serializes concurrent writers so frames are never interleaved
// on the child's stdin.
func (t *ProcessTransport) WriteFrame(data []byte) error {
	t.mu.Lock()
	connected := t.connected
	stdin := t.stdin
	t.mu.Unlock()
	if !connected || stdin == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := stdin.Write(data); err != nil {
		return acperrors.NewTransportError("write frame", err)
	}
	return nil
}

// Disconnect sends an interrupt to the child, waits up to shutdownGrace for
// a clean exit, then escalates to Kill.
func (t *ProcessTransport) Disconnect() error {
	t.mu.Lock()
	cmd := t.cmd
	connected := t.connected
	done := t.done
	t.mu.Unlock()
	if !connected || cmd == nil || cmd.Process == nil {
		return nil
	}
	t.disconnectRequested.Store(true)

	if t.stdin != nil {
		t.stdin.Close()
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		cmd.Process.Kill()
	}

	// The read loop observes the child's exit (stdout EOF) and runs finish,
	// which reaps the process exactly once via cmd.Wait. We only need to
	// escalate if that doesn't happen within the grace period.
	if done != nil {
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			cmd.Process.Kill()
			<-done
		}
	}

	t.disconnectOnce.Do(func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		if t.disconnect != nil {
			t.disconnect(nil)
		}
	})
	return nil
}
