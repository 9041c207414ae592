package transport

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/acphost/wire"
)

// echoScript is a tiny shell agent: it prints one notification, then echoes
// every line it receives on stdin back unchanged, until stdin closes.
const echoScript = `#!/bin/sh
echo '{"jsonrpc":"2.0","method":"session/update","params":{"hello":true}}'
while IFS= read -r line; do
  echo "$line"
done
`

func writeEchoScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/echo.sh"
	if err := os.WriteFile(path, []byte(echoScript), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestProcessTransportConnectReceivesNotification(t *testing.T) {
	script := writeEchoScript(t)

	var mu sync.Mutex
	var got []wire.Frame
	tr := NewProcessTransport(ProcessConfig{Command: "sh", Args: []string{script}})
	tr.SetInboundHandler(func(f wire.Frame) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, f)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Disconnect()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("expected at least one frame from child")
	}
	if got[0].Kind != wire.KindNotificationFrame {
		t.Fatalf("kind = %v, want notification", got[0].Kind)
	}
}

func TestProcessTransportWriteFrameRoundTrip(t *testing.T) {
	script := writeEchoScript(t)

	var mu sync.Mutex
	var got []wire.Frame
	tr := NewProcessTransport(ProcessConfig{Command: "sh", Args: []string{script}})
	tr.SetInboundHandler(func(f wire.Frame) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, f)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Disconnect()

	req, err := wire.EncodeRequest(wire.NewStringID("1"), "initialize", map[string]string{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := tr.WriteFrame(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) < 2 {
		t.Fatalf("expected notification + echoed request, got %d frames", len(got))
	}
	if got[1].Kind != wire.KindInboundRequestFrame {
		t.Fatalf("echoed frame kind = %v, want inbound-request (agent echoes our own request shape)", got[1].Kind)
	}
}

func TestProcessTransportConnectFailsOnMissingCommand(t *testing.T) {
	tr := NewProcessTransport(ProcessConfig{Command: "acphost-nonexistent-agent-binary"})
	if err := tr.Connect(context.Background()); err == nil {
		t.Fatal("expected error resolving nonexistent command")
	}
}

func TestProcessTransportDisconnectIdempotent(t *testing.T) {
	script := writeEchoScript(t)
	tr := NewProcessTransport(ProcessConfig{Command: "sh", Args: []string{script}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("first disconnect: %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}
