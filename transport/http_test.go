package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/acphost/wire"
)

func newTestServer(t *testing.T) (*httptest.Server, chan []byte, *sync.Mutex, *[][]byte) {
	t.Helper()
	var mu sync.Mutex
	var queued [][]byte
	posted := make(chan []byte, 16)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/message", func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		posted <- body
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if len(queued) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(queued[0])
		queued = queued[1:]
	})

	srv := httptest.NewServer(mux)
	return srv, posted, &mu, &queued
}

func TestHTTPTransportConnectAndSend(t *testing.T) {
	srv, posted, _, _ := newTestServer(t)
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Disconnect()

	b, err := wire.EncodeRequest(wire.NewStringID("1"), "initialize", map[string]string{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := tr.WriteFrame(b); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-posted:
		if len(got) == 0 {
			t.Fatal("expected posted body")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for POST")
	}
}

func TestHTTPTransportPollDeliversFrames(t *testing.T) {
	srv, _, mu, queued := newTestServer(t)
	defer srv.Close()

	mu.Lock()
	*queued = append(*queued, []byte(`{"jsonrpc":"2.0","method":"session/update","params":{}}`))
	mu.Unlock()

	var got []wire.Frame
	var gotMu sync.Mutex
	tr := NewHTTPTransport(srv.URL, nil)
	tr.SetInboundHandler(func(f wire.Frame) {
		gotMu.Lock()
		defer gotMu.Unlock()
		got = append(got, f)
	})
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Disconnect()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		gotMu.Lock()
		n := len(got)
		gotMu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	gotMu.Lock()
	defer gotMu.Unlock()
	if len(got) == 0 {
		t.Fatal("expected at least one polled frame")
	}
	if got[0].Kind != wire.KindNotificationFrame {
		t.Fatalf("kind = %v, want notification", got[0].Kind)
	}
}

func TestHTTPTransportConnectFailsOnNon2xx(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil)
	if err := tr.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error for non-2xx reachability check")
	}
}

func TestHTTPTransportDisconnectIdempotent(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("first disconnect: %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}
