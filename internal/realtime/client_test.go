package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
)

const openPacket = `0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

// socketServer runs script against every accepted connection after the
// engine.io open packet has been sent.
func socketServer(t *testing.T, script func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
			http.Error(w, "bad socket path", http.StatusNotFound)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if err := conn.Write(ctx, websocket.MessageText, []byte(openPacket)); err != nil {
			return
		}
		script(ctx, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func expect(ctx context.Context, conn *websocket.Conn, want string) error {
	_, b, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	if string(b) != want {
		return fmt.Errorf("got %q, want %q", b, want)
	}
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, msg string) error {
	return conn.Write(ctx, websocket.MessageText, []byte(msg))
}

func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestClient_MonitorKeepsNewestFifty(t *testing.T) {
	const total = 60
	serverErr := make(chan error, 1)

	srv := socketServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if err := expect(ctx, conn, "40"); err != nil {
			serverErr <- err
			return
		}
		if err := send(ctx, conn, `40{"sid":"ns-1"}`); err != nil {
			serverErr <- err
			return
		}
		if err := send(ctx, conn, "2"); err != nil {
			serverErr <- err
			return
		}
		if err := expect(ctx, conn, "3"); err != nil {
			serverErr <- err
			return
		}
		_ = send(ctx, conn, `42["other_event",{"type":"noise"}]`)
		for i := range total {
			msg := fmt.Sprintf(`42["auth_event",{"type":"login","message":"m%d","timestamp":%d}]`, i, 1763631015000+int64(i)*1000)
			if err := send(ctx, conn, msg); err != nil {
				serverErr <- err
				return
			}
		}
		serverErr <- nil
		drain(ctx, conn)
	})

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	monitor := NewMonitor(DefaultHistory, nil)
	defer monitor.Close()
	monitor.Attach(client)

	var received atomic.Int32
	all := make(chan struct{})
	client.Subscribe(func(Event) {
		if received.Add(1) == total {
			close(all)
		}
	})

	if err := client.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case <-all:
	case <-time.After(5 * time.Second):
		t.Fatalf("received %d events, want %d", received.Load(), total)
	}
	if err := <-serverErr; err != nil {
		t.Fatalf("server: %v", err)
	}

	if !client.Connected() {
		t.Error("Connected() = false, want true")
	}
	last, ok := client.LastEvent()
	if !ok || last.Message != "m59" {
		t.Errorf("LastEvent() = %+v, %v; want m59", last, ok)
	}

	events := monitor.Events()
	if len(events) != DefaultHistory {
		t.Fatalf("len(Events()) = %d, want %d", len(events), DefaultHistory)
	}
	if events[0].Message != "m59" {
		t.Errorf("newest = %q, want m59", events[0].Message)
	}
	if events[len(events)-1].Message != "m10" {
		t.Errorf("oldest = %q, want m10", events[len(events)-1].Message)
	}
	if !monitor.IsOpen() {
		t.Error("monitor should open on a new event")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.Connected() {
		t.Error("Connected() = true after Close")
	}
}

func TestClient_SendsToken(t *testing.T) {
	srv := socketServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if err := expect(ctx, conn, `40{"token":"tok-1"}`); err != nil {
			_ = send(ctx, conn, `44{"message":"missing token"}`)
			return
		}
		_ = send(ctx, conn, `40{"sid":"ns-1"}`)
		drain(ctx, conn)
	})

	client, err := NewClient(srv.URL, WithTokenSource(staticToken("tok-1")))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if err := client.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer client.Close()

	if !client.Connected() {
		t.Error("Connected() = false, want true")
	}
}

func TestClient_ConnectRefused(t *testing.T) {
	srv := socketServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = expect(ctx, conn, "40")
		_ = send(ctx, conn, `44{"message":"Not authorized"}`)
		drain(ctx, conn)
	})

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	err = client.Start(t.Context())
	if err == nil || !strings.Contains(err.Error(), "Not authorized") {
		t.Fatalf("Start() error = %v, want connect refusal", err)
	}
	if client.Connected() {
		t.Error("Connected() = true after refused connect")
	}
	if _, ok := client.LastEvent(); ok {
		t.Error("LastEvent() should be empty")
	}
}

func TestClient_ServerDisconnect(t *testing.T) {
	srv := socketServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = expect(ctx, conn, "40")
		_ = send(ctx, conn, `40{"sid":"ns-1"}`)
		_ = send(ctx, conn, `42["auth_event",{"type":"logout","message":"bye","timestamp":"2025-11-20T09:30:15Z"}]`)
		_ = send(ctx, conn, "41")
		drain(ctx, conn)
	})

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if err := client.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop after server disconnect")
	}
	if client.Connected() {
		t.Error("Connected() = true after server disconnect")
	}
	last, ok := client.LastEvent()
	if !ok || last.Type != "logout" || last.Message != "bye" {
		t.Errorf("LastEvent() = %+v, %v", last, ok)
	}
}

func TestClient_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if err := client.Start(t.Context()); err == nil {
		t.Fatal("expected dial error")
	}
	if client.Connected() {
		t.Error("Connected() = true after dial failure")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unstarted client error = %v", err)
	}
}

func TestClient_Unsubscribe(t *testing.T) {
	c, err := NewClient("http://localhost:5000")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	calls := 0
	stop := c.Subscribe(func(Event) { calls++ })
	c.handleEvent(packet{engine: engineMessage, socket: socketEvent, namespace: "/", data: []byte(`["auth_event",{"type":"login"}]`)})
	stop()
	c.handleEvent(packet{engine: engineMessage, socket: socketEvent, namespace: "/", data: []byte(`["auth_event",{"type":"login"}]`)})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	c.handleEvent(packet{engine: engineMessage, socket: socketEvent, namespace: "/admin", data: []byte(`["auth_event",{"type":"admin"}]`)})
	if last, _ := c.LastEvent(); last.Type != "login" {
		t.Errorf("namespaced event should be ignored, LastEvent().Type = %q", last.Type)
	}
}

func TestClient_SkipsUndecodableFrames(t *testing.T) {
	srv := socketServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = expect(ctx, conn, "40")
		_ = send(ctx, conn, `40{"sid":"ns-1"}`)
		_ = send(ctx, conn, `451-["other_event",{"_placeholder":true,"num":0}]`)
		_ = conn.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02})
		_ = send(ctx, conn, "9")
		_ = send(ctx, conn, `42["auth_event",{"type":"login","message":"after","timestamp":"2025-11-20T09:30:15Z"}]`)
		drain(ctx, conn)
	})

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got := make(chan Event, 1)
	client.Subscribe(func(e Event) { got <- e })
	if err := client.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer client.Close()

	select {
	case e := <-got:
		if e.Message != "after" {
			t.Errorf("event = %+v, want message after", e)
		}
	case <-client.Done():
		t.Fatal("read loop stopped on an undecodable frame")
	case <-time.After(5 * time.Second):
		t.Fatal("auth_event after undecodable frames was not delivered")
	}
	if !client.Connected() {
		t.Error("Connected() = false, want true")
	}
}
