package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"paranoia.ai/internal/sim/director/arbiter"
	"paranoia.ai/internal/sim/director/interest"
)

func dial(t *testing.T, srv *httptest.Server, sub SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var hello HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if hello.Type != TypeHello || hello.RunID != "run-x" {
		t.Fatalf("hello=%+v", hello)
	}
	return conn
}

func readTick(t *testing.T, conn *websocket.Conn) TickMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m TickMsg
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func headlines() []arbiter.Headline {
	return []arbiter.Headline{
		{Priority: interest.PriorityCritical, Message: "[CRITICAL] ENGINEERING: Fire detected."},
		{Priority: interest.PriorityLow, Message: "Door opened."},
	}
}

func TestHubFiltersByPriority(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(Config{RunID: "run-x"}, nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	all := dial(t, srv, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: Version})
	defer all.Close()
	crit := dial(t, srv, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: Version, MinPriority: "critical", Quiet: true})
	defer crit.Close()

	hub.Publish(TickMsg{Tick: 1, Suspicion: 30})
	hub.Publish(TickMsg{Tick: 2, Suspicion: 31, Headlines: headlines()})

	m := readTick(t, all)
	if m.Tick != 1 || len(m.Headlines) != 0 || m.Type != TypeTick {
		t.Fatalf("first frame=%+v", m)
	}
	m = readTick(t, all)
	if m.Tick != 2 || len(m.Headlines) != 2 {
		t.Fatalf("second frame=%+v", m)
	}

	// Quiet client skips tick 1 entirely.
	m = readTick(t, crit)
	if m.Tick != 2 || len(m.Headlines) != 1 || m.Headlines[0].Priority != interest.PriorityCritical {
		t.Fatalf("critical frame=%+v", m)
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(Config{RunID: "run-x"}, nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv, SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: Version})
	defer conn.Close()
	if hub.Clients() != 1 {
		t.Fatalf("clients=%d", hub.Clients())
	}
	hub.Close()
	hub.Publish(TickMsg{Tick: 9})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after hub shutdown")
	}
}

func TestHandshakeRejectsBadSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(Config{RunID: "run-x"}, nil)
	defer hub.Close()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(SubscribeMsg{Type: "HELLO", ProtocolVersion: Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
	if hub.Clients() != 0 {
		t.Fatalf("rejected client registered")
	}
}

func TestPublishDropsWhenClientSlow(t *testing.T) {
	hub := NewHub(Config{QueueSize: 1}, nil)
	_, c, _ := hub.register()
	hub.Publish(TickMsg{Tick: 1})
	hub.Publish(TickMsg{Tick: 2})
	if hub.Dropped() != 1 || len(c.out) != 1 {
		t.Fatalf("dropped=%d queued=%d", hub.Dropped(), len(c.out))
	}
	hub.Close()
}
