package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("Expected a text message, got %d", kind)
	}
	return string(data)
}

func TestHub_SendToAll(t *testing.T) {
	counters := telemetry.NewCounters()
	hub := NewHub(WithCounters(counters))
	server := httptest.NewServer(hub)
	defer server.Close()

	a, b := dial(t, server), dial(t, server)
	defer a.Close()
	defer b.Close()

	waitFor(t, "two observers", func() bool { return hub.Len() == 2 })
	if got := counters.Get().Observers; got != 2 {
		t.Errorf("Expected 2 observers, got %d", got)
	}

	msg := []byte(`{"time":[1],"freq":[0.0]}`)
	hub.SendToAll(msg)
	msg[2] = 'X'

	for _, conn := range []*websocket.Conn{a, b} {
		if got := readText(t, conn); got != `{"time":[1],"freq":[0.0]}` {
			t.Errorf("Unexpected message: %s", got)
		}
	}

	_ = a.Close()
	waitFor(t, "one observer", func() bool { return hub.Len() == 1 })
	waitFor(t, "observer gauge", func() bool { return counters.Get().Observers == 1 })
}

func TestHub_SendsLatestOnConnect(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	if hub.Latest() != nil {
		t.Fatal("Expected no latest message")
	}

	hub.SendToAll([]byte("first"))
	hub.SendToAll([]byte("second"))

	conn := dial(t, server)
	defer conn.Close()

	if got := readText(t, conn); got != "second" {
		t.Errorf("Expected the latest message, got %s", got)
	}
	if got := string(hub.Latest()); got != "second" {
		t.Errorf("Expected latest to be second, got %s", got)
	}
}

func TestHub_DropsForSlowObserver(t *testing.T) {
	hub := NewHub()

	slow := &client{id: uuid.New(), send: make(chan []byte, 1)}
	hub.clients[slow.id] = slow

	hub.SendToAll([]byte("a"))
	hub.SendToAll([]byte("b"))

	if len(slow.send) != 1 {
		t.Fatalf("Expected 1 queued message, got %d", len(slow.send))
	}
	if got := string(<-slow.send); got != "a" {
		t.Errorf("Expected the queued message to be kept, got %s", got)
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	waitFor(t, "observer", func() bool { return hub.Len() == 1 })
	if err := hub.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected a normal close, got %v", err)
	}
	if hub.Len() != 0 {
		t.Errorf("Expected no observers, got %d", hub.Len())
	}
}
