package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/logger"
)

// testRelay is a minimal echo relay: every frame goes back to every
// connected client.
type testRelay struct {
	*httptest.Server
	mu    sync.Mutex
	conns []*websocket.Conn
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	r := &testRelay{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.conns = append(r.conns, conn)
		r.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			r.mu.Lock()
			for _, c := range r.conns {
				c.WriteMessage(websocket.TextMessage, data)
			}
			r.mu.Unlock()
		}
	}))
	t.Cleanup(r.Server.Close)
	return r
}

func (r *testRelay) wsURL() string {
	return "ws" + strings.TrimPrefix(r.URL, "http")
}

func (r *testRelay) dropAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		c.Close()
	}
	r.conns = nil
}

type recordingObserver struct {
	mu       sync.Mutex
	opens    int
	closes   int
	messages [][]byte
}

func (o *recordingObserver) OnOpen() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
}

func (o *recordingObserver) OnMessage(raw []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, raw)
}

func (o *recordingObserver) OnClose(error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
}

func (o *recordingObserver) OnError(error) {}

func (o *recordingObserver) messageCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func testConn(url string) *Conn {
	return NewConn(ConnConfig{
		URL:               url,
		HeartbeatInterval: time.Minute,
		ReconnectInitial:  20 * time.Millisecond,
		ReconnectMax:      100 * time.Millisecond,
	}, logger.NewNop())
}

func TestSendWhileDisconnected(t *testing.T) {
	c := testConn("ws://127.0.0.1:1/ws")
	if c.Send(map[string]string{"type": "ping"}) {
		t.Fatal("send should fail while disconnected")
	}
	if got := c.Stats().MessagesSent; got != 0 {
		t.Fatalf("messagesSent = %d, want 0", got)
	}
}

func TestConnectAndSend(t *testing.T) {
	relay := newTestRelay(t)
	c := testConn(relay.wsURL())
	obs := &recordingObserver{}
	c.Register(obs)
	defer c.Disconnect()

	c.Connect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateConnected })

	if !c.Send(map[string]string{"type": "message", "message": "hi"}) {
		t.Fatal("send should succeed while connected")
	}
	if got := c.Stats().MessagesSent; got != 1 {
		t.Fatalf("messagesSent = %d, want 1", got)
	}

	// The relay echoes the frame back.
	waitFor(t, 2*time.Second, func() bool { return obs.messageCount() >= 1 })
	if got := c.Stats().MessagesReceived; got < 1 {
		t.Fatalf("messagesReceived = %d, want >= 1", got)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	relay := newTestRelay(t)
	c := testConn(relay.wsURL())
	obs := &recordingObserver{}
	c.Register(obs)
	defer c.Disconnect()

	c.Connect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateConnected })
	c.Connect()
	c.Connect()

	time.Sleep(50 * time.Millisecond)
	obs.mu.Lock()
	opens := obs.opens
	obs.mu.Unlock()
	if opens != 1 {
		t.Fatalf("OnOpen fired %d times, want 1", opens)
	}
}

func TestReconnectConvergence(t *testing.T) {
	relay := newTestRelay(t)
	c := testConn(relay.wsURL())
	obs := &recordingObserver{}
	c.Register(obs)
	defer c.Disconnect()

	c.Connect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateConnected })

	// Drop the server side a few times; the client must come back each
	// time and reset its attempt counter on success.
	for i := 0; i < 3; i++ {
		relay.dropAll()
		waitFor(t, 2*time.Second, func() bool { return c.State() != StateConnected })
		waitFor(t, 5*time.Second, func() bool { return c.State() == StateConnected })
	}

	if got := c.Stats().ReconnectAttempts; got != 0 {
		t.Fatalf("reconnectAttempts = %d after successful reconnect, want 0", got)
	}
}

func TestHeartbeatCarriesUser(t *testing.T) {
	relay := newTestRelay(t)
	c := NewConn(ConnConfig{
		URL:               relay.wsURL(),
		Self:              event.User{ID: "u-self", Name: "Ada"},
		HeartbeatInterval: 30 * time.Millisecond,
		ReconnectInitial:  20 * time.Millisecond,
		ReconnectMax:      100 * time.Millisecond,
	}, logger.NewNop())
	obs := &recordingObserver{}
	c.Register(obs)
	defer c.Disconnect()

	c.Connect()
	waitFor(t, 2*time.Second, func() bool { return obs.messageCount() >= 1 })

	obs.mu.Lock()
	raw := obs.messages[0]
	obs.mu.Unlock()
	var frame struct {
		Type string     `json:"type"`
		User event.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode ping: %v", err)
	}
	// Peers normalize the ping to a presence event for this user, so the
	// identity must ride along.
	if frame.Type != "ping" || frame.User.ID != "u-self" {
		t.Fatalf("ping frame = %+v", frame)
	}
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	relay := newTestRelay(t)
	c := testConn(relay.wsURL())
	c.Connect()
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateConnected })

	// Stop the listener so retries cannot succeed, then drop the live
	// websocket; Server.Close alone leaves hijacked connections open.
	relay.Close()
	relay.dropAll()
	waitFor(t, 2*time.Second, func() bool { return c.State() != StateConnected })

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("state = %s after Disconnect, want disconnected", c.State())
	}

	// No retry timer may flip the state back.
	time.Sleep(300 * time.Millisecond)
	if c.State() != StateDisconnected {
		t.Fatalf("state = %s after waiting, want disconnected to be terminal", c.State())
	}
}
