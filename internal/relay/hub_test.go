package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syncroom/collab-platform/pkg/logger"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 16)
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d (have %d)", want, hub.ClientCount())
}

func TestHubFansOutToAllClients(t *testing.T) {
	hub, url := startHub(t)
	c1 := dial(t, url)
	c2 := dial(t, url)
	waitClients(t, hub, 2)

	payload := []byte(`{"type":"message","message":"hi"}`)
	if err := c1.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The sender gets its own frame echoed too.
	if got := readFrame(t, c1); string(got) != string(payload) {
		t.Fatalf("c1 got %q", got)
	}
	if got := readFrame(t, c2); string(got) != string(payload) {
		t.Fatalf("c2 got %q", got)
	}
}

func TestHubBroadcastFromREST(t *testing.T) {
	hub, url := startHub(t)
	c1 := dial(t, url)
	waitClients(t, hub, 1)

	hub.Broadcast([]byte(`{"type":"activity","message":"deploy"}`), sourceREST)
	got := readFrame(t, c1)
	if !strings.Contains(string(got), "deploy") {
		t.Fatalf("unexpected frame %q", got)
	}
}

func TestHubClientCountTracksDisconnects(t *testing.T) {
	hub, url := startHub(t)
	c1 := dial(t, url)
	dial(t, url)
	waitClients(t, hub, 2)

	c1.Close()
	waitClients(t, hub, 1)
}

type recordingPublisher struct {
	frames chan []byte
}

func (p *recordingPublisher) Publish(data []byte) error {
	p.frames <- data
	return nil
}

func TestBridgePublishSkipsBridgedFrames(t *testing.T) {
	hub := NewHub(logger.NewNop())
	pub := &recordingPublisher{frames: make(chan []byte, 4)}
	hub.SetBridge(pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Broadcast([]byte("local"), sourceClient)
	select {
	case got := <-pub.frames:
		if string(got) != "local" {
			t.Fatalf("published %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("local frame not published to bridge")
	}

	hub.BroadcastFromBridge([]byte("remote"))
	select {
	case got := <-pub.frames:
		t.Fatalf("bridged frame republished: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}
