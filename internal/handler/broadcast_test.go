package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/syncroom/collab-platform/internal/relay"
	"github.com/syncroom/collab-platform/pkg/logger"
)

func newBroadcastHandler(t *testing.T) *BroadcastHandler {
	t.Helper()
	hub := relay.NewHub(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return NewBroadcastHandler(hub, logger.NewNop())
}

func TestBroadcastReturnsClientCount(t *testing.T) {
	h := newBroadcastHandler(t)

	body := strings.NewReader(`{"message":{"type":"activity","message":"deploy finished"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/websocket-broadcast", body)
	rec := httptest.NewRecorder()
	h.Broadcast(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		ClientCount int `json:"clientCount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ClientCount != 0 {
		t.Fatalf("clientCount = %d, want 0", resp.ClientCount)
	}
}

func TestBroadcastRejectsInvalidBody(t *testing.T) {
	h := newBroadcastHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"message":`},
		{"missing message", `{}`},
		{"empty body", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/websocket-broadcast", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Broadcast(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestBroadcastForwardsMessageVerbatim(t *testing.T) {
	hub := relay.NewHub(logger.NewNop())
	frames := make(chan []byte, 1)
	hub.SetBridge(publisherFunc(func(data []byte) error {
		frames <- data
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	h := NewBroadcastHandler(hub, logger.NewNop())
	body := strings.NewReader(`{"message":"plain string"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/websocket-broadcast", body)
	rec := httptest.NewRecorder()
	h.Broadcast(rec, req)

	select {
	case got := <-frames:
		if string(got) != `"plain string"` {
			t.Fatalf("forwarded %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message never fanned out")
	}
}

type publisherFunc func(data []byte) error

func (f publisherFunc) Publish(data []byte) error { return f(data) }
