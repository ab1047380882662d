package reducer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/logger"
)

func cursorEvent(id, userID string, x, y float64, at time.Time) event.Event {
	payload, _ := json.Marshal(event.CursorPayload{X: x, Y: y})
	return event.Event{
		ID:        id,
		Type:      event.TypeCursorUpdate,
		User:      event.User{ID: userID},
		Timestamp: at,
		Target:    string(payload),
	}
}

func TestCursorTracksLatestPosition(t *testing.T) {
	c := NewCursors("self", 10*time.Second, logger.NewNop())
	c.Apply(cursorEvent("c1", "u1", 10, 20, t0))
	c.Apply(cursorEvent("c2", "u1", 30, 40, t0.Add(time.Second)))

	pos := c.Positions()["u1"]
	if pos.X != 30 || pos.Y != 40 {
		t.Fatalf("position = (%v, %v), want (30, 40)", pos.X, pos.Y)
	}
}

func TestCursorIgnoresStaleUpdate(t *testing.T) {
	c := NewCursors("self", 10*time.Second, logger.NewNop())
	c.Apply(cursorEvent("c2", "u1", 30, 40, t0.Add(time.Second)))
	c.Apply(cursorEvent("c1", "u1", 10, 20, t0)) // late arrival

	pos := c.Positions()["u1"]
	if pos.X != 30 || pos.Y != 40 {
		t.Fatalf("late arrival overwrote newer position: %+v", pos)
	}
}

func TestCursorFiltersSelf(t *testing.T) {
	c := NewCursors("self", 10*time.Second, logger.NewNop())
	c.Apply(cursorEvent("c1", "self", 10, 20, t0))

	if n := len(c.Positions()); n != 0 {
		t.Fatalf("rendered %d cursors for own echo, want 0", n)
	}
}

func TestCursorDropsBadPayload(t *testing.T) {
	c := NewCursors("self", 10*time.Second, logger.NewNop())
	c.Apply(event.Event{
		ID:        "c1",
		Type:      event.TypeCursorUpdate,
		User:      event.User{ID: "u1"},
		Timestamp: t0,
		Target:    "not json",
	})

	if n := len(c.Positions()); n != 0 {
		t.Fatalf("kept %d cursors from bad payload, want 0", n)
	}
}

func TestCursorStalenessSweep(t *testing.T) {
	c := NewCursors("self", 10*time.Second, logger.NewNop())
	c.Apply(cursorEvent("c1", "u1", 10, 20, t0))
	c.Apply(cursorEvent("c2", "u2", 1, 2, t0.Add(8*time.Second)))

	evicted := c.Sweep(t0.Add(11 * time.Second))
	if len(evicted) != 1 || evicted[0] != "u1" {
		t.Fatalf("evicted = %v, want [u1]", evicted)
	}
	if _, ok := c.Positions()["u2"]; !ok {
		t.Fatal("u2 swept despite recent update")
	}
}
