package whiteboard

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/logger"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// captureEmitter records broadcasts as the events a remote peer would
// receive.
type captureEmitter struct {
	events []event.Event
}

func (c *captureEmitter) Stroke(p event.StrokePayload) (event.Event, bool) {
	data, _ := json.Marshal(p)
	ev := event.Event{
		ID:        "ev-" + p.ID,
		Type:      event.TypeWhiteboard,
		User:      event.User{ID: p.UserID, Name: p.UserName},
		Timestamp: p.Timestamp,
		Action:    "stroke",
		Details:   string(data),
	}
	c.events = append(c.events, ev)
	return ev, true
}

func (c *captureEmitter) Text(p event.TextPayload) (event.Event, bool) {
	data, _ := json.Marshal(p)
	ev := event.Event{
		ID:        "ev-" + p.ID,
		Type:      event.TypeWhiteboard,
		User:      event.User{ID: p.UserID, Name: p.UserName},
		Timestamp: p.Timestamp,
		Action:    "text",
		Details:   string(data),
	}
	c.events = append(c.events, ev)
	return ev, true
}

func (c *captureEmitter) Clear() (event.Event, bool) {
	ev := event.Event{ID: "ev-clear", Type: event.TypeWhiteboard, Action: "clear", Timestamp: t0}
	c.events = append(c.events, ev)
	return ev, true
}

func newTestBoard(emitter Emitter) *Board {
	b := New(event.User{ID: "self", Name: "Self"}, emitter, logger.NewNop())
	n := 0
	b.newID = func() string { n++; return string(rune('a' + n)) }
	b.now = func() time.Time { return t0 }
	return b
}

func strokeEvent(t *testing.T, id, userID string, tool Tool, pts []event.Point) event.Event {
	t.Helper()
	data, err := json.Marshal(event.StrokePayload{
		ID: id, UserID: userID, Tool: string(tool), Color: "#ff0000", Size: 3,
		Points: pts, Timestamp: t0,
	})
	if err != nil {
		t.Fatal(err)
	}
	return event.Event{
		ID:        "ev-" + id,
		Type:      event.TypeWhiteboard,
		User:      event.User{ID: userID},
		Timestamp: t0,
		Action:    "stroke",
		Details:   string(data),
	}
}

func TestLocalStrokeLifecycle(t *testing.T) {
	em := &captureEmitter{}
	b := newTestBoard(em)

	if _, ok := b.EndStroke(); ok {
		t.Fatal("EndStroke without BeginStroke should report no stroke")
	}

	b.BeginStroke(10, 10)
	b.ExtendStroke(20, 20)
	b.ExtendStroke(30, 25)
	s, ok := b.EndStroke()
	if !ok {
		t.Fatal("expected finished stroke")
	}
	if len(s.Points) != 3 {
		t.Fatalf("stroke has %d points, want 3", len(s.Points))
	}
	if s.ID == "" || s.Timestamp.IsZero() {
		t.Fatal("stroke missing id or timestamp")
	}
	if len(b.Strokes()) != 1 {
		t.Fatalf("board has %d strokes, want 1", len(b.Strokes()))
	}
	if len(em.events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(em.events))
	}
}

func TestRemoteStrokeDeduplicated(t *testing.T) {
	b := newTestBoard(nil)

	ev := strokeEvent(t, "s1", "u1", ToolPencil, []event.Point{{X: 1, Y: 1}, {X: 5, Y: 5}})
	b.Apply(ev)
	b.Apply(ev)

	strokes := b.Strokes()
	if len(strokes) != 1 {
		t.Fatalf("board has %d strokes after duplicate delivery, want 1", len(strokes))
	}
	if strokes[0].ID != "s1" {
		t.Fatalf("stroke id = %s, want s1", strokes[0].ID)
	}
}

func TestBadPayloadDropped(t *testing.T) {
	b := newTestBoard(nil)
	b.Apply(event.Event{
		ID: "e1", Type: event.TypeWhiteboard, Action: "stroke",
		User: event.User{ID: "u1"}, Timestamp: t0, Details: "garbage",
	})
	b.Apply(event.Event{
		ID: "e2", Type: event.TypeWhiteboard, Action: "text",
		User: event.User{ID: "u1"}, Timestamp: t0, Details: "{broken",
	})

	if len(b.Strokes()) != 0 || len(b.Texts()) != 0 {
		t.Fatal("bad payloads must not mutate the board")
	}
}

func TestClearTruncatesBoth(t *testing.T) {
	b := newTestBoard(nil)
	b.Apply(strokeEvent(t, "s1", "u1", ToolPencil, []event.Point{{X: 1, Y: 1}}))
	b.PlaceText(50, 50, "note")

	b.Apply(event.Event{ID: "cl1", Type: event.TypeWhiteboard, Action: "clear", Timestamp: t0})

	if len(b.Strokes()) != 0 || len(b.Texts()) != 0 {
		t.Fatal("clear must empty both sequences")
	}
}

func TestRoundTripReplay(t *testing.T) {
	// Draw locally on one board; replay the broadcast events on another.
	// Both canvases must match pixel for pixel.
	em := &captureEmitter{}
	local := newTestBoard(em)

	local.SetColor("#2244aa")
	local.SetSize(4)
	local.BeginStroke(20, 20)
	local.ExtendStroke(60, 45)
	local.ExtendStroke(90, 40)
	local.EndStroke()

	local.SetTool(ToolSquare)
	local.BeginStroke(100, 100)
	local.ExtendStroke(160, 140)
	local.EndStroke()

	local.SetTool(ToolCircle)
	local.SetColor("#aa0000")
	local.BeginStroke(40, 120)
	local.ExtendStroke(120, 180)
	local.EndStroke()

	local.PlaceText(30, 200, "hi")

	remote := New(event.User{ID: "peer"}, nil, logger.NewNop())
	for _, ev := range em.events {
		remote.Apply(ev)
	}

	a := local.Render(256, 256)
	b := remote.Render(256, 256)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("replayed canvas differs from locally drawn canvas")
	}
}

func TestEraserRestoresBackground(t *testing.T) {
	b := newTestBoard(nil)
	b.SetColor("#000000")
	b.BeginStroke(10, 50)
	b.ExtendStroke(100, 50)
	b.EndStroke()

	b.SetTool(ToolEraser)
	b.SetSize(12)
	b.BeginStroke(10, 50)
	b.ExtendStroke(100, 50)
	b.EndStroke()

	img := b.Render(128, 128)
	r, g, bl, _ := img.At(50, 50).RGBA()
	if r>>8 != 255 || g>>8 != 255 || bl>>8 != 255 {
		t.Fatalf("erased pixel is not background: %v %v %v", r>>8, g>>8, bl>>8)
	}
}

func TestExportPNG(t *testing.T) {
	b := newTestBoard(nil)
	b.BeginStroke(5, 5)
	b.ExtendStroke(20, 20)
	b.EndStroke()

	var buf bytes.Buffer
	if err := b.ExportPNG(&buf, 64, 64); err != nil {
		t.Fatalf("export: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty PNG output")
	}
	// PNG magic
	if !bytes.HasPrefix(buf.Bytes(), []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("output is not PNG")
	}
}
