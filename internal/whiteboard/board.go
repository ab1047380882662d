// Package whiteboard implements the shared drawing surface reducer: local
// stroke capture, remote stroke/text application, and deterministic replay
// rendering.
package whiteboard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/logger"
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolPencil Tool = "pencil"
	ToolEraser Tool = "eraser"
	ToolSquare Tool = "square"
	ToolCircle Tool = "circle"
	ToolText   Tool = "text"
)

// Stroke is one finished drawing operation. For square and circle the first
// and last recorded points define the bounding box.
type Stroke struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	UserName  string        `json:"userName"`
	Tool      Tool          `json:"tool"`
	Color     string        `json:"color"`
	Size      float64       `json:"size"`
	Points    []event.Point `json:"points"`
	Timestamp time.Time     `json:"timestamp"`
}

// TextItem is one placed piece of text.
type TextItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Text      string    `json:"text"`
	Color     string    `json:"color"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter broadcasts locally-finished operations. *client.Outbound
// satisfies it.
type Emitter interface {
	Stroke(p event.StrokePayload) (event.Event, bool)
	Text(p event.TextPayload) (event.Event, bool)
	Clear() (event.Event, bool)
}

// Board holds the whiteboard state. Replaying strokes then texts in stored
// order against a blank canvas reproduces the exact visual state.
type Board struct {
	self    event.User
	emitter Emitter
	log     *logger.Logger
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	tool    Tool
	color   string
	size    float64
	active  []event.Point // local stroke in progress, nil when idle
	strokes []Stroke
	texts   []TextItem
	seen    map[string]struct{} // applied event/op ids
}

// New creates an empty board for the given local user. The emitter may be
// nil for replay-only boards.
func New(self event.User, emitter Emitter, log *logger.Logger) *Board {
	return &Board{
		self:    self,
		emitter: emitter,
		log:     log,
		now:     time.Now,
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
		tool:    ToolPencil,
		color:   "#000000",
		size:    2,
		seen:    make(map[string]struct{}),
	}
}

// SetTool selects the active drawing tool.
func (b *Board) SetTool(t Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tool = t
}

// SetColor sets the active stroke color (hex, #RRGGBB).
func (b *Board) SetColor(c string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.color = c
}

// SetSize sets the active stroke size in pixels.
func (b *Board) SetSize(s float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = s
}

// BeginStroke starts accumulating samples for a local stroke (pointer-down).
func (b *Board) BeginStroke(x, y float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = []event.Point{{X: x, Y: y}}
}

// ExtendStroke appends a sample to the in-progress stroke (pointer-move).
// It is a no-op when no stroke is active.
func (b *Board) ExtendStroke(x, y float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == nil {
		return
	}
	b.active = append(b.active, event.Point{X: x, Y: y})
}

// EndStroke finalizes the local stroke (pointer-up): assigns id and
// timestamp, appends it locally, and broadcasts it. Returns the finished
// stroke and false when no stroke was active.
func (b *Board) EndStroke() (Stroke, bool) {
	b.mu.Lock()
	if b.active == nil {
		b.mu.Unlock()
		return Stroke{}, false
	}
	s := Stroke{
		ID:        b.newID(),
		UserID:    b.self.ID,
		UserName:  b.self.Name,
		Tool:      b.tool,
		Color:     b.color,
		Size:      b.size,
		Points:    b.active,
		Timestamp: b.now(),
	}
	b.active = nil
	b.seen[s.ID] = struct{}{}
	b.strokes = append(b.strokes, s)
	b.mu.Unlock()

	if b.emitter != nil {
		b.emitter.Stroke(event.StrokePayload{
			ID:        s.ID,
			UserID:    s.UserID,
			UserName:  s.UserName,
			Tool:      string(s.Tool),
			Color:     s.Color,
			Size:      s.Size,
			Points:    s.Points,
			Timestamp: s.Timestamp,
		})
	}
	return s, true
}

// PlaceText places a text item locally and broadcasts it.
func (b *Board) PlaceText(x, y float64, text string) TextItem {
	b.mu.Lock()
	item := TextItem{
		ID:        b.newID(),
		UserID:    b.self.ID,
		UserName:  b.self.Name,
		X:         x,
		Y:         y,
		Text:      text,
		Color:     b.color,
		Size:      b.size,
		Timestamp: b.now(),
	}
	b.seen[item.ID] = struct{}{}
	b.texts = append(b.texts, item)
	b.mu.Unlock()

	if b.emitter != nil {
		b.emitter.Text(event.TextPayload{
			ID:        item.ID,
			UserID:    item.UserID,
			UserName:  item.UserName,
			X:         item.X,
			Y:         item.Y,
			Text:      item.Text,
			Color:     item.Color,
			Size:      item.Size,
			Timestamp: item.Timestamp,
		})
	}
	return item
}

// Clear empties both sequences locally and broadcasts the clear so all
// participants converge to an empty canvas.
func (b *Board) Clear() {
	b.mu.Lock()
	b.strokes = nil
	b.texts = nil
	b.seen = make(map[string]struct{})
	b.mu.Unlock()

	if b.emitter != nil {
		b.emitter.Clear()
	}
}

// Apply folds a remote whiteboard event into the board. Unparsable payloads
// are logged and dropped; nothing here can crash the dispatcher.
func (b *Board) Apply(ev event.Event) {
	if ev.Type != event.TypeWhiteboard {
		return
	}

	switch ev.Action {
	case "stroke":
		p, err := ev.Stroke()
		if err != nil {
			b.log.Warn("bad stroke payload", "event_id", ev.ID, "error", err)
			return
		}
		id := p.ID
		if id == "" {
			id = ev.ID
		}
		b.mu.Lock()
		if _, dup := b.seen[id]; dup {
			b.mu.Unlock()
			return
		}
		b.seen[id] = struct{}{}
		b.strokes = append(b.strokes, Stroke{
			ID:        id,
			UserID:    p.UserID,
			UserName:  p.UserName,
			Tool:      Tool(p.Tool),
			Color:     p.Color,
			Size:      p.Size,
			Points:    p.Points,
			Timestamp: p.Timestamp,
		})
		b.mu.Unlock()

	case "text":
		p, err := ev.Text()
		if err != nil {
			b.log.Warn("bad text payload", "event_id", ev.ID, "error", err)
			return
		}
		id := p.ID
		if id == "" {
			id = ev.ID
		}
		b.mu.Lock()
		if _, dup := b.seen[id]; dup {
			b.mu.Unlock()
			return
		}
		b.seen[id] = struct{}{}
		b.texts = append(b.texts, TextItem{
			ID:        id,
			UserID:    p.UserID,
			UserName:  p.UserName,
			X:         p.X,
			Y:         p.Y,
			Text:      p.Text,
			Color:     p.Color,
			Size:      p.Size,
			Timestamp: p.Timestamp,
		})
		b.mu.Unlock()

	case "clear":
		b.mu.Lock()
		b.strokes = nil
		b.texts = nil
		b.seen = make(map[string]struct{})
		b.mu.Unlock()

	default:
		b.log.Warn("unknown whiteboard action", "action", ev.Action, "event_id", ev.ID)
	}
}

// Strokes returns the stroke sequence in stored order.
func (b *Board) Strokes() []Stroke {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Stroke, len(b.strokes))
	copy(out, b.strokes)
	return out
}

// Texts returns the text sequence in stored order.
func (b *Board) Texts() []TextItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TextItem, len(b.texts))
	copy(out, b.texts)
	return out
}
