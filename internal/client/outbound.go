package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncroom/collab-platform/internal/event"
)

// collabFrame is the typed outbound envelope. The normalizer still accepts
// the older flat shapes (message, user_action, activity) for compatibility
// with relays that echo them raw.
type collabFrame struct {
	Type  string      `json:"type"`
	Event event.Event `json:"event"`
}

// Outbound constructs and timestamps locally-originated events before
// handing them to the connection. The returned event carries the id the
// relay will echo back, so dispatching it locally and deduplicating the
// echo converge to a single logical event.
type Outbound struct {
	conn  *Conn
	self  event.User
	now   func() time.Time
	newID func() string

	mu         sync.Mutex
	throttle   time.Duration
	lastCursor time.Time
}

// NewOutbound creates an outbound builder for the given local user.
func NewOutbound(conn *Conn, self event.User, cursorThrottle time.Duration) *Outbound {
	if cursorThrottle <= 0 {
		cursorThrottle = 75 * time.Millisecond
	}
	return &Outbound{
		conn:     conn,
		self:     self,
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		throttle: cursorThrottle,
	}
}

// Self returns the local user identity.
func (o *Outbound) Self() event.User {
	return o.self
}

// Chat sends a chat message.
func (o *Outbound) Chat(text string) (event.Event, bool) {
	return o.send(event.Event{Type: event.TypeMessage, Details: text})
}

// UserAction sends a generic user action.
func (o *Outbound) UserAction(action, target, details string) (event.Event, bool) {
	return o.send(event.Event{
		Type:    event.TypeUserAction,
		Action:  action,
		Target:  target,
		Details: details,
	})
}

// Activity sends an activity entry for the timeline.
func (o *Outbound) Activity(activityType, target, message string) (event.Event, bool) {
	return o.send(event.Event{
		Type:    event.TypeActivity,
		Action:  activityType,
		Target:  target,
		Details: message,
	})
}

// Join announces the local user to the room.
func (o *Outbound) Join() (event.Event, bool) {
	return o.send(event.Event{Type: event.TypeJoin})
}

// Leave announces departure.
func (o *Outbound) Leave() (event.Event, bool) {
	return o.send(event.Event{Type: event.TypeLeave})
}

// Cursor sends the local pointer position. Calls inside the throttle window
// are dropped so pointer movement cannot flood the channel; dropped calls
// return ok=false.
func (o *Outbound) Cursor(x, y float64) (event.Event, bool) {
	o.mu.Lock()
	now := o.now()
	if now.Sub(o.lastCursor) < o.throttle {
		o.mu.Unlock()
		return event.Event{}, false
	}
	o.lastCursor = now
	o.mu.Unlock()

	payload, _ := json.Marshal(event.CursorPayload{X: x, Y: y})
	return o.send(event.Event{
		Type:   event.TypeCursorUpdate,
		Target: string(payload),
	})
}

// Stroke broadcasts a finished whiteboard stroke.
func (o *Outbound) Stroke(p event.StrokePayload) (event.Event, bool) {
	payload, err := json.Marshal(p)
	if err != nil {
		return event.Event{}, false
	}
	return o.send(event.Event{
		Type:    event.TypeWhiteboard,
		Action:  "stroke",
		Details: string(payload),
	})
}

// Text broadcasts a whiteboard text item.
func (o *Outbound) Text(p event.TextPayload) (event.Event, bool) {
	payload, err := json.Marshal(p)
	if err != nil {
		return event.Event{}, false
	}
	return o.send(event.Event{
		Type:    event.TypeWhiteboard,
		Action:  "text",
		Details: string(payload),
	})
}

// Clear broadcasts a whiteboard clear so all participants converge to an
// empty canvas.
func (o *Outbound) Clear() (event.Event, bool) {
	return o.send(event.Event{Type: event.TypeWhiteboard, Action: "clear"})
}

func (o *Outbound) send(ev event.Event) (event.Event, bool) {
	ev.ID = o.newID()
	ev.User = o.self
	ev.Timestamp = o.now()
	ok := o.conn.Send(collabFrame{Type: "collaboration_event", Event: ev})
	return ev, ok
}
