package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// envelope is the loose inbound frame shape. The relay echoes outbound
// frames verbatim, so every observed outbound field appears here too.
type envelope struct {
	Type         string          `json:"type"`
	Event        json.RawMessage `json:"event,omitempty"`
	Message      string          `json:"message,omitempty"`
	Action       string          `json:"action,omitempty"`
	Target       string          `json:"target,omitempty"`
	Details      string          `json:"details,omitempty"`
	ActivityType string          `json:"activityType,omitempty"`
	User         *User           `json:"user,omitempty"`
}

// Normalizer parses raw inbound frames into canonical events. Missing ids
// and timestamps are assigned at the parse boundary so every event entering
// the dispatcher has a usable identity.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// NewNormalizer creates a normalizer using wall-clock time and uuid v7 ids.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		now:   time.Now,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// NewNormalizerAt creates a normalizer with injected time and id sources.
func NewNormalizerAt(now func() time.Time, newID func() string) *Normalizer {
	return &Normalizer{now: now, newID: newID}
}

// Normalize converts a raw frame into a canonical event. It never fails:
// frames that cannot be decoded are wrapped as opaque message events so
// nothing received from the relay is silently discarded.
func (n *Normalizer) Normalize(raw []byte) Event {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return n.opaque(raw)
	}

	switch env.Type {
	case "collaboration_event":
		var ev Event
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return n.opaque(raw)
		}
		return n.finish(ev)

	case "event":
		// Legacy inner envelope; its target field is itself a JSON string
		// (double-encoded). Flatten it here so reducers only ever see
		// single-encoded payloads.
		var inner Event
		if err := json.Unmarshal(env.Event, &inner); err != nil {
			return n.opaque(raw)
		}
		if inner.Type == TypeCursorUpdate {
			inner.Target = unquoteIfNested(inner.Target)
		}
		return n.finish(inner)

	case "message":
		return n.finish(Event{
			Type:    TypeMessage,
			User:    derefUser(env.User),
			Details: env.Message,
		})

	case "user_action":
		return n.finish(Event{
			Type:    TypeUserAction,
			User:    derefUser(env.User),
			Action:  env.Action,
			Target:  env.Target,
			Details: env.Details,
		})

	case "activity":
		return n.finish(Event{
			Type:    TypeActivity,
			User:    derefUser(env.User),
			Action:  env.ActivityType,
			Target:  env.Target,
			Details: env.Message,
		})

	case "ping", "test", "direct":
		return n.finish(Event{
			Type:   TypePresence,
			User:   derefUser(env.User),
			Action: env.Type,
		})

	default:
		return n.opaque(raw)
	}
}

// finish validates identity fields and closes the union: unknown types
// degrade to opaque messages rather than leaking past the parse boundary.
func (n *Normalizer) finish(ev Event) Event {
	if !Known(ev.Type) {
		ev.Details = string(ev.Type) + " " + ev.Details
		ev.Type = TypeMessage
	}
	if ev.ID == "" {
		ev.ID = n.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = n.now()
	}
	return ev
}

func (n *Normalizer) opaque(raw []byte) Event {
	return Event{
		ID:        n.newID(),
		Type:      TypeMessage,
		Timestamp: n.now(),
		Details:   string(raw),
	}
}

func derefUser(u *User) User {
	if u == nil {
		return User{}
	}
	return *u
}

// unquoteIfNested peels one layer of string-encoding off a JSON payload.
func unquoteIfNested(s string) string {
	if !strings.HasPrefix(s, `"`) {
		return s
	}
	var inner string
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return s
	}
	return inner
}
