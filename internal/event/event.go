// Package event defines the collaboration event model shared by the
// client pipeline and the relay.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates the collaboration event union.
type Type string

const (
	TypeJoin         Type = "join"
	TypeLeave        Type = "leave"
	TypeMessage      Type = "message"
	TypeCursorUpdate Type = "cursor_update"
	TypeWhiteboard   Type = "whiteboard"
	TypeActivity     Type = "activity"
	TypePresence     Type = "presence"
	TypeUserAction   Type = "user_action"
)

// Known reports whether t is a member of the event union.
func Known(t Type) bool {
	switch t {
	case TypeJoin, TypeLeave, TypeMessage, TypeCursorUpdate,
		TypeWhiteboard, TypeActivity, TypePresence, TypeUserAction:
		return true
	}
	return false
}

// User identifies the collaborator an event is attributed to.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Event is a single typed fact in the collaboration stream. ID is globally
// unique for the session; the same ID delivered twice is one logical event.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	User      User      `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action,omitempty"`
	Target    string    `json:"target,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Point is a single sample on the drawing surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CursorPayload is the decoded position carried by a cursor_update event.
type CursorPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePayload is the decoded payload of a whiteboard "stroke" event.
type StrokePayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Tool      string    `json:"tool"`
	Color     string    `json:"color"`
	Size      float64   `json:"size"`
	Points    []Point   `json:"points"`
	Timestamp time.Time `json:"timestamp"`
}

// TextPayload is the decoded payload of a whiteboard "text" event.
type TextPayload struct {
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

// Cursor decodes the cursor position from the event target. The normalizer
// guarantees the target is single-encoded JSON by the time reducers see it.
func (e Event) Cursor() (CursorPayload, error) {
	var p CursorPayload
	if err := json.Unmarshal([]byte(e.Target), &p); err != nil {
		return CursorPayload{}, fmt.Errorf("decode cursor payload: %w", err)
	}
	return p, nil
}

// Stroke decodes a whiteboard stroke from the event details.
func (e Event) Stroke() (StrokePayload, error) {
	var p StrokePayload
	if err := json.Unmarshal([]byte(e.Details), &p); err != nil {
		return StrokePayload{}, fmt.Errorf("decode stroke payload: %w", err)
	}
	return p, nil
}

// Text decodes a whiteboard text item from the event details.
func (e Event) Text() (TextPayload, error) {
	var p TextPayload
	if err := json.Unmarshal([]byte(e.Details), &p); err != nil {
		return TextPayload{}, fmt.Errorf("decode text payload: %w", err)
	}
	return p, nil
}
