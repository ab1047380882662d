// Package reducer holds the per-feature state reducers that fold the
// collaboration event stream into derived UI state. Each reducer is an
// independent fold of prior state + event, so streams replay
// deterministically and features test in isolation.
package reducer

import (
	"sort"
	"sync"
	"time"

	"github.com/syncroom/collab-platform/internal/event"
)

// ChatMessage is one entry in the chat history. System messages (join and
// leave notices) are flagged distinctly from user messages.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	System    bool      `json:"system"`
}

// Chat derives chat history from message, join and leave events.
type Chat struct {
	mu   sync.Mutex
	byID map[string]struct{}
	msgs []ChatMessage
}

// NewChat creates an empty chat reducer.
func NewChat() *Chat {
	return &Chat{byID: make(map[string]struct{})}
}

// Apply folds one event into the history. Duplicate event ids are ignored
// so ingestion is idempotent.
func (c *Chat) Apply(ev event.Event) {
	var msg ChatMessage
	switch ev.Type {
	case event.TypeMessage:
		msg = ChatMessage{
			ID:        ev.ID,
			UserID:    ev.User.ID,
			UserName:  ev.User.Name,
			Text:      ev.Details,
			Timestamp: ev.Timestamp,
		}
	case event.TypeJoin:
		msg = ChatMessage{
			ID:        ev.ID,
			UserID:    ev.User.ID,
			UserName:  ev.User.Name,
			Text:      displayName(ev.User) + " joined",
			Timestamp: ev.Timestamp,
			System:    true,
		}
	case event.TypeLeave:
		msg = ChatMessage{
			ID:        ev.ID,
			UserID:    ev.User.ID,
			UserName:  ev.User.Name,
			Text:      displayName(ev.User) + " left",
			Timestamp: ev.Timestamp,
			System:    true,
		}
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byID[ev.ID]; dup {
		return
	}
	c.byID[ev.ID] = struct{}{}
	c.msgs = append(c.msgs, msg)
}

// Messages returns the history ordered by timestamp. Arrival order and
// event order can differ under reconnection, so ordering is applied here.
func (c *Chat) Messages() []ChatMessage {
	c.mu.Lock()
	out := make([]ChatMessage, len(c.msgs))
	copy(out, c.msgs)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func displayName(u event.User) string {
	if u.Name != "" {
		return u.Name
	}
	if u.ID != "" {
		return u.ID
	}
	return "someone"
}
