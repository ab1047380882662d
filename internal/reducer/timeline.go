package reducer

import (
	"sort"
	"time"

	"github.com/syncroom/collab-platform/internal/event"
)

// TimelineItem is one display row in the activity timeline.
type TimelineItem struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	Type        event.Type `json:"type"`
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
}

// DefaultTimelineMax is the display cap for the timeline projection.
const DefaultTimelineMax = 50

// Timeline projects the event log into display items sorted strictly
// descending by timestamp and truncated to max. It is stateless: recompute
// it whenever the log changes.
func Timeline(log []event.Event, max int) []TimelineItem {
	if max <= 0 {
		max = DefaultTimelineMax
	}

	items := make([]TimelineItem, 0, len(log))
	for _, ev := range log {
		items = append(items, TimelineItem{
			ID:          ev.ID,
			UserID:      ev.User.ID,
			UserName:    ev.User.Name,
			Type:        ev.Type,
			Description: describe(ev),
			Timestamp:   ev.Timestamp,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})

	if len(items) > max {
		items = items[:max]
	}
	return items
}

func describe(ev event.Event) string {
	who := displayName(ev.User)
	switch ev.Type {
	case event.TypeJoin:
		return who + " joined the session"
	case event.TypeLeave:
		return who + " left the session"
	case event.TypeMessage:
		return who + " sent a message"
	case event.TypeCursorUpdate:
		return who + " moved their cursor"
	case event.TypeWhiteboard:
		switch ev.Action {
		case "clear":
			return who + " cleared the whiteboard"
		case "text":
			return who + " added text to the whiteboard"
		default:
			return who + " drew on the whiteboard"
		}
	case event.TypeActivity:
		if ev.Details != "" {
			return ev.Details
		}
		return who + " " + ev.Action
	case event.TypeUserAction:
		if ev.Target != "" {
			return who + " " + ev.Action + " " + ev.Target
		}
		return who + " " + ev.Action
	default:
		return who + " was active"
	}
}
