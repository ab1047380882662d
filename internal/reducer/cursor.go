package reducer

import (
	"sync"
	"time"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/logger"
)

// CursorPosition is the most recent pointer position for one remote user.
type CursorPosition struct {
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Cursors keeps one live entry per remote user. The local user's own echoed
// cursor events are filtered out. Entries go away via the staleness sweep,
// never via the event stream itself.
type Cursors struct {
	selfID     string
	staleAfter time.Duration
	log        *logger.Logger

	mu        sync.Mutex
	positions map[string]CursorPosition
}

// NewCursors creates a cursor reducer for the given local user id.
func NewCursors(selfID string, staleAfter time.Duration, log *logger.Logger) *Cursors {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Second
	}
	return &Cursors{
		selfID:     selfID,
		staleAfter: staleAfter,
		log:        log,
		positions:  make(map[string]CursorPosition),
	}
}

// Apply folds one event into the cursor map. Unparsable payloads are
// logged and dropped without affecting other reducers.
func (c *Cursors) Apply(ev event.Event) {
	if ev.Type != event.TypeCursorUpdate {
		return
	}
	if ev.User.ID == "" || ev.User.ID == c.selfID {
		return
	}

	p, err := ev.Cursor()
	if err != nil {
		c.log.Warn("bad cursor payload", "user_id", ev.User.ID, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.positions[ev.User.ID]
	if ok && ev.Timestamp.Before(cur.LastUpdated) {
		return
	}
	c.positions[ev.User.ID] = CursorPosition{
		UserID:      ev.User.ID,
		UserName:    ev.User.Name,
		X:           p.X,
		Y:           p.Y,
		LastUpdated: ev.Timestamp,
	}
}

// Sweep removes cursors idle longer than the staleness window and returns
// the evicted user ids.
func (c *Cursors) Sweep(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []string
	for id, pos := range c.positions {
		if now.Sub(pos.LastUpdated) > c.staleAfter {
			delete(c.positions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Positions returns a snapshot of the live remote cursors.
func (c *Cursors) Positions() map[string]CursorPosition {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]CursorPosition, len(c.positions))
	for id, pos := range c.positions {
		out[id] = pos
	}
	return out
}
