// Package presence maintains the roster of currently-connected
// collaborators.
package presence

import (
	"sync"
	"time"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/logger"
)

// Collaborator is one roster entry.
type Collaborator struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Avatar     string    `json:"avatar,omitempty"`
	JoinedAt   time.Time `json:"joinedAt"`
	LastActive time.Time `json:"lastActive"`
}

// Tracker folds join/leave/activity into the roster and evicts entries that
// go quiet. Eviction runs independently of explicit leave events, guarding
// against connections that drop without saying goodbye.
type Tracker struct {
	staleAfter time.Duration
	log        *logger.Logger

	mu     sync.Mutex
	roster map[string]*Collaborator
}

// NewTracker creates a tracker with the given staleness window.
func NewTracker(staleAfter time.Duration, log *logger.Logger) *Tracker {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Second
	}
	return &Tracker{
		staleAfter: staleAfter,
		log:        log,
		roster:     make(map[string]*Collaborator),
	}
}

// Apply folds one event into the roster. Events without a user id are
// ignored; a non-join event for an unknown user counts as a first sighting.
func (t *Tracker) Apply(ev event.Event) {
	if ev.User.ID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case event.TypeLeave:
		if _, ok := t.roster[ev.User.ID]; ok {
			delete(t.roster, ev.User.ID)
			t.log.Debug("collaborator left", "user_id", ev.User.ID)
		}
		return
	case event.TypeJoin:
		if _, ok := t.roster[ev.User.ID]; !ok {
			t.roster[ev.User.ID] = &Collaborator{
				UserID:     ev.User.ID,
				UserName:   ev.User.Name,
				Avatar:     ev.User.Avatar,
				JoinedAt:   ev.Timestamp,
				LastActive: ev.Timestamp,
			}
			t.log.Debug("collaborator joined", "user_id", ev.User.ID)
			return
		}
	}

	c, ok := t.roster[ev.User.ID]
	if !ok {
		c = &Collaborator{
			UserID:   ev.User.ID,
			UserName: ev.User.Name,
			Avatar:   ev.User.Avatar,
			JoinedAt: ev.Timestamp,
		}
		t.roster[ev.User.ID] = c
	}
	if ev.Timestamp.After(c.LastActive) {
		c.LastActive = ev.Timestamp
	}
	if c.UserName == "" {
		c.UserName = ev.User.Name
	}
}

// Sweep removes collaborators idle longer than the staleness window and
// returns the evicted user ids. The scheduler drives this periodically.
func (t *Tracker) Sweep(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []string
	for id, c := range t.roster {
		if now.Sub(c.LastActive) > t.staleAfter {
			delete(t.roster, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		t.log.Debug("evicted stale collaborators", "count", len(evicted))
	}
	return evicted
}

// Roster returns an unordered snapshot keyed by user id.
func (t *Tracker) Roster() map[string]Collaborator {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Collaborator, len(t.roster))
	for id, c := range t.roster {
		out[id] = *c
	}
	return out
}
